// Package alpaca implements the brokerage gateway against Alpaca's v2 REST API.
package alpaca

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"
	"callout/internal/pkg/convert"

	"golang.org/x/time/rate"
)

// Client wraps the Alpaca REST endpoints the trade engine needs.
// 网关被视为无状态可重入：并发调用安全，限流在客户端侧统一收口。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	apiSecret  string
}

var _ broker.Broker = (*Client)(nil)

// NewClient constructs an Alpaca client from configuration.
func NewClient(cfg cfgpkg.AlpacaConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("alpaca.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 alpaca.base_url 失败: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("alpaca 需要 api_key 与 api_secret")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 3
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetAccount 查询 /v2/account，返回现金与权益。
func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var payload accountPayload
	if err := c.doRequest(ctx, http.MethodGet, "/v2/account", nil, &payload); err != nil {
		return broker.Account{}, err
	}
	return broker.Account{
		Cash:      convert.ToFloat64(payload.Cash),
		Equity:    convert.ToFloat64(payload.Equity),
		UpdatedAt: time.Now(),
	}, nil
}

// ListPositions 查询 /v2/positions。每次调用都打到网关，绝不缓存。
func (c *Client) ListPositions(ctx context.Context) ([]broker.Position, error) {
	var payloads []positionPayload
	if err := c.doRequest(ctx, http.MethodGet, "/v2/positions", nil, &payloads); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, mapPosition(p))
	}
	return out, nil
}

// FindPosition 按标的代码定位持仓：期权按合约代码前缀包含匹配，
// 股票按代码精确匹配，期权优先。
func (c *Client) FindPosition(ctx context.Context, ticker string) (*broker.Position, error) {
	positions, err := c.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for i := range positions {
		p := &positions[i]
		if p.AssetClass == broker.AssetOption && strings.HasPrefix(strings.ToUpper(p.Symbol), ticker) {
			return p, nil
		}
	}
	for i := range positions {
		p := &positions[i]
		if p.AssetClass == broker.AssetEquity && strings.EqualFold(p.Symbol, ticker) {
			return p, nil
		}
	}
	return nil, broker.ErrPositionNotFound
}

// SubmitOrder 提交订单到 /v2/orders。
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("alpaca: order quantity must be > 0, got %d", req.Quantity)
	}
	payload := orderPayload{
		Symbol:        req.Symbol,
		Qty:           strconv.Itoa(req.Quantity),
		Side:          string(req.Side),
		Type:          string(req.Type),
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
	}
	if req.Type == broker.OrderLimit {
		if req.LimitPrice <= 0 {
			return nil, fmt.Errorf("alpaca: limit order requires limit_price")
		}
		payload.LimitPrice = strconv.FormatFloat(req.LimitPrice, 'f', 2, 64)
	}
	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v2/orders", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("alpaca 未返回订单 id")
	}
	return mapOrder(resp), nil
}

// GetOrder 查询指定订单的最新状态。
func (c *Client) GetOrder(ctx context.Context, id string) (*broker.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("alpaca: order id 必填")
	}
	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return mapOrder(resp), nil
}

// CancelOrder 撤销未成交订单。
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("alpaca: order id 必填")
	}
	return c.doRequest(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(id), nil, nil)
}

func mapPosition(p positionPayload) broker.Position {
	assetClass := broker.AssetEquity
	if strings.EqualFold(p.AssetClass, "us_option") {
		assetClass = broker.AssetOption
	}
	return broker.Position{
		Symbol:        strings.ToUpper(p.Symbol),
		AssetClass:    assetClass,
		Quantity:      convert.ToInt(p.Qty),
		Side:          p.Side,
		CurrentPrice:  convert.ToFloat64(p.CurrentPrice),
		AvgEntryPrice: convert.ToFloat64(p.AvgEntryPrice),
		MarketValue:   convert.ToFloat64(p.MarketValue),
		// Alpaca 返回的是比例(0.5)，对外统一为百分比(50)。
		UnrealizedPLPC: convert.ToFloat64(p.UnrealizedPLPC) * 100,
	}
}

func mapOrder(resp orderResponse) *broker.Order {
	submittedAt, _ := time.Parse(time.RFC3339, resp.SubmittedAt)
	return &broker.Order{
		ID:            resp.ID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Quantity:      convert.ToInt(resp.Qty),
		Side:          broker.Side(resp.Side),
		Type:          broker.OrderType(resp.Type),
		LimitPrice:    convert.ToFloat64(resp.LimitPrice),
		Status:        resp.Status,
		SubmittedAt:   submittedAt,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return fmt.Errorf("alpaca client 未初始化")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用 alpaca 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			return fmt.Errorf("alpaca 返回错误: %s", resp.Status)
		}
		return fmt.Errorf("alpaca 返回错误(%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("解析 alpaca 响应失败: %w", err)
	}
	return nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("alpaca API 地址未设置")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "/"
	}
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
