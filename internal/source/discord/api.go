// Package discord implements the alert message source against Discord,
// either through the REST API (user token) or a headless browser session.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/source"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// APISource 通过 /channels/{id}/messages 轮询频道消息。
// 只依赖用户 token，不需要浏览器，适合服务器环境长跑。
type APISource struct {
	client *resty.Client
	limit  int
}

var _ source.Source = (*APISource)(nil)

func NewAPISource(cfg cfgpkg.DiscordConfig) (*APISource, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("discord api source requires token")
	}
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = "https://discord.com/api/v10"
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = 25
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(base, "/"))
	client.SetTimeout(20 * time.Second)
	client.SetHeader("Authorization", token)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; callout/1.0)")
	return &APISource{client: client, limit: limit}, nil
}

// FetchMessages 拉取最近消息。Discord 返回新→旧，这里反转为旧→新，
// 保证同一批内的多条喊单按发布顺序路由。
func (s *APISource) FetchMessages(ctx context.Context, ch source.Channel) ([]source.Message, error) {
	if strings.TrimSpace(ch.ID) == "" {
		return nil, fmt.Errorf("discord api source: channel %q missing id", ch.Key())
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", s.limit)).
		Get("/channels/" + ch.ID + "/messages")
	if err != nil {
		return nil, fmt.Errorf("discord 拉取消息失败(%s): %w", ch.Key(), err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("discord 返回错误(%s): %s", ch.Key(), resp.Status())
	}
	body := resp.String()
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("discord 响应不是合法 JSON(%s)", ch.Key())
	}
	items := gjson.Parse(body).Array()
	out := make([]source.Message, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		text := strings.TrimSpace(item.Get("content").String())
		if text == "" {
			continue
		}
		out = append(out, source.Message{
			ID:      item.Get("id").String(),
			Channel: ch.Key(),
			Text:    text,
		})
	}
	return out, nil
}

func (s *APISource) Close() error { return nil }
