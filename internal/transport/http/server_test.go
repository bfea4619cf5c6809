package opshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"
	"callout/internal/signal"
	"callout/internal/trader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBroker 只实现查询接口,下单类调用直接报错。
type stubBroker struct {
	acct      broker.Account
	positions []broker.Position
}

var _ broker.Broker = (*stubBroker)(nil)

func (s *stubBroker) GetAccount(context.Context) (broker.Account, error) { return s.acct, nil }
func (s *stubBroker) ListPositions(context.Context) ([]broker.Position, error) {
	return s.positions, nil
}
func (s *stubBroker) FindPosition(context.Context, string) (*broker.Position, error) {
	return nil, broker.ErrPositionNotFound
}
func (s *stubBroker) SubmitOrder(context.Context, broker.OrderRequest) (*broker.Order, error) {
	return nil, errors.New("read-only stub")
}
func (s *stubBroker) GetOrder(context.Context, string) (*broker.Order, error) {
	return nil, errors.New("read-only stub")
}
func (s *stubBroker) CancelOrder(context.Context, string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fb := &stubBroker{
		acct: broker.Account{Cash: 10000, Equity: 12000},
		positions: []broker.Position{{
			Symbol:     "SPY250620C00420000",
			AssetClass: broker.AssetOption,
			Quantity:   10,
		}},
	}
	cfg := cfgpkg.TradingConfig{}
	sizer := trader.NewSizer(fb, cfg)
	exec := trader.NewExecutor(fb, sizer, nil, nil, cfg)
	monitors := trader.NewMonitorRegistry(fb, exec, sizer, cfg)
	t.Cleanup(monitors.Stop)

	srv, err := NewServer(ServerConfig{
		Addr:     ":0",
		Broker:   fb,
		Monitors: monitors,
		Registry: signal.NewRegistry(),
	})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAccountEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/live/account")
	require.Equal(t, http.StatusOK, rec.Code)

	var acct broker.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	assert.Equal(t, 10000.0, acct.Cash)
	assert.Equal(t, 12000.0, acct.Equity)
}

func TestPositionsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/live/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SPY250620C00420000")
}

func TestMonitorsEndpointEmpty(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/live/monitors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"monitors":[]`)
}

func TestMonitorCancelNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/live/monitors/SPY/trim", nil)
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatternsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/live/patterns")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entry")
}

func TestUnwiredRoutesAbsent(t *testing.T) {
	// 没给 TradeLog/MsgLog 时,对应接口不注册。
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/live/executions", nil)
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
