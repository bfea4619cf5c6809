package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(cfgpkg.AlpacaConfig{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
		RateLimit: 1000,
	})
	require.NoError(t, err)
	return c
}

func TestGetAccount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.Write([]byte(`{"id":"acct","status":"ACTIVE","cash":"10000.50","equity":"12000"}`))
	}))

	acct, err := c.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.50, acct.Cash)
	assert.Equal(t, 12000.0, acct.Equity)
}

func TestFindPositionPrefersOptionPrefix(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/positions", r.URL.Path)
		w.Write([]byte(`[
			{"symbol":"SPY","asset_class":"us_equity","qty":"100","side":"long","current_price":"420","avg_entry_price":"400","market_value":"42000","unrealized_plpc":"0.05"},
			{"symbol":"SPY250620C00420000","asset_class":"us_option","qty":"10","side":"long","current_price":"1.50","avg_entry_price":"1.25","market_value":"1500","unrealized_plpc":"0.2"}
		]`))
	}))

	pos, err := c.FindPosition(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY250620C00420000", pos.Symbol)
	assert.Equal(t, broker.AssetOption, pos.AssetClass)
	assert.Equal(t, 10, pos.Quantity)
	// 比例换算成百分比。
	assert.InDelta(t, 20.0, pos.UnrealizedPLPC, 1e-9)
}

func TestFindPositionNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	_, err := c.FindPosition(context.Background(), "TSLA")
	assert.ErrorIs(t, err, broker.ErrPositionNotFound)
}

func TestSubmitOrderLimit(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"ord-1","client_order_id":"c1","symbol":"SPY250620C00420000","qty":"2","side":"buy","type":"limit","limit_price":"1.35","status":"new","submitted_at":"2025-06-17T10:00:00Z"}`))
	}))

	ord, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol:        "SPY250620C00420000",
		Quantity:      2,
		Side:          broker.SideBuy,
		Type:          broker.OrderLimit,
		LimitPrice:    1.35,
		TimeInForce:   "day",
		ClientOrderID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", ord.ID)
	assert.False(t, ord.Filled())

	assert.Equal(t, "2", got["qty"])
	assert.Equal(t, "1.35", got["limit_price"])
	assert.Equal(t, "day", got["time_in_force"])
}

func TestSubmitOrderValidation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.SubmitOrder(context.Background(), broker.OrderRequest{Symbol: "SPY", Quantity: 0})
	assert.Error(t, err)

	_, err = c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "SPY", Quantity: 1, Side: broker.SideBuy, Type: broker.OrderLimit,
	})
	assert.Error(t, err, "limit order without price must be rejected")
}

func TestAPIErrorSurfaced(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"insufficient buying power"}`))
	}))

	_, err := c.GetAccount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient buying power")
}

func TestCancelOrder(t *testing.T) {
	var cancelled string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		cancelled = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.CancelOrder(context.Background(), "ord-9"))
	assert.Equal(t, "/v2/orders/ord-9", cancelled)
}
