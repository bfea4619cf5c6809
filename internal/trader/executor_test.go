package trader

import (
	"context"
	"testing"

	"callout/internal/gateway/broker"
	"callout/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(fb *fakeBroker) *Executor {
	cfg := testTradingConfig()
	return NewExecutor(fb, NewSizer(fb, cfg), nil, nil, cfg)
}

func entryIntent() types.TradeIntent {
	return types.TradeIntent{
		Kind:        types.IntentEntry,
		Ticker:      "SPY",
		Expiration:  "6/20",
		Strike:      420,
		OptionType:  "C",
		OptionPrice: 1.25,
	}
}

func optionPosition(qty int) broker.Position {
	return broker.Position{
		Symbol:         "SPY250620C00420000",
		AssetClass:     broker.AssetOption,
		Quantity:       qty,
		CurrentPrice:   1.50,
		AvgEntryPrice:  1.25,
		UnrealizedPLPC: 20,
		Side:           "long",
	}
}

func TestSubmitEntryEscalatesExactlyOnce(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}, orderStatus: "new"}
	e := newTestExecutor(fb)

	require.NoError(t, e.SubmitEntry(context.Background(), entryIntent()))

	submits := fb.submitted()
	require.Len(t, submits, 2, "one limit submission plus one market escalation")

	limit := submits[0]
	assert.Equal(t, broker.OrderLimit, limit.Type)
	assert.Equal(t, broker.SideBuy, limit.Side)
	assert.Equal(t, 1.35, limit.LimitPrice) // 1.25 + 0.10 buffer
	assert.NotEmpty(t, limit.ClientOrderID)

	market := submits[1]
	assert.Equal(t, broker.OrderMarket, market.Type)
	assert.Equal(t, limit.Quantity, market.Quantity)
	assert.Equal(t, limit.Symbol, market.Symbol)

	assert.Len(t, fb.cancelled(), 1)
}

func TestSubmitEntrySizesAtBufferedLimit(t *testing.T) {
	// 预算 1000,限价 1.35: floor(1000/135) = 7。按报价 1.25 算会多出一张。
	fb := &fakeBroker{account: broker.Account{Cash: 100000}, orderStatus: "filled"}
	e := newTestExecutor(fb)

	require.NoError(t, e.SubmitEntry(context.Background(), entryIntent()))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, 7, submits[0].Quantity)
	assert.Equal(t, 1.35, submits[0].LimitPrice)
}

func TestSubmitEntryFilledNoEscalation(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}, orderStatus: "filled"}
	e := newTestExecutor(fb)

	require.NoError(t, e.SubmitEntry(context.Background(), entryIntent()))

	assert.Len(t, fb.submitted(), 1)
	assert.Empty(t, fb.cancelled())
}

func TestSubmitEntryBadExpiration(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}}
	e := newTestExecutor(fb)

	intent := entryIntent()
	intent.Expiration = "June 2025"
	assert.Error(t, e.SubmitEntry(context.Background(), intent))
	assert.Empty(t, fb.submitted())
}

func TestSubmitExitSellsFullPosition(t *testing.T) {
	fb := &fakeBroker{positions: []broker.Position{optionPosition(10)}}
	e := newTestExecutor(fb)

	intent := types.TradeIntent{Kind: types.IntentExit, Ticker: "SPY"}
	require.NoError(t, e.SubmitExit(context.Background(), intent))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, broker.SideSell, submits[0].Side)
	assert.Equal(t, broker.OrderMarket, submits[0].Type)
	assert.Equal(t, 10, submits[0].Quantity)
	assert.Equal(t, "SPY250620C00420000", submits[0].Symbol)
}

func TestSubmitTrimSellsHalf(t *testing.T) {
	fb := &fakeBroker{positions: []broker.Position{optionPosition(11)}}
	e := newTestExecutor(fb)

	intent := types.TradeIntent{Kind: types.IntentTrim, Ticker: "SPY"}
	require.NoError(t, e.SubmitTrim(context.Background(), intent))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, 5, submits[0].Quantity) // floor(11/2)
}

func TestSubmitTrimSingleContract(t *testing.T) {
	fb := &fakeBroker{positions: []broker.Position{optionPosition(1)}}
	e := newTestExecutor(fb)

	intent := types.TradeIntent{Kind: types.IntentTrim, Ticker: "SPY"}
	require.NoError(t, e.SubmitTrim(context.Background(), intent))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, 1, submits[0].Quantity)
}

func TestSubmitStopUsesIntentLimit(t *testing.T) {
	fb := &fakeBroker{positions: []broker.Position{optionPosition(4)}}
	e := newTestExecutor(fb)

	intent := types.TradeIntent{Kind: types.IntentStop, Ticker: "SPY", LimitPrice: 0.80}
	require.NoError(t, e.SubmitStop(context.Background(), intent))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, broker.OrderLimit, submits[0].Type)
	assert.Equal(t, 0.80, submits[0].LimitPrice)
	assert.Equal(t, 4, submits[0].Quantity)
}

func TestSubmitExitNoPositionSkips(t *testing.T) {
	fb := &fakeBroker{}
	e := newTestExecutor(fb)

	intent := types.TradeIntent{Kind: types.IntentExit, Ticker: "SPY"}
	require.NoError(t, e.SubmitExit(context.Background(), intent))
	assert.Empty(t, fb.submitted())
}
