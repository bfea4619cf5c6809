package trader

import (
	"context"
	"testing"

	"callout/internal/gateway/broker"
	"callout/internal/signal"
	"callout/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(fb *fakeBroker) (*Trader, *MonitorRegistry) {
	router, monitors := newTestRouter(fb)
	return NewTrader(signal.NewDeduper(64), signal.NewParser(signal.NewRegistry()), router), monitors
}

func TestHandleMessageEndToEnd(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}, orderStatus: "filled"}
	tr, monitors := newTestPipeline(fb)
	defer monitors.Stop()

	msg := source.Message{ID: "1", Channel: "alerts", Text: "in SPY 6/20 420C @ 1.25"}
	assert.Equal(t, 1, tr.HandleMessage(context.Background(), msg))

	submits := fb.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, broker.SideBuy, submits[0].Side)
	assert.Equal(t, "SPY", submits[0].Symbol[:3])
}

func TestHandleMessageDuplicateSuppressed(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}, orderStatus: "filled"}
	tr, monitors := newTestPipeline(fb)
	defer monitors.Stop()

	msg := source.Message{Channel: "alerts", Text: "in SPY 6/20 420C @ 1.25"}
	assert.Equal(t, 1, tr.HandleMessage(context.Background(), msg))
	assert.Equal(t, 0, tr.HandleMessage(context.Background(), msg))
	assert.Len(t, fb.submitted(), 1)

	// 另一个频道的相同文本再算一次。
	other := source.Message{Channel: "vip", Text: msg.Text}
	assert.Equal(t, 1, tr.HandleMessage(context.Background(), other))
}

func TestHandleMessageNoise(t *testing.T) {
	fb := &fakeBroker{}
	tr, monitors := newTestPipeline(fb)
	defer monitors.Stop()

	msg := source.Message{Channel: "alerts", Text: "gm folks"}
	assert.Equal(t, 0, tr.HandleMessage(context.Background(), msg))
	assert.Empty(t, fb.submitted())
}

func TestHandleMessageCarriesChannel(t *testing.T) {
	pos := optionPosition(10)
	pos.UnrealizedPLPC = 10
	fb := &fakeBroker{account: broker.Account{Cash: 10000}, positions: []broker.Position{pos}}
	tr, monitors := newTestPipeline(fb)
	defer monitors.Stop()

	msg := source.Message{Channel: "alerts", Text: "trimming SPY @ 50%"}
	require.Equal(t, 1, tr.HandleMessage(context.Background(), msg))

	active := monitors.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "alerts", active[0].Intent.Channel)
}
