package trader

import (
	"context"
	"errors"
	"testing"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"

	"github.com/stretchr/testify/assert"
)

func testTradingConfig() cfgpkg.TradingConfig {
	return cfgpkg.TradingConfig{
		RiskFraction:       0.01,
		FallbackQty:        10,
		PriceBuffer:        0.10,
		FillWaitSeconds:    0,
		MonitorInitialSec:  0.005,
		MonitorGrowth:      1.05,
		MonitorCapSec:      0.01,
		DedupeCapacity:     64,
		ContractMultiplier: 100,
		TimeInForce:        "day",
	}
}

func TestSizerContracts(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}}
	s := NewSizer(fb, testTradingConfig())

	// budget = 100; price 0.40 -> floor(100/40) = 2
	assert.Equal(t, 2, s.Contracts(context.Background(), 0.40))
	// price 1.25 -> floor(100/125) = 0, floored to 1
	assert.Equal(t, 1, s.Contracts(context.Background(), 1.25))
	// price 0.10 -> floor(100/10) = 10
	assert.Equal(t, 10, s.Contracts(context.Background(), 0.10))
}

func TestSizerMonotonicNonIncreasing(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 25000}}
	s := NewSizer(fb, testTradingConfig())

	prev := 0
	for i, price := range []float64{0.05, 0.10, 0.25, 0.50, 1.00, 2.50, 5.00} {
		qty := s.Contracts(context.Background(), price)
		assert.GreaterOrEqual(t, qty, 1)
		if i > 0 {
			assert.LessOrEqual(t, qty, prev, "qty must not grow as price grows")
		}
		prev = qty
	}
}

func TestSizerFallbackOnAccountError(t *testing.T) {
	fb := &fakeBroker{accountErr: errors.New("gateway down")}
	s := NewSizer(fb, testTradingConfig())

	assert.Equal(t, 10, s.Contracts(context.Background(), 0.40))
}

func TestSizerFallbackOnBadPrice(t *testing.T) {
	fb := &fakeBroker{account: broker.Account{Cash: 10000}}
	s := NewSizer(fb, testTradingConfig())

	assert.Equal(t, 10, s.Contracts(context.Background(), 0))
	assert.Equal(t, 10, s.Contracts(context.Background(), -1))
}
