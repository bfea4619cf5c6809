package trader

import (
	"context"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"
	"callout/internal/logger"

	"github.com/shopspring/decimal"
)

// Sizer 按账户现金的固定风险比例计算开仓张数。
// 券商查询失败时退回固定保底张数，可用性优先于精确性。
type Sizer struct {
	broker      broker.Broker
	risk        decimal.Decimal
	multiplier  decimal.Decimal
	fallbackQty int
	log         *logger.TagLogger
}

func NewSizer(b broker.Broker, cfg cfgpkg.TradingConfig) *Sizer {
	return &Sizer{
		broker:      b,
		risk:        decimal.NewFromFloat(cfg.RiskFraction),
		multiplier:  decimal.NewFromInt(int64(cfg.ContractMultiplier)),
		fallbackQty: cfg.FallbackQty,
		log:         logger.Tagged("sizer"),
	}
}

// Contracts 返回不少于 1 的合约张数:
// floor(cash × risk / (price × multiplier))。
func (s *Sizer) Contracts(ctx context.Context, optionPrice float64) int {
	if optionPrice <= 0 {
		s.log.Warnf("invalid option price %.4f, using fallback qty %d", optionPrice, s.fallbackQty)
		return s.fallbackQty
	}
	budget, err := s.Budget(ctx)
	if err != nil {
		s.log.Warnf("account query failed, using fallback qty %d: %v", s.fallbackQty, err)
		return s.fallbackQty
	}
	qty := s.ContractsFromBudget(budget, optionPrice)
	s.log.Debugf("sized %d contracts (budget %s, price %.2f)", qty, budget, optionPrice)
	return qty
}

// Budget 查一次账户,返回 cash × risk 的可用预算。
// 加仓监控在启动时取一次,之后不再碰账户接口。
func (s *Sizer) Budget(ctx context.Context) (decimal.Decimal, error) {
	acct, err := s.broker.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(acct.Cash).Mul(s.risk), nil
}

// ContractsFromBudget 用既有预算换算张数,不再查账户,下限 1 张。
func (s *Sizer) ContractsFromBudget(budget decimal.Decimal, optionPrice float64) int {
	if optionPrice <= 0 {
		return 1
	}
	denom := decimal.NewFromFloat(optionPrice).Mul(s.multiplier)
	if denom.IsZero() {
		return 1
	}
	qty := int(budget.Div(denom).Floor().IntPart())
	if qty < 1 {
		qty = 1
	}
	return qty
}
