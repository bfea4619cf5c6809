package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"
	"callout/internal/gateway/notifier"
	"callout/internal/logger"
	"callout/internal/pkg/occ"
	"callout/internal/types"

	"github.com/google/uuid"
)

// Executor 负责把意图转成订单提交给券商。
// 每次调用只做一次提交;限价开仓额外带一次转市价升级,此外不重试。
type Executor struct {
	broker   broker.Broker
	sizer    *Sizer
	notifier notifier.TextNotifier
	recorder Recorder
	log      *logger.TagLogger

	priceBuffer float64
	fillWait    time.Duration
	tif         string
}

func NewExecutor(b broker.Broker, sizer *Sizer, n notifier.TextNotifier, rec Recorder, cfg cfgpkg.TradingConfig) *Executor {
	if n == nil {
		n = notifier.Nop{}
	}
	return &Executor{
		broker:      b,
		sizer:       sizer,
		notifier:    n,
		recorder:    rec,
		log:         logger.Tagged("executor"),
		priceBuffer: cfg.PriceBuffer,
		fillWait:    time.Duration(cfg.FillWaitSeconds) * time.Second,
		tif:         cfg.TimeInForce,
	}
}

// SubmitEntry 按限价(报价+缓冲)开仓;等待窗口后未成交则撤单并转一笔市价单。
func (e *Executor) SubmitEntry(ctx context.Context, intent types.TradeIntent) error {
	symbol, err := occ.Format(intent.Ticker, intent.Expiration, intent.OptionType, intent.Strike)
	if err != nil {
		e.log.Errorf("%s: 合约符号生成失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Status: "failed", Error: err.Error()})
		return err
	}

	// 张数按加了缓冲的限价算,不然现金紧时会按报价多买。
	limit := round2(intent.OptionPrice + e.priceBuffer)
	qty := e.sizer.Contracts(ctx, limit)

	ord, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:        symbol,
		Quantity:      qty,
		Side:          broker.SideBuy,
		Type:          broker.OrderLimit,
		LimitPrice:    limit,
		TimeInForce:   e.tif,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		e.log.Errorf("%s: 限价开仓失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "limit", Quantity: qty, Price: limit, Status: "failed", Error: err.Error()})
		return err
	}
	e.log.Infof("%s: limit buy %d x %s @ %.2f submitted (order %s)", intent.Ticker, qty, symbol, limit, ord.ID)
	e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "limit", Quantity: qty, Price: limit, OrderID: ord.ID, Status: "submitted"})

	if err := sleepCtx(ctx, e.fillWait); err != nil {
		return err
	}

	got, err := e.broker.GetOrder(ctx, ord.ID)
	if err != nil {
		e.log.Errorf("%s: 订单状态查询失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, OrderID: ord.ID, Status: "failed", Error: err.Error()})
		return err
	}
	if got.Filled() {
		e.log.Infof("%s: limit order %s filled", intent.Ticker, ord.ID)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "limit", Quantity: qty, Price: limit, OrderID: ord.ID, Status: "filled"})
		e.notify(intent, "开仓成交", symbol, qty, limit)
		return nil
	}

	// 升级路径:撤掉挂单,改市价追一次。
	if err := e.broker.CancelOrder(ctx, ord.ID); err != nil {
		e.log.Errorf("%s: 撤单失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, OrderID: ord.ID, Status: "failed", Error: err.Error()})
		return err
	}
	e.log.Infof("%s: limit order %s unfilled after %s, escalating to market", intent.Ticker, ord.ID, e.fillWait)

	mkt, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:        symbol,
		Quantity:      qty,
		Side:          broker.SideBuy,
		Type:          broker.OrderMarket,
		TimeInForce:   e.tif,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		e.log.Errorf("%s: 市价升级失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "market", Quantity: qty, Status: "failed", Error: err.Error()})
		return err
	}
	e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "market", Quantity: qty, OrderID: mkt.ID, Status: "escalated"})
	e.notify(intent, "市价开仓", symbol, qty, intent.OptionPrice)
	return nil
}

// SubmitExit 以市价清掉整个持仓。没有持仓时跳过并记录。
func (e *Executor) SubmitExit(ctx context.Context, intent types.TradeIntent) error {
	pos, ok, err := e.position(ctx, intent)
	if err != nil || !ok {
		return err
	}
	return e.sell(ctx, intent, pos, fullQty(pos), broker.OrderMarket, 0)
}

// SubmitTrim 以市价卖出半仓(向下取整,至少 1 张)。
func (e *Executor) SubmitTrim(ctx context.Context, intent types.TradeIntent) error {
	pos, ok, err := e.position(ctx, intent)
	if err != nil || !ok {
		return err
	}
	return e.sell(ctx, intent, pos, trimQty(pos), broker.OrderMarket, 0)
}

// SubmitStop 按意图给出的限价清仓。限价始终来自意图本身。
func (e *Executor) SubmitStop(ctx context.Context, intent types.TradeIntent) error {
	pos, ok, err := e.position(ctx, intent)
	if err != nil || !ok {
		return err
	}
	return e.sell(ctx, intent, pos, fullQty(pos), broker.OrderLimit, intent.LimitPrice)
}

// BuyMore 以市价在已有合约上加仓,由均价监控触发。
func (e *Executor) BuyMore(ctx context.Context, intent types.TradeIntent, symbol string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("invalid add quantity %d", qty)
	}
	ord, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:        symbol,
		Quantity:      qty,
		Side:          broker.SideBuy,
		Type:          broker.OrderMarket,
		TimeInForce:   e.tif,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		e.log.Errorf("%s: 加仓失败: %v", intent.Ticker, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "market", Quantity: qty, Status: "failed", Error: err.Error()})
		return err
	}
	e.log.Infof("%s: market buy %d x %s submitted (order %s)", intent.Ticker, qty, symbol, ord.ID)
	e.record(ctx, intent, ExecutionRecord{Symbol: symbol, Side: "buy", Type: "market", Quantity: qty, OrderID: ord.ID, Status: "submitted"})
	e.notify(intent, "加仓", symbol, qty, 0)
	return nil
}

// SellMonitored 由盈亏监控触发:trim 卖半仓,其余清仓,均为市价。
func (e *Executor) SellMonitored(ctx context.Context, intent types.TradeIntent, pos *broker.Position) error {
	qty := fullQty(pos)
	if intent.Kind == types.IntentTrim {
		qty = trimQty(pos)
	}
	return e.sell(ctx, intent, pos, qty, broker.OrderMarket, 0)
}

func (e *Executor) sell(ctx context.Context, intent types.TradeIntent, pos *broker.Position, qty int, typ broker.OrderType, limit float64) error {
	if qty < 1 {
		e.log.Warnf("%s: nothing to sell (position qty %d)", intent.Ticker, pos.Quantity)
		return nil
	}
	req := broker.OrderRequest{
		Symbol:        pos.Symbol,
		Quantity:      qty,
		Side:          broker.SideSell,
		Type:          typ,
		TimeInForce:   e.tif,
		ClientOrderID: uuid.NewString(),
	}
	if typ == broker.OrderLimit {
		req.LimitPrice = round2(limit)
	}
	ord, err := e.broker.SubmitOrder(ctx, req)
	if err != nil {
		e.log.Errorf("%s(%s): 卖出失败: %v", intent.Ticker, intent.Kind, err)
		e.record(ctx, intent, ExecutionRecord{Symbol: pos.Symbol, Side: "sell", Type: string(typ), Quantity: qty, Price: req.LimitPrice, Status: "failed", Error: err.Error()})
		return err
	}
	e.log.Infof("%s: %s sell %d x %s submitted (order %s)", intent.Ticker, typ, qty, pos.Symbol, ord.ID)
	e.record(ctx, intent, ExecutionRecord{Symbol: pos.Symbol, Side: "sell", Type: string(typ), Quantity: qty, Price: req.LimitPrice, OrderID: ord.ID, Status: "submitted"})
	e.notify(intent, sellAction(intent.Kind), pos.Symbol, qty, pos.CurrentPrice)
	return nil
}

// position 查找意图对应的持仓。找不到按跳过处理,不算失败。
func (e *Executor) position(ctx context.Context, intent types.TradeIntent) (*broker.Position, bool, error) {
	pos, err := e.broker.FindPosition(ctx, intent.Ticker)
	if errors.Is(err, broker.ErrPositionNotFound) {
		e.log.Warnf("%s(%s): no open position, skipping", intent.Ticker, intent.Kind)
		e.record(ctx, intent, ExecutionRecord{Status: "skipped", Error: err.Error()})
		return nil, false, nil
	}
	if err != nil {
		e.log.Errorf("%s(%s): 持仓查询失败: %v", intent.Ticker, intent.Kind, err)
		return nil, false, err
	}
	return pos, true, nil
}

func (e *Executor) record(ctx context.Context, intent types.TradeIntent, rec ExecutionRecord) {
	if e.recorder == nil {
		return
	}
	rec.Intent = intent
	if err := e.recorder.Record(ctx, rec); err != nil {
		e.log.Warnf("execution record write failed: %v", err)
	}
}

func (e *Executor) notify(intent types.TradeIntent, action, symbol string, qty int, price float64) {
	notice := notifier.ExecutionNotice{
		Ticker:    intent.Ticker,
		Action:    action,
		Symbol:    symbol,
		Quantity:  qty,
		Price:     price,
		Channel:   intent.Channel,
		Timestamp: time.Now(),
	}
	if err := notifier.Notify(e.notifier, notice); err != nil {
		e.log.Warnf("notify failed: %v", err)
	}
}

func sellAction(kind types.IntentKind) string {
	switch kind {
	case types.IntentTrim:
		return "减仓"
	case types.IntentStop:
		return "止损"
	default:
		return "清仓"
	}
}

func fullQty(pos *broker.Position) int {
	if pos.Quantity < 0 {
		return -pos.Quantity
	}
	return pos.Quantity
}

func trimQty(pos *broker.Position) int {
	half := fullQty(pos) / 2
	if half < 1 {
		half = 1
	}
	return half
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
