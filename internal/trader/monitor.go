package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/broker"
	"callout/internal/logger"
	"callout/internal/types"

	"github.com/shopspring/decimal"
)

// MonitorRegistry 管理挂在条件上的后台监控任务。
// 每个 ticker+类型 只保留一个监控;新意图到达时替换旧的。
// 所有任务都挂在注册表的根 context 上,Stop 时统一取消。
type MonitorRegistry struct {
	broker broker.Broker
	exec   *Executor
	sizer  *Sizer
	log    *logger.TagLogger

	initial time.Duration
	growth  float64
	cap     time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu       sync.Mutex
	monitors map[string]*monitorTask
	wg       sync.WaitGroup
}

type monitorTask struct {
	intent types.TradeIntent
	cancel context.CancelFunc
	since  time.Time
}

// MonitorStatus is the externally visible view of one running monitor.
type MonitorStatus struct {
	Key    string            `json:"key"`
	Intent types.TradeIntent `json:"intent"`
	Since  time.Time         `json:"since"`
}

func NewMonitorRegistry(b broker.Broker, exec *Executor, sizer *Sizer, cfg cfgpkg.TradingConfig) *MonitorRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &MonitorRegistry{
		broker:     b,
		exec:       exec,
		sizer:      sizer,
		log:        logger.Tagged("monitor"),
		initial:    time.Duration(cfg.MonitorInitialSec * float64(time.Second)),
		growth:     cfg.MonitorGrowth,
		cap:        time.Duration(cfg.MonitorCapSec * float64(time.Second)),
		rootCtx:    ctx,
		rootCancel: cancel,
		monitors:   make(map[string]*monitorTask),
	}
}

// Watch 为意图启动一个条件监控。同 key 的旧监控被取消替换。
func (r *MonitorRegistry) Watch(intent types.TradeIntent) {
	key := intent.MonitorKey()

	r.mu.Lock()
	if old, ok := r.monitors[key]; ok {
		r.log.Infof("%s: replacing existing monitor (%s)", key, old.intent)
		old.cancel()
	}
	ctx, cancel := context.WithCancel(r.rootCtx)
	task := &monitorTask{intent: intent, cancel: cancel, since: time.Now()}
	r.monitors[key] = task
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(key, task)
		r.run(ctx, intent)
	}()
	r.log.Infof("%s: monitor started (%s)", key, intent)
}

// remove 只清掉仍属于本任务的注册项,替换后的新任务不受影响。
func (r *MonitorRegistry) remove(key string, task *monitorTask) {
	task.cancel()
	r.mu.Lock()
	if t, ok := r.monitors[key]; ok && t == task {
		delete(r.monitors, key)
	}
	r.mu.Unlock()
}

func (r *MonitorRegistry) run(ctx context.Context, intent types.TradeIntent) {
	// 加仓预算只在启动时取一次,之后账户波动不影响这次监控。
	// 账户都查不到就别加仓了,直接收工。
	var addBudget decimal.Decimal
	if intent.Kind == types.IntentAdd {
		budget, err := r.sizer.Budget(ctx)
		if err != nil {
			r.log.Warnf("%s: 账户查询失败,放弃加仓监控: %v", intent.MonitorKey(), err)
			return
		}
		addBudget = budget
	}

	interval := r.initial
	for {
		pos, err := r.broker.FindPosition(ctx, intent.Ticker)
		switch {
		case errors.Is(err, broker.ErrPositionNotFound):
			// 持仓已不存在,监控没有对象,直接结束。
			r.log.Infof("%s: position gone, monitor done", intent.MonitorKey())
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			r.log.Warnf("%s: 持仓查询失败: %v", intent.MonitorKey(), err)
		default:
			done, ferr := r.evaluate(ctx, intent, pos, addBudget)
			if ferr != nil {
				r.log.Errorf("%s: 条件触发执行失败: %v", intent.MonitorKey(), ferr)
			}
			if done {
				return
			}
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return
		}
		interval = r.nextInterval(interval)
	}
}

// evaluate 检查一次监控条件,满足时触发执行并返回 done=true。
func (r *MonitorRegistry) evaluate(ctx context.Context, intent types.TradeIntent, pos *broker.Position, addBudget decimal.Decimal) (bool, error) {
	switch intent.Kind {
	case types.IntentTrim, types.IntentExit:
		if intent.DesiredPLPC == nil {
			return true, nil
		}
		if pos.UnrealizedPLPC >= *intent.DesiredPLPC {
			r.log.Infof("%s: plpc %.2f%% >= target %.2f%%, selling", intent.MonitorKey(), pos.UnrealizedPLPC, *intent.DesiredPLPC)
			return true, r.exec.SellMonitored(ctx, intent, pos)
		}
	case types.IntentAdd:
		buySize := r.sizer.ContractsFromBudget(addBudget, pos.CurrentPrice)
		newAvg := simulatedAvg(pos.AvgEntryPrice, pos.CurrentPrice, fullQty(pos), buySize)
		if newAvg <= intent.DesiredAvgPrice {
			r.log.Infof("%s: simulated avg %.4f <= target %.2f, adding %d", intent.MonitorKey(), newAvg, intent.DesiredAvgPrice, buySize)
			return true, r.exec.BuyMore(ctx, intent, pos.Symbol, buySize)
		}
	default:
		r.log.Errorf("%s: unexpected monitored intent kind %s", intent.Ticker, intent.Kind)
		return true, nil
	}
	return false, nil
}

func (r *MonitorRegistry) nextInterval(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * r.growth)
	if next > r.cap {
		next = r.cap
	}
	return next
}

// Active 返回当前运行中的监控快照,按启动时间无序。
func (r *MonitorRegistry) Active() []MonitorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MonitorStatus, 0, len(r.monitors))
	for key, t := range r.monitors {
		out = append(out, MonitorStatus{Key: key, Intent: t.intent, Since: t.since})
	}
	return out
}

// Cancel 停掉指定 key 的监控,返回是否存在。
func (r *MonitorRegistry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.monitors[key]
	if ok {
		t.cancel()
		delete(r.monitors, key)
	}
	return ok
}

// Stop 取消全部监控并等待退出。
func (r *MonitorRegistry) Stop() {
	r.rootCancel()
	r.wg.Wait()
	r.mu.Lock()
	r.monitors = make(map[string]*monitorTask)
	r.mu.Unlock()
}

// simulatedAvg 计算以当前价加仓 buy 张后的持仓均价。
// 合约乘数在分子分母同时出现,约掉后不影响结果。
func simulatedAvg(avg, current float64, qty, buy int) float64 {
	if qty+buy == 0 {
		return avg
	}
	a := decimal.NewFromFloat(avg).Mul(decimal.NewFromInt(int64(qty)))
	b := decimal.NewFromFloat(current).Mul(decimal.NewFromInt(int64(buy)))
	out, _ := a.Add(b).Div(decimal.NewFromInt(int64(qty + buy))).Float64()
	return out
}
