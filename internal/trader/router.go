package trader

import (
	"context"

	"callout/internal/logger"
	"callout/internal/types"
)

// Router 把意图分派到开仓路径或平仓路径。
// 带目标条件的意图交给监控注册表,其余立即执行。
type Router struct {
	exec     *Executor
	monitors *MonitorRegistry
	log      *logger.TagLogger
}

func NewRouter(exec *Executor, monitors *MonitorRegistry) *Router {
	return &Router{exec: exec, monitors: monitors, log: logger.Tagged("router")}
}

// Route dispatches one intent. Unknown kinds are logged and dropped.
func (r *Router) Route(ctx context.Context, intent types.TradeIntent) error {
	switch intent.Kind {
	case types.IntentEntry:
		return r.exec.SubmitEntry(ctx, intent)
	case types.IntentAdd:
		r.monitors.Watch(intent)
		return nil
	case types.IntentTrim:
		if intent.DesiredPLPC != nil {
			r.monitors.Watch(intent)
			return nil
		}
		return r.exec.SubmitTrim(ctx, intent)
	case types.IntentExit:
		if intent.DesiredPLPC != nil {
			r.monitors.Watch(intent)
			return nil
		}
		return r.exec.SubmitExit(ctx, intent)
	case types.IntentStop:
		return r.exec.SubmitStop(ctx, intent)
	default:
		r.log.Errorf("unknown intent kind %q for %s, dropping", intent.Kind, intent.Ticker)
		return nil
	}
}
