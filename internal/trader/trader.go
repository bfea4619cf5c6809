// Package trader holds the trade pipeline: intents parsed from chat
// alerts flow through dedupe, routing, sizing and order execution.
package trader

import (
	"context"

	"callout/internal/logger"
	"callout/internal/signal"
	"callout/internal/source"
)

// Trader 是每条消息的同步处理入口:去重 → 解析 → 分派。
// 监控任务由 Router 异步拉起,消息路径本身不阻塞在条件上。
type Trader struct {
	dedupe *signal.Deduper
	parser *signal.Parser
	router *Router
	log    *logger.TagLogger
}

func NewTrader(dedupe *signal.Deduper, parser *signal.Parser, router *Router) *Trader {
	return &Trader{
		dedupe: dedupe,
		parser: parser,
		router: router,
		log:    logger.Tagged("trader"),
	}
}

// HandleMessage 处理一条频道消息,返回本次分派的意图数。
// 重复消息和无法解析的消息都静默跳过。
func (t *Trader) HandleMessage(ctx context.Context, msg source.Message) int {
	if !t.dedupe.Observe(msg.Channel, msg.Text) {
		return 0
	}
	intents := t.parser.Parse(msg.Text)
	if len(intents) == 0 {
		return 0
	}

	dispatched := 0
	for _, intent := range intents {
		intent.Channel = msg.Channel
		t.log.Infof("[%s] intent: %s", msg.Channel, intent)
		if err := t.router.Route(ctx, intent); err != nil {
			t.log.Errorf("[%s] %s 执行失败: %v", msg.Channel, intent, err)
			continue
		}
		dispatched++
	}
	return dispatched
}
