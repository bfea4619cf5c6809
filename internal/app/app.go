package app

import (
	"context"
	"fmt"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/logger"
	"callout/internal/pkg/circuit"
	"callout/internal/scheduler"
	"callout/internal/source"
	"callout/internal/store/msglog"
	"callout/internal/store/tradelog"
	"callout/internal/trader"
	opshttp "callout/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排:加载配置→初始化依赖→启动抓取与执行服务。
type App struct {
	cfg *cfgpkg.Config

	src      source.Source
	trader   *trader.Trader
	monitors *trader.MonitorRegistry
	server   *opshttp.Server
	tradeLog *tradelog.Store
	msgLog   *msglog.Store
}

// NewApp 根据配置构建应用对象(不启动)。
func NewApp(cfg *cfgpkg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与每个频道的抓取循环,阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	if a.server != nil {
		group.Go(func() error {
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("ops http server error: %w", err)
			}
			return nil
		})
	}

	interval := time.Duration(a.cfg.Discord.PollSeconds) * time.Second
	for _, ch := range a.cfg.Discord.Channels {
		channel := source.Channel{Name: ch.Name, ID: ch.ID, URL: ch.URL}
		group.Go(func() error {
			a.watchChannel(ctx, channel, interval)
			return nil
		})
	}
	logger.Infof("watching %d channels every %s", len(a.cfg.Discord.Channels), interval)

	return group.Wait()
}

// watchChannel 以固定间隔拉取一个频道并把消息灌进交易管线。
// 来源连续失败时熔断,冷却后再试,避免对着挂掉的会话空转。
func (a *App) watchChannel(ctx context.Context, ch source.Channel, interval time.Duration) {
	log := logger.Tagged("watch:" + ch.Key())
	breaker := circuit.NewBreaker(ch.Key(), 5, 1*time.Minute)
	poller := scheduler.NewPoller(ctx, interval)
	poller.Start(func() {
		if !breaker.Allow() {
			return
		}
		msgs, err := a.src.FetchMessages(ctx, ch)
		if err != nil {
			if ctx.Err() == nil {
				breaker.RecordFailure()
				log.Warnf("拉取消息失败: %v", err)
			}
			return
		}
		breaker.RecordSuccess()
		for _, msg := range msgs {
			if a.msgLog != nil {
				if err := a.msgLog.Append(ctx, msg); err != nil {
					log.Warnf("消息归档失败: %v", err)
				}
			}
			if n := a.trader.HandleMessage(ctx, msg); n > 0 {
				log.Infof("dispatched %d intent(s) from one message", n)
			}
		}
	})
}

// Close 释放持有的资源:监控任务、浏览器会话与数据库连接。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.monitors != nil {
		a.monitors.Stop()
	}
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			logger.Warnf("message source close failed: %v", err)
		}
	}
	if a.tradeLog != nil {
		_ = a.tradeLog.Close()
	}
	if a.msgLog != nil {
		_ = a.msgLog.Close()
	}
}
