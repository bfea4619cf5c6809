package app

import (
	"context"
	"fmt"
	"strings"

	cfgpkg "callout/internal/config"
	"callout/internal/gateway/alpaca"
	"callout/internal/gateway/broker"
	"callout/internal/gateway/notifier"
	"callout/internal/logger"
	"callout/internal/signal"
	"callout/internal/source"
	"callout/internal/source/discord"
	"callout/internal/store/msglog"
	"callout/internal/store/tradelog"
	"callout/internal/trader"
	opshttp "callout/internal/transport/http"
)

// AppBuilder 装配全部依赖。函数字段可在测试里替换成假实现。
type AppBuilder struct {
	cfg *cfgpkg.Config

	brokerFn   func(cfgpkg.AlpacaConfig) (broker.Broker, error)
	sourceFn   func(context.Context, cfgpkg.DiscordConfig) (source.Source, error)
	notifierFn func(cfgpkg.NotifyConfig) notifier.TextNotifier
	registryFn func(cfgpkg.PatternsConfig) (*signal.Registry, error)
	tradeLogFn func(string) (*tradelog.Store, error)
	msgLogFn   func(string) (*msglog.Store, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *cfgpkg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		brokerFn:   buildBroker,
		sourceFn:   buildSource,
		notifierFn: buildNotifier,
		registryFn: buildRegistry,
		tradeLogFn: tradelog.New,
		msgLogFn:   msglog.New,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithBroker 覆盖券商客户端,测试用。
func WithBroker(b broker.Broker) AppBuilderOption {
	return func(builder *AppBuilder) {
		builder.brokerFn = func(cfgpkg.AlpacaConfig) (broker.Broker, error) { return b, nil }
	}
}

// WithSource 覆盖消息来源,测试用。
func WithSource(s source.Source) AppBuilderOption {
	return func(builder *AppBuilder) {
		builder.sourceFn = func(context.Context, cfgpkg.DiscordConfig) (source.Source, error) { return s, nil }
	}
}

// Build 按依赖顺序装配 App,启动时校验券商账户可达。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	brk, err := b.brokerFn(cfg.Alpaca)
	if err != nil {
		return nil, fmt.Errorf("初始化券商客户端失败: %w", err)
	}

	// 启动时探测一次账户,网关暂时不可达不算致命,仓位相关操作会各自兜底。
	if acct, err := brk.GetAccount(ctx); err != nil {
		logger.Warnf("券商账户探测失败,先启动再说: %v", err)
	} else {
		logger.Infof("brokerage account ok: cash=%.2f equity=%.2f", acct.Cash, acct.Equity)
	}

	src, err := b.sourceFn(ctx, cfg.Discord)
	if err != nil {
		return nil, fmt.Errorf("初始化消息来源失败: %w", err)
	}

	registry, err := b.registryFn(cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("加载解析模式失败: %w", err)
	}

	var tlog *tradelog.Store
	if strings.TrimSpace(cfg.Store.TradeLogPath) != "" {
		if tlog, err = b.tradeLogFn(cfg.Store.TradeLogPath); err != nil {
			return nil, fmt.Errorf("初始化交易日志失败: %w", err)
		}
	}
	var mlog *msglog.Store
	if strings.TrimSpace(cfg.Store.MessageLogPath) != "" {
		if mlog, err = b.msgLogFn(cfg.Store.MessageLogPath); err != nil {
			return nil, fmt.Errorf("初始化消息归档失败: %w", err)
		}
	}

	notify := b.notifierFn(cfg.Notify)

	sizer := trader.NewSizer(brk, cfg.Trading)
	var recorder trader.Recorder
	if tlog != nil {
		recorder = tlog
	}
	exec := trader.NewExecutor(brk, sizer, notify, recorder, cfg.Trading)
	monitors := trader.NewMonitorRegistry(brk, exec, sizer, cfg.Trading)
	router := trader.NewRouter(exec, monitors)
	dedupe := signal.NewDeduper(cfg.Trading.DedupeCapacity)
	parser := signal.NewParser(registry)
	pipeline := trader.NewTrader(dedupe, parser, router)

	server, err := opshttp.NewServer(opshttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Broker:   brk,
		Monitors: monitors,
		Registry: registry,
		TradeLog: tlog,
		MsgLog:   mlog,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{
		cfg:      cfg,
		src:      src,
		trader:   pipeline,
		monitors: monitors,
		server:   server,
		tradeLog: tlog,
		msgLog:   mlog,
	}, nil
}

func buildBroker(cfg cfgpkg.AlpacaConfig) (broker.Broker, error) {
	return alpaca.NewClient(cfg)
}

func buildSource(ctx context.Context, cfg cfgpkg.DiscordConfig) (source.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "api":
		return discord.NewAPISource(cfg)
	case "browser", "":
		return discord.NewBrowserSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("未知的 discord 模式: %q", cfg.Mode)
	}
}

func buildNotifier(cfg cfgpkg.NotifyConfig) notifier.TextNotifier {
	if cfg.Telegram.Enabled {
		return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	return notifier.Nop{}
}

func buildRegistry(cfg cfgpkg.PatternsConfig) (*signal.Registry, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return signal.NewRegistry(), nil
	}
	return signal.NewRegistryFromFile(cfg.Path, cfg.Watch)
}
