package config

import "strings"

// 默认值常量
const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppHTTPAddr        = ":9983"
	defaultAppLogPath         = "logs/callout.log"
	defaultDiscordMode        = "browser"
	defaultDiscordAPIBase     = "https://discord.com/api/v10"
	defaultDiscordPoll        = 5
	defaultDiscordFetchLimit  = 25
	defaultDiscordLoginWait   = 20
	defaultAlpacaBase         = "https://paper-api.alpaca.markets"
	defaultAlpacaTimeout      = 15
	defaultAlpacaRateLimit    = 3
	defaultRiskFraction       = 0.01
	defaultFallbackQty        = 10
	defaultPriceBuffer        = 0.10
	defaultFillWaitSeconds    = 5
	defaultMonitorInitialSec  = 2
	defaultMonitorGrowth      = 1.05
	defaultMonitorCapSec      = 10
	defaultDedupeCapacity     = 4096
	defaultContractMultiplier = 100
	defaultTimeInForce        = "day"
	defaultTradeLogPath       = "data/tradelog.db"
	defaultMessageLogPath     = "data/messages.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Discord.applyDefaults(keys)
	c.Alpaca.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DiscordConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("discord.mode", &d.Mode, defaultDiscordMode),
		stringFieldDefault("discord.api_base_url", &d.APIBaseURL, defaultDiscordAPIBase),
		fieldDefault{
			key:   "discord.poll_seconds",
			need:  func() bool { return d.PollSeconds <= 0 },
			apply: func() { d.PollSeconds = defaultDiscordPoll },
		},
		fieldDefault{
			key:   "discord.fetch_limit",
			need:  func() bool { return d.FetchLimit <= 0 },
			apply: func() { d.FetchLimit = defaultDiscordFetchLimit },
		},
		fieldDefault{
			key:   "discord.login_wait_seconds",
			need:  func() bool { return d.LoginWaitSec <= 0 },
			apply: func() { d.LoginWaitSec = defaultDiscordLoginWait },
		},
	)
}

func (a *AlpacaConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("alpaca.base_url", &a.BaseURL, defaultAlpacaBase),
		fieldDefault{
			key:   "alpaca.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAlpacaTimeout },
		},
		fieldDefault{
			key:   "alpaca.rate_limit",
			need:  func() bool { return a.RateLimit <= 0 },
			apply: func() { a.RateLimit = defaultAlpacaRateLimit },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "trading.risk_fraction",
			need:  func() bool { return t.RiskFraction <= 0 || t.RiskFraction > 1 },
			apply: func() { t.RiskFraction = defaultRiskFraction },
		},
		fieldDefault{
			key:   "trading.fallback_qty",
			need:  func() bool { return t.FallbackQty <= 0 },
			apply: func() { t.FallbackQty = defaultFallbackQty },
		},
		fieldDefault{
			key:   "trading.price_buffer",
			need:  func() bool { return t.PriceBuffer < 0 },
			apply: func() { t.PriceBuffer = defaultPriceBuffer },
		},
		fieldDefault{
			key:   "trading.fill_wait_seconds",
			need:  func() bool { return t.FillWaitSeconds <= 0 },
			apply: func() { t.FillWaitSeconds = defaultFillWaitSeconds },
		},
		fieldDefault{
			key:   "trading.monitor_initial_sec",
			need:  func() bool { return t.MonitorInitialSec <= 0 },
			apply: func() { t.MonitorInitialSec = defaultMonitorInitialSec },
		},
		fieldDefault{
			key:   "trading.monitor_growth",
			need:  func() bool { return t.MonitorGrowth <= 1 },
			apply: func() { t.MonitorGrowth = defaultMonitorGrowth },
		},
		fieldDefault{
			key:   "trading.monitor_cap_sec",
			need:  func() bool { return t.MonitorCapSec <= 0 },
			apply: func() { t.MonitorCapSec = defaultMonitorCapSec },
		},
		fieldDefault{
			key:   "trading.dedupe_capacity",
			need:  func() bool { return t.DedupeCapacity <= 0 },
			apply: func() { t.DedupeCapacity = defaultDedupeCapacity },
		},
		fieldDefault{
			key:   "trading.contract_multiplier",
			need:  func() bool { return t.ContractMultiplier <= 0 },
			apply: func() { t.ContractMultiplier = defaultContractMultiplier },
		},
		stringFieldDefault("trading.time_in_force", &t.TimeInForce, defaultTimeInForce),
	)
	// price_buffer explicitly set to 0 is honored (tight limit, no buffer)
	if !keys.isSet("trading.price_buffer") && t.PriceBuffer == 0 {
		t.PriceBuffer = defaultPriceBuffer
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.trade_log_path", &s.TradeLogPath, defaultTradeLogPath),
		stringFieldDefault("store.message_log_path", &s.MessageLogPath, defaultMessageLogPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
