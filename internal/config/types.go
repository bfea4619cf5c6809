package config

import "strings"

// Config 是 callout 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Discord  DiscordConfig  `toml:"discord"`
	Alpaca   AlpacaConfig   `toml:"alpaca"`
	Trading  TradingConfig  `toml:"trading"`
	Patterns PatternsConfig `toml:"patterns"`
	Store    StoreConfig    `toml:"store"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DiscordConfig 描述告警消息来源（浏览器抓取或 token API 轮询）。
type DiscordConfig struct {
	Mode         string          `toml:"mode"` // "browser" | "api"
	Email        string          `toml:"email"`
	Password     string          `toml:"password"`
	Token        string          `toml:"token"`
	APIBaseURL   string          `toml:"api_base_url"`
	Headless     bool            `toml:"headless"`
	PollSeconds  int             `toml:"poll_seconds"`
	FetchLimit   int             `toml:"fetch_limit"`
	Channels     []ChannelConfig `toml:"channels"`
	LoginWaitSec int             `toml:"login_wait_seconds"`
}

type ChannelConfig struct {
	Name string `toml:"name"`
	ID   string `toml:"id"`
	URL  string `toml:"url"`
}

// AlpacaConfig 描述券商网关的访问方式。
type AlpacaConfig struct {
	APIKey             string  `toml:"api_key"`
	APISecret          string  `toml:"api_secret"`
	BaseURL            string  `toml:"base_url"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	InsecureSkipVerify bool    `toml:"insecure_skip_verify"`
	RateLimit          float64 `toml:"rate_limit"` // requests per second
}

// TradingConfig 控制仓位风险与订单升级策略。
type TradingConfig struct {
	RiskFraction       float64 `toml:"risk_fraction"`        // 单笔风险占现金比例 0~1
	FallbackQty        int     `toml:"fallback_qty"`         // 账户查询失败时的保底张数
	PriceBuffer        float64 `toml:"price_buffer"`         // 限价单加价缓冲
	FillWaitSeconds    int     `toml:"fill_wait_seconds"`    // 限价单转市价前的等待
	MonitorInitialSec  float64 `toml:"monitor_initial_sec"`  // 监控轮询起始间隔
	MonitorGrowth      float64 `toml:"monitor_growth"`       // 每轮间隔增长系数
	MonitorCapSec      float64 `toml:"monitor_cap_sec"`      // 轮询间隔上限
	DedupeCapacity     int     `toml:"dedupe_capacity"`      // 每频道指纹 LRU 容量
	ContractMultiplier int     `toml:"contract_multiplier"`  // 期权合约乘数
	TimeInForce        string  `toml:"time_in_force"`        //
}

type PatternsConfig struct {
	Path  string `toml:"path"`  // optional yaml with pattern overrides
	Watch bool   `toml:"watch"` // hot reload on file change
}

type StoreConfig struct {
	TradeLogPath   string `toml:"trade_log_path"`
	MessageLogPath string `toml:"message_log_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// ChannelNames 返回配置的频道名列表（按配置顺序）。
func (d DiscordConfig) ChannelNames() []string {
	out := make([]string, 0, len(d.Channels))
	for _, ch := range d.Channels {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			name = strings.TrimSpace(ch.ID)
		}
		out = append(out, name)
	}
	return out
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
