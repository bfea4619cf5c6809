package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。凭证缺失属于启动期致命错误。
func validate(c *Config) error {
	if err := c.Discord.validate(); err != nil {
		return err
	}
	if err := c.Alpaca.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DiscordConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(d.Mode))
	if mode != "browser" && mode != "api" {
		return fmt.Errorf("discord.mode only supports 'browser' or 'api', got %s", d.Mode)
	}
	if len(d.Channels) == 0 {
		return fmt.Errorf("discord.channels requires at least one channel")
	}
	for i, ch := range d.Channels {
		switch mode {
		case "browser":
			if strings.TrimSpace(ch.URL) == "" {
				return fmt.Errorf("discord.channels[%d] missing url (browser mode)", i)
			}
		case "api":
			if strings.TrimSpace(ch.ID) == "" {
				return fmt.Errorf("discord.channels[%d] missing id (api mode)", i)
			}
		}
	}
	if mode == "browser" && (strings.TrimSpace(d.Email) == "" || strings.TrimSpace(d.Password) == "") {
		return fmt.Errorf("discord browser mode requires email and password")
	}
	if mode == "api" && strings.TrimSpace(d.Token) == "" {
		return fmt.Errorf("discord api mode requires token")
	}
	return nil
}

func (a *AlpacaConfig) validate() error {
	if strings.TrimSpace(a.APIKey) == "" || strings.TrimSpace(a.APISecret) == "" {
		return fmt.Errorf("alpaca requires api_key and api_secret")
	}
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("alpaca.base_url cannot be empty")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.RiskFraction <= 0 || t.RiskFraction > 1 {
		return fmt.Errorf("trading.risk_fraction must be in (0, 1]")
	}
	if t.MonitorGrowth <= 1 {
		return fmt.Errorf("trading.monitor_growth must be > 1")
	}
	if t.MonitorCapSec < t.MonitorInitialSec {
		return fmt.Errorf("trading.monitor_cap_sec must be >= monitor_initial_sec")
	}
	tif := strings.ToLower(strings.TrimSpace(t.TimeInForce))
	if tif != "day" && tif != "gtc" {
		return fmt.Errorf("trading.time_in_force only supports 'day' or 'gtc', got %s", t.TimeInForce)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
