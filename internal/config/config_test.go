package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
discord:
  mode: api
  token: dummy-token
  channels:
    - name: alerts
      id: "123"
alpaca:
  api_key: key
  api_secret: secret
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9983", cfg.App.HTTPAddr)
	assert.Equal(t, 5, cfg.Discord.PollSeconds)
	assert.Equal(t, "https://paper-api.alpaca.markets", cfg.Alpaca.BaseURL)
	assert.Equal(t, 0.01, cfg.Trading.RiskFraction)
	assert.Equal(t, 10, cfg.Trading.FallbackQty)
	assert.Equal(t, 0.10, cfg.Trading.PriceBuffer)
	assert.Equal(t, 100, cfg.Trading.ContractMultiplier)
	assert.Equal(t, "day", cfg.Trading.TimeInForce)
}

func TestLoadExplicitValueWins(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig+`
trading:
  risk_fraction: 0.02
  fallback_qty: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Trading.RiskFraction)
	assert.Equal(t, 3, cfg.Trading.FallbackQty)
}

func TestLoadExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "tok-from-env")
	path := writeConfig(t, t.TempDir(), "config.yaml", `
discord:
  mode: api
  token: "${TEST_DISCORD_TOKEN}"
  channels:
    - id: "123"
alpaca:
  api_key: key
  api_secret: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-from-env", cfg.Discord.Token)
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", minimalConfig)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  risk_fraction: 0.05
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Trading.RiskFraction)
	assert.Equal(t, "dummy-token", cfg.Discord.Token)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	// api 模式缺 token。
	path := writeConfig(t, dir, "no_token.yaml", `
discord:
  mode: api
  channels:
    - id: "123"
alpaca:
  api_key: key
  api_secret: secret
`)
	_, err := Load(path)
	assert.Error(t, err)

	// 未知的 discord 模式。
	path = writeConfig(t, dir, "bad_mode.yaml", `
discord:
  mode: carrier-pigeon
  channels:
    - id: "123"
alpaca:
  api_key: key
  api_secret: secret
`)
	_, err = Load(path)
	assert.Error(t, err)

	// 凭证缺失。
	path = writeConfig(t, dir, "no_creds.yaml", `
discord:
  mode: api
  token: dummy
  channels:
    - id: "123"
`)
	_, err = Load(path)
	assert.Error(t, err)
}
