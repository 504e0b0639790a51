package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  tickers: [aapl, msft]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Pipeline.Tickers, "tickers are uppercased")
	assert.Equal(t, "1d", cfg.Pipeline.Interval)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "https://paper-api.alpaca.markets/v2", cfg.Broker.BaseURL)
	assert.Equal(t, "equal_weight", cfg.Sizing.Strategy)
	assert.InDelta(t, 2.0/3.0, cfg.Sizing.FreshCashFraction, 1e-9)
	assert.Equal(t, 2, cfg.Execution.SettleWaitSeconds)
	assert.Equal(t, 1, cfg.Execution.UserConcurrency)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
  http_addr: ":8080"
pipeline:
  tickers: [NVDA]
  interval: 5m
  offset_seconds: 60
  fetch_concurrency: 8
sizing:
  strategy: kelly
  win_rate: 0.62
execution:
  settle_wait_seconds: 5
  user_concurrency: 4
users:
  roster_path: /etc/karli/users.yaml
  watch_roster: true
store:
  run_log_path: /var/lib/karli/runs.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "5m", cfg.Pipeline.Interval)
	assert.Equal(t, 8, cfg.Pipeline.FetchConcurrency)
	assert.Equal(t, "kelly", cfg.Sizing.Strategy)
	assert.InDelta(t, 0.62, cfg.Sizing.WinRate, 1e-9)
	assert.Equal(t, 5, cfg.Execution.SettleWaitSeconds)
	assert.Equal(t, 4, cfg.Execution.UserConcurrency)
	assert.True(t, cfg.Users.WatchRoster)
	assert.Equal(t, "/var/lib/karli/runs.db", cfg.Store.RunLogPath)
}

func TestLoadRejectsMissingTickers(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: info
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tickers")
}

func TestLoadRejectsDuplicateTickers(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  tickers: [AAPL, aapl]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsUnknownSizingStrategy(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  tickers: [AAPL]
sizing:
  strategy: martingale
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sizing.strategy")
}

func TestLoadRejectsSentimentWithoutURL(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  tickers: [AAPL]
sentiment:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment.api_url")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
