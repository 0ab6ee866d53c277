package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/smarttrader/Internal/broker"
	"github.com/fazecat/smarttrader/Internal/ports"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearSecrets(t *testing.T) {
	for _, k := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_BASE_URL",
		"BINANCE_API_KEY", "BINANCE_SECRET_KEY", "FINNHUB_API_KEY",
		"JWT_SECRET_KEY", "DATABASE_DSN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	clearSecrets(t)
	path := writeConfig(t, `
screener:
  workers: 4
  interval: 90s
  universe: [AAPL, MSFT]
risk:
  max_loss_percent: 0.01
providers:
  sentiment: none
  broker:
    kind: binance
    binance:
      use_testnet: true
`)
	t.Setenv("BINANCE_API_KEY", "bk")
	t.Setenv("BINANCE_SECRET_KEY", "bs")
	t.Setenv("DATABASE_DSN", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Screener.Workers)
	assert.Equal(t, 90*time.Second, cfg.Screener.Interval)
	assert.Equal(t, time.Minute, cfg.Screener.Backoff)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Screener.Universe)
	assert.Equal(t, 0.01, cfg.Risk.MaxLossPercent)
	assert.Equal(t, 0.05, cfg.Risk.MaxPortfolioRisk)
	assert.Equal(t, broker.KindBinance, cfg.Providers.Broker.Kind)
	assert.True(t, cfg.Providers.Broker.Binance.UseTestnet)
	assert.Equal(t, "bk", cfg.Providers.Broker.Binance.APIKey)
	assert.Equal(t, "/tmp/x.db", cfg.Database.DSN)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "screener: [unclosed"))
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Screener.Workers = 0
	cfg.Risk.MaxLossPercent = 2
	cfg.Providers.MarketData = "bloomberg"
	cfg.Providers.Broker.Kind = broker.KindAlpaca
	cfg.Scheduler.Housekeeping = "every now and then"

	err := cfg.Validate()
	require.ErrorIs(t, err, ports.ErrConfiguration)
	msg := err.Error()
	assert.Contains(t, msg, "screener.workers")
	assert.Contains(t, msg, "risk.max_loss_percent")
	assert.Contains(t, msg, "bloomberg")
	assert.Contains(t, msg, "ALPACA_API_KEY")
	assert.Contains(t, msg, "FINNHUB_API_KEY")
	assert.Contains(t, msg, "scheduler.housekeeping")
}

func TestValidate_DefaultsWithKeys(t *testing.T) {
	cfg := Default()
	cfg.Secrets.FinnhubAPIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Providers.Sentiment = SentimentNone
	cfg.Secrets.FinnhubAPIKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	clearSecrets(t)
	cfg := Default()
	cfg.Secrets.JWTSecret = "never-written"
	cfg.Providers.Broker.Alpaca.APIKey = "never-written"
	cfg.Screener.Universe = []string{"TCS.NS"}

	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "never-written")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS"}, loaded.Screener.Universe)
	assert.Equal(t, cfg.Screener.Interval, loaded.Screener.Interval)
	assert.Equal(t, cfg.Server.TokenTTL, loaded.Server.TokenTTL)
}
