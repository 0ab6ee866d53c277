package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/fazecat/smarttrader/Internal/broker"
	datafeed "github.com/fazecat/smarttrader/Internal/database"
	"github.com/fazecat/smarttrader/Internal/handlers/risk"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/utils/logger"
)

const (
	MarketYahoo   = "yahoo"
	MarketAlpaca  = "alpaca"
	MarketBinance = "binance"

	SentimentFinnhub = "finnhub"
	SentimentLexicon = "lexicon"
	SentimentNone    = "none"

	FundamentalsYahoo = "yahoo"
	FundamentalsNone  = "none"
)

type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Logging   logger.Config           `yaml:"logging"`
	Screener  ScreenerConfig          `yaml:"screener"`
	Risk      risk.Config             `yaml:"risk"`
	Providers ProvidersConfig         `yaml:"providers"`
	Database  datafeed.DatabaseConfig `yaml:"database"`
	Scheduler SchedulerConfig         `yaml:"scheduler"`

	Secrets Secrets `yaml:"-"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

type ScreenerConfig struct {
	Workers     int           `yaml:"workers"`
	Interval    time.Duration `yaml:"interval"`
	Backoff     time.Duration `yaml:"backoff"`
	Period      string        `yaml:"period"`
	BarInterval string        `yaml:"interval_bar"`
	Universe    []string      `yaml:"universe"`
}

type ProvidersConfig struct {
	MarketData   string        `yaml:"market_data"`
	Fundamentals string        `yaml:"fundamentals"`
	Sentiment    string        `yaml:"sentiment"`
	AlpacaFeed   string        `yaml:"alpaca_feed"`
	Broker       broker.Config `yaml:"broker"`
}

type SchedulerConfig struct {
	Housekeeping string `yaml:"housekeeping"`
}

// credentials read from the environment only, never from YAML
type Secrets struct {
	AlpacaAPIKey     string
	AlpacaAPISecret  string
	AlpacaBaseURL    string
	BinanceAPIKey    string
	BinanceSecretKey string
	FinnhubAPIKey    string
	JWTSecret        string
	APIPassword      string
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			TokenTTL:       24 * time.Hour,
		},
		Logging: logger.Config{Level: "info", Pretty: true},
		Screener: ScreenerConfig{
			Workers:     10,
			Interval:    5 * time.Minute,
			Backoff:     time.Minute,
			Period:      "1y",
			BarInterval: "1d",
		},
		Risk: risk.DefaultConfig(),
		Providers: ProvidersConfig{
			MarketData:   MarketYahoo,
			Fundamentals: FundamentalsYahoo,
			Sentiment:    SentimentFinnhub,
			Broker: broker.Config{
				Kind:  broker.KindPaper,
				Paper: broker.PaperConfig{StartingCash: broker.DefaultStartingCash},
			},
		},
		Database:  datafeed.DatabaseConfig{Driver: datafeed.DriverSQLite, DSN: "data/trades.db"},
		Scheduler: SchedulerConfig{Housekeeping: "@every 5m"},
	}
}

// Load reads .env, then the YAML file over the defaults, then applies
// environment secrets. An empty path searches the usual locations and falls
// back to the defaults when none exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, foundPath, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if foundPath != "" {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w: %w", foundPath, ports.ErrConfiguration, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func readConfigFile(path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading config: %w: %w", ports.ErrConfiguration, err)
		}
		return data, path, nil
	}

	possiblePaths := []string{
		"config.yaml",
		filepath.Join("Internal", "utils", "config", "config.yaml"),
	}
	for _, p := range possiblePaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %s: %w: %w", p, ports.ErrConfiguration, err)
		}
	}
	return nil, "", nil
}

func (c *Config) applyEnv() {
	c.Secrets = Secrets{
		AlpacaAPIKey:     os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret:  os.Getenv("ALPACA_API_SECRET"),
		AlpacaBaseURL:    os.Getenv("ALPACA_BASE_URL"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		FinnhubAPIKey:    os.Getenv("FINNHUB_API_KEY"),
		JWTSecret:        os.Getenv("JWT_SECRET_KEY"),
		APIPassword:      os.Getenv("API_PASSWORD"),
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	b := &c.Providers.Broker
	b.Alpaca.APIKey = c.Secrets.AlpacaAPIKey
	b.Alpaca.APISecret = c.Secrets.AlpacaAPISecret
	if c.Secrets.AlpacaBaseURL != "" {
		b.Alpaca.BaseURL = c.Secrets.AlpacaBaseURL
	}
	b.Binance.APIKey = c.Secrets.BinanceAPIKey
	b.Binance.SecretKey = c.Secrets.BinanceSecretKey
}

// Validate reports every problem at once, wrapped in ErrConfiguration
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	if c.Screener.Workers <= 0 {
		add("screener.workers must be > 0")
	}
	if c.Screener.Interval <= 0 {
		add("screener.interval must be > 0")
	}
	if c.Screener.Backoff <= 0 {
		add("screener.backoff must be > 0")
	}

	if c.Risk.MaxPositionSize <= 0 {
		add("risk.max_position_size must be > 0")
	}
	if c.Risk.MaxLossPercent <= 0 || c.Risk.MaxLossPercent > 1 {
		add("risk.max_loss_percent must be in (0, 1], got %v", c.Risk.MaxLossPercent)
	}
	if c.Risk.MaxPortfolioRisk <= 0 || c.Risk.MaxPortfolioRisk > 1 {
		add("risk.max_portfolio_risk must be in (0, 1], got %v", c.Risk.MaxPortfolioRisk)
	}
	if c.Risk.PositionSizingFactor < 0 || c.Risk.PositionSizingFactor >= 1 {
		add("risk.position_sizing_factor must be in [0, 1), got %v", c.Risk.PositionSizingFactor)
	}

	alpacaKeys := c.Secrets.AlpacaAPIKey != "" && c.Secrets.AlpacaAPISecret != ""
	switch c.Providers.MarketData {
	case MarketYahoo, MarketBinance:
	case MarketAlpaca:
		if !alpacaKeys {
			add("providers.market_data alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	default:
		add("providers.market_data %q is not one of yahoo, alpaca, binance", c.Providers.MarketData)
	}

	switch c.Providers.Fundamentals {
	case FundamentalsYahoo, FundamentalsNone:
	default:
		add("providers.fundamentals %q is not one of yahoo, none", c.Providers.Fundamentals)
	}

	switch c.Providers.Sentiment {
	case SentimentNone:
	case SentimentFinnhub, SentimentLexicon:
		if c.Secrets.FinnhubAPIKey == "" {
			add("providers.sentiment %s requires FINNHUB_API_KEY", c.Providers.Sentiment)
		}
	default:
		add("providers.sentiment %q is not one of finnhub, lexicon, none", c.Providers.Sentiment)
	}

	switch strings.ToLower(c.Providers.Broker.Kind) {
	case broker.KindPaper, "":
	case broker.KindAlpaca:
		if !alpacaKeys {
			add("providers.broker alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	case broker.KindBinance:
		if c.Secrets.BinanceAPIKey == "" || c.Secrets.BinanceSecretKey == "" {
			add("providers.broker binance requires BINANCE_API_KEY and BINANCE_SECRET_KEY")
		}
	default:
		add("providers.broker.kind %q is not one of paper, alpaca, binance", c.Providers.Broker.Kind)
	}

	switch c.Database.Driver {
	case datafeed.DriverSQLite, "":
	case datafeed.DriverPostgres:
		if c.Database.DSN == "" {
			add("database.dsn is required for postgres")
		}
	default:
		add("database.driver %q is not one of sqlite3, postgres", c.Database.Driver)
	}

	if c.Scheduler.Housekeeping != "" {
		if _, err := cron.ParseStandard(c.Scheduler.Housekeeping); err != nil {
			add("scheduler.housekeeping %q: %v", c.Scheduler.Housekeeping, err)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  - %s", ports.ErrConfiguration, strings.Join(problems, "\n  - "))
}

// Save writes cfg as YAML; secrets are never written
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
