// Package broker holds the order execution adapters: Alpaca equities,
// Binance USDT futures and an in-process paper account.
package broker

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
)

const (
	KindPaper   = "paper"
	KindAlpaca  = "alpaca"
	KindBinance = "binance"
)

type AlpacaConfig struct {
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	BaseURL   string `yaml:"base_url"`
}

type BinanceConfig struct {
	APIKey     string `yaml:"-"`
	SecretKey  string `yaml:"-"`
	UseTestnet bool   `yaml:"use_testnet"`
	BaseURL    string `yaml:"base_url"`
}

type PaperConfig struct {
	StartingCash float64 `yaml:"starting_cash"`
}

type Config struct {
	Kind    string        `yaml:"kind"`
	Paper   PaperConfig   `yaml:"paper"`
	Alpaca  AlpacaConfig  `yaml:"alpaca"`
	Binance BinanceConfig `yaml:"binance"`
}

// New builds the execution provider selected by cfg.Kind. The paper broker
// marks fills against market.
func New(cfg Config, market ports.MarketDataProvider, log zerolog.Logger) (ports.OrderExecutionProvider, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindPaper:
		if market == nil {
			return nil, fmt.Errorf("paper broker requires a market data provider: %w", ports.ErrConfiguration)
		}
		return NewPaperBroker(cfg.Paper, market, log), nil
	case KindAlpaca:
		return NewAlpacaBroker(cfg.Alpaca, log)
	case KindBinance:
		return NewBinanceClient(cfg.Binance, log)
	}
	return nil, fmt.Errorf("unknown broker kind %q: %w", cfg.Kind, ports.ErrConfiguration)
}
