package datafeed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

// YahooProvider serves price history, quotes and fundamentals from Yahoo Finance.
// Symbols use Yahoo notation (RELIANCE.NS, AAPL).
type YahooProvider struct {
	retry RetryConfig
	log   zerolog.Logger
}

func NewYahooProvider(log zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		retry: DefaultRetryConfig(),
		log:   log.With().Str("client", "yahoo").Logger(),
	}
}

func (y *YahooProvider) PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error) {
	var bars []types.PriceBar
	err := RetryWithBackoff(ctx, y.retry, func() error {
		t, err := ticker.New(symbol)
		if err != nil {
			return fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		history, err := t.History(models.HistoryParams{
			Period:     period,
			Interval:   interval,
			AutoAdjust: true,
		})
		if err != nil {
			return fmt.Errorf("failed to get historical prices: %w", err)
		}

		bars = make([]types.PriceBar, 0, len(history))
		for _, b := range history {
			bars = append(bars, types.PriceBar{
				Timestamp: b.Date,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    float64(b.Volume),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s history: %w: %w", symbol, ports.ErrProviderFailure, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s history: %w", symbol, ports.ErrDataUnavailable)
	}
	return SortBars(bars), nil
}

func (y *YahooProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := RetryWithBackoff(ctx, y.retry, func() error {
		t, err := ticker.New(symbol)
		if err != nil {
			return fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		quote, err := t.Quote()
		if err == nil && quote != nil && quote.RegularMarketPrice > 0 {
			price = float64(quote.RegularMarketPrice)
			return nil
		}

		info, err := t.Info()
		if err != nil {
			return fmt.Errorf("failed to get info: %w", err)
		}
		switch {
		case info.CurrentPrice > 0:
			price = float64(info.CurrentPrice)
		case info.RegularMarketPreviousClose > 0:
			price = float64(info.RegularMarketPreviousClose)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s quote: %w: %w", symbol, ports.ErrProviderFailure, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%s quote: %w", symbol, ports.ErrDataUnavailable)
	}
	return price, nil
}

// Metrics maps the ticker's info block onto named fundamental ratios; zero
// fields are omitted
func (y *YahooProvider) Metrics(ctx context.Context, symbol string) (types.FundamentalMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("%s fundamentals: %w: %w", symbol, ports.ErrProviderFailure, err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return nil, fmt.Errorf("%s fundamentals: %w: %w", symbol, ports.ErrProviderFailure, err)
	}

	metrics := types.FundamentalMetrics{}
	set := func(key string, v float64) {
		if v != 0 {
			metrics[key] = v
		}
	}
	set(types.MetricMarketCap, float64(info.MarketCap))
	set(types.MetricPERatio, float64(info.TrailingPE))
	set(types.MetricForwardPE, float64(info.ForwardPE))
	set(types.MetricPriceToBook, float64(info.PriceToBook))
	set(types.MetricRevenueGrowth, float64(info.RevenueGrowth))
	set(types.MetricEarningsGrowth, float64(info.EarningsGrowth))
	set(types.MetricProfitMargins, float64(info.ProfitMargins))
	set(types.MetricOperatingMargins, float64(info.OperatingMargins))
	set(types.MetricDividendYield, float64(info.DividendYield))
	set(types.MetricDebtToEquity, float64(info.DebtToEquity))
	set(types.MetricCurrentRatio, float64(info.CurrentRatio))

	if len(metrics) == 0 {
		return nil, fmt.Errorf("%s fundamentals: %w", symbol, ports.ErrDataUnavailable)
	}
	y.log.Debug().Str("symbol", symbol).Int("fields", len(metrics)).Msg("fundamentals fetched")
	return metrics, nil
}
