package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

const DefaultAlpacaDataURL = "https://data.alpaca.markets"

type AlpacaDataConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Feed      string // iex or sip; empty uses the account default
}

// AlpacaDataProvider reads stock bars and latest trades from the Alpaca
// market data REST API
type AlpacaDataProvider struct {
	cfg    AlpacaDataConfig
	client *http.Client
	retry  RetryConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewAlpacaDataProvider(cfg AlpacaDataConfig, log zerolog.Logger) *AlpacaDataProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAlpacaDataURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AlpacaDataProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  DefaultRetryConfig(),
		log:    log.With().Str("client", "alpaca-data").Logger(),
		now:    time.Now,
	}
}

type alpacaBarsResponse struct {
	Bars          []types.PriceBar `json:"bars"`
	NextPageToken *string          `json:"next_page_token"`
}

type alpacaLatestTradeResponse struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

func (a *AlpacaDataProvider) PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error) {
	timeframe, err := AlpacaTimeframe(interval)
	if err != nil {
		return nil, err
	}
	lookback, err := PeriodDuration(period)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("timeframe", timeframe)
	params.Set("start", a.now().UTC().Add(-lookback).Format(time.RFC3339))
	params.Set("limit", "10000")
	params.Set("adjustment", "all")
	if a.cfg.Feed != "" {
		params.Set("feed", a.cfg.Feed)
	}

	var bars []types.PriceBar
	for {
		apiURL := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", a.cfg.BaseURL, url.PathEscape(symbol), params.Encode())

		var page alpacaBarsResponse
		if err := a.get(ctx, apiURL, &page); err != nil {
			return nil, fmt.Errorf("%s bars: %w", symbol, err)
		}
		bars = append(bars, page.Bars...)

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		params.Set("page_token", *page.NextPageToken)
	}

	a.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("received bars")
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s bars: %w", symbol, ports.ErrDataUnavailable)
	}
	return SortBars(bars), nil
}

func (a *AlpacaDataProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	apiURL := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", a.cfg.BaseURL, url.PathEscape(symbol))
	if a.cfg.Feed != "" {
		apiURL += "?feed=" + url.QueryEscape(a.cfg.Feed)
	}

	var resp alpacaLatestTradeResponse
	if err := a.get(ctx, apiURL, &resp); err != nil {
		return 0, fmt.Errorf("%s latest trade: %w", symbol, err)
	}
	if resp.Trade.Price <= 0 {
		return 0, fmt.Errorf("%s latest trade: %w", symbol, ports.ErrDataUnavailable)
	}
	return resp.Trade.Price, nil
}

func (a *AlpacaDataProvider) get(ctx context.Context, apiURL string, out any) error {
	return RetryWithBackoff(ctx, a.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return Permanent(err)
		}
		req.Header.Set("APCA-API-KEY-ID", a.cfg.APIKey)
		req.Header.Set("APCA-API-SECRET-KEY", a.cfg.APISecret)

		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrProviderFailure, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
			return Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrDataUnavailable))
		case resp.StatusCode == http.StatusUnauthorized:
			return Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrConfiguration))
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrProviderFailure)
		case resp.StatusCode != http.StatusOK:
			return Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrProviderFailure))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Permanent(fmt.Errorf("decoding response: %w: %w", ports.ErrProviderFailure, err))
		}
		return nil
	})
}

// maps yfinance style intervals (1d, 1h, 5m, 1wk, 1mo) onto Alpaca timeframes
func AlpacaTimeframe(interval string) (string, error) {
	switch interval {
	case "1m":
		return "1Min", nil
	case "5m":
		return "5Min", nil
	case "15m":
		return "15Min", nil
	case "30m":
		return "30Min", nil
	case "1h", "60m":
		return "1Hour", nil
	case "1d", "":
		return "1Day", nil
	case "1wk":
		return "1Week", nil
	case "1mo":
		return "1Month", nil
	}
	return "", fmt.Errorf("unsupported interval %q: %w", interval, ports.ErrConfiguration)
}

// maps yfinance style periods (5d, 1mo, 6mo, 1y, 2y) onto a lookback
func PeriodDuration(period string) (time.Duration, error) {
	const day = 24 * time.Hour
	switch period {
	case "1d":
		return day, nil
	case "5d":
		return 5 * day, nil
	case "1mo":
		return 30 * day, nil
	case "3mo":
		return 91 * day, nil
	case "6mo":
		return 182 * day, nil
	case "1y", "":
		return 365 * day, nil
	case "2y":
		return 730 * day, nil
	case "5y":
		return 1826 * day, nil
	}
	return 0, fmt.Errorf("unsupported period %q: %w", period, ports.ErrConfiguration)
}
