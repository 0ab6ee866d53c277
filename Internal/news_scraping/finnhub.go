package newsscraping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	datafeed "github.com/fazecat/smarttrader/Internal/database"
	"github.com/fazecat/smarttrader/Internal/ports"
)

const (
	DefaultFinnhubURL = "https://finnhub.io/api/v1"

	newsWeight   = 0.6
	socialWeight = 0.4

	defaultLookbackDays = 7
	defaultMaxArticles  = 50
)

type FinnhubConfig struct {
	BaseURL      string
	APIKey       string
	LookbackDays int
	MaxArticles  int
	// skip the social sentiment endpoint and score headlines only
	NewsOnly bool
}

type Article struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   float64   `json:"sentiment"`
}

type finnhubNewsItem struct {
	ID       int64  `json:"id"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

type socialSentimentResponse struct {
	Reddit  []socialSentimentPoint `json:"reddit"`
	Twitter []socialSentimentPoint `json:"twitter"`
}

type socialSentimentPoint struct {
	Mention int     `json:"mention"`
	Score   float64 `json:"score"`
}

// FinnhubClient implements ports.SentimentProvider from company news
// headlines scored by the lexicon, blended with Finnhub's social sentiment.
type FinnhubClient struct {
	cfg     FinnhubConfig
	client  *http.Client
	lexicon *Lexicon
	retry   datafeed.RetryConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewFinnhubClient(cfg FinnhubConfig, log zerolog.Logger) (*FinnhubClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FINNHUB_API_KEY is not set: %w", ports.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFinnhubURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = defaultMaxArticles
	}
	return &FinnhubClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		lexicon: NewLexicon(),
		retry:   datafeed.DefaultRetryConfig(),
		log:     log.With().Str("client", "finnhub").Logger(),
		now:     time.Now,
	}, nil
}

// Sentiment blends news 0.6 and social 0.4, clamped to [-1, 1]. A failing
// side counts as 0; an error is returned only when both fail.
func (f *FinnhubClient) Sentiment(ctx context.Context, symbol string) (float64, error) {
	var news float64
	articles, newsErr := f.FetchNews(ctx, symbol, f.cfg.MaxArticles)
	if newsErr != nil {
		f.log.Warn().Err(newsErr).Str("symbol", symbol).Msg("news sentiment unavailable")
	} else {
		news = meanArticleSentiment(articles)
	}

	if f.cfg.NewsOnly {
		if newsErr != nil {
			return 0, newsErr
		}
		return Clamp(news), nil
	}

	social, socialErr := f.SocialSentiment(ctx, symbol)
	if socialErr != nil {
		f.log.Warn().Err(socialErr).Str("symbol", symbol).Msg("social sentiment unavailable")
	}
	if newsErr != nil && socialErr != nil {
		return 0, fmt.Errorf("%s sentiment: %w", symbol, newsErr)
	}

	combined := Clamp(news*newsWeight + social*socialWeight)
	f.log.Debug().
		Str("symbol", symbol).
		Float64("news", news).
		Float64("social", social).
		Float64("combined", combined).
		Msg("sentiment computed")
	return combined, nil
}

// FetchNews returns up to limit recent articles for symbol, each scored.
func (f *FinnhubClient) FetchNews(ctx context.Context, symbol string, limit int) ([]Article, error) {
	to := f.now().UTC()
	from := to.AddDate(0, 0, -f.cfg.LookbackDays)

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var items []finnhubNewsItem
	if err := f.get(ctx, "/company-news", params, &items); err != nil {
		return nil, fmt.Errorf("%s news: %w", symbol, err)
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	articles := make([]Article, 0, len(items))
	for _, item := range items {
		score, _ := f.lexicon.Score(item.Headline + " " + item.Summary)
		articles = append(articles, Article{
			ID:          item.ID,
			Symbol:      symbol,
			Headline:    item.Headline,
			Summary:     item.Summary,
			URL:         item.URL,
			Source:      item.Source,
			PublishedAt: time.Unix(item.Datetime, 0).UTC(),
			Sentiment:   score,
		})
	}
	return articles, nil
}

// SocialSentiment averages the reddit and twitter scores over the lookback.
func (f *FinnhubClient) SocialSentiment(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", f.now().UTC().AddDate(0, 0, -f.cfg.LookbackDays).Format("2006-01-02"))

	var resp socialSentimentResponse
	if err := f.get(ctx, "/stock/social-sentiment", params, &resp); err != nil {
		return 0, fmt.Errorf("%s social sentiment: %w", symbol, err)
	}

	points := append(resp.Reddit, resp.Twitter...)
	if len(points) == 0 {
		return 0, nil
	}
	var total float64
	for _, p := range points {
		total += p.Score
	}
	return Clamp(total / float64(len(points))), nil
}

func (f *FinnhubClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("token", f.cfg.APIKey)
	apiURL := f.cfg.BaseURL + path + "?" + params.Encode()

	return datafeed.RetryWithBackoff(ctx, f.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return datafeed.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrProviderFailure, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return datafeed.Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrConfiguration))
		case resp.StatusCode == http.StatusForbidden:
			// premium endpoint on a free key
			return datafeed.Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrDataUnavailable))
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrProviderFailure)
		case resp.StatusCode != http.StatusOK:
			return datafeed.Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ports.ErrProviderFailure))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return datafeed.Permanent(fmt.Errorf("decoding response: %w: %w", ports.ErrProviderFailure, err))
		}
		return nil
	})
}

func meanArticleSentiment(articles []Article) float64 {
	if len(articles) == 0 {
		return 0
	}
	var total float64
	for _, a := range articles {
		total += a.Sentiment
	}
	return total / float64(len(articles))
}
