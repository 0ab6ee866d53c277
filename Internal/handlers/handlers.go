package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	newsscraping "github.com/fazecat/smarttrader/Internal/news_scraping"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/recommendations"
	"github.com/fazecat/smarttrader/Internal/types"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
	"github.com/fazecat/smarttrader/Internal/utils/scoring"
)

type NewsSource interface {
	FetchNews(ctx context.Context, symbol string, limit int) ([]newsscraping.Article, error)
}

// Deps are the collaborators a Service coordinates. Sentiment and News may
// be nil.
type Deps struct {
	Aggregator *scoring.Aggregator
	Screener   *scanner.Screener
	Engine     *recommendations.Engine
	Broker     ports.OrderExecutionProvider
	Sentiment  ports.SentimentProvider
	News       NewsSource
	Universe   []string
}

// Service is the single entry point shared by the CLI and the REST API
type Service struct {
	aggregator *scoring.Aggregator
	screener   *scanner.Screener
	engine     *recommendations.Engine
	broker     ports.OrderExecutionProvider
	sentiment  ports.SentimentProvider
	news       NewsSource
	universe   []string
	log        zerolog.Logger
}

func NewService(d Deps, log zerolog.Logger) *Service {
	universe := d.Universe
	if len(universe) == 0 {
		universe = scanner.DefaultUniverse()
	}
	return &Service{
		aggregator: d.Aggregator,
		screener:   d.Screener,
		engine:     d.Engine,
		broker:     d.Broker,
		sentiment:  d.Sentiment,
		news:       d.News,
		universe:   universe,
		log:        log.With().Str("component", "service").Logger(),
	}
}

func (s *Service) Universe() []string {
	return append([]string(nil), s.universe...)
}

// ============================================================================
// ANALYSIS
// ============================================================================

func (s *Service) Analyze(ctx context.Context, symbol string) (*scoring.Report, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", ports.ErrValidationFailure)
	}
	return s.aggregator.Analyze(ctx, symbol)
}

// Screen ranks the given symbols, or the configured universe when empty
func (s *Service) Screen(ctx context.Context, universe []string) ([]scanner.Result, error) {
	if len(universe) == 0 {
		universe = s.universe
	}
	normalized := make([]string, 0, len(universe))
	for _, sym := range universe {
		if sym = normalizeSymbol(sym); sym != "" {
			normalized = append(normalized, sym)
		}
	}
	return s.screener.Screen(ctx, normalized)
}

func (s *Service) Sentiment(ctx context.Context, symbol string) (float64, error) {
	if s.sentiment == nil {
		return 0, fmt.Errorf("no sentiment provider configured: %w", ports.ErrDataUnavailable)
	}
	return s.sentiment.Sentiment(ctx, normalizeSymbol(symbol))
}

// News returns recent articles for symbols, or for held positions when
// symbols is empty. Articles shared between symbols appear once.
func (s *Service) News(ctx context.Context, symbols []string, perSymbol int) ([]newsscraping.Article, error) {
	if s.news == nil {
		return nil, fmt.Errorf("no news provider configured: %w", ports.ErrDataUnavailable)
	}
	if len(symbols) == 0 {
		positions, err := s.broker.Positions(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading positions: %w", err)
		}
		for _, p := range positions {
			symbols = append(symbols, p.Symbol)
		}
	}

	seenURLs := make(map[string]bool)
	var out []newsscraping.Article
	for _, sym := range symbols {
		articles, err := s.news.FetchNews(ctx, normalizeSymbol(sym), perSymbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("news unavailable")
			continue
		}
		for _, a := range articles {
			if seenURLs[a.URL] {
				continue
			}
			seenURLs[a.URL] = true
			out = append(out, a)
		}
	}
	return out, nil
}

// ============================================================================
// RECOMMENDATIONS
// ============================================================================

// RunCycle screens the universe and turns the results into recommendations
func (s *Service) RunCycle(ctx context.Context) ([]types.Recommendation, error) {
	results, err := s.Screen(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, results)
}

// ProcessResults feeds one screening cycle into the recommendation engine;
// it is the screening loop's callback
func (s *Service) ProcessResults(ctx context.Context, results []scanner.Result) error {
	_, err := s.process(ctx, results)
	return err
}

func (s *Service) process(ctx context.Context, results []scanner.Result) ([]types.Recommendation, error) {
	positions, err := s.broker.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading positions: %w", err)
	}
	value, err := s.broker.PortfolioValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading portfolio value: %w", err)
	}

	recs := s.engine.Process(ctx, results, positions, value)
	s.log.Info().
		Int("screened", len(results)).
		Int("positions", len(positions)).
		Int("recommendations", len(recs)).
		Msg("cycle processed")
	return recs, nil
}

func (s *Service) ActiveRecommendations() []types.Recommendation {
	return s.engine.Active()
}

func (s *Service) Execute(ctx context.Context, recommendationID string) (types.ExecutedTrade, error) {
	recommendationID = strings.TrimSpace(recommendationID)
	if recommendationID == "" {
		return types.ExecutedTrade{}, fmt.Errorf("recommendation_id is required: %w", ports.ErrValidationFailure)
	}
	return s.engine.Execute(ctx, recommendationID)
}

func (s *Service) ExecutedTrades(ctx context.Context, start, end *time.Time) ([]types.ExecutedTrade, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, fmt.Errorf("end is before start: %w", ports.ErrValidationFailure)
	}
	return s.engine.ExecutedTrades(ctx, start, end)
}

// ============================================================================
// PORTFOLIO
// ============================================================================

func (s *Service) Positions(ctx context.Context) ([]types.Position, error) {
	return s.broker.Positions(ctx)
}

func (s *Service) PortfolioValue(ctx context.Context) (float64, error) {
	return s.broker.PortfolioValue(ctx)
}

func (s *Service) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, fmt.Errorf("order_id is required: %w", ports.ErrValidationFailure)
	}
	return s.broker.CancelOrder(ctx, orderID)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
