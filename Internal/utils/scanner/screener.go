package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/strategy/signals"
	"github.com/fazecat/smarttrader/Internal/types"
)

const defaultWorkers = 10

// one ranked symbol from a screening pass
type Result struct {
	Symbol    string               `json:"symbol"`
	Signals   []types.Signal       `json:"signals"`
	Analysis  *indicators.Analysis `json:"analysis"`
	Timestamp time.Time            `json:"timestamp"`
}

// total strength weight of the result's signals
func (r Result) Strength() int {
	return types.TotalStrength(r.Signals)
}

type ScreenerConfig struct {
	Workers  int
	Period   string
	Interval string
}

// fans the indicator engine and signal generator out over a universe
type Screener struct {
	market ports.MarketDataProvider
	engine *indicators.Engine
	cfg    ScreenerConfig
	log    zerolog.Logger
	now    func() time.Time
}

// creates a screener; a non-positive worker count uses 10
func NewScreener(market ports.MarketDataProvider, engine *indicators.Engine, cfg ScreenerConfig, log zerolog.Logger) *Screener {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Period == "" {
		cfg.Period = "1y"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	return &Screener{
		market: market,
		engine: engine,
		cfg:    cfg,
		log:    log.With().Str("component", "screener").Logger(),
		now:    time.Now,
	}
}

// Screen analyzes every symbol concurrently and returns the symbols that
// produced at least one signal, strongest first. Ties keep lexicographic
// symbol order. A failing symbol is logged and skipped.
func (s *Screener) Screen(ctx context.Context, universe []string) ([]Result, error) {
	symbols := normalizeUniverse(universe)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, symbol := range symbols {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Str("symbol", symbol).
						Interface("panic", r).
						Msg("screening symbol panicked, skipping")
				}
			}()
			if gctx.Err() != nil {
				return nil
			}
			res, ok := s.screenSymbol(gctx, symbol)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	// workers never return errors
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Rank(results)
	s.log.Info().
		Int("universe", len(symbols)).
		Int("results", len(results)).
		Msg("screening complete")
	return results, nil
}

func (s *Screener) screenSymbol(ctx context.Context, symbol string) (Result, bool) {
	bars, err := s.market.PriceHistory(ctx, symbol, s.cfg.Period, s.cfg.Interval)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping symbol")
		return Result{}, false
	}

	analysis := s.engine.Analyze(bars)
	if analysis == nil {
		s.log.Debug().Str("symbol", symbol).Msg("no analysis available")
		return Result{}, false
	}

	sigs := signals.Generate(symbol, analysis)
	if len(sigs) == 0 {
		return Result{}, false
	}

	return Result{
		Symbol:    symbol,
		Signals:   sigs,
		Analysis:  analysis,
		Timestamp: s.now(),
	}, true
}

// Rank orders results by strength descending, breaking ties by symbol
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Strength(), results[j].Strength()
		if si != sj {
			return si > sj
		}
		return results[i].Symbol < results[j].Symbol
	})
}

// sorted, deduplicated, non-empty symbols
func normalizeUniverse(universe []string) []string {
	seen := make(map[string]struct{}, len(universe))
	out := make([]string, 0, len(universe))
	for _, sym := range universe {
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
