package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInterval = 5 * time.Minute
	defaultBackoff  = time.Minute
)

var (
	Nifty50 = []string{
		"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
		"HINDUNILVR.NS", "ITC.NS", "SBIN.NS", "BHARTIARTL.NS", "KOTAKBANK.NS",
	}
	NiftyBank = []string{
		"HDFCBANK.NS", "ICICIBANK.NS", "KOTAKBANK.NS", "AXISBANK.NS", "SBIN.NS",
		"INDUSINDBK.NS", "BANDHANBNK.NS", "FEDERALBNK.NS", "IDFCFIRSTB.NS", "PNB.NS",
	}
)

// DefaultUniverse is the union of the predefined index lists
func DefaultUniverse() []string {
	return normalizeUniverse(append(append([]string{}, Nifty50...), NiftyBank...))
}

// receives each successful cycle's ranked results
type CycleFunc func(ctx context.Context, results []Result) error

type LoopConfig struct {
	Interval time.Duration
	Backoff  time.Duration
}

// Loop screens the universe on a fixed interval until its context is cancelled
type Loop struct {
	screener *Screener
	universe []string
	onCycle  CycleFunc
	cfg      LoopConfig
	log      zerolog.Logger
}

// creates a loop; zero durations use 5m and 1m
func NewLoop(screener *Screener, universe []string, onCycle CycleFunc, cfg LoopConfig, log zerolog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if len(universe) == 0 {
		universe = DefaultUniverse()
	}
	return &Loop{
		screener: screener,
		universe: universe,
		onCycle:  onCycle,
		cfg:      cfg,
		log:      log.With().Str("component", "screening_loop").Logger(),
	}
}

// Run blocks until ctx is done. A failed cycle is logged and retried after
// the backoff instead of the full interval.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Dur("interval", l.cfg.Interval).
		Int("universe", len(l.universe)).
		Msg("screening loop started")

	for {
		if err := ctx.Err(); err != nil {
			l.log.Info().Msg("screening loop stopped")
			return nil
		}

		wait := l.cfg.Interval
		if err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				l.log.Info().Msg("screening loop stopped")
				return nil
			}
			l.log.Error().Err(err).Dur("backoff", l.cfg.Backoff).Msg("screening cycle failed")
			wait = l.cfg.Backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.log.Info().Msg("screening loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce performs a single screening cycle and hands the results on
func (l *Loop) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screening cycle panicked: %v", r)
		}
	}()

	start := time.Now()
	results, err := l.screener.Screen(ctx, l.universe)
	if err != nil {
		return err
	}
	if l.onCycle != nil {
		if err := l.onCycle(ctx, results); err != nil {
			return fmt.Errorf("cycle handler: %w", err)
		}
	}
	l.log.Debug().Dur("took", time.Since(start)).Int("results", len(results)).Msg("cycle done")
	return nil
}
