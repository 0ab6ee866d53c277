package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/ports/portstest"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/types"
)

var (
	hammerBar = types.PriceBar{Open: 100, Close: 101, High: 101.2, Low: 97}
	dojiBar   = types.PriceBar{Open: 100, Close: 100.05, High: 101, Low: 99}

	// morning star whose last candle also engulfs the star
	starBars = []types.PriceBar{
		{Open: 110, Close: 100, High: 111, Low: 99},
		{Open: 99.5, Close: 99, High: 100, Low: 98},
		{Open: 99, Close: 107, High: 108, Low: 99},
	}
)

func fixtureMarket() *portstest.Market {
	m := portstest.NewMarket()
	m.Bars["STAR"] = starBars
	m.Bars["AAA"] = []types.PriceBar{hammerBar}
	m.Bars["ZZZ"] = []types.PriceBar{hammerBar}
	m.Bars["DOJI"] = []types.PriceBar{dojiBar}
	m.Bars["EMPTY"] = []types.PriceBar{}
	m.Errs["BAD"] = ports.ErrProviderFailure
	return m
}

func symbols(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Symbol
	}
	return out
}

func TestScreen_RanksAndDrops(t *testing.T) {
	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{Workers: 2}, zerolog.Nop())
	universe := []string{"ZZZ", "DOJI", "BAD", "STAR", "GONE", "AAA", "EMPTY", "ZZZ"}

	results, err := s.Screen(context.Background(), universe)
	require.NoError(t, err)

	assert.Equal(t, []string{"STAR", "AAA", "ZZZ"}, symbols(results))
	assert.Equal(t, 6, results[0].Strength())
	for _, r := range results {
		assert.NotEmpty(t, r.Signals)
		assert.NotNil(t, r.Analysis)
	}
}

func TestScreen_DeterministicAcrossRuns(t *testing.T) {
	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{}, zerolog.Nop())
	first, err := s.Screen(context.Background(), []string{"ZZZ", "AAA", "STAR"})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := s.Screen(context.Background(), []string{"STAR", "AAA", "ZZZ"})
		require.NoError(t, err)
		assert.Equal(t, symbols(first), symbols(again))
	}
}

func TestScreen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{}, zerolog.Nop())
	_, err := s.Screen(ctx, []string{"AAA"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRank(t *testing.T) {
	weak := []types.Signal{{Strength: types.Weak}}
	strong := []types.Signal{{Strength: types.Strong}}
	results := []Result{
		{Symbol: "B", Signals: weak},
		{Symbol: "C", Signals: strong},
		{Symbol: "A", Signals: weak},
	}
	Rank(results)
	assert.Equal(t, []string{"C", "A", "B"}, symbols(results))
}

func TestDefaultUniverse(t *testing.T) {
	u := DefaultUniverse()
	assert.Len(t, u, 16)
	assert.Contains(t, u, "RELIANCE.NS")
	assert.Contains(t, u, "PNB.NS")
	assert.IsIncreasing(t, u)
}

func TestLoop_RunOnceHandsResultsOn(t *testing.T) {
	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{}, zerolog.Nop())
	var got []Result
	loop := NewLoop(s, []string{"AAA", "DOJI"}, func(ctx context.Context, results []Result) error {
		got = results
		return nil
	}, LoopConfig{}, zerolog.Nop())

	require.NoError(t, loop.RunOnce(context.Background()))
	assert.Equal(t, []string{"AAA"}, symbols(got))
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{}, zerolog.Nop())
	loop := NewLoop(s, []string{"AAA"}, func(ctx context.Context, results []Result) error {
		panic("boom")
	}, LoopConfig{}, zerolog.Nop())

	err := loop.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoop_RunSurvivesFailuresUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cycles atomic.Int32
	s := NewScreener(fixtureMarket(), indicators.NewEngine(), ScreenerConfig{}, zerolog.Nop())
	loop := NewLoop(s, []string{"AAA"}, func(ctx context.Context, results []Result) error {
		n := cycles.Add(1)
		if n >= 4 {
			cancel()
		}
		if n%2 == 1 {
			return errors.New("transient")
		}
		return nil
	}, LoopConfig{Interval: time.Millisecond, Backoff: time.Millisecond}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, cycles.Load(), int32(4))
}

// panics for one symbol and delegates the rest
type panickyMarket struct {
	*portstest.Market
	boom string
}

func (m *panickyMarket) PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error) {
	if symbol == m.boom {
		panic("malformed provider response")
	}
	return m.Market.PriceHistory(ctx, symbol, period, interval)
}

func TestScreen_PanickingSymbolIsSkipped(t *testing.T) {
	market := &panickyMarket{Market: fixtureMarket(), boom: "BOOM"}
	s := NewScreener(market, indicators.NewEngine(), ScreenerConfig{Workers: 2}, zerolog.Nop())

	results, err := s.Screen(context.Background(), []string{"BOOM", "AAA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, symbols(results))

	var got []Result
	loop := NewLoop(s, []string{"AAA", "BOOM"}, func(ctx context.Context, results []Result) error {
		got = results
		return nil
	}, LoopConfig{}, zerolog.Nop())
	require.NoError(t, loop.RunOnce(context.Background()))
	assert.Equal(t, []string{"AAA"}, symbols(got))
}
