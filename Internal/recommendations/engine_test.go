package recommendations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/smarttrader/Internal/handlers/risk"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/ports/portstest"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/types"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
)

type stubSizer struct {
	params types.RiskParameters
	calls  int
}

func (s *stubSizer) Parameters(price float64, atr *float64, pv float64, existing []types.Position) types.RiskParameters {
	s.calls++
	return s.params
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 14, 9, 30, 5, 0, time.UTC)}
}

func sig(dir types.Direction, strength types.Strength, reason string) types.Signal {
	return types.Signal{Direction: dir, Strength: strength, Reason: reason}
}

func result(symbol string, price float64, signals ...types.Signal) scanner.Result {
	return scanner.Result{
		Symbol:   symbol,
		Signals:  signals,
		Analysis: &indicators.Analysis{CurrentPrice: price},
	}
}

func mediumSizer() *stubSizer {
	return &stubSizer{params: types.RiskParameters{
		SuggestedQuantity: 40,
		StopLoss:          95,
		Target:            110,
		RiskLevel:         types.RiskMedium,
	}}
}

func TestProcess_EntryFromBuySignals(t *testing.T) {
	c := newClock()
	sizer := mediumSizer()
	e := NewEngine(sizer, &portstest.Broker{}, nil, zerolog.Nop(), WithClock(c.now))

	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "Bullish pattern: hammer")),
	}, nil, 100000)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "REC_AAPL_20250314_093005", rec.ID)
	assert.Equal(t, types.Entry, rec.Type)
	assert.Equal(t, types.ActionBuy, rec.Action)
	assert.Equal(t, 3, rec.Priority)
	assert.Equal(t, int64(40), rec.Quantity)
	assert.Equal(t, types.RiskMedium, rec.RiskLevel)
	assert.Equal(t, 95.0, *rec.StopLoss)
	assert.Equal(t, 110.0, *rec.Target)
	assert.Equal(t, []string{"Bullish pattern: hammer"}, rec.Reasons)
	assert.Equal(t, 1, sizer.calls)
}

func TestProcess_EntrySuppressed(t *testing.T) {
	tests := []struct {
		name    string
		signals []types.Signal
		params  types.RiskParameters
	}{
		{"high risk", []types.Signal{sig(types.Buy, types.Strong, "x")}, types.RiskParameters{SuggestedQuantity: 10, RiskLevel: types.RiskHigh}},
		{"zero quantity", []types.Signal{sig(types.Buy, types.Strong, "x")}, types.RiskParameters{RiskLevel: types.RiskLow}},
		{"score below two", []types.Signal{sig(types.Buy, types.Weak, "x")}, mediumSizer().params},
		{"tie", []types.Signal{sig(types.Buy, types.Medium, "x"), sig(types.Sell, types.Medium, "y")}, mediumSizer().params},
		{"sell side wins without position", []types.Signal{sig(types.Sell, types.Strong, "y")}, mediumSizer().params},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&stubSizer{params: tt.params}, &portstest.Broker{}, nil, zerolog.Nop())
			recs := e.Process(context.Background(), []scanner.Result{result("AAPL", 100, tt.signals...)}, nil, 100000)
			assert.Empty(t, recs)
			assert.Empty(t, e.Active())
		})
	}
}

func TestProcess_ExitForHeldPosition(t *testing.T) {
	sizer := mediumSizer()
	e := NewEngine(sizer, &portstest.Broker{}, nil, zerolog.Nop())
	positions := []types.Position{{Symbol: "TSLA", Quantity: 25, CurrentPrice: 200}}

	recs := e.Process(context.Background(), []scanner.Result{
		result("TSLA", 200,
			sig(types.Sell, types.Strong, "Bearish pattern: shooting_star"),
			sig(types.Sell, types.Medium, "RSI overbought"),
			sig(types.Buy, types.Weak, "Trend analysis: weak_uptrend"),
		),
	}, positions, 100000)

	require.Len(t, recs, 1)
	assert.Equal(t, types.Exit, recs[0].Type)
	assert.Equal(t, types.ActionSell, recs[0].Action)
	assert.Equal(t, types.RiskLow, recs[0].RiskLevel)
	assert.Equal(t, int64(25), recs[0].Quantity)
	assert.Equal(t, 5, recs[0].Priority)
	assert.Nil(t, recs[0].StopLoss)
	assert.Zero(t, sizer.calls)
}

func TestProcess_ExitRiskLevels(t *testing.T) {
	positions := []types.Position{{Symbol: "TSLA", Quantity: 10, CurrentPrice: 200}}
	e := NewEngine(mediumSizer(), &portstest.Broker{}, nil, zerolog.Nop())

	recs := e.Process(context.Background(), []scanner.Result{
		result("TSLA", 200, sig(types.Sell, types.Strong, "a"), sig(types.Sell, types.Weak, "b")),
	}, positions, 100000)
	require.Len(t, recs, 1)
	assert.Equal(t, types.RiskMedium, recs[0].RiskLevel)

	recs = e.Process(context.Background(), []scanner.Result{
		result("TSLA", 200, sig(types.Buy, types.Strong, "a")),
	}, positions, 100000)
	assert.Empty(t, recs)
}

func TestProcess_SortsAndReplaces(t *testing.T) {
	e := NewEngine(mediumSizer(), &portstest.Broker{}, nil, zerolog.Nop())

	e.Process(context.Background(), []scanner.Result{
		result("OLD", 10, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)

	recs := e.Process(context.Background(), []scanner.Result{
		result("LOW", 10, sig(types.Buy, types.Medium, "x")),
		result("HIGH", 10, sig(types.Buy, types.Strong, "x"), sig(types.Buy, types.Strong, "y")),
		result("MID", 10, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)

	var got []string
	for _, r := range recs {
		got = append(got, r.Symbol)
	}
	assert.Equal(t, []string{"HIGH", "MID", "LOW"}, got)

	active := e.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "HIGH", active[0].Symbol)
	for _, r := range active {
		assert.NotEqual(t, "OLD", r.Symbol)
	}
}

func TestActive_ExpiresWithoutPurge(t *testing.T) {
	c := newClock()
	e := NewEngine(mediumSizer(), &portstest.Broker{}, nil, zerolog.Nop(), WithClock(c.now))
	e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)

	c.advance(59 * time.Minute)
	assert.Len(t, e.Active(), 1)

	c.advance(2 * time.Minute)
	assert.Empty(t, e.Active())

	assert.Equal(t, 1, e.PurgeExpired())
	assert.Equal(t, 0, e.PurgeExpired())
}

func TestExecute_Success(t *testing.T) {
	c := newClock()
	broker := &portstest.Broker{}
	e := NewEngine(mediumSizer(), broker, nil, zerolog.Nop(), WithClock(c.now))
	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)
	require.Len(t, recs, 1)

	c.advance(time.Minute)
	trade, err := e.Execute(context.Background(), recs[0].ID)
	require.NoError(t, err)

	assert.Equal(t, recs[0].ID, trade.RecommendationID)
	assert.Equal(t, "ORD-1", trade.OrderID)
	assert.Equal(t, StatusExecuted, trade.Status)
	assert.Equal(t, int64(40), trade.Quantity)
	assert.Equal(t, c.t, trade.Timestamp)

	require.Len(t, broker.Orders, 1)
	order := broker.Orders[0]
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, types.ActionBuy, order.Side)
	assert.Equal(t, types.Market, order.OrderType)
	assert.Equal(t, 95.0, *order.StopLoss)

	assert.Empty(t, e.Active())
	trades, err := e.ExecutedTrades(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	_, err = e.Execute(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestExecute_UnknownID(t *testing.T) {
	broker := &portstest.Broker{}
	log := NewMemoryTradeLog()
	e := NewEngine(mediumSizer(), broker, log, zerolog.Nop())

	_, err := e.Execute(context.Background(), "REC_NOPE_20250101_000000")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	trades, err := log.Range(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Zero(t, broker.OrderCount())
}

func TestExecute_ExpiredIsNotFound(t *testing.T) {
	c := newClock()
	e := NewEngine(mediumSizer(), &portstest.Broker{}, nil, zerolog.Nop(), WithClock(c.now))
	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)

	c.advance(2 * time.Hour)
	_, err := e.Execute(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestExecute_ProviderFailureKeepsRecommendation(t *testing.T) {
	broker := &portstest.Broker{Err: errors.New("connection reset")}
	e := NewEngine(mediumSizer(), broker, nil, zerolog.Nop())
	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)

	_, err := e.Execute(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ports.ErrProviderFailure)
	assert.Len(t, e.Active(), 1)

	trades, err := e.ExecutedTrades(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, trades)

	broker.SetErr(nil)
	_, err = e.Execute(context.Background(), recs[0].ID)
	assert.NoError(t, err)
}

func TestExecutedTrades_InclusiveRange(t *testing.T) {
	log := NewMemoryTradeLog()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(context.Background(), types.ExecutedTrade{
			OrderID:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	e := NewEngine(mediumSizer(), &portstest.Broker{}, log, zerolog.Nop())

	start := base.Add(time.Hour)
	end := base.Add(3 * time.Hour)
	trades, err := e.ExecutedTrades(context.Background(), &start, &end)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "b", trades[0].OrderID)
	assert.Equal(t, "d", trades[2].OrderID)

	trades, err = e.ExecutedTrades(context.Background(), nil, &start)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestProcess_WithRealSizer(t *testing.T) {
	e := NewEngine(risk.NewSizer(risk.DefaultConfig()), &portstest.Broker{}, nil, zerolog.Nop())
	res := result("AAPL", 100, sig(types.Buy, types.Strong, "x"))
	res.Analysis.Indicators.ATR = &indicators.ATR{Value: 1.5, Percent: 1.5}

	recs := e.Process(context.Background(), []scanner.Result{res}, nil, 100000)
	require.Len(t, recs, 1)
	assert.Equal(t, types.RiskLow, recs[0].RiskLevel)
	assert.Equal(t, int64(50), recs[0].Quantity)
	assert.InDelta(t, 97, *recs[0].StopLoss, 1e-9)
}

func TestActive_ExpiresAtExactlyTTL(t *testing.T) {
	c := newClock()
	e := NewEngine(mediumSizer(), &portstest.Broker{}, nil, zerolog.Nop(), WithClock(c.now))
	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)
	require.Len(t, recs, 1)

	c.advance(DefaultTTL)
	assert.Empty(t, e.Active())

	_, err := e.Execute(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

// holds PlaceOrder open until release is closed
type gatedBroker struct {
	portstest.Broker
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBroker) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	close(b.entered)
	<-b.release
	return b.Broker.PlaceOrder(ctx, req)
}

func TestExecute_ConcurrentDuplicateIsNotFound(t *testing.T) {
	broker := &gatedBroker{entered: make(chan struct{}), release: make(chan struct{})}
	e := NewEngine(mediumSizer(), broker, nil, zerolog.Nop())
	recs := e.Process(context.Background(), []scanner.Result{
		result("AAPL", 100, sig(types.Buy, types.Strong, "x")),
	}, nil, 100000)
	require.Len(t, recs, 1)

	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(context.Background(), recs[0].ID)
		done <- err
	}()
	<-broker.entered

	_, err := e.Execute(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	close(broker.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, broker.OrderCount())
}

func TestProcess_FlatSeriesYieldsNoEntry(t *testing.T) {
	bars := make([]types.PriceBar, 60)
	for i := range bars {
		bars[i] = types.PriceBar{Open: 50, High: 50, Low: 50, Close: 50, Volume: 1000}
	}
	market := portstest.NewMarket()
	market.Bars["HALT"] = bars

	screener := scanner.NewScreener(market, indicators.NewEngine(), scanner.ScreenerConfig{Workers: 1}, zerolog.Nop())
	results, err := screener.Screen(context.Background(), []string{"HALT"})
	require.NoError(t, err)
	assert.Empty(t, results)

	e := NewEngine(risk.NewSizer(risk.DefaultConfig()), &portstest.Broker{}, nil, zerolog.Nop())
	assert.Empty(t, e.Process(context.Background(), results, nil, 100000))
}
