package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/smarttrader/Internal/handlers/risk"
	newsscraping "github.com/fazecat/smarttrader/Internal/news_scraping"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/ports/portstest"
	"github.com/fazecat/smarttrader/Internal/recommendations"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/types"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
	"github.com/fazecat/smarttrader/Internal/utils/scoring"
)

// a single hammer candle yields one strong buy signal
var hammerBar = types.PriceBar{Open: 100, Close: 101, High: 101.2, Low: 97}

type fixture struct {
	svc    *Service
	market *portstest.Market
	broker *portstest.Broker
}

func newFixture(t *testing.T, sentiment ports.SentimentProvider) *fixture {
	t.Helper()
	market := portstest.NewMarket()
	market.Bars["AAA"] = []types.PriceBar{hammerBar}
	market.Bars["DOJI"] = []types.PriceBar{{Open: 100, Close: 100.05, High: 101, Low: 99}}
	broker := &portstest.Broker{Value: 100000}

	engine := indicators.NewEngine()
	log := zerolog.Nop()
	svc := NewService(Deps{
		Aggregator: scoring.NewAggregator(market, sentiment, nil, engine, "1y", "1d", log),
		Screener:   scanner.NewScreener(market, engine, scanner.ScreenerConfig{Workers: 2}, log),
		Engine:     recommendations.NewEngine(risk.NewSizer(risk.DefaultConfig()), broker, nil, log),
		Broker:     broker,
		Sentiment:  sentiment,
		Universe:   []string{"AAA", "DOJI"},
	}, log)
	return &fixture{svc: svc, market: market, broker: broker}
}

func TestService_Analyze(t *testing.T) {
	f := newFixture(t, &portstest.Sentiment{Scores: map[string]float64{"AAA": 0.4}})

	report, err := f.svc.Analyze(context.Background(), " aaa ")
	require.NoError(t, err)
	assert.Equal(t, "AAA", report.Symbol)
	assert.Equal(t, 101.0, report.CurrentPrice)
	require.NotNil(t, report.Sentiment)
	assert.Equal(t, 0.4, *report.Sentiment)

	_, err = f.svc.Analyze(context.Background(), "  ")
	assert.ErrorIs(t, err, ports.ErrValidationFailure)

	_, err = f.svc.Analyze(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}

func TestService_ScreenDefaultsToUniverse(t *testing.T) {
	f := newFixture(t, nil)

	results, err := f.svc.Screen(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AAA", results[0].Symbol)

	results, err = f.svc.Screen(context.Background(), []string{"doji"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_CycleExecuteAndAudit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	recs, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "AAA", rec.Symbol)
	assert.Equal(t, types.Entry, rec.Type)
	assert.Positive(t, rec.Quantity)

	assert.Equal(t, recs, f.svc.ActiveRecommendations())

	trade, err := f.svc.Execute(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", trade.OrderID)
	assert.Equal(t, rec.Quantity, trade.Quantity)
	require.Len(t, f.broker.Orders, 1)
	assert.Equal(t, types.ActionBuy, f.broker.Orders[0].Side)
	assert.Empty(t, f.svc.ActiveRecommendations())

	trades, err := f.svc.ExecutedTrades(ctx, &before, nil)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, rec.ID, trades[0].RecommendationID)

	_, err = f.svc.Execute(ctx, rec.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestService_ProcessResultsFailsOnBroker(t *testing.T) {
	f := newFixture(t, nil)
	f.broker.SetErr(ports.ErrProviderFailure)

	err := f.svc.ProcessResults(context.Background(), nil)
	assert.ErrorIs(t, err, ports.ErrProviderFailure)

	_, err = f.svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ports.ErrProviderFailure)
}

func TestService_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, " ")
	assert.ErrorIs(t, err, ports.ErrValidationFailure)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = f.svc.ExecutedTrades(ctx, &start, &end)
	assert.ErrorIs(t, err, ports.ErrValidationFailure)

	_, err = f.svc.Sentiment(ctx, "AAA")
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)

	_, err = f.svc.CancelOrder(ctx, "")
	assert.ErrorIs(t, err, ports.ErrValidationFailure)

	ok, err := f.svc.CancelOrder(ctx, "ORD-9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewService_DefaultUniverse(t *testing.T) {
	svc := NewService(Deps{}, zerolog.Nop())
	assert.Equal(t, scanner.DefaultUniverse(), svc.Universe())
}

type fakeNews struct {
	bySymbol map[string][]newsscraping.Article
}

func (f *fakeNews) FetchNews(ctx context.Context, symbol string, limit int) ([]newsscraping.Article, error) {
	articles, ok := f.bySymbol[symbol]
	if !ok {
		return nil, ports.ErrDataUnavailable
	}
	return articles, nil
}

func TestService_NewsDedupesAndDefaultsToPositions(t *testing.T) {
	news := &fakeNews{bySymbol: map[string][]newsscraping.Article{
		"AAPL": {{URL: "u1", Headline: "a"}, {URL: "shared", Headline: "both"}},
		"MSFT": {{URL: "shared", Headline: "both"}, {URL: "u2", Headline: "m"}},
	}}
	broker := &portstest.Broker{Held: []types.Position{{Symbol: "AAPL", Quantity: 1}}}
	svc := NewService(Deps{Broker: broker, News: news}, zerolog.Nop())

	articles, err := svc.News(context.Background(), []string{"aapl", "msft", "gone"}, 5)
	require.NoError(t, err)
	assert.Len(t, articles, 3)

	articles, err = svc.News(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	_, err = NewService(Deps{}, zerolog.Nop()).News(context.Background(), nil, 5)
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}
