package scoring

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/types"
)

const (
	sentimentWeight   = 0.3
	technicalWeight   = 0.4
	fundamentalWeight = 0.3

	buyThreshold  = 0.7
	sellThreshold = 0.3
	neutralScore  = 0.5
)

type Scores struct {
	Overall     float64 `json:"overall"`
	Sentiment   float64 `json:"sentiment"`
	Technical   float64 `json:"technical"`
	Fundamental float64 `json:"fundamental"`
}

type Recommendation struct {
	Action      types.Action `json:"recommendation"`
	Confidence  float64      `json:"confidence"`
	TargetPrice float64      `json:"target_price"`
	StopLoss    float64      `json:"stop_loss"`
	Scores      Scores       `json:"scores"`
}

// single-symbol report returned by analyze
type Report struct {
	Symbol         string                   `json:"symbol"`
	CurrentPrice   float64                  `json:"current_price"`
	Sentiment      *float64                 `json:"sentiment,omitempty"`
	Technical      *indicators.Analysis     `json:"technical,omitempty"`
	Fundamental    types.FundamentalMetrics `json:"fundamental,omitempty"`
	Recommendation Recommendation           `json:"recommendation"`
}

// weights sentiment, technical and fundamental views into one BUY/SELL/HOLD call
type Aggregator struct {
	market       ports.MarketDataProvider
	sentiment    ports.SentimentProvider
	fundamentals ports.FundamentalsProvider
	engine       *indicators.Engine
	period       string
	interval     string
	log          zerolog.Logger
}

// creates an aggregator; sentiment and fundamentals may be nil
func NewAggregator(market ports.MarketDataProvider, sentiment ports.SentimentProvider, fundamentals ports.FundamentalsProvider, engine *indicators.Engine, period, interval string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		market:       market,
		sentiment:    sentiment,
		fundamentals: fundamentals,
		engine:       engine,
		period:       period,
		interval:     interval,
		log:          log.With().Str("component", "scoring").Logger(),
	}
}

// Analyze gathers the three views for a symbol. Sentiment and fundamentals
// failures degrade to a neutral score; a missing price history is an error.
func (a *Aggregator) Analyze(ctx context.Context, symbol string) (*Report, error) {
	bars, err := a.market.PriceHistory(ctx, symbol, a.period, a.interval)
	if err != nil {
		return nil, err
	}
	analysis := a.engine.Analyze(bars)
	if analysis == nil {
		return nil, ports.ErrDataUnavailable
	}

	report := &Report{
		Symbol:       symbol,
		CurrentPrice: analysis.CurrentPrice,
		Technical:    analysis,
	}

	if price, err := a.market.CurrentPrice(ctx, symbol); err == nil && price > 0 {
		report.CurrentPrice = price
	} else if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("current price unavailable, using last close")
	}

	if a.sentiment != nil {
		s, err := a.sentiment.Sentiment(ctx, symbol)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment unavailable")
		} else {
			report.Sentiment = &s
		}
	}

	if a.fundamentals != nil {
		m, err := a.fundamentals.Metrics(ctx, symbol)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("fundamentals unavailable")
		} else {
			report.Fundamental = m
		}
	}

	report.Recommendation = Recommend(report.Sentiment, &analysis.Indicators, report.Fundamental, report.CurrentPrice)
	return report, nil
}

// ============================================================================
// SCORING
// ============================================================================

// Recommend combines the three scores with weights 0.3/0.4/0.3. A nil input
// scores neutral.
func Recommend(sentiment *float64, technical *indicators.Snapshot, fundamental types.FundamentalMetrics, price float64) Recommendation {
	scores := Scores{
		Sentiment:   SentimentScore(sentiment),
		Technical:   TechnicalScore(technical),
		Fundamental: FundamentalScore(fundamental),
	}
	scores.Overall = scores.Sentiment*sentimentWeight +
		scores.Technical*technicalWeight +
		scores.Fundamental*fundamentalWeight

	rec := Recommendation{Scores: scores}
	switch {
	case scores.Overall >= buyThreshold:
		rec.Action = types.ActionBuy
		rec.Confidence = scores.Overall
		rec.TargetPrice = price * 1.1
		rec.StopLoss = price * 0.95
	case scores.Overall <= sellThreshold:
		rec.Action = types.ActionSell
		rec.Confidence = 1 - scores.Overall
		rec.TargetPrice = price * 0.9
		rec.StopLoss = price * 1.05
	default:
		rec.Action = types.ActionHold
		rec.Confidence = neutralScore
		rec.TargetPrice = price
		rec.StopLoss = price * 0.95
	}
	return rec
}

// maps [-1, 1] onto [0, 1]
func SentimentScore(s *float64) float64 {
	if s == nil {
		return neutralScore
	}
	v := math.Max(-1, math.Min(1, *s))
	return (v + 1) / 2
}

// RSI, MACD line vs signal and SMA20 vs SMA50 each vote +1/-1; an indicator
// that was not computed casts no vote
func TechnicalScore(snap *indicators.Snapshot) float64 {
	if snap == nil {
		return neutralScore
	}
	score, votes := 0, 0

	if snap.RSI != nil {
		votes++
		if snap.RSI.Value < 30 {
			score++
		} else if snap.RSI.Value > 70 {
			score--
		}
	}

	if snap.MACD != nil {
		votes++
		if snap.MACD.MACD > snap.MACD.Signal {
			score++
		} else {
			score--
		}
	}

	if ma := snap.MovingAverages; ma != nil && ma.SMA20 != nil && ma.SMA50 != nil {
		votes++
		if *ma.SMA20 > *ma.SMA50 {
			score++
		} else {
			score--
		}
	}

	if votes == 0 {
		return neutralScore
	}
	return float64(score+3) / 6
}

// P/E, revenue growth and profit margin each vote +1/-1; growth and margins
// are fractions (0.1 == 10%)
func FundamentalScore(m types.FundamentalMetrics) float64 {
	if len(m) == 0 {
		return neutralScore
	}
	score := 0

	if pe, ok := m[types.MetricPERatio]; ok {
		if pe > 0 && pe < 25 {
			score++
		} else if pe > 50 {
			score--
		}
	}

	if growth, ok := m[types.MetricRevenueGrowth]; ok {
		if growth > 0.10 {
			score++
		} else if growth < 0 {
			score--
		}
	}

	if margin, ok := m[types.MetricProfitMargins]; ok {
		if margin > 0.20 {
			score++
		} else if margin < 0 {
			score--
		}
	}

	return float64(score+3) / 6
}

func ScoreCategory(score float64) string {
	switch {
	case score >= 0.8:
		return "🟢 Excellent"
	case score >= 0.6:
		return "🟢 Good"
	case score >= 0.4:
		return "🟡 Fair"
	case score >= 0.2:
		return "🟠 Moderate"
	}
	return "🔴 Poor"
}
