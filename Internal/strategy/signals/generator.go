package signals

import (
	"fmt"
	"math"
	"strings"

	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/types"
)

// histogram must grow by this factor over the prior bar to count as momentum
const macdGrowthFactor = 1.1

// Generate turns one analysis into directional signals. Every rule is
// evaluated independently; conflicting signals are kept for the caller to
// weigh.
func Generate(symbol string, a *indicators.Analysis) []types.Signal {
	if a == nil {
		return nil
	}

	var out []types.Signal
	add := func(dir types.Direction, strength types.Strength, reason string) {
		out = append(out, types.Signal{Symbol: symbol, Direction: dir, Reason: reason, Strength: strength})
	}

	snap := a.Indicators

	// ===== RSI =====
	if snap.RSI != nil {
		switch snap.RSI.Signal {
		case indicators.Oversold:
			add(types.Buy, types.Medium, fmt.Sprintf("RSI oversold (%.2f)", snap.RSI.Value))
		case indicators.Overbought:
			add(types.Sell, types.Medium, fmt.Sprintf("RSI overbought (%.2f)", snap.RSI.Value))
		}
	}

	// ===== MACD =====
	if m := snap.MACD; m != nil && accelerating(m.Histogram, m.PrevHistogram) {
		if m.Histogram > 0 {
			add(types.Buy, types.Strong, fmt.Sprintf("MACD bullish momentum (histogram %.4f)", m.Histogram))
		} else if m.Histogram < 0 {
			add(types.Sell, types.Strong, fmt.Sprintf("MACD bearish momentum (histogram %.4f)", m.Histogram))
		}
	}

	// ===== Bollinger =====
	// collapsed bands carry no information
	if bb := snap.Bollinger; bb != nil && bb.Upper > bb.Lower {
		if a.CurrentPrice <= bb.Lower {
			add(types.Buy, types.Medium, "Price at Bollinger Band lower bound")
		} else if a.CurrentPrice >= bb.Upper {
			add(types.Sell, types.Medium, "Price at Bollinger Band upper bound")
		}
	}

	// ===== Patterns =====
	for _, name := range a.Patterns.Bullish() {
		add(types.Buy, types.Strong, "Bullish pattern: "+name)
	}
	for _, name := range a.Patterns.Bearish() {
		add(types.Sell, types.Strong, "Bearish pattern: "+name)
	}

	// ===== Trend =====
	if ma := snap.MovingAverages; ma != nil && ma.Trend != "" {
		strength := types.Strong
		if strings.HasPrefix(string(ma.Trend), "weak") {
			strength = types.Weak
		}
		switch ma.Trend {
		case indicators.StrongUptrend, indicators.WeakUptrend:
			add(types.Buy, strength, "Trend analysis: "+string(ma.Trend))
		case indicators.StrongDowntrend, indicators.WeakDowntrend:
			add(types.Sell, strength, "Trend analysis: "+string(ma.Trend))
		}
	}

	return out
}

func accelerating(hist, prev float64) bool {
	return math.Abs(hist) > math.Abs(prev)*macdGrowthFactor
}
