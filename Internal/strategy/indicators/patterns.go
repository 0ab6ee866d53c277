package indicators

import (
	"math"

	"github.com/fazecat/smarttrader/Internal/types"
)

const (
	EngulfingBullish = "bullish"
	EngulfingBearish = "bearish"
)

// candle patterns found on the last one to three bars
type PatternFlags struct {
	Hammer       bool   `json:"hammer"`
	ShootingStar bool   `json:"shooting_star"`
	Doji         bool   `json:"doji"`
	Engulfing    string `json:"engulfing,omitempty"`
	MorningStar  bool   `json:"morning_star"`
	EveningStar  bool   `json:"evening_star"`
}

// names of the bullish patterns present
func (p PatternFlags) Bullish() []string {
	var names []string
	if p.Hammer {
		names = append(names, "hammer")
	}
	if p.MorningStar {
		names = append(names, "morning_star")
	}
	if p.Engulfing == EngulfingBullish {
		names = append(names, "bullish_engulfing")
	}
	return names
}

func (p PatternFlags) Bearish() []string {
	var names []string
	if p.ShootingStar {
		names = append(names, "shooting_star")
	}
	if p.EveningStar {
		names = append(names, "evening_star")
	}
	if p.Engulfing == EngulfingBearish {
		names = append(names, "bearish_engulfing")
	}
	return names
}

func DetectPatterns(bars []types.PriceBar) PatternFlags {
	var flags PatternFlags
	n := len(bars)
	if n == 0 {
		return flags
	}

	last := bars[n-1]
	flags.Hammer = IsHammer(last)
	flags.ShootingStar = IsShootingStar(last)
	flags.Doji = IsDoji(last)

	if n >= 2 {
		flags.Engulfing = Engulfing(bars[n-2], last)
	}
	if n >= 3 {
		flags.MorningStar = IsMorningStar(bars[n-3], bars[n-2], last)
		flags.EveningStar = IsEveningStar(bars[n-3], bars[n-2], last)
	}
	return flags
}

func IsHammer(c types.PriceBar) bool {
	body, upper, lower := anatomy(c)
	return lower > 2*body && upper < body
}

func IsShootingStar(c types.PriceBar) bool {
	body, upper, lower := anatomy(c)
	return upper > 2*body && lower < body
}

func IsDoji(c types.PriceBar) bool {
	body, _, _ := anatomy(c)
	return body <= (c.High-c.Low)*0.1
}

// returns "bullish", "bearish" or "" for the last two candles
func Engulfing(prev, cur types.PriceBar) string {
	b1, b2 := signedBody(prev), signedBody(cur)
	if math.Abs(b2) <= math.Abs(b1) {
		return ""
	}
	if b1 < 0 && b2 > 0 && cur.Open <= prev.Close && cur.Close >= prev.Open {
		return EngulfingBullish
	}
	if b1 > 0 && b2 < 0 && cur.Open >= prev.Close && cur.Close <= prev.Open {
		return EngulfingBearish
	}
	return ""
}

// long bearish candle, small body, then a bullish candle recovering over half
func IsMorningStar(first, second, third types.PriceBar) bool {
	b1, b2, b3 := signedBody(first), signedBody(second), signedBody(third)
	return b1 < 0 && starBody(b1, b2) && b3 > 0 && math.Abs(b3) > 0.5*math.Abs(b1)
}

func IsEveningStar(first, second, third types.PriceBar) bool {
	b1, b2, b3 := signedBody(first), signedBody(second), signedBody(third)
	return b1 > 0 && starBody(b1, b2) && b3 < 0 && math.Abs(b3) > 0.5*math.Abs(b1)
}

func starBody(first, second float64) bool {
	return math.Abs(second) < 0.3*math.Abs(first)
}

func signedBody(c types.PriceBar) float64 {
	return c.Close - c.Open
}

func anatomy(c types.PriceBar) (body, upper, lower float64) {
	body = math.Abs(c.Close - c.Open)
	upper = c.High - math.Max(c.Open, c.Close)
	lower = math.Min(c.Open, c.Close) - c.Low
	return body, upper, lower
}
