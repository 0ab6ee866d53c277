package indicators

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/fazecat/smarttrader/Internal/types"
)

var fibonacciRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// SupportResistance slides a window over the bars and collects the window
// low and high as candidate levels. A candidate within tolerance (a fraction
// of the candidate) of an existing level is dropped. Levels are ascending.
func SupportResistance(bars []types.PriceBar, window int, tolerance float64) []float64 {
	if window <= 0 || len(bars) <= window {
		return nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, bar := range bars {
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	var levels []float64
	for i := window; i < len(bars); i++ {
		low := floats.Min(lows[i-window : i])
		high := floats.Max(highs[i-window : i])

		if len(levels) == 0 {
			levels = append(levels, low, high)
			continue
		}
		for _, level := range []float64{low, high} {
			if !nearExisting(level, levels, tolerance) {
				levels = append(levels, level)
			}
		}
	}

	sort.Float64s(levels)
	return levels
}

func nearExisting(level float64, levels []float64, tolerance float64) bool {
	for _, existing := range levels {
		if math.Abs(level-existing) < level*tolerance {
			return true
		}
	}
	return false
}

// FibonacciLevels retraces from the window high (ratio 0) to the window low
// (ratio 1). Keys are the ratios formatted without trailing zeros.
func FibonacciLevels(highs, lows []float64) map[string]float64 {
	if len(highs) == 0 || len(lows) == 0 {
		return nil
	}
	high := floats.Max(highs)
	low := floats.Min(lows)
	diff := high - low

	levels := make(map[string]float64, len(fibonacciRatios))
	for _, ratio := range fibonacciRatios {
		levels[strconv.FormatFloat(ratio, 'f', -1, 64)] = high - diff*ratio
	}
	return levels
}
