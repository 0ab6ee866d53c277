package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/fazecat/smarttrader/Internal/types"
)

const (
	rsiPeriod        = 14
	rsiNeutral       = 50.0
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	bollingerPeriod  = 20
	bollingerDev     = 2.0
	atrPeriod        = 14
	stochKPeriod     = 14
	stochDPeriod     = 3
	adxPeriod        = 14
	volumeAvgPeriod  = 20
	defaultSRWindow  = 20
	defaultTolerance = 0.02
)

type RSISignal string

const (
	Oversold   RSISignal = "oversold"
	Neutral    RSISignal = "neutral"
	Overbought RSISignal = "overbought"
)

type Trend string

const (
	StrongUptrend   Trend = "strong_uptrend"
	WeakUptrend     Trend = "weak_uptrend"
	Sideways        Trend = "sideways"
	WeakDowntrend   Trend = "weak_downtrend"
	StrongDowntrend Trend = "strong_downtrend"
)

type ADXStrength string

const (
	VeryStrongTrend ADXStrength = "very_strong"
	StrongTrend     ADXStrength = "strong"
	ModerateTrend   ADXStrength = "moderate"
	WeakTrend       ADXStrength = "weak"
)

type RSI struct {
	Value  float64   `json:"value"`
	Signal RSISignal `json:"signal"`
}

type MACD struct {
	MACD          float64 `json:"macd"`
	Signal        float64 `json:"signal"`
	Histogram     float64 `json:"histogram"`
	PrevHistogram float64 `json:"prev_histogram"`
}

type MovingAverages struct {
	SMA20  *float64 `json:"sma_20,omitempty"`
	SMA50  *float64 `json:"sma_50,omitempty"`
	SMA200 *float64 `json:"sma_200,omitempty"`
	EMA12  *float64 `json:"ema_12,omitempty"`
	EMA26  *float64 `json:"ema_26,omitempty"`
	Trend  Trend    `json:"trend,omitempty"`
}

type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	Width  float64 `json:"width"`
}

type ATR struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

type Stochastic struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

type ADX struct {
	Value    float64     `json:"value"`
	Strength ADXStrength `json:"strength"`
}

// latest indicator values; a nil field means its window was not met
type Snapshot struct {
	RSI            *RSI            `json:"rsi,omitempty"`
	MACD           *MACD           `json:"macd,omitempty"`
	MovingAverages *MovingAverages `json:"moving_averages,omitempty"`
	Bollinger      *Bollinger      `json:"bollinger_bands,omitempty"`
	ATR            *ATR            `json:"atr,omitempty"`
	Stochastic     *Stochastic     `json:"stochastic,omitempty"`
	ADX            *ADX            `json:"adx,omitempty"`
	OBV            *float64        `json:"obv,omitempty"`
	ADI            *float64        `json:"adi,omitempty"`
	VolumeRatio    *float64        `json:"volume_ratio,omitempty"`
}

// full technical picture of one symbol at its latest bar
type Analysis struct {
	CurrentPrice      float64            `json:"current_price"`
	Bars              int                `json:"bars"`
	Indicators        Snapshot           `json:"indicators"`
	Patterns          PatternFlags       `json:"patterns"`
	SupportResistance []float64          `json:"support_resistance,omitempty"`
	Fibonacci         map[string]float64 `json:"fibonacci,omitempty"`
}

// computes indicators, levels and candle patterns from price bars
type Engine struct {
	SupportResistanceWindow int
	LevelTolerance          float64 // fraction of a level inside which a new level is a duplicate
}

// creates an engine with a 20 bar support/resistance window and 2% dedup
func NewEngine() *Engine {
	return &Engine{
		SupportResistanceWindow: defaultSRWindow,
		LevelTolerance:          defaultTolerance,
	}
}

// Analyze returns nil when bars is empty. Indicators whose window is longer
// than the series are left nil rather than reported as an error.
func (e *Engine) Analyze(bars []types.PriceBar) *Analysis {
	if len(bars) == 0 {
		return nil
	}

	n := len(bars)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, bar := range bars {
		opens[i] = bar.Open
		highs[i] = bar.High
		lows[i] = bar.Low
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	current := closes[n-1]
	analysis := &Analysis{
		CurrentPrice: current,
		Bars:         n,
		Patterns:     DetectPatterns(bars),
	}

	snap := &analysis.Indicators
	snap.RSI = calcRSI(closes)
	snap.MACD = calcMACD(closes)
	snap.MovingAverages = calcMovingAverages(closes)
	snap.Bollinger = calcBollinger(closes)
	snap.ATR = calcATR(highs, lows, closes, current)
	snap.Stochastic = calcStochastic(highs, lows, closes)
	snap.ADX = calcADX(highs, lows, closes)
	snap.OBV = lastValid(talib.Obv(closes, volumes))
	snap.ADI = lastValid(talib.Ad(highs, lows, closes, volumes))
	snap.VolumeRatio = volumeRatio(volumes)

	analysis.SupportResistance = SupportResistance(bars, e.SupportResistanceWindow, e.LevelTolerance)
	analysis.Fibonacci = FibonacciLevels(highs, lows)

	return analysis
}

// step function with boundaries at 30 and 70
func ClassifyRSI(value float64) RSISignal {
	if value < 30 {
		return Oversold
	}
	if value > 70 {
		return Overbought
	}
	return Neutral
}

func ClassifyTrend(sma20, sma50, sma200 float64) Trend {
	switch {
	case sma20 > sma50 && sma50 > sma200:
		return StrongUptrend
	case sma20 > sma50 && sma50 < sma200:
		return WeakUptrend
	case sma20 < sma50 && sma50 < sma200:
		return StrongDowntrend
	case sma20 < sma50 && sma50 > sma200:
		return WeakDowntrend
	}
	return Sideways
}

func ClassifyADX(value float64) ADXStrength {
	switch {
	case value >= 50:
		return VeryStrongTrend
	case value >= 25:
		return StrongTrend
	case value >= 20:
		return ModerateTrend
	}
	return WeakTrend
}

func calcRSI(closes []float64) *RSI {
	if len(closes) < rsiPeriod+1 {
		return nil
	}
	// no movement over the window reads as neutral, not oversold
	if flatWindow(closes[len(closes)-rsiPeriod-1:]) {
		return &RSI{Value: rsiNeutral, Signal: ClassifyRSI(rsiNeutral)}
	}
	v := lastValid(talib.Rsi(closes, rsiPeriod))
	if v == nil {
		return nil
	}
	value := math.Max(0, math.Min(100, *v))
	return &RSI{Value: value, Signal: ClassifyRSI(value)}
}

func flatWindow(closes []float64) bool {
	for i := 1; i < len(closes); i++ {
		if closes[i] != closes[i-1] {
			return false
		}
	}
	return true
}

func calcMACD(closes []float64) *MACD {
	if len(closes) < macdSlow+macdSignal {
		return nil
	}
	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	m, s, h := lastValid(macd), lastValid(signal), lastValid(hist)
	if m == nil || s == nil || h == nil {
		return nil
	}
	prev := hist[len(hist)-2]
	if math.IsNaN(prev) {
		prev = 0
	}
	return &MACD{MACD: *m, Signal: *s, Histogram: *h, PrevHistogram: prev}
}

func calcMovingAverages(closes []float64) *MovingAverages {
	ma := &MovingAverages{
		SMA20:  smaLast(closes, 20),
		SMA50:  smaLast(closes, 50),
		SMA200: smaLast(closes, 200),
		EMA12:  emaLast(closes, 12),
		EMA26:  emaLast(closes, 26),
	}
	if ma.SMA20 == nil && ma.EMA12 == nil {
		return nil
	}
	if ma.SMA20 != nil && ma.SMA50 != nil && ma.SMA200 != nil {
		ma.Trend = ClassifyTrend(*ma.SMA20, *ma.SMA50, *ma.SMA200)
	}
	return ma
}

func calcBollinger(closes []float64) *Bollinger {
	if len(closes) < bollingerPeriod {
		return nil
	}
	upper, middle, lower := talib.BBands(closes, bollingerPeriod, bollingerDev, bollingerDev, talib.SMA)
	u, m, l := lastValid(upper), lastValid(middle), lastValid(lower)
	if u == nil || m == nil || l == nil {
		return nil
	}
	bb := &Bollinger{Upper: *u, Middle: *m, Lower: *l}
	if *m != 0 {
		bb.Width = (*u - *l) / *m
	}
	return bb
}

func calcATR(highs, lows, closes []float64, current float64) *ATR {
	if len(closes) < atrPeriod+1 {
		return nil
	}
	v := lastValid(talib.Atr(highs, lows, closes, atrPeriod))
	if v == nil {
		return nil
	}
	atr := &ATR{Value: *v}
	if current != 0 {
		atr.Percent = *v / current * 100
	}
	return atr
}

func calcStochastic(highs, lows, closes []float64) *Stochastic {
	if len(closes) < stochKPeriod+stochDPeriod-1 {
		return nil
	}
	k, d := talib.StochF(highs, lows, closes, stochKPeriod, stochDPeriod, talib.SMA)
	kv, dv := lastValid(k), lastValid(d)
	if kv == nil || dv == nil {
		return nil
	}
	return &Stochastic{K: *kv, D: *dv}
}

func calcADX(highs, lows, closes []float64) *ADX {
	if len(closes) < 2*adxPeriod {
		return nil
	}
	v := lastValid(talib.Adx(highs, lows, closes, adxPeriod))
	if v == nil {
		return nil
	}
	return &ADX{Value: *v, Strength: ClassifyADX(*v)}
}

// current volume relative to the mean of the preceding 20 bars
func volumeRatio(volumes []float64) *float64 {
	n := len(volumes)
	if n < volumeAvgPeriod+1 {
		return nil
	}
	avg := stat.Mean(volumes[n-1-volumeAvgPeriod:n-1], nil)
	if avg == 0 {
		return nil
	}
	ratio := volumes[n-1] / avg
	return &ratio
}

func smaLast(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	return lastValid(talib.Sma(closes, period))
}

func emaLast(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	return lastValid(talib.Ema(closes, period))
}

func lastValid(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
