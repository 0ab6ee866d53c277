package newsscraping

import (
	"math"
	"strings"
)

type SentimentLabel string

const (
	Positive SentimentLabel = "positive"
	Negative SentimentLabel = "negative"
	Neutral  SentimentLabel = "neutral"
)

// Lexicon scores text by averaging the weights of the market words it contains.
type Lexicon struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		positiveWords: map[string]float64{
			// strong
			"surge": 1.0, "soar": 1.0, "soars": 1.0, "skyrocket": 1.0, "breakthrough": 1.0,
			"bullish": 0.95, "rally": 0.95, "rallies": 0.95, "boom": 0.95,
			"record": 0.9, "outperform": 0.9, "breakout": 0.9,

			// moderate
			"beat": 0.85, "beats": 0.85, "exceed": 0.85, "exceeds": 0.85, "upgrade": 0.85, "upgraded": 0.85,
			"profit": 0.8, "growth": 0.8, "gain": 0.8, "gains": 0.8, "jump": 0.8, "jumps": 0.8,
			"strong": 0.8, "boost": 0.8, "win": 0.8, "wins": 0.8,
			"improve": 0.75, "rising": 0.75, "climb": 0.75, "climbs": 0.75,
			"expansion": 0.75, "momentum": 0.75, "upside": 0.75,
			"recover": 0.7, "rebound": 0.7, "rebounds": 0.7, "strength": 0.7,

			// mild
			"positive": 0.65, "rise": 0.65, "rises": 0.65, "higher": 0.65, "increase": 0.65,
			"better": 0.65, "good": 0.65, "solid": 0.65, "confident": 0.65,
			"opportunity": 0.6, "promising": 0.6, "attractive": 0.6,
			"resilient": 0.6, "steady": 0.6, "buyback": 0.6, "dividend": 0.55,
			"healthy": 0.55, "innovative": 0.55, "leader": 0.55,
			"robust": 0.5, "stable": 0.5,
		},
		negativeWords: map[string]float64{
			// strong
			"crash": 1.0, "plunge": 1.0, "plunges": 1.0, "collapse": 1.0,
			"disaster": 1.0, "crisis": 0.95, "bankruptcy": 0.95, "fraud": 0.95,
			"plummet": 0.95, "tumble": 0.95, "tumbles": 0.95, "rout": 0.95,
			"panic": 0.9, "worst": 0.9,

			// moderate
			"bearish": 0.85, "downgrade": 0.85, "downgraded": 0.85, "warning": 0.85,
			"lawsuit": 0.85, "lawsuits": 0.85, "probe": 0.85, "scrutiny": 0.85,
			"miss": 0.8, "misses": 0.8, "loss": 0.8, "losses": 0.8, "slump": 0.8,
			"decline": 0.8, "declines": 0.8, "underperform": 0.8, "fail": 0.8,
			"struggle": 0.75, "struggles": 0.75, "weak": 0.75, "weakness": 0.75,
			"drop": 0.75, "drops": 0.75, "fall": 0.75, "falls": 0.75, "falling": 0.75,
			"concern": 0.7, "concerns": 0.7, "worries": 0.7, "disappoint": 0.7,
			"disappoints": 0.7, "layoffs": 0.7, "recall": 0.7,

			// mild
			"risk": 0.65, "risks": 0.65, "threat": 0.65, "volatile": 0.65,
			"uncertainty": 0.65, "doubt": 0.65,
			"pressure": 0.6, "hurt": 0.6, "lower": 0.6, "disappointing": 0.6,
			"negative": 0.6, "poor": 0.6, "slowdown": 0.6,
			"dip": 0.55, "slip": 0.55, "slips": 0.55, "cautious": 0.55, "downside": 0.55,
			"correction": 0.5, "pullback": 0.5, "cut": 0.5, "cuts": 0.5, "headwind": 0.5, "headwinds": 0.5,
		},
	}
}

// Score returns the polarity of text in [-1, 1] and its label. Text without
// any lexicon words scores 0.
func (l *Lexicon) Score(text string) (float64, SentimentLabel) {
	var score float64
	var matches int

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?\"'()[]{}:;")

		if val, ok := l.positiveWords[word]; ok {
			score += val
			matches++
		} else if val, ok := l.negativeWords[word]; ok {
			score -= val
			matches++
		}
	}

	if matches > 0 {
		score /= float64(matches)
	}
	return score, Label(score)
}

func Label(score float64) SentimentLabel {
	switch {
	case score > 0.1:
		return Positive
	case score < -0.1:
		return Negative
	}
	return Neutral
}

func Clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
