package risk

import (
	"math"

	"github.com/fazecat/smarttrader/Internal/types"
)

// fallback stop distance when no ATR is available
const fallbackStopPercent = 0.05

// Portfolio-level risk limits, all enforced together
type Config struct {
	MaxPositionSize      float64 `yaml:"max_position_size"`      // currency cap on any single trade
	MaxLossPercent       float64 `yaml:"max_loss_percent"`       // fraction of portfolio risked per trade
	MaxPortfolioRisk     float64 `yaml:"max_portfolio_risk"`     // fraction of portfolio at risk in aggregate
	PositionSizingFactor float64 `yaml:"position_sizing_factor"` // minimum stop distance as a fraction of price
}

func DefaultConfig() Config {
	return Config{
		MaxPositionSize:      100000,
		MaxLossPercent:       0.02,
		MaxPortfolioRisk:     0.05,
		PositionSizingFactor: 0.01,
	}
}

// converts a price and stop into a bounded share count; no I/O
type Sizer struct {
	cfg Config
}

// creates a sizer; zero-valued limits fall back to the defaults
func NewSizer(cfg Config) *Sizer {
	def := DefaultConfig()
	if cfg.MaxPositionSize <= 0 {
		cfg.MaxPositionSize = def.MaxPositionSize
	}
	if cfg.MaxLossPercent <= 0 {
		cfg.MaxLossPercent = def.MaxLossPercent
	}
	if cfg.MaxPortfolioRisk <= 0 {
		cfg.MaxPortfolioRisk = def.MaxPortfolioRisk
	}
	if cfg.PositionSizingFactor <= 0 {
		cfg.PositionSizingFactor = def.PositionSizingFactor
	}
	return &Sizer{cfg: cfg}
}

func (s *Sizer) Config() Config {
	return s.cfg
}

// ============================================================================
// POSITION SIZING & VALIDATION
// ============================================================================

// PositionSize takes the smallest of the per-trade loss bound, the absolute
// position cap and the portfolio risk cap, floored to whole shares. Returns 0
// when price equals the stop.
func (s *Sizer) PositionSize(price, stopLoss, portfolioValue float64) int64 {
	if price <= 0 || stopLoss <= 0 || portfolioValue <= 0 {
		return 0
	}
	riskPerShare := math.Abs(price - stopLoss)
	if riskPerShare == 0 {
		return 0
	}

	byLoss := portfolioValue * s.cfg.MaxLossPercent / riskPerShare
	byCap := s.cfg.MaxPositionSize / price
	byPortfolio := portfolioValue * s.cfg.MaxPortfolioRisk / price

	shares := math.Floor(math.Min(byLoss, math.Min(byCap, byPortfolio)))
	if shares < 0 {
		return 0
	}
	return int64(shares)
}

// Validate reports whether a trade passes every limit, with the first failing
// reason otherwise.
func (s *Sizer) Validate(price float64, quantity int64, stopLoss, portfolioValue float64, existing []types.Position) (bool, string) {
	if price <= 0 || quantity <= 0 || stopLoss <= 0 || portfolioValue <= 0 {
		return false, "Missing required parameters"
	}

	positionValue := price * float64(quantity)
	if positionValue > s.cfg.MaxPositionSize {
		return false, "Position size exceeds maximum limit"
	}

	riskPercent := math.Abs(price-stopLoss) * float64(quantity) / portfolioValue
	if riskPercent > s.cfg.MaxLossPercent {
		return false, "Trade risk exceeds maximum allowed loss percentage"
	}

	if len(existing) > 0 {
		if s.PortfolioRisk(existing, portfolioValue)+riskPercent > s.cfg.MaxPortfolioRisk {
			return false, "Total portfolio risk would exceed maximum limit"
		}
	}

	return true, "Trade meets risk management criteria"
}

// fraction of the portfolio at risk across positions carrying a stop
func (s *Sizer) PortfolioRisk(positions []types.Position, portfolioValue float64) float64 {
	if portfolioValue <= 0 {
		return 0
	}
	total := 0.0
	for _, p := range positions {
		if p.StopLoss == nil {
			continue
		}
		total += math.Abs(p.CurrentPrice-*p.StopLoss) * float64(p.Quantity)
	}
	return total / portfolioValue
}

func RiskRewardRatio(entry, stopLoss, target float64) float64 {
	risk := math.Abs(entry - stopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// ============================================================================
// RISK PARAMETERS
// ============================================================================

// Parameters derives a long entry's stop, target, size and risk level. The
// stop sits two ATRs below price (5% without ATR) and never closer than the
// sizing factor; the target is twice the stop distance above price.
func (s *Sizer) Parameters(price float64, atr *float64, portfolioValue float64, existing []types.Position) types.RiskParameters {
	if price <= 0 {
		return types.RiskParameters{RiskLevel: types.RiskHigh}
	}

	stop := price * (1 - fallbackStopPercent)
	if atr != nil && *atr > 0 {
		if atrStop := price - 2*(*atr); atrStop > 0 {
			stop = atrStop
		}
	}
	if minDist := price * s.cfg.PositionSizingFactor; price-stop < minDist {
		stop = price - minDist
	}

	params := types.RiskParameters{
		StopLoss:          stop,
		Target:            price + 2*(price-stop),
		SuggestedQuantity: s.PositionSize(price, stop, portfolioValue),
		RiskLevel:         types.RiskLow,
	}

	switch {
	case params.SuggestedQuantity <= 0:
		params.RiskLevel = types.RiskHigh
		return params
	case atr == nil:
		params.RiskLevel = types.RiskMedium
	default:
		atrPercent := *atr / price * 100
		if atrPercent > 5 {
			params.RiskLevel = types.RiskHigh
		} else if atrPercent > 2.5 {
			params.RiskLevel = types.RiskMedium
		}
	}

	if ok, _ := s.Validate(price, params.SuggestedQuantity, stop, portfolioValue, existing); !ok {
		params.RiskLevel = types.RiskHigh
	}
	return params
}
