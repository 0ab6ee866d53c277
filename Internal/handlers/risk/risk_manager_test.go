package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fazecat/smarttrader/Internal/types"
)

func TestPositionSize(t *testing.T) {
	s := NewSizer(DefaultConfig())

	tests := []struct {
		name           string
		price          float64
		stopLoss       float64
		portfolioValue float64
		want           int64
	}{
		{"zero risk per share", 100, 100, 100000, 0},
		{"portfolio risk cap binds", 100, 95, 100000, 50},
		{"absolute cap binds", 100, 95, 10000000, 1000},
		{"loss bound binds", 100, 50, 1000000, 400},
		{"stop above price uses distance", 100, 105, 100000, 50},
		{"floors fractional shares", 333, 330, 100000, 15},
		{"missing portfolio", 100, 95, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PositionSize(tt.price, tt.stopLoss, tt.portfolioValue))
		})
	}
}

func TestPositionSize_ZeroWheneverPriceEqualsStop(t *testing.T) {
	s := NewSizer(DefaultConfig())
	for _, price := range []float64{0.5, 1, 42.42, 100, 2500} {
		for _, pv := range []float64{1000, 100000, 5e7} {
			assert.Zero(t, s.PositionSize(price, price, pv))
		}
	}
}

func TestValidate(t *testing.T) {
	s := NewSizer(DefaultConfig())
	stop := 95.0

	tests := []struct {
		name     string
		price    float64
		quantity int64
		stopLoss float64
		pv       float64
		existing []types.Position
		wantOK   bool
		reason   string
	}{
		{"missing quantity", 100, 0, 95, 100000, nil, false, "Missing required parameters"},
		{"missing stop", 100, 10, 0, 100000, nil, false, "Missing required parameters"},
		{"over position cap", 100, 1001, 99.99, 10000000, nil, false, "Position size exceeds maximum limit"},
		{"over per-trade risk", 100, 300, 90, 100000, nil, false, "Trade risk exceeds maximum allowed loss percentage"},
		{"passes alone", 100, 300, 95, 100000, nil, true, "Trade meets risk management criteria"},
		{
			"aggregate risk exceeded",
			100, 300, 95, 100000,
			[]types.Position{{Symbol: "MSFT", Quantity: 800, CurrentPrice: 100, StopLoss: &stop}},
			false, "Total portfolio risk would exceed maximum limit",
		},
		{
			"positions without stops add no risk",
			100, 300, 95, 100000,
			[]types.Position{{Symbol: "MSFT", Quantity: 4000, CurrentPrice: 100}},
			true, "Trade meets risk management criteria",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := s.Validate(tt.price, tt.quantity, tt.stopLoss, tt.pv, tt.existing)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidate_MonotonicInQuantity(t *testing.T) {
	s := NewSizer(DefaultConfig())
	stop := 97.0
	existing := []types.Position{{Symbol: "AAA", Quantity: 500, CurrentPrice: 100, StopLoss: &stop}}

	for _, positions := range [][]types.Position{nil, existing} {
		failed := false
		for qty := int64(1); qty <= 3000; qty++ {
			ok, _ := s.Validate(100, qty, 96, 100000, positions)
			if failed {
				assert.False(t, ok, "quantity %d passed after a smaller quantity failed", qty)
			}
			if !ok {
				failed = true
			}
		}
		assert.True(t, failed)
	}
}

func TestRiskRewardRatio(t *testing.T) {
	assert.Equal(t, 2.0, RiskRewardRatio(100, 95, 110))
	assert.Equal(t, 2.0, RiskRewardRatio(100, 105, 90))
	assert.Equal(t, 0.0, RiskRewardRatio(100, 100, 110))
}

func TestPortfolioRisk(t *testing.T) {
	s := NewSizer(DefaultConfig())
	stop := 90.0
	positions := []types.Position{
		{Symbol: "A", Quantity: 100, CurrentPrice: 100, StopLoss: &stop},
		{Symbol: "B", Quantity: 100, CurrentPrice: 50},
	}
	assert.InDelta(t, 0.01, s.PortfolioRisk(positions, 100000), 1e-12)
	assert.Zero(t, s.PortfolioRisk(positions, 0))
}

func TestParameters(t *testing.T) {
	s := NewSizer(DefaultConfig())

	t.Run("low volatility", func(t *testing.T) {
		p := s.Parameters(100, types.Float(1.5), 100000, nil)
		assert.InDelta(t, 97, p.StopLoss, 1e-9)
		assert.InDelta(t, 106, p.Target, 1e-9)
		assert.Equal(t, int64(50), p.SuggestedQuantity)
		assert.Equal(t, types.RiskLow, p.RiskLevel)
	})

	t.Run("moderate volatility", func(t *testing.T) {
		p := s.Parameters(100, types.Float(3), 100000, nil)
		assert.Equal(t, types.RiskMedium, p.RiskLevel)
	})

	t.Run("high volatility", func(t *testing.T) {
		p := s.Parameters(100, types.Float(6), 100000, nil)
		assert.InDelta(t, 88, p.StopLoss, 1e-9)
		assert.Equal(t, types.RiskHigh, p.RiskLevel)
	})

	t.Run("no atr falls back", func(t *testing.T) {
		p := s.Parameters(100, nil, 100000, nil)
		assert.InDelta(t, 95, p.StopLoss, 1e-9)
		assert.InDelta(t, 110, p.Target, 1e-9)
		assert.Equal(t, types.RiskMedium, p.RiskLevel)
	})

	t.Run("tight atr is widened", func(t *testing.T) {
		p := s.Parameters(100, types.Float(0.1), 100000, nil)
		assert.InDelta(t, 99, p.StopLoss, 1e-9)
		assert.InDelta(t, 102, p.Target, 1e-9)
	})

	t.Run("portfolio too small", func(t *testing.T) {
		p := s.Parameters(100, types.Float(1.5), 100, nil)
		assert.Zero(t, p.SuggestedQuantity)
		assert.Equal(t, types.RiskHigh, p.RiskLevel)
	})

	t.Run("aggregate risk already used", func(t *testing.T) {
		stop := 50.0
		existing := []types.Position{{Symbol: "Z", Quantity: 100, CurrentPrice: 100, StopLoss: &stop}}
		p := s.Parameters(100, types.Float(1.5), 100000, existing)
		assert.Equal(t, types.RiskHigh, p.RiskLevel)
	})
}

func TestNewSizer_Defaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), NewSizer(Config{}).Config())
}
