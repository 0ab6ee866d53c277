package types

import "time"

type PriceBar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

type Strength string

const (
	Weak   Strength = "weak"
	Medium Strength = "medium"
	Strong Strength = "strong"
)

// numeric weight used when summing signals
func (s Strength) Weight() int {
	switch s {
	case Weak:
		return 1
	case Medium:
		return 2
	case Strong:
		return 3
	}
	return 0
}

type Signal struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"type"`
	Reason    string    `json:"reason"`
	Strength  Strength  `json:"strength"`
}

// sums strength weights across signals
func TotalStrength(signals []Signal) int {
	total := 0
	for _, s := range signals {
		total += s.Strength.Weight()
	}
	return total
}

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

type RecommendationType string

const (
	Entry RecommendationType = "ENTRY"
	Exit  RecommendationType = "EXIT"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type Recommendation struct {
	ID        string             `json:"id"`
	Symbol    string             `json:"symbol"`
	Action    Action             `json:"action"`
	Type      RecommendationType `json:"type"`
	Quantity  int64              `json:"quantity"`
	Priority  int                `json:"priority"`
	Reasons   []string           `json:"reasons"`
	RiskLevel RiskLevel          `json:"risk_level"`
	StopLoss  *float64           `json:"stop_loss,omitempty"`
	Target    *float64           `json:"target,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type ExecutedTrade struct {
	RecommendationID string    `json:"recommendation_id"`
	OrderID          string    `json:"order_id"`
	Symbol           string    `json:"symbol"`
	Action           Action    `json:"action"`
	Quantity         int64     `json:"quantity"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
}

type RiskParameters struct {
	SuggestedQuantity int64     `json:"suggested_quantity"`
	StopLoss          float64   `json:"stop_loss"`
	Target            float64   `json:"target"`
	RiskLevel         RiskLevel `json:"risk_level"`
}

// snapshot of a holding owned by the execution provider
type Position struct {
	Symbol       string   `json:"symbol"`
	Quantity     int64    `json:"quantity"`
	CurrentPrice float64  `json:"current_price"`
	StopLoss     *float64 `json:"stop_loss,omitempty"`
}

// named fundamental ratios (market_cap, pe_ratio, profit_margins, ...)
type FundamentalMetrics map[string]float64

const (
	MetricMarketCap        = "market_cap"
	MetricPERatio          = "pe_ratio"
	MetricForwardPE        = "forward_pe"
	MetricPriceToBook      = "price_to_book"
	MetricRevenueGrowth    = "revenue_growth"
	MetricProfitMargins    = "profit_margins"
	MetricOperatingMargins = "operating_margins"
	MetricDividendYield    = "dividend_yield"
	MetricDebtToEquity     = "debt_to_equity"
	MetricCurrentRatio     = "current_ratio"
	MetricEarningsGrowth   = "earnings_growth"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Quantity   int64     `json:"quantity"`
	OrderType  OrderType `json:"order_type"`
	Side       Action    `json:"transaction_type"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	Target     *float64  `json:"target,omitempty"`
	LimitPrice *float64  `json:"limit_price,omitempty"`
}

type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
