package ports

import (
	"context"

	"github.com/fazecat/smarttrader/Internal/types"
)

// MarketDataProvider supplies ascending price history and quotes.
type MarketDataProvider interface {
	// period like "1y" or "1d", interval like "1d" or "5m"
	PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SentimentProvider returns an aggregate polarity in [-1, 1].
type SentimentProvider interface {
	Sentiment(ctx context.Context, symbol string) (float64, error)
}

// FundamentalsProvider returns named fundamental ratios for a symbol.
type FundamentalsProvider interface {
	Metrics(ctx context.Context, symbol string) (types.FundamentalMetrics, error)
}

// OrderExecutionProvider routes orders to a brokerage and owns positions.
type OrderExecutionProvider interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	Positions(ctx context.Context) ([]types.Position, error)
	PortfolioValue(ctx context.Context) (float64, error)
}
