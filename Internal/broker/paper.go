package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

const DefaultStartingCash = 100000.0

type paperOrder struct {
	req    types.OrderRequest
	status string
}

// PaperBroker fills every order immediately at the current market price
// against an in-memory cash balance.
type PaperBroker struct {
	mu        sync.Mutex
	market    ports.MarketDataProvider
	cash      float64
	positions map[string]*types.Position
	orders    map[string]*paperOrder
	log       zerolog.Logger
}

func NewPaperBroker(cfg PaperConfig, market ports.MarketDataProvider, log zerolog.Logger) *PaperBroker {
	cash := cfg.StartingCash
	if cash <= 0 {
		cash = DefaultStartingCash
	}
	return &PaperBroker{
		market:    market,
		cash:      cash,
		positions: make(map[string]*types.Position),
		orders:    make(map[string]*paperOrder),
		log:       log.With().Str("broker", "paper").Logger(),
	}
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	if err := ValidateOrder(req); err != nil {
		return types.OrderResult{}, err
	}

	price, err := b.fillPrice(ctx, req)
	if err != nil {
		return types.OrderResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cost := price * float64(req.Quantity)
	pos := b.positions[req.Symbol]
	switch req.Side {
	case types.ActionBuy:
		if cost > b.cash {
			return types.OrderResult{}, fmt.Errorf("cost %.2f exceeds cash %.2f: %w", cost, b.cash, ports.ErrValidationFailure)
		}
		b.cash -= cost
		if pos == nil {
			pos = &types.Position{Symbol: req.Symbol}
			b.positions[req.Symbol] = pos
		}
		pos.Quantity += req.Quantity
		pos.CurrentPrice = price
		if req.StopLoss != nil {
			stop := *req.StopLoss
			pos.StopLoss = &stop
		}
	case types.ActionSell:
		if pos == nil || pos.Quantity < req.Quantity {
			return types.OrderResult{}, fmt.Errorf("cannot sell %d %s, not held: %w", req.Quantity, req.Symbol, ports.ErrValidationFailure)
		}
		b.cash += cost
		pos.Quantity -= req.Quantity
		pos.CurrentPrice = price
		if pos.Quantity == 0 {
			delete(b.positions, req.Symbol)
		}
	}

	id := uuid.NewString()
	b.orders[id] = &paperOrder{req: req, status: "filled"}
	b.log.Info().
		Str("order_id", id).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int64("quantity", req.Quantity).
		Float64("price", price).
		Float64("cash", b.cash).
		Msg("paper order filled")
	return types.OrderResult{OrderID: id, Status: "filled"}, nil
}

func (b *PaperBroker) fillPrice(ctx context.Context, req types.OrderRequest) (float64, error) {
	if req.OrderType == types.Limit {
		return *req.LimitPrice, nil
	}
	price, err := b.market.CurrentPrice(ctx, req.Symbol)
	if err != nil {
		return 0, fmt.Errorf("pricing %s: %w", req.Symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("no price for %s: %w", req.Symbol, ports.ErrDataUnavailable)
	}
	return price, nil
}

// filled orders cannot be cancelled and report false
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", orderID, ports.ErrNotFound)
	}
	if order.status == "filled" {
		return false, nil
	}
	order.status = "cancelled"
	return true, nil
}

func (b *PaperBroker) Positions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	out := make([]types.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	b.mu.Unlock()

	for i := range out {
		if price, err := b.market.CurrentPrice(ctx, out[i].Symbol); err == nil && price > 0 {
			out[i].CurrentPrice = price
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// cash plus positions marked at the latest price
func (b *PaperBroker) PortfolioValue(ctx context.Context) (float64, error) {
	positions, err := b.Positions(ctx)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	total := b.cash
	b.mu.Unlock()
	for _, p := range positions {
		total += float64(p.Quantity) * p.CurrentPrice
	}
	return total, nil
}

func (b *PaperBroker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}
