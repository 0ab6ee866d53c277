package broker

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

const DefaultAlpacaPaperURL = "https://paper-api.alpaca.markets"

// subset of *alpaca.Client used for trading
type alpacaTradingAPI interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	GetPositions() ([]alpaca.Position, error)
	GetAccount() (*alpaca.Account, error)
}

// AlpacaBroker routes orders to an Alpaca brokerage account
type AlpacaBroker struct {
	client alpacaTradingAPI
	log    zerolog.Logger
}

func NewAlpacaBroker(cfg AlpacaConfig, log zerolog.Logger) (*AlpacaBroker, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca broker requires ALPACA_API_KEY and ALPACA_API_SECRET: %w", ports.ErrConfiguration)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAlpacaPaperURL
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   baseURL,
	})
	return newAlpacaBroker(client, log), nil
}

func newAlpacaBroker(client alpacaTradingAPI, log zerolog.Logger) *AlpacaBroker {
	return &AlpacaBroker{
		client: client,
		log:    log.With().Str("broker", "alpaca").Logger(),
	}
}

func (b *AlpacaBroker) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderResult{}, err
	}
	placeReq, err := BuildPlaceOrderRequest(req)
	if err != nil {
		return types.OrderResult{}, err
	}

	order, err := b.client.PlaceOrder(placeReq)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("alpaca place order: %w: %w", ports.ErrProviderFailure, err)
	}

	b.log.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int64("quantity", req.Quantity).
		Str("order_id", order.ID).
		Str("status", order.Status).
		Msg("order placed")
	return types.OrderResult{OrderID: order.ID, Status: order.Status}, nil
}

func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := b.client.CancelOrder(orderID); err != nil {
		return false, fmt.Errorf("alpaca cancel order %s: %w: %w", orderID, ports.ErrProviderFailure, err)
	}
	return true, nil
}

func (b *AlpacaBroker) Positions(ctx context.Context) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("alpaca positions: %w: %w", ports.ErrProviderFailure, err)
	}

	out := make([]types.Position, 0, len(positions))
	for _, p := range positions {
		pos := types.Position{
			Symbol:   p.Symbol,
			Quantity: p.Qty.IntPart(),
		}
		if p.CurrentPrice != nil {
			pos.CurrentPrice, _ = p.CurrentPrice.Float64()
		}
		out = append(out, pos)
	}
	return out, nil
}

func (b *AlpacaBroker) PortfolioValue(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	account, err := b.client.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("alpaca account: %w: %w", ports.ErrProviderFailure, err)
	}
	equity, _ := account.Equity.Float64()
	return equity, nil
}
