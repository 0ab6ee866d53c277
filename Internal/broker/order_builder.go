package broker

import (
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

// ValidateOrder checks the fields every broker needs before submission
func ValidateOrder(req types.OrderRequest) error {
	var issues []string
	if req.Symbol == "" {
		issues = append(issues, "symbol is required")
	}
	if req.Quantity <= 0 {
		issues = append(issues, "quantity must be > 0")
	}
	if req.Side != types.ActionBuy && req.Side != types.ActionSell {
		issues = append(issues, fmt.Sprintf("invalid side %q (must be BUY or SELL)", req.Side))
	}
	if req.OrderType == types.Limit && (req.LimitPrice == nil || *req.LimitPrice <= 0) {
		issues = append(issues, "limit order requires a positive limit price")
	}
	if req.OrderType != "" && req.OrderType != types.Market && req.OrderType != types.Limit {
		issues = append(issues, fmt.Sprintf("invalid order type %q", req.OrderType))
	}
	if len(issues) > 0 {
		return fmt.Errorf("%v: %w", issues, ports.ErrValidationFailure)
	}
	return nil
}

// This function converts an OrderRequest into an Alpaca PlaceOrderRequest.
// A stop and a target together make a bracket order.
func BuildPlaceOrderRequest(req types.OrderRequest) (alpaca.PlaceOrderRequest, error) {
	if err := ValidateOrder(req); err != nil {
		return alpaca.PlaceOrderRequest{}, err
	}

	side := alpaca.Buy
	if req.Side == types.ActionSell {
		side = alpaca.Sell
	}

	orderType := alpaca.Market
	if req.OrderType == types.Limit {
		orderType = alpaca.Limit
	}

	qty := decimal.NewFromInt(req.Quantity)
	placeOrderReq := alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        orderType,
		TimeInForce: alpaca.Day,
	}

	if req.OrderType == types.Limit {
		limitPrice := decimal.NewFromFloat(*req.LimitPrice)
		placeOrderReq.LimitPrice = &limitPrice
	}

	if req.StopLoss != nil && req.Target != nil && *req.StopLoss > 0 && *req.Target > 0 {
		stop := decimal.NewFromFloat(*req.StopLoss).Round(2)
		target := decimal.NewFromFloat(*req.Target).Round(2)
		placeOrderReq.OrderClass = alpaca.Bracket
		placeOrderReq.TimeInForce = alpaca.GTC
		placeOrderReq.StopLoss = &alpaca.StopLoss{StopPrice: &stop}
		placeOrderReq.TakeProfit = &alpaca.TakeProfit{LimitPrice: &target}
	}

	return placeOrderReq, nil
}
