package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlineLimit = 1500
	quoteAsset    = "USDT"
)

// BinanceClient trades USDT-margined futures and serves their klines as
// price history. Order ids are returned as SYMBOL:ID since cancels need both.
type BinanceClient struct {
	futuresClient *futures.Client
	log           zerolog.Logger
}

func NewBinanceClient(cfg BinanceConfig, log zerolog.Logger) (*BinanceClient, error) {
	log = log.With().Str("broker", "binance").Logger()
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		log.Warn().Msg("APIKey or SecretKey is empty, only public endpoints will work")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	log.Info().Str("base_url", client.BaseURL).Msg("binance client configured")

	return &BinanceClient{futuresClient: client, log: log}, nil
}

// ============================================================================
// ORDER EXECUTION
// ============================================================================

func (c *BinanceClient) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	if err := ValidateOrder(req); err != nil {
		return types.OrderResult{}, err
	}

	side := BinanceSide(req.Side)
	qty := strconv.FormatInt(req.Quantity, 10)

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(qty)
	if req.OrderType == types.Limit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(*req.LimitPrice))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return types.OrderResult{}, c.handleError(err, "PlaceOrder")
	}

	exitSide := futures.SideTypeSell
	if side == futures.SideTypeSell {
		exitSide = futures.SideTypeBuy
	}
	if req.StopLoss != nil && *req.StopLoss > 0 {
		c.placeProtective(ctx, req.Symbol, exitSide, futures.OrderTypeStopMarket, *req.StopLoss)
	}
	if req.Target != nil && *req.Target > 0 {
		c.placeProtective(ctx, req.Symbol, exitSide, futures.OrderTypeTakeProfitMarket, *req.Target)
	}

	c.log.Info().
		Str("symbol", req.Symbol).
		Str("side", string(side)).
		Str("quantity", qty).
		Int64("order_id", order.OrderID).
		Msg("order placed")
	return types.OrderResult{
		OrderID: FormatOrderID(req.Symbol, order.OrderID),
		Status:  string(order.Status),
	}, nil
}

// a failed stop or take-profit leaves the filled entry in place; it is logged
func (c *BinanceClient) placeProtective(ctx context.Context, symbol string, side futures.SideType, orderType futures.OrderType, stopPrice float64) {
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(orderType).
		StopPrice(formatPrice(stopPrice)).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		c.log.Error().Err(c.handleError(err, "PlaceProtectiveOrder")).
			Str("symbol", symbol).
			Str("type", string(orderType)).
			Msg("protective order rejected")
	}
}

func (c *BinanceClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	symbol, id, err := ParseOrderID(orderID)
	if err != nil {
		return false, err
	}
	res, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return false, c.handleError(err, "CancelOrder")
	}
	c.log.Info().Str("order_id", orderID).Str("status", string(res.Status)).Msg("order cancelled")
	return true, nil
}

func (c *BinanceClient) Positions(ctx context.Context) ([]types.Position, error) {
	risks, err := c.futuresClient.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(err, "GetPositionRisk")
	}

	out := make([]types.Position, 0, len(risks))
	for _, r := range risks {
		if pos, ok := translatePositionRisk(r); ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (c *BinanceClient) PortfolioValue(ctx context.Context) (float64, error) {
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(err, "GetAccount")
	}
	for _, asset := range account.Assets {
		if asset.Asset == quoteAsset {
			balance, err := strconv.ParseFloat(asset.WalletBalance, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing wallet balance %q: %w", asset.WalletBalance, ports.ErrProviderFailure)
			}
			return balance, nil
		}
	}
	return 0, fmt.Errorf("no %s balance: %w", quoteAsset, ports.ErrDataUnavailable)
}

// ============================================================================
// MARKET DATA
// ============================================================================

func (c *BinanceClient) PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error) {
	binanceInterval, step, err := BinanceInterval(interval)
	if err != nil {
		return nil, err
	}
	limit := KlineLimit(period, step)

	klines, err := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(binanceInterval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(err, "GetKlines")
	}

	bars := make([]types.PriceBar, 0, len(klines))
	for _, k := range klines {
		bar, err := translateKline(k)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed kline")
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s klines: %w", symbol, ports.ErrDataUnavailable)
	}
	return bars, nil
}

func (c *BinanceClient) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(err, "GetTickerPrice")
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("%s ticker: %w", symbol, ports.ErrDataUnavailable)
	}
	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing last price %q: %w", tickers[0].LastPrice, ports.ErrProviderFailure)
	}
	return price, nil
}

// handleError maps Binance API codes onto the port error taxonomy
func (c *BinanceClient) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		var mapped error
		switch apiErr.Code {
		case -1121, -4044:
			mapped = ports.ErrDataUnavailable
		case -2013, -2011:
			mapped = ports.ErrNotFound
		case -1022, -2014, -2015:
			mapped = ports.ErrConfiguration
		case -1102, -1106, -1111, -1116, -2019, -4003, -4014:
			mapped = ports.ErrValidationFailure
		default:
			mapped = ports.ErrProviderFailure
		}
		c.log.Error().
			Int64("code", apiErr.Code).
			Str("message", apiErr.Message).
			Str("operation", operation).
			Msg("binance api error")
		return fmt.Errorf("%s failed: %w: %w", operation, mapped, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrProviderFailure, err)
}

// --- Translation Helpers ---

func BinanceSide(a types.Action) futures.SideType {
	if a == types.ActionSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func FormatOrderID(symbol string, id int64) string {
	return symbol + ":" + strconv.FormatInt(id, 10)
}

func ParseOrderID(orderID string) (string, int64, error) {
	symbol, raw, ok := strings.Cut(orderID, ":")
	if !ok || symbol == "" {
		return "", 0, fmt.Errorf("order id %q is not SYMBOL:ID: %w", orderID, ports.ErrValidationFailure)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("order id %q: %w", orderID, ports.ErrValidationFailure)
	}
	return symbol, id, nil
}

// maps yfinance style intervals onto Binance intervals and their length
func BinanceInterval(interval string) (string, time.Duration, error) {
	switch interval {
	case "1m":
		return "1m", time.Minute, nil
	case "5m":
		return "5m", 5 * time.Minute, nil
	case "15m":
		return "15m", 15 * time.Minute, nil
	case "30m":
		return "30m", 30 * time.Minute, nil
	case "1h", "60m":
		return "1h", time.Hour, nil
	case "4h":
		return "4h", 4 * time.Hour, nil
	case "1d", "":
		return "1d", 24 * time.Hour, nil
	case "1wk":
		return "1w", 7 * 24 * time.Hour, nil
	case "1mo":
		return "1M", 30 * 24 * time.Hour, nil
	}
	return "", 0, fmt.Errorf("unsupported interval %q: %w", interval, ports.ErrConfiguration)
}

// number of klines covering period, capped at the API maximum
func KlineLimit(period string, step time.Duration) int {
	const day = 24 * time.Hour
	lookback := map[string]time.Duration{
		"1d": day, "5d": 5 * day, "1mo": 30 * day, "3mo": 91 * day,
		"6mo": 182 * day, "1y": 365 * day, "2y": 730 * day, "5y": 1826 * day,
	}[period]
	if lookback == 0 {
		lookback = 365 * day
	}
	n := int(lookback / step)
	if n < 1 {
		n = 1
	}
	if n > maxKlineLimit {
		n = maxKlineLimit
	}
	return n
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func translateKline(k *futures.Kline) (types.PriceBar, error) {
	if k == nil {
		return types.PriceBar{}, errors.New("received nil kline")
	}
	var bar types.PriceBar
	var err error
	if bar.Open, err = parseField("open", k.Open); err != nil {
		return types.PriceBar{}, err
	}
	if bar.High, err = parseField("high", k.High); err != nil {
		return types.PriceBar{}, err
	}
	if bar.Low, err = parseField("low", k.Low); err != nil {
		return types.PriceBar{}, err
	}
	if bar.Close, err = parseField("close", k.Close); err != nil {
		return types.PriceBar{}, err
	}
	if bar.Volume, err = parseField("volume", k.Volume); err != nil {
		return types.PriceBar{}, err
	}
	bar.Timestamp = time.UnixMilli(k.OpenTime).UTC()
	return bar, nil
}

func parseField(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", name, raw, err)
	}
	return v, nil
}

func translatePositionRisk(r *futures.PositionRisk) (types.Position, bool) {
	if r == nil {
		return types.Position{}, false
	}
	amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
	if amt == 0 {
		return types.Position{}, false
	}
	mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
	return types.Position{
		Symbol:       r.Symbol,
		Quantity:     int64(amt),
		CurrentPrice: mark,
	}, true
}
