// Package portstest provides in-memory provider fakes for tests.
package portstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
)

type Market struct {
	mu     sync.Mutex
	Bars   map[string][]types.PriceBar
	Prices map[string]float64
	Errs   map[string]error
	Calls  int
}

func NewMarket() *Market {
	return &Market{
		Bars:   map[string][]types.PriceBar{},
		Prices: map[string]float64{},
		Errs:   map[string]error{},
	}
}

func (m *Market) PriceHistory(ctx context.Context, symbol, period, interval string) ([]types.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := m.Errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := m.Bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ports.ErrDataUnavailable)
	}
	return bars, nil
}

func (m *Market) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Errs[symbol]; err != nil {
		return 0, err
	}
	if p, ok := m.Prices[symbol]; ok {
		return p, nil
	}
	if bars := m.Bars[symbol]; len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return 0, fmt.Errorf("%s: %w", symbol, ports.ErrDataUnavailable)
}

type Sentiment struct {
	Scores map[string]float64
	Err    error
}

func (s *Sentiment) Sentiment(ctx context.Context, symbol string) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Scores[symbol], nil
}

type Fundamentals struct {
	BySymbol map[string]types.FundamentalMetrics
	Err      error
}

func (f *Fundamentals) Metrics(ctx context.Context, symbol string) (types.FundamentalMetrics, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.BySymbol[symbol], nil
}

// Broker records every order and serves canned positions
type Broker struct {
	mu        sync.Mutex
	Orders    []types.OrderRequest
	Cancelled []string
	Held      []types.Position
	Value     float64
	Err       error
	next      int
}

func (b *Broker) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return types.OrderResult{}, b.Err
	}
	b.next++
	b.Orders = append(b.Orders, req)
	return types.OrderResult{OrderID: fmt.Sprintf("ORD-%d", b.next), Status: "accepted"}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return false, b.Err
	}
	b.Cancelled = append(b.Cancelled, orderID)
	return true, nil
}

func (b *Broker) Positions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	return append([]types.Position(nil), b.Held...), nil
}

func (b *Broker) PortfolioValue(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return 0, b.Err
	}
	return b.Value, nil
}

func (b *Broker) SetErr(err error) {
	b.mu.Lock()
	b.Err = err
	b.mu.Unlock()
}

func (b *Broker) OrderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Orders)
}
