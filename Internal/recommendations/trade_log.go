package recommendations

import (
	"context"
	"sync"
	"time"

	"github.com/fazecat/smarttrader/Internal/types"
)

// append-only record of executed trades
type TradeLog interface {
	Append(ctx context.Context, trade types.ExecutedTrade) error
	// trades with start <= timestamp <= end; a nil bound is open
	Range(ctx context.Context, start, end *time.Time) ([]types.ExecutedTrade, error)
}

type MemoryTradeLog struct {
	mu     sync.RWMutex
	trades []types.ExecutedTrade
}

func NewMemoryTradeLog() *MemoryTradeLog {
	return &MemoryTradeLog{}
}

func (m *MemoryTradeLog) Append(ctx context.Context, trade types.ExecutedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
	return nil
}

func (m *MemoryTradeLog) Range(ctx context.Context, start, end *time.Time) ([]types.ExecutedTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ExecutedTrade, 0, len(m.trades))
	for _, t := range m.trades {
		if InRange(t.Timestamp, start, end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// inclusive on both ends
func InRange(ts time.Time, start, end *time.Time) bool {
	if start != nil && ts.Before(*start) {
		return false
	}
	if end != nil && ts.After(*end) {
		return false
	}
	return true
}
