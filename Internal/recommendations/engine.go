package recommendations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/types"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
)

const (
	// recommendations older than this are no longer actionable
	DefaultTTL = time.Hour

	minScore        = 2
	strongExitScore = 4

	StatusExecuted = "EXECUTED"
)

// derives stop, target, size and risk for a prospective entry
type Sizer interface {
	Parameters(price float64, atr *float64, portfolioValue float64, existing []types.Position) types.RiskParameters
}

// turns screening results into at most one recommendation per symbol and
// executes them on request
type Engine struct {
	mu       sync.Mutex
	active   map[string]types.Recommendation
	inflight map[string]struct{}

	sizer  Sizer
	broker ports.OrderExecutionProvider
	trades TradeLog
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Engine)

// overrides the clock used for ids, expiry and trade timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// creates an engine; a nil trade log uses an in-memory one
func NewEngine(sizer Sizer, broker ports.OrderExecutionProvider, trades TradeLog, log zerolog.Logger, opts ...Option) *Engine {
	if trades == nil {
		trades = NewMemoryTradeLog()
	}
	e := &Engine{
		active:   make(map[string]types.Recommendation),
		inflight: make(map[string]struct{}),
		sizer:    sizer,
		broker:   broker,
		trades:   trades,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      log.With().Str("component", "recommendations").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ============================================================================
// PROCESS
// ============================================================================

// Process scores each result's signals and replaces the active set with the
// new recommendations, highest priority first.
func (e *Engine) Process(ctx context.Context, results []scanner.Result, positions []types.Position, portfolioValue float64) []types.Recommendation {
	held := make(map[string]types.Position, len(positions))
	for _, p := range positions {
		if p.Quantity != 0 {
			held[p.Symbol] = p
		}
	}

	now := e.now()
	recs := make([]types.Recommendation, 0, len(results))
	for _, res := range results {
		buyScore, sellScore, buyReasons, sellReasons := tally(res.Signals)

		if pos, ok := held[res.Symbol]; ok {
			if rec, ok := exitRecommendation(res.Symbol, pos, buyScore, sellScore, sellReasons, now); ok {
				recs = append(recs, rec)
			}
			continue
		}

		if buyScore <= sellScore || buyScore < minScore || res.Analysis == nil {
			continue
		}

		var atr *float64
		if res.Analysis.Indicators.ATR != nil {
			v := res.Analysis.Indicators.ATR.Value
			atr = &v
		}
		params := e.sizer.Parameters(res.Analysis.CurrentPrice, atr, portfolioValue, positions)
		if params.RiskLevel == types.RiskHigh || params.SuggestedQuantity <= 0 {
			e.log.Debug().
				Str("symbol", res.Symbol).
				Str("risk_level", string(params.RiskLevel)).
				Int64("quantity", params.SuggestedQuantity).
				Msg("entry suppressed")
			continue
		}

		recs = append(recs, types.Recommendation{
			ID:        recommendationID(res.Symbol, now),
			Symbol:    res.Symbol,
			Action:    types.ActionBuy,
			Type:      types.Entry,
			Quantity:  params.SuggestedQuantity,
			Priority:  buyScore,
			Reasons:   buyReasons,
			RiskLevel: params.RiskLevel,
			StopLoss:  types.Float(params.StopLoss),
			Target:    types.Float(params.Target),
			Timestamp: now,
		})
	}

	sortByPriority(recs)

	e.mu.Lock()
	e.active = make(map[string]types.Recommendation, len(recs))
	for _, r := range recs {
		e.active[r.Symbol] = r
	}
	e.mu.Unlock()

	e.log.Info().Int("results", len(results)).Int("recommendations", len(recs)).Msg("processed screening results")
	return recs
}

func exitRecommendation(symbol string, pos types.Position, buyScore, sellScore int, reasons []string, now time.Time) (types.Recommendation, bool) {
	if sellScore <= buyScore || sellScore < minScore {
		return types.Recommendation{}, false
	}
	risk := types.RiskMedium
	if sellScore > strongExitScore {
		risk = types.RiskLow
	}
	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}
	return types.Recommendation{
		ID:        recommendationID(symbol, now),
		Symbol:    symbol,
		Action:    types.ActionSell,
		Type:      types.Exit,
		Quantity:  qty,
		Priority:  sellScore,
		Reasons:   reasons,
		RiskLevel: risk,
		Timestamp: now,
	}, true
}

func tally(signals []types.Signal) (buy, sell int, buyReasons, sellReasons []string) {
	for _, s := range signals {
		switch s.Direction {
		case types.Buy:
			buy += s.Strength.Weight()
			buyReasons = append(buyReasons, s.Reason)
		case types.Sell:
			sell += s.Strength.Weight()
			sellReasons = append(sellReasons, s.Reason)
		}
	}
	return buy, sell, buyReasons, sellReasons
}

func recommendationID(symbol string, at time.Time) string {
	return fmt.Sprintf("REC_%s_%s", symbol, at.Format("20060102_150405"))
}

func sortByPriority(recs []types.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].Symbol < recs[j].Symbol
	})
}

// ============================================================================
// ACTIVE SET
// ============================================================================

// Active returns unexpired recommendations, highest priority first
func (e *Engine) Active() []types.Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]types.Recommendation, 0, len(e.active))
	for _, r := range e.active {
		if !e.expired(r, now) {
			out = append(out, r)
		}
	}
	sortByPriority(out)
	return out
}

// PurgeExpired drops expired recommendations and returns how many were removed
func (e *Engine) PurgeExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed := 0
	for sym, r := range e.active {
		if e.expired(r, now) {
			delete(e.active, sym)
			removed++
		}
	}
	if removed > 0 {
		e.log.Debug().Int("removed", removed).Msg("purged expired recommendations")
	}
	return removed
}

func (e *Engine) expired(r types.Recommendation, now time.Time) bool {
	return now.Sub(r.Timestamp) >= e.ttl
}

// caller must hold mu
func (e *Engine) lookup(id string) (types.Recommendation, bool) {
	now := e.now()
	for _, r := range e.active {
		if r.ID == id && !e.expired(r, now) {
			return r, true
		}
	}
	return types.Recommendation{}, false
}

// ============================================================================
// EXECUTION
// ============================================================================

// Execute submits the recommendation as a market order. Unknown or expired ids
// fail with ports.ErrNotFound. A broker failure leaves the recommendation
// active.
func (e *Engine) Execute(ctx context.Context, id string) (types.ExecutedTrade, error) {
	e.mu.Lock()
	rec, ok := e.lookup(id)
	if !ok {
		e.mu.Unlock()
		return types.ExecutedTrade{}, fmt.Errorf("recommendation %s: %w", id, ports.ErrNotFound)
	}
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		return types.ExecutedTrade{}, fmt.Errorf("recommendation %s is already executing: %w", id, ports.ErrNotFound)
	}
	e.inflight[id] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
	}()

	result, err := e.broker.PlaceOrder(ctx, types.OrderRequest{
		Symbol:    rec.Symbol,
		Quantity:  rec.Quantity,
		OrderType: types.Market,
		Side:      rec.Action,
		StopLoss:  rec.StopLoss,
		Target:    rec.Target,
	})
	if err != nil {
		e.log.Error().Err(err).Str("id", id).Str("symbol", rec.Symbol).Msg("order placement failed")
		return types.ExecutedTrade{}, fmt.Errorf("placing order for %s: %w: %w", rec.Symbol, ports.ErrProviderFailure, err)
	}

	trade := types.ExecutedTrade{
		RecommendationID: rec.ID,
		OrderID:          result.OrderID,
		Symbol:           rec.Symbol,
		Action:           rec.Action,
		Quantity:         rec.Quantity,
		Timestamp:        e.now(),
		Status:           StatusExecuted,
	}

	e.mu.Lock()
	if cur, ok := e.active[rec.Symbol]; ok && cur.ID == rec.ID {
		delete(e.active, rec.Symbol)
	}
	e.mu.Unlock()

	if err := e.trades.Append(ctx, trade); err != nil {
		// the order is live at the broker, so report the trade anyway
		e.log.Error().Err(err).Str("order_id", trade.OrderID).Msg("failed to record executed trade")
	}

	e.log.Info().
		Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).
		Int64("quantity", trade.Quantity).
		Str("order_id", trade.OrderID).
		Msg("recommendation executed")
	return trade, nil
}

// ExecutedTrades returns logged trades inside the inclusive range
func (e *Engine) ExecutedTrades(ctx context.Context, start, end *time.Time) ([]types.ExecutedTrade, error) {
	return e.trades.Range(ctx, start, end)
}
