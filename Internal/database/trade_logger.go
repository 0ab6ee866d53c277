package datafeed

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/types"
)

// TradeStore persists executed trades; timestamps are unix milliseconds
type TradeStore struct {
	db     *sql.DB
	driver string
	log    zerolog.Logger
}

func NewTradeStore(db *sql.DB, driver string, log zerolog.Logger) *TradeStore {
	if driver == "" {
		driver = DriverSQLite
	}
	return &TradeStore{
		db:     db,
		driver: driver,
		log:    log.With().Str("component", "trade_store").Logger(),
	}
}

func (s *TradeStore) Append(ctx context.Context, trade types.ExecutedTrade) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO executed_trades (recommendation_id, order_id, symbol, action, quantity, executed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		trade.RecommendationID,
		trade.OrderID,
		trade.Symbol,
		string(trade.Action),
		trade.Quantity,
		trade.Timestamp.UnixMilli(),
		trade.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to log trade: %w", err)
	}

	s.log.Info().
		Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).
		Int64("quantity", trade.Quantity).
		Str("order_id", trade.OrderID).
		Msg("trade logged")
	return nil
}

// Range returns trades inside the inclusive window in execution order
func (s *TradeStore) Range(ctx context.Context, start, end *time.Time) ([]types.ExecutedTrade, error) {
	query := `SELECT recommendation_id, order_id, symbol, action, quantity, executed_at, status FROM executed_trades`
	var (
		where []string
		args  []any
	)
	if start != nil {
		where = append(where, "executed_at >= ?")
		args = append(args, start.UnixMilli())
	}
	if end != nil {
		where = append(where, "executed_at <= ?")
		args = append(args, end.UnixMilli())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY executed_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trade history: %w", err)
	}
	defer rows.Close()

	trades := []types.ExecutedTrade{}
	for rows.Next() {
		var (
			t      types.ExecutedTrade
			action string
			millis int64
		)
		if err := rows.Scan(&t.RecommendationID, &t.OrderID, &t.Symbol, &action, &t.Quantity, &millis, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Action = types.Action(action)
		t.Timestamp = time.UnixMilli(millis).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// rewrites ? placeholders as $n for postgres
func (s *TradeStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
