package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/ports"
)

type recommendationPurger interface {
	PurgeExpired() int
}

// Housekeeping drops expired recommendations and logs a portfolio snapshot
type Housekeeping struct {
	recs   recommendationPurger
	broker ports.OrderExecutionProvider
	log    zerolog.Logger
}

func NewHousekeeping(recs recommendationPurger, broker ports.OrderExecutionProvider, log zerolog.Logger) *Housekeeping {
	return &Housekeeping{
		recs:   recs,
		broker: broker,
		log:    log.With().Str("job", "housekeeping").Logger(),
	}
}

func (h *Housekeeping) Name() string { return "housekeeping" }

func (h *Housekeeping) Run(ctx context.Context) error {
	purged := h.recs.PurgeExpired()

	positions, err := h.broker.Positions(ctx)
	if err != nil {
		return fmt.Errorf("loading positions: %w", err)
	}
	value, err := h.broker.PortfolioValue(ctx)
	if err != nil {
		return fmt.Errorf("loading portfolio value: %w", err)
	}

	var exposure float64
	for _, p := range positions {
		exposure += float64(p.Quantity) * p.CurrentPrice
	}
	h.log.Info().
		Int("purged_recommendations", purged).
		Int("positions", len(positions)).
		Float64("portfolio_value", value).
		Float64("exposure", exposure).
		Msg("portfolio snapshot")
	return nil
}
