package service

import (
	"context"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/domain"
	"fishcharter/internal/metrics"

	"github.com/rs/zerolog"
)

// HoldSweeper periodically removes reservations whose hold has lapsed.
// Availability already ignores them, so this only keeps the table small.
type HoldSweeper struct {
	store    domain.SlotStore
	clock    clock.Clock
	interval time.Duration
	logger   *zerolog.Logger
}

func NewHoldSweeper(store domain.SlotStore, clk clock.Clock, interval time.Duration, logger *zerolog.Logger) *HoldSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HoldSweeper{store: store, clock: clk, interval: interval, logger: nopIfNil(logger)}
}

// Start blocks until ctx is done.
func (s *HoldSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("hold sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("hold sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep expired holds failed")
			}
		}
	}
}

// Sweep deletes every hold that expired before now and returns the count.
func (s *HoldSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	metrics.AddHoldsSwept(n)
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("expired holds swept")
	}
	return n, nil
}
