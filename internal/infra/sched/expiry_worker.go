package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"numera-billing-sync/internal/usecase"
)

// ExpiryWorker periodically downgrades users whose cached premium window has
// lapsed without the gateway sending a terminating event.
type ExpiryWorker struct {
	interval time.Duration
	entUC    usecase.EntitlementUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, entUC usecase.EntitlementUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, entUC: entUC, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting entitlement expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping entitlement expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.entUC.ExpireStale(ctx, 500)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale entitlements downgraded")
			}
		}
	}
}
