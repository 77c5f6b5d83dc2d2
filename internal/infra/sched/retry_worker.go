package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/usecase"
)

// RetryWorker periodically re-runs admitted events that never reached
// processed. This covers terminal failures that have since been fixed
// (for example a customer mapping created after the fact) and crashes
// between admit and processing.
type RetryWorker struct {
	uc         usecase.ReconcileUseCase
	events     repository.EventRepository
	interval   time.Duration // how often to scan
	retryAfter time.Duration // how old an unprocessed event must be to retry
	log        *zerolog.Logger
}

func NewRetryWorker(uc usecase.ReconcileUseCase, events repository.EventRepository, interval, retryAfter time.Duration, logger *zerolog.Logger) *RetryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if retryAfter <= 0 {
		retryAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "RetryWorker").Logger()
	return &RetryWorker{uc: uc, events: events, interval: interval, retryAfter: retryAfter, log: &l}
}

func (w *RetryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting event retry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping event retry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RetryWorker) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.retryAfter)
	stale, err := w.events.ListUnprocessedOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list unprocessed events failed")
		return
	}
	for _, ev := range stale {
		evCtx := logging.WithEventID(ctx, ev.GatewayEventID)
		if err := w.uc.ProcessStored(evCtx, ev); err != nil {
			w.log.Warn().Err(err).Str("event_id", ev.GatewayEventID).Msg("event retry failed")
			continue
		}
		w.log.Info().Str("event_id", ev.GatewayEventID).Msg("event retried")
	}
}
