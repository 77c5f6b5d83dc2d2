package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/infra/metrics"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase is the coordinator: one atomic unit of work per event.
// It owns admission, dispatch, the transaction boundary, and retry
// classification. Nothing else writes billing state.
type ReconcileUseCase interface {
	// Process ingests one webhook delivery. A nil return means the gateway
	// should see success and stop redelivering. That covers duplicates,
	// unknown event types, and terminal failures that redelivery cannot fix.
	// A non-nil return is retryable: the caller answers with a failure status
	// and the gateway redelivers.
	Process(ctx context.Context, d Delivery) error

	// ProcessStored re-runs an already-admitted unprocessed event, for the
	// retry worker and the backfill tool.
	ProcessStored(ctx context.Context, ev *model.InboundEvent) error
}

type reconcileUC struct {
	events     repository.EventRepository
	dispatcher *Dispatcher
	tm         repository.TransactionManager
	log        *zerolog.Logger
	now        func() time.Time
}

func NewReconcileUseCase(events repository.EventRepository, dispatcher *Dispatcher, tm repository.TransactionManager, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{events: events, dispatcher: dispatcher, tm: tm, log: &l, now: time.Now}
}

func (u *reconcileUC) Process(ctx context.Context, d Delivery) error {
	log := logging.With(ctx, u.log)

	// Admission is its own atomic statement, outside the unit of work: the
	// row must survive a rolled-back unit so the failure stays observable.
	res, err := u.events.Admit(ctx, repository.NoTX, d.GatewayEventID, d.EventType, d.Payload)
	if err != nil {
		log.Error().Err(err).Str("gateway_event_id", d.GatewayEventID).Msg("admit failed")
		return err
	}
	if res.AlreadyProcessed {
		metrics.IncWebhookDuplicate()
		log.Debug().Str("gateway_event_id", d.GatewayEventID).Msg("duplicate delivery short-circuited")
		return nil
	}
	return u.ProcessStored(ctx, res.Event)
}

func (u *reconcileUC) ProcessStored(ctx context.Context, ev *model.InboundEvent) error {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "ReconcileUC.ProcessStored")()

	handler, known := u.dispatcher.Resolve(ev.EventType)
	start := u.now()

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := handler(ctx, tx, ev); err != nil {
			return err
		}
		return u.events.MarkProcessed(ctx, tx, ev.ID, u.now())
	})
	metrics.ObserveWebhookProcessing(ev.EventType, float64(time.Since(start).Milliseconds()))

	if err != nil {
		return u.recordFailure(ctx, ev, err)
	}

	outcome := metrics.OutcomeProcessed
	if !known {
		outcome = metrics.OutcomeNoop
		log.Info().Str("event_type", ev.EventType).Str("gateway_event_id", ev.GatewayEventID).Msg("unknown event type stored as no-op")
	}
	metrics.IncWebhookEvent(ev.EventType, outcome)
	return nil
}

// recordFailure classifies the error and stores it on the event row, outside
// the rolled-back transaction. Terminal errors report success upstream so the
// gateway stops redelivering something redelivery cannot fix; the event stays
// unprocessed for the retry worker and manual inspection.
func (u *reconcileUC) recordFailure(ctx context.Context, ev *model.InboundEvent, procErr error) error {
	log := logging.With(ctx, u.log)

	if rerr := u.events.RecordError(ctx, repository.NoTX, ev.ID, procErr.Error()); rerr != nil {
		log.Error().Err(rerr).Str("gateway_event_id", ev.GatewayEventID).Msg("failed to record processing error")
	}

	if isTerminal(procErr) {
		metrics.IncWebhookEvent(ev.EventType, metrics.OutcomeTerminal)
		log.Warn().Err(procErr).
			Str("gateway_event_id", ev.GatewayEventID).
			Str("event_type", ev.EventType).
			Msg("event left unprocessed, redelivery will not fix it")
		return nil
	}

	metrics.IncWebhookEvent(ev.EventType, metrics.OutcomeRetryable)
	log.Error().Err(procErr).
		Str("gateway_event_id", ev.GatewayEventID).
		Str("event_type", ev.EventType).
		Msg("unit of work rolled back, awaiting redelivery")
	return procErr
}

// isTerminal: a malformed payload will be malformed on every redelivery, and
// an unknown customer waits for a later creation event or a backfill, not for
// the gateway's retry schedule.
func isTerminal(err error) bool {
	return errors.Is(err, domain.ErrMalformedPayload) || errors.Is(err, domain.ErrUnknownCustomer)
}
