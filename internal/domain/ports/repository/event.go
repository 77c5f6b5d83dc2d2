package repository

import (
	"context"
	"time"

	"numera-billing-sync/internal/domain/model"
)

// AdmitResult is the outcome of the idempotency check-and-insert.
type AdmitResult struct {
	Event            *model.InboundEvent
	AlreadyProcessed bool
}

// EventRepository is the idempotency ledger: one durable row per gateway
// event id.
type EventRepository interface {
	// Admit is a single atomic check-and-insert keyed by gatewayEventID,
	// backed by the unique constraint, never an exists? read followed by an
	// insert. If a row exists with processed=false (a previous attempt
	// failed), the stored payload is overwritten and processing retried. If
	// processed=true, AlreadyProcessed is set and the caller does no further
	// work.
	Admit(ctx context.Context, tx Tx, gatewayEventID, eventType string, rawPayload []byte) (*AdmitResult, error)

	// MarkProcessed flips the row to its terminal processed=true state and
	// clears any previous processing error.
	MarkProcessed(ctx context.Context, tx Tx, id string, at time.Time) error

	// RecordError stores the failure text on the row, leaving
	// processed=false so the event stays eligible for retry. Called outside
	// the rolled-back unit of work.
	RecordError(ctx context.Context, tx Tx, id string, procErr string) error

	FindByGatewayEventID(ctx context.Context, tx Tx, gatewayEventID string) (*model.InboundEvent, error)

	// ListUnprocessedOlderThan feeds the retry worker and the backfill tool.
	ListUnprocessedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.InboundEvent, error)
}
