package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.EventRepository = (*eventRepo)(nil)

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

const eventColumns = `id, gateway_event_id, event_type, raw_payload, processed, processing_error, received_at, processed_at`

// Admit is the single atomic check-and-insert. The unique constraint on
// gateway_event_id serializes concurrent deliveries of the same event: the
// conditional DO UPDATE only fires while the row is still unprocessed, so a
// processed=true row returns no row here and we report AlreadyProcessed.
func (r *eventRepo) Admit(ctx context.Context, tx repository.Tx, gatewayEventID, eventType string, rawPayload []byte) (*repository.AdmitResult, error) {
	const q = `
INSERT INTO inbound_events (id, gateway_event_id, event_type, raw_payload, processed, received_at)
VALUES ($1,$2,$3,$4,false,$5)
ON CONFLICT (gateway_event_id) DO UPDATE SET
  raw_payload = EXCLUDED.raw_payload,
  event_type  = EXCLUDED.event_type
WHERE inbound_events.processed = false
RETURNING ` + eventColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString(), gatewayEventID, eventType, rawPayload, time.Now())
	if err != nil {
		return nil, err
	}

	ev := &model.InboundEvent{}
	if err := scanEvent(row, ev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Terminal row already exists; fetch it for the caller's logs.
			existing, ferr := r.FindByGatewayEventID(ctx, repository.NoTX, gatewayEventID)
			if ferr != nil {
				return nil, ferr
			}
			return &repository.AdmitResult{Event: existing, AlreadyProcessed: true}, nil
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &repository.AdmitResult{Event: ev}, nil
}

func (r *eventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE inbound_events SET processed=true, processing_error=NULL, processed_at=$2 WHERE id=$1 AND processed=false;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrEventAlreadyProcessed
	}
	return nil
}

func (r *eventRepo) RecordError(ctx context.Context, tx repository.Tx, id string, procErr string) error {
	// processed stays false so the event remains eligible for retry.
	const q = `UPDATE inbound_events SET processing_error=$2 WHERE id=$1 AND processed=false;`
	_, err := execSQL(ctx, r.pool, tx, q, id, procErr)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *eventRepo) FindByGatewayEventID(ctx context.Context, tx repository.Tx, gatewayEventID string) (*model.InboundEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM inbound_events WHERE gateway_event_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, gatewayEventID)
	if err != nil {
		return nil, err
	}
	ev := &model.InboundEvent{}
	if err := scanEvent(row, ev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return ev, nil
}

func (r *eventRepo) ListUnprocessedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.InboundEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + eventColumns + ` FROM inbound_events WHERE processed=false AND received_at < $1 ORDER BY received_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.InboundEvent
	for rows.Next() {
		ev := new(model.InboundEvent)
		if err := scanEvent(rows, ev); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row, ev *model.InboundEvent) error {
	return row.Scan(&ev.ID, &ev.GatewayEventID, &ev.EventType, &ev.RawPayload, &ev.Processed, &ev.ProcessingError, &ev.ReceivedAt, &ev.ProcessedAt)
}
