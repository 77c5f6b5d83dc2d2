package repository

import (
	"context"

	"numera-billing-sync/internal/domain/model"
)

// LedgerRepository is the port for the append-only billing history.
// There is deliberately no update or delete method.
type LedgerRepository interface {
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error

	// ListByUser returns a reverse-chronological page for user-facing history.
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error)

	CountByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
