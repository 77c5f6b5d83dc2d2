package usecase

import (
	"context"

	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
)

var _ BillingHistoryUseCase = (*billingHistoryUC)(nil)

// BillingHistoryUseCase reads the append-only ledger for user-facing views.
// There is deliberately no write method on this surface.
type BillingHistoryUseCase interface {
	// List returns a reverse-chronological page and the total entry count.
	List(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, int, error)
}

type billingHistoryUC struct {
	ledger repository.LedgerRepository
}

func NewBillingHistoryUseCase(ledger repository.LedgerRepository) *billingHistoryUC {
	return &billingHistoryUC{ledger: ledger}
}

func (u *billingHistoryUC) List(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, int, error) {
	entries, err := u.ledger.ListByUser(ctx, repository.NoTX, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := u.ledger.CountByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
