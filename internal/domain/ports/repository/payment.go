package repository

import (
	"context"

	"numera-billing-sync/internal/domain/model"
)

// PaymentRepository is the port for the local payment-attempt mirror.
type PaymentRepository interface {
	// Save upserts on the gateway_payment_intent_id unique constraint,
	// overwriting mutable fields from the snapshot. Rows are never deleted.
	Save(ctx context.Context, tx Tx, p *model.PaymentRecord) error

	// FindByIntentID locks the row (FOR UPDATE) inside a transaction so the
	// first-success ledger append cannot race a concurrent redelivery.
	FindByIntentID(ctx context.Context, tx Tx, gatewayPaymentIntentID string) (*model.PaymentRecord, error)

	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.PaymentRecord, error)
}
