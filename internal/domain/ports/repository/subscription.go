package repository

import (
	"context"

	"numera-billing-sync/internal/domain/model"
)

// SubscriptionRepository is the port for the local subscription mirror.
type SubscriptionRepository interface {
	// Save upserts on the gateway_subscription_id unique constraint: a single
	// conflict-aware write, so concurrent first-sight events for the same
	// subscription cannot double-create. Mutable fields are overwritten from
	// the snapshot (last-write-received-wins).
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error

	// FindByGatewayID locks the row (FOR UPDATE) when called inside a
	// transaction, serializing concurrent units touching the same
	// subscription.
	FindByGatewayID(ctx context.Context, tx Tx, gatewaySubscriptionID string) (*model.Subscription, error)

	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
}
