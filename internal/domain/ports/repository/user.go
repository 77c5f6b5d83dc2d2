package repository

import (
	"context"
	"time"

	"numera-billing-sync/internal/domain/model"
)

// UserRepository is the port for the billing-owned slice of the user record:
// the gateway customer mapping and the denormalized entitlement fields.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByGatewayCustomerID(ctx context.Context, tx Tx, customerID string) (*model.User, error)

	// UpdateEntitlement persists a freshly resolved snapshot onto the user
	// row. The only writer is the reconciliation unit of work (and the expiry
	// sweep, which re-runs the same resolver).
	UpdateEntitlement(ctx context.Context, tx Tx, userID string, ent model.Entitlement) error

	// ListPremiumExpiredBefore returns users whose cached premium_expiry has
	// passed but is_premium is still set, for the expiry sweep.
	ListPremiumExpiredBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.User, error)
}
