package gateway

import (
	"context"
	"fmt"
	"time"

	"numera-billing-sync/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway fabricates plausible snapshots for dev mode, where no real
// provider is reachable.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (NoopGateway) Name() string { return "noop" }

func (NoopGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	return "cus_" + uuid.NewString()[:8], nil
}

func (NoopGateway) CreateSubscription(ctx context.Context, customerID, planCode string) (*adapter.SubscriptionSnapshot, error) {
	now := time.Now().UTC()
	end := now.AddDate(0, 1, 0)
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: fmt.Sprintf("sub_%s", uuid.NewString()[:8]),
		GatewayCustomerID:     customerID,
		PlanCode:              planCode,
		Status:                "active",
		CurrentPeriodStart:    &now,
		CurrentPeriodEnd:      &end,
	}, nil
}

func (NoopGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*adapter.SubscriptionSnapshot, error) {
	now := time.Now().UTC()
	snap := &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: subscriptionID,
		Status:                "canceled",
		CanceledAt:            &now,
		CancelAtPeriodEnd:     atPeriodEnd,
	}
	if atPeriodEnd {
		snap.Status = "active"
	}
	return snap, nil
}
