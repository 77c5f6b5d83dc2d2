package adapter

import (
	"context"
	"time"
)

// SubscriptionSnapshot is the gateway's reported current state of a
// subscription object. It is applied as an overwrite, never a diff, and is
// the single shape both entry paths share: asynchronous webhook payloads and
// synchronous API responses both end up here.
type SubscriptionSnapshot struct {
	GatewaySubscriptionID string
	GatewayCustomerID     string
	PlanCode              string // gateway price/plan code, mapped to a local plan
	Status                string
	CurrentPeriodStart    *time.Time
	CurrentPeriodEnd      *time.Time
	CancelAtPeriodEnd     bool
	CanceledAt            *time.Time
	TrialStart            *time.Time
	TrialEnd              *time.Time
}

// PaymentGateway is the outbound collaborator port. The engine never calls it
// from inside a reconciliation unit of work; only the checkout use case does,
// and it feeds the returned snapshot back through the same apply path the
// webhook handlers use.
type PaymentGateway interface {
	Name() string
	CreateCustomer(ctx context.Context, email string) (customerID string, err error)
	CreateSubscription(ctx context.Context, customerID, planCode string) (*SubscriptionSnapshot, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*SubscriptionSnapshot, error)
}
