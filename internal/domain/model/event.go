package model

import "time"

// Gateway event types this engine reacts to. Anything else is stored and
// marked processed without side effects so new gateway types never fail.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// InboundEvent is the durable record of a single webhook delivery from the
// payment gateway. There is at most one row per GatewayEventID; redeliveries
// of the same event land on the existing row. Processed=true is terminal.
type InboundEvent struct {
	ID              string // UUID
	GatewayEventID  string // unique, assigned by the gateway
	EventType       string
	RawPayload      []byte
	Processed       bool
	ProcessingError *string // last failure, kept across the rolled-back unit
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}
