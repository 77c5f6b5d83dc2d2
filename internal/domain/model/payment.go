package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCanceled          PaymentStatus = "canceled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// PaymentRecord mirrors a single charge attempt at the gateway, keyed by the
// gateway's payment intent id. Created on first sight of any payment-related
// event; status is overwritten in place as later events arrive for the same
// intent. Rows are never deleted.
type PaymentRecord struct {
	ID                     string // UUID
	UserID                 string
	SubscriptionID         *string
	GatewayPaymentIntentID string  // unique
	GatewayChargeID        *string // unique, nil until the gateway reports a charge
	Amount                 int64   // minor units, integer to avoid float errors
	Currency               string
	Status                 PaymentStatus
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
