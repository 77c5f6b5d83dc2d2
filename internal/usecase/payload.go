package usecase

import (
	"encoding/json"
	"time"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/adapter"
)

// Delivery is one inbound webhook delivery after signature verification:
// the gateway's event id and type plus the raw body, exactly as received.
type Delivery struct {
	GatewayEventID string
	EventType      string
	Payload        []byte
}

// envelope is the gateway's outer event shape.
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseDelivery extracts the event identity from a raw webhook body.
// The body is stored verbatim; only id and type are needed up front.
func ParseDelivery(body []byte) (Delivery, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Delivery{}, domain.ErrMalformedPayload
	}
	if env.ID == "" || env.Type == "" {
		return Delivery{}, domain.ErrMalformedPayload
	}
	return Delivery{GatewayEventID: env.ID, EventType: env.Type, Payload: body}, nil
}

func eventObject(raw []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if len(env.Data.Object) == 0 {
		return nil, domain.ErrMalformedPayload
	}
	return env.Data.Object, nil
}

// subscriptionObject is the gateway's subscription shape inside
// customer.subscription.* events.
type subscriptionObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Plan               string `json:"plan"`
	Status             string `json:"status"`
	CurrentPeriodStart *int64 `json:"current_period_start"`
	CurrentPeriodEnd   *int64 `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         *int64 `json:"canceled_at"`
	TrialStart         *int64 `json:"trial_start"`
	TrialEnd           *int64 `json:"trial_end"`
}

func parseSubscriptionSnapshot(raw []byte) (*adapter.SubscriptionSnapshot, error) {
	obj, err := eventObject(raw)
	if err != nil {
		return nil, err
	}
	var so subscriptionObject
	if err := json.Unmarshal(obj, &so); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if so.ID == "" || so.Customer == "" {
		return nil, domain.ErrMalformedPayload
	}
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: so.ID,
		GatewayCustomerID:     so.Customer,
		PlanCode:              so.Plan,
		Status:                so.Status,
		CurrentPeriodStart:    unixPtr(so.CurrentPeriodStart),
		CurrentPeriodEnd:      unixPtr(so.CurrentPeriodEnd),
		CancelAtPeriodEnd:     so.CancelAtPeriodEnd,
		CanceledAt:            unixPtr(so.CanceledAt),
		TrialStart:            unixPtr(so.TrialStart),
		TrialEnd:              unixPtr(so.TrialEnd),
	}, nil
}

// PaymentSnapshot is the gateway's reported state of one payment intent.
// SubscriptionID is the local subscription id when the caller already knows
// which subscription the intent billed; intent events themselves do not
// carry it.
type PaymentSnapshot struct {
	GatewayPaymentIntentID string
	GatewayChargeID        *string
	GatewayCustomerID      string
	InvoiceID              *string
	SubscriptionID         *string
	Amount                 int64
	Currency               string
	Status                 model.PaymentStatus
}

type paymentIntentObject struct {
	ID           string  `json:"id"`
	Customer     string  `json:"customer"`
	LatestCharge *string `json:"latest_charge"`
	Invoice      *string `json:"invoice"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}

func parsePaymentSnapshot(raw []byte, status model.PaymentStatus) (*PaymentSnapshot, error) {
	obj, err := eventObject(raw)
	if err != nil {
		return nil, err
	}
	var po paymentIntentObject
	if err := json.Unmarshal(obj, &po); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if po.ID == "" || po.Customer == "" {
		return nil, domain.ErrMalformedPayload
	}
	return &PaymentSnapshot{
		GatewayPaymentIntentID: po.ID,
		GatewayChargeID:        po.LatestCharge,
		GatewayCustomerID:      po.Customer,
		InvoiceID:              po.Invoice,
		Amount:                 po.Amount,
		Currency:               po.Currency,
		Status:                 status,
	}, nil
}

// InvoiceSnapshot is the gateway's reported state of one invoice, carrying
// the billing period the payment covered.
type InvoiceSnapshot struct {
	GatewayInvoiceID       string
	GatewayCustomerID      string
	GatewaySubscriptionID  *string
	GatewayPaymentIntentID *string
	AmountPaid             int64
	AmountDue              int64
	Currency               string
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
}

type invoiceObject struct {
	ID            string  `json:"id"`
	Customer      string  `json:"customer"`
	Subscription  *string `json:"subscription"`
	PaymentIntent *string `json:"payment_intent"`
	AmountPaid    int64   `json:"amount_paid"`
	AmountDue     int64   `json:"amount_due"`
	Currency      string  `json:"currency"`
	PeriodStart   *int64  `json:"period_start"`
	PeriodEnd     *int64  `json:"period_end"`
}

func parseInvoiceSnapshot(raw []byte) (*InvoiceSnapshot, error) {
	obj, err := eventObject(raw)
	if err != nil {
		return nil, err
	}
	var io invoiceObject
	if err := json.Unmarshal(obj, &io); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if io.ID == "" || io.Customer == "" {
		return nil, domain.ErrMalformedPayload
	}
	return &InvoiceSnapshot{
		GatewayInvoiceID:       io.ID,
		GatewayCustomerID:      io.Customer,
		GatewaySubscriptionID:  io.Subscription,
		GatewayPaymentIntentID: io.PaymentIntent,
		AmountPaid:             io.AmountPaid,
		AmountDue:              io.AmountDue,
		Currency:               io.Currency,
		PeriodStart:            unixPtr(io.PeriodStart),
		PeriodEnd:              unixPtr(io.PeriodEnd),
	}, nil
}

func unixPtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

func planFromCode(code string) (model.Plan, bool) {
	switch code {
	case "basic":
		return model.PlanBasic, true
	case "premium":
		return model.PlanPremium, true
	case "elite":
		return model.PlanElite, true
	}
	return model.PlanBasic, false
}
