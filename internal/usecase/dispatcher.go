package usecase

import (
	"context"
	"time"

	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
)

// HandlerFunc applies one inbound event inside the coordinator's unit of work.
type HandlerFunc func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error

// Dispatcher is a static mapping from gateway event type to handler.
// Unrecognized types resolve to a no-op handler so the event is still marked
// processed: new gateway event types must never be treated as errors.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher(subSync SubscriptionSyncUseCase, paySync PaymentSyncUseCase) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]HandlerFunc)}

	d.handlers[model.EventSubscriptionUpdated] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		snap, err := parseSubscriptionSnapshot(ev.RawPayload)
		if err != nil {
			return err
		}
		_, err = subSync.ApplySnapshot(ctx, tx, snap)
		return err
	}

	d.handlers[model.EventSubscriptionDeleted] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		snap, err := parseSubscriptionSnapshot(ev.RawPayload)
		if err != nil {
			return err
		}
		// Deletion events always terminate the subscription, whatever status
		// field the payload carries.
		snap.Status = string(model.SubscriptionStatusCanceled)
		if snap.CanceledAt == nil {
			now := time.Now()
			snap.CanceledAt = &now
		}
		_, err = subSync.ApplySnapshot(ctx, tx, snap)
		return err
	}

	d.handlers[model.EventPaymentIntentSucceeded] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		snap, err := parsePaymentSnapshot(ev.RawPayload, model.PaymentStatusSucceeded)
		if err != nil {
			return err
		}
		_, err = paySync.ApplyPaymentSnapshot(ctx, tx, snap)
		return err
	}

	d.handlers[model.EventPaymentIntentFailed] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		snap, err := parsePaymentSnapshot(ev.RawPayload, model.PaymentStatusFailed)
		if err != nil {
			return err
		}
		_, err = paySync.ApplyPaymentSnapshot(ctx, tx, snap)
		return err
	}

	d.handlers[model.EventInvoicePaymentSucceeded] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		inv, err := parseInvoiceSnapshot(ev.RawPayload)
		if err != nil {
			return err
		}
		return paySync.ApplyInvoicePaid(ctx, tx, inv)
	}

	d.handlers[model.EventInvoicePaymentFailed] = func(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
		inv, err := parseInvoiceSnapshot(ev.RawPayload)
		if err != nil {
			return err
		}
		return paySync.ApplyInvoiceFailed(ctx, tx, inv)
	}

	return d
}

// Resolve returns the handler for eventType and whether the type is known.
func (d *Dispatcher) Resolve(eventType string) (HandlerFunc, bool) {
	if h, ok := d.handlers[eventType]; ok {
		return h, true
	}
	return noopHandler, false
}

func noopHandler(ctx context.Context, tx repository.Tx, ev *model.InboundEvent) error {
	return nil
}
