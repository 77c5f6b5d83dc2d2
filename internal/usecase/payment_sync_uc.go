package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/infra/metrics"
)

var _ PaymentSyncUseCase = (*paymentSyncUC)(nil)

// PaymentSyncUseCase applies gateway payment and invoice snapshots: the
// payment-record mirror, the append-only billing ledger, and the
// invoice-driven subscription status nudges.
type PaymentSyncUseCase interface {
	// ApplyPaymentSnapshot upserts the payment record by intent id. The first
	// sighting of a succeeded one-off charge appends one ledger entry;
	// invoice-backed intents leave the ledger to ApplyInvoice. Failure
	// sightings update status only; failed attempts are not billing facts.
	ApplyPaymentSnapshot(ctx context.Context, tx repository.Tx, snap *PaymentSnapshot) (*model.PaymentRecord, error)

	// ApplyInvoicePaid records a periodic renewal: one ledger entry stamped
	// with the period the payment covered, plus a subscription refresh.
	ApplyInvoicePaid(ctx context.Context, tx repository.Tx, inv *InvoiceSnapshot) error

	// ApplyInvoiceFailed marks the subscription past_due. No ledger entry.
	ApplyInvoiceFailed(ctx context.Context, tx repository.Tx, inv *InvoiceSnapshot) error
}

type paymentSyncUC struct {
	payments    repository.PaymentRepository
	ledger      repository.LedgerRepository
	subs        repository.SubscriptionRepository
	users       repository.UserRepository
	entitlement EntitlementUseCase
	log         *zerolog.Logger
	now         func() time.Time
}

func NewPaymentSyncUseCase(
	payments repository.PaymentRepository,
	ledger repository.LedgerRepository,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	entitlement EntitlementUseCase,
	logger *zerolog.Logger,
) *paymentSyncUC {
	l := logger.With().Str("component", "PaymentSyncUC").Logger()
	return &paymentSyncUC{payments: payments, ledger: ledger, subs: subs, users: users, entitlement: entitlement, log: &l, now: time.Now}
}

func (u *paymentSyncUC) ApplyPaymentSnapshot(ctx context.Context, tx repository.Tx, snap *PaymentSnapshot) (*model.PaymentRecord, error) {
	if snap == nil || snap.GatewayPaymentIntentID == "" {
		return nil, domain.ErrInvalidArgument
	}

	user, err := u.users.FindByGatewayCustomerID(ctx, tx, snap.GatewayCustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownCustomer
		}
		return nil, err
	}

	now := u.now()
	rec, err := u.payments.FindByIntentID(ctx, tx, snap.GatewayPaymentIntentID)
	firstSight := errors.Is(err, domain.ErrNotFound)
	switch {
	case firstSight:
		rec = &model.PaymentRecord{
			ID:                     uuid.NewString(),
			UserID:                 user.ID,
			GatewayPaymentIntentID: snap.GatewayPaymentIntentID,
			CreatedAt:              now,
		}
	case err != nil:
		return nil, err
	}

	newlySucceeded := snap.Status == model.PaymentStatusSucceeded &&
		(firstSight || rec.Status != model.PaymentStatusSucceeded)

	rec.GatewayChargeID = coalesce(snap.GatewayChargeID, rec.GatewayChargeID)
	rec.SubscriptionID = coalesce(snap.SubscriptionID, rec.SubscriptionID)
	rec.Amount = snap.Amount
	rec.Currency = snap.Currency
	rec.Status = snap.Status
	rec.UpdatedAt = now

	if err := u.payments.Save(ctx, tx, rec); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(rec.Status))

	// One-off charges become a billing fact here. Invoice-backed intents are
	// ledgered by ApplyInvoicePaid with the period bounds the invoice carries.
	if newlySucceeded && snap.InvoiceID == nil {
		entry := &model.LedgerEntry{
			ID:             model.NewLedgerEntryID(now),
			UserID:         rec.UserID,
			SubscriptionID: rec.SubscriptionID,
			PaymentID:      &rec.ID,
			Amount:         rec.Amount,
			Currency:       rec.Currency,
			Description:    fmt.Sprintf("charge %s", rec.GatewayPaymentIntentID),
			CreatedAt:      now,
		}
		if err := u.ledger.Append(ctx, tx, entry); err != nil {
			return nil, err
		}
		metrics.IncLedgerEntry()
		metrics.AddPaymentRevenue(rec.Currency, rec.Amount)
	}
	return rec, nil
}

func (u *paymentSyncUC) ApplyInvoicePaid(ctx context.Context, tx repository.Tx, inv *InvoiceSnapshot) error {
	if inv == nil || inv.GatewayInvoiceID == "" {
		return domain.ErrInvalidArgument
	}

	user, err := u.users.FindByGatewayCustomerID(ctx, tx, inv.GatewayCustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnknownCustomer
		}
		return err
	}

	log := logging.With(ctx, u.log)
	now := u.now()
	var subID *string
	var paymentID *string

	// Refresh the subscription this invoice billed, if we mirror it. The
	// authoritative status change also arrives as subscription-updated, but
	// the invoice already tells us the payment landed.
	if inv.GatewaySubscriptionID != nil {
		sub, err := u.subs.FindByGatewayID(ctx, tx, *inv.GatewaySubscriptionID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Tolerated: the subscription-updated event may not have arrived
			// yet; the ledger entry still records the payment.
			log.Warn().
				Str("gateway_invoice_id", inv.GatewayInvoiceID).
				Str("gateway_subscription_id", *inv.GatewaySubscriptionID).
				Msg("invoice references unmirrored subscription")
		case err != nil:
			return err
		default:
			if !model.ExpectedTransition(sub.Status, model.SubscriptionStatusActive) {
				log.Warn().
					Str("gateway_subscription_id", *inv.GatewaySubscriptionID).
					Str("from", string(sub.Status)).
					Msg("paid invoice on subscription not expected to go active")
				metrics.IncOffGraphTransition(string(sub.Status), string(model.SubscriptionStatusActive))
			}
			sub.Status = model.SubscriptionStatusActive
			sub.CurrentPeriodStart = inv.PeriodStart
			sub.CurrentPeriodEnd = inv.PeriodEnd
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			if _, err := u.entitlement.Recompute(ctx, tx, sub.UserID, sub); err != nil {
				return err
			}
			subID = &sub.ID
		}
	}

	// Tie the ledger entry to the payment record when the gateway linked one.
	if inv.GatewayPaymentIntentID != nil {
		snap := &PaymentSnapshot{
			GatewayPaymentIntentID: *inv.GatewayPaymentIntentID,
			GatewayCustomerID:      inv.GatewayCustomerID,
			InvoiceID:              &inv.GatewayInvoiceID,
			SubscriptionID:         subID,
			Amount:                 inv.AmountPaid,
			Currency:               inv.Currency,
			Status:                 model.PaymentStatusSucceeded,
		}
		rec, err := u.ApplyPaymentSnapshot(ctx, tx, snap)
		if err != nil {
			return err
		}
		paymentID = &rec.ID
	}

	entry := &model.LedgerEntry{
		ID:             model.NewLedgerEntryID(now),
		UserID:         user.ID,
		SubscriptionID: subID,
		PaymentID:      paymentID,
		Amount:         inv.AmountPaid,
		Currency:       inv.Currency,
		Description:    fmt.Sprintf("invoice %s", inv.GatewayInvoiceID),
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		CreatedAt:      now,
	}
	if err := u.ledger.Append(ctx, tx, entry); err != nil {
		return err
	}
	metrics.IncLedgerEntry()
	metrics.AddPaymentRevenue(inv.Currency, inv.AmountPaid)
	return nil
}

func (u *paymentSyncUC) ApplyInvoiceFailed(ctx context.Context, tx repository.Tx, inv *InvoiceSnapshot) error {
	if inv == nil || inv.GatewayInvoiceID == "" {
		return domain.ErrInvalidArgument
	}
	if inv.GatewaySubscriptionID == nil {
		// One-off invoice failure: nothing to mirror, not a billing fact.
		return nil
	}

	sub, err := u.subs.FindByGatewayID(ctx, tx, *inv.GatewaySubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnknownCustomer
		}
		return err
	}

	if !model.ExpectedTransition(sub.Status, model.SubscriptionStatusPastDue) {
		logging.With(ctx, u.log).Warn().
			Str("gateway_subscription_id", *inv.GatewaySubscriptionID).
			Str("from", string(sub.Status)).
			Msg("invoice failure on subscription not expected to go past_due")
		metrics.IncOffGraphTransition(string(sub.Status), string(model.SubscriptionStatusPastDue))
	}

	sub.Status = model.SubscriptionStatusPastDue
	sub.UpdatedAt = u.now()
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	_, err = u.entitlement.Recompute(ctx, tx, sub.UserID, sub)
	return err
}

func coalesce(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
