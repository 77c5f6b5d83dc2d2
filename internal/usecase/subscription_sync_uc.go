package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/adapter"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/infra/metrics"
)

var _ SubscriptionSyncUseCase = (*subscriptionSyncUC)(nil)

// SubscriptionSyncUseCase applies gateway subscription snapshots to the local
// mirror. Both entry paths use it: webhook handlers and the checkout flow's
// synchronous API responses.
type SubscriptionSyncUseCase interface {
	// ApplySnapshot upserts the mirror row by gateway subscription id,
	// overwrites mutable fields last-write-received-wins, and recomputes the
	// owning user's entitlement in the same unit of work.
	ApplySnapshot(ctx context.Context, tx repository.Tx, snap *adapter.SubscriptionSnapshot) (*model.Subscription, error)
}

type subscriptionSyncUC struct {
	subs        repository.SubscriptionRepository
	users       repository.UserRepository
	entitlement EntitlementUseCase
	log         *zerolog.Logger
	now         func() time.Time
}

func NewSubscriptionSyncUseCase(subs repository.SubscriptionRepository, users repository.UserRepository, entitlement EntitlementUseCase, logger *zerolog.Logger) *subscriptionSyncUC {
	l := logger.With().Str("component", "SubscriptionSyncUC").Logger()
	return &subscriptionSyncUC{subs: subs, users: users, entitlement: entitlement, log: &l, now: time.Now}
}

func (u *subscriptionSyncUC) ApplySnapshot(ctx context.Context, tx repository.Tx, snap *adapter.SubscriptionSnapshot) (*model.Subscription, error) {
	if snap == nil || snap.GatewaySubscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, u.log)

	status := model.SubscriptionStatus(snap.Status)
	if !model.ValidStatus(status) {
		log.Warn().
			Str("gateway_subscription_id", snap.GatewaySubscriptionID).
			Str("status", snap.Status).
			Msg("gateway reported unknown subscription status")
		return nil, domain.ErrMalformedPayload
	}

	now := u.now()
	sub, err := u.subs.FindByGatewayID(ctx, tx, snap.GatewaySubscriptionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// First sync: the creation flow already wrote the customer mapping.
		user, uerr := u.users.FindByGatewayCustomerID(ctx, tx, snap.GatewayCustomerID)
		if uerr != nil {
			if errors.Is(uerr, domain.ErrNotFound) {
				return nil, domain.ErrUnknownCustomer
			}
			return nil, uerr
		}
		gwID := snap.GatewaySubscriptionID
		sub = &model.Subscription{
			ID:                    uuid.NewString(),
			UserID:                user.ID,
			GatewaySubscriptionID: &gwID,
			CreatedAt:             now,
		}
	case err != nil:
		return nil, err
	default:
		if !model.ExpectedTransition(sub.Status, status) {
			// Applied anyway: the gateway is authoritative. Logged as a
			// correctness signal, commonly out-of-order delivery.
			log.Warn().
				Str("gateway_subscription_id", snap.GatewaySubscriptionID).
				Str("from", string(sub.Status)).
				Str("to", string(status)).
				Msg("subscription status transition outside expected graph")
			metrics.IncOffGraphTransition(string(sub.Status), string(status))
		}
	}

	plan, known := planFromCode(snap.PlanCode)
	if !known && snap.PlanCode != "" {
		log.Warn().
			Str("gateway_subscription_id", snap.GatewaySubscriptionID).
			Str("plan_code", snap.PlanCode).
			Msg("unknown gateway plan code, defaulting to basic")
	}

	sub.GatewayCustomerID = snap.GatewayCustomerID
	sub.Plan = plan
	sub.Status = status
	sub.CurrentPeriodStart = snap.CurrentPeriodStart
	sub.CurrentPeriodEnd = snap.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	sub.CanceledAt = snap.CanceledAt
	sub.TrialStart = snap.TrialStart
	sub.TrialEnd = snap.TrialEnd
	sub.UpdatedAt = now

	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	if _, err := u.entitlement.Recompute(ctx, tx, sub.UserID, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
