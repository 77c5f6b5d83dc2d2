package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/adapter"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/logging"
)

var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase drives the outbound gateway calls. The gateway call itself
// happens outside any transaction, since an external dependency must never
// sit inside the atomic unit. Its synchronous result is then applied through
// the same snapshot path the webhook handlers use, so the two entry paths
// cannot diverge.
type CheckoutUseCase interface {
	Subscribe(ctx context.Context, userID, planCode string) (*model.Subscription, error)
	Cancel(ctx context.Context, userID string, atPeriodEnd bool) (*model.Subscription, error)
}

type checkoutUC struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	subSync SubscriptionSyncUseCase
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewCheckoutUseCase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	subSync SubscriptionSyncUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{users: users, subs: subs, gateway: gateway, subSync: subSync, tm: tm, log: &l}
}

func (u *checkoutUC) Subscribe(ctx context.Context, userID, planCode string) (*model.Subscription, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	if user.GatewayCustomerID == nil {
		customerID, err := u.gateway.CreateCustomer(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		user.GatewayCustomerID = &customerID
		user.UpdatedAt = time.Now()
		if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
			return nil, err
		}
		logging.With(ctx, u.log).Info().Str("gateway_customer_id", customerID).Msg("gateway customer created")
	}

	snap, err := u.gateway.CreateSubscription(ctx, *user.GatewayCustomerID, planCode)
	if err != nil {
		return nil, err
	}
	return u.applySnapshot(ctx, snap)
}

func (u *checkoutUC) Cancel(ctx context.Context, userID string, atPeriodEnd bool) (*model.Subscription, error) {
	sub, err := u.subs.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if sub.GatewaySubscriptionID == nil {
		return nil, domain.ErrNotFound
	}

	snap, err := u.gateway.CancelSubscription(ctx, *sub.GatewaySubscriptionID, atPeriodEnd)
	if err != nil {
		return nil, err
	}
	return u.applySnapshot(ctx, snap)
}

// applySnapshot wraps the shared webhook apply path in its own unit of work.
func (u *checkoutUC) applySnapshot(ctx context.Context, snap *adapter.SubscriptionSnapshot) (*model.Subscription, error) {
	var sub *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = u.subSync.ApplySnapshot(ctx, tx, snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
