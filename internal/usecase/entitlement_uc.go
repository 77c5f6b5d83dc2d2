package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

type EntitlementUseCase interface {
	// Recompute derives the entitlement from the subscription and persists it
	// onto the user row, inside the caller's unit of work. This is the single
	// write path for the denormalized fields.
	Recompute(ctx context.Context, tx repository.Tx, userID string, sub *model.Subscription) (model.Entitlement, error)

	// Get reads the denormalized fields. Never recomputes.
	Get(ctx context.Context, userID string) (model.Entitlement, error)

	// ExpireStale downgrades users whose cached premium_expiry has passed
	// without any webhook arriving. Returns how many users were downgraded.
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type entitlementUC struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewEntitlementUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUC").Logger()
	return &entitlementUC{users: users, subs: subs, tm: tm, log: &l, now: time.Now}
}

func (u *entitlementUC) Recompute(ctx context.Context, tx repository.Tx, userID string, sub *model.Subscription) (model.Entitlement, error) {
	ent := model.ResolveEntitlement(sub, u.now())
	if err := u.users.UpdateEntitlement(ctx, tx, userID, ent); err != nil {
		return model.Entitlement{}, err
	}
	metrics.IncEntitlementRecompute(string(ent.Plan))
	return ent, nil
}

func (u *entitlementUC) Get(ctx context.Context, userID string) (model.Entitlement, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return model.Entitlement{}, err
	}
	return user.Entitlement(), nil
}

func (u *entitlementUC) ExpireStale(ctx context.Context, limit int) (int, error) {
	stale, err := u.users.ListPremiumExpiredBefore(ctx, repository.NoTX, u.now(), limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, user := range stale {
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			sub, err := u.subs.FindByUserID(ctx, tx, user.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			_, err = u.Recompute(ctx, tx, user.ID, sub)
			return err
		})
		if err != nil {
			u.log.Error().Err(err).Str("user_id", user.ID).Msg("expiry recompute failed")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.AddEntitlementsExpired(n)
	}
	return n, nil
}
