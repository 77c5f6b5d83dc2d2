package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, gateway_subscription_id, gateway_customer_id, plan, status,
  current_period_start, current_period_end, cancel_at_period_end, canceled_at,
  trial_start, trial_end, created_at, updated_at`

// Save upserts on the gateway_subscription_id unique constraint so two
// concurrent first-sight events cannot double-create the mirror row. Snapshot
// fields are unconditional overwrites: the gateway is authoritative.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, gateway_subscription_id, gateway_customer_id, plan, status,
  current_period_start, current_period_end, cancel_at_period_end, canceled_at,
  trial_start, trial_end, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (gateway_subscription_id) DO UPDATE SET
  gateway_customer_id=$4, plan=$5, status=$6,
  current_period_start=$7, current_period_end=$8, cancel_at_period_end=$9,
  canceled_at=$10, trial_start=$11, trial_end=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.GatewaySubscriptionID, s.GatewayCustomerID, s.Plan, s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.CanceledAt,
		s.TrialStart, s.TrialEnd, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewaySubscriptionID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE gateway_subscription_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, gatewaySubscriptionID)
}

func (r *subscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.GatewaySubscriptionID, &s.GatewayCustomerID, &s.Plan, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CanceledAt,
		&s.TrialStart, &s.TrialEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
