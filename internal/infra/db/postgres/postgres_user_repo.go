package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, gateway_customer_id, is_premium, plan, premium_expiry, created_at, updated_at`

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, gateway_customer_id, is_premium, plan, premium_expiry, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  email=$2, gateway_customer_id=$3, is_premium=$4, plan=$5, premium_expiry=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.GatewayCustomerID, u.IsPremium, u.Plan, u.PremiumExpiry, u.CreatedAt, u.UpdatedAt)
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

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *userRepo) FindByGatewayCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE gateway_customer_id=$1;`
	return r.queryOne(ctx, tx, q, customerID)
}

func (r *userRepo) UpdateEntitlement(ctx context.Context, tx repository.Tx, userID string, ent model.Entitlement) error {
	const q = `UPDATE users SET is_premium=$2, plan=$3, premium_expiry=$4, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, ent.IsPremium, ent.Plan, ent.PremiumExpiry)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) ListPremiumExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE is_premium=true AND premium_expiry IS NOT NULL AND premium_expiry < $1 ORDER BY premium_expiry ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u := new(model.User)
		if err := scanUser(rows, u); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func scanUser(row pgx.Row, u *model.User) error {
	return row.Scan(&u.ID, &u.Email, &u.GatewayCustomerID, &u.IsPremium, &u.Plan, &u.PremiumExpiry, &u.CreatedAt, &u.UpdatedAt)
}
