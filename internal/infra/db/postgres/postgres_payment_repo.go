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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, subscription_id, gateway_payment_intent_id, gateway_charge_id, amount, currency, status, created_at, updated_at`

// Save upserts on the gateway_payment_intent_id unique constraint. Status is
// mutated in place as later events arrive for the same intent; rows are never
// deleted.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payment_records (
  id, user_id, subscription_id, gateway_payment_intent_id, gateway_charge_id, amount, currency, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (gateway_payment_intent_id) DO UPDATE SET
  subscription_id=COALESCE($3, payment_records.subscription_id),
  gateway_charge_id=COALESCE($5, payment_records.gateway_charge_id),
  amount=$6, currency=$7, status=$8, updated_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.SubscriptionID, p.GatewayPaymentIntentID, p.GatewayChargeID,
		p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt)
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

func (r *paymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, gatewayPaymentIntentID string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payment_records WHERE gateway_payment_intent_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, gatewayPaymentIntentID)
	if err != nil {
		return nil, err
	}
	p := &model.PaymentRecord{}
	if err := scanPayment(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + paymentColumns + ` FROM payment_records WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p := new(model.PaymentRecord)
		if err := scanPayment(rows, p); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row, p *model.PaymentRecord) error {
	return row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.GatewayPaymentIntentID, &p.GatewayChargeID,
		&p.Amount, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
}
