package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX is passed where a method runs outside any transaction.
var NoTX Tx

// TransactionManager executes a function inside a database transaction,
// passing the underlying handle via `tx`.
//
// Repositories accept `tx Tx` and detect a transaction implementation-side
// (e.g. pgx.Tx for Postgres), so use-case interfaces stay free of storage
// types. Repositories MUST gracefully accept nil tx (non-transactional path).
//
// USAGE
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		sub, err := subs.FindByGatewayID(ctx, tx, id)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
