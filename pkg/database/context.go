package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const (
	// TxKey is the context key for storing the active transaction.
	TxKey contextKey = "tx"
)

// Querier is the subset of pgx shared by the pool, a pooled connection and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetTx retrieves the active transaction from context.
// Returns nil and false if not present.
func GetTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(TxKey).(pgx.Tx)
	return tx, ok
}

// SetTx stores the transaction in context.
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, TxKey, tx)
}

// Querier returns the transaction carried by ctx, or the pool when there is none.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return db.Pool
}
