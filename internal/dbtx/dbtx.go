// Package dbtx implements the unit-of-work primitive the authorization
// pipeline and the outbox dispatcher both run inside: a single database
// transaction, threaded through context.Context, shared by every
// repository invoked during its lifetime.
package dbtx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// Executor is satisfied by both *sql.DB and *sql.Tx; repositories
// depend on this instead of concretely depending on one or the other.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ContextWithTx returns a context carrying tx. A nil tx is stored as-is;
// TxFromContext on such a context returns nil.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, or nil if none
// was stored.
func TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// GetExecutor returns the transaction in ctx if one is present,
// otherwise falls back to db. Repositories call this once per method to
// transparently participate in an enclosing unit of work.
func GetExecutor(ctx context.Context, db *sql.DB) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}

	return db
}

// RunInTransaction begins a transaction on db, stores it in ctx, invokes
// fn, and commits on a nil return or rolls back otherwise. fn's error is
// returned verbatim.
func RunInTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := ContextWithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return nil
}
