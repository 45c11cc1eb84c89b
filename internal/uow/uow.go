// Package uow exposes the unit-of-work type the authorization pipeline
// and the outbox dispatcher both run inside: one instance of each
// repository, all bound to the same open database transaction.
package uow

import (
	"context"
	"database/sql"

	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/account"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/balance"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/idempotency"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/ledger"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/outbox"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/payment"
	"github.com/ledgerflow/paymentcore/internal/dbtx"
)

// UnitOfWork exposes one instance of each repository, all sharing the
// transaction carried by the context it is built from.
type UnitOfWork struct {
	Accounts    account.Repository
	Balances    balance.Repository
	Payments    payment.Repository
	Ledger      ledger.Repository
	Idempotency idempotency.Repository
	Outbox      outbox.Repository
}

// Factory builds a UnitOfWork bound to a single *sql.DB connection pool.
// Repositories constructed from the same Factory share db and therefore
// transparently join whichever transaction dbtx.RunInTransaction has put
// in the context they are invoked with.
type Factory struct {
	db *sql.DB
}

// NewFactory returns a Factory backed by db.
func NewFactory(db *sql.DB) *Factory {
	return &Factory{db: db}
}

// New builds a UnitOfWork. It does not itself open a transaction — call
// it from inside the function passed to dbtx.RunInTransaction (or on a
// plain context for read-only, lock-free access).
func (f *Factory) New() *UnitOfWork {
	return &UnitOfWork{
		Accounts:    account.NewPostgresRepository(f.db),
		Balances:    balance.NewPostgresRepository(f.db),
		Payments:    payment.NewPostgresRepository(f.db),
		Ledger:      ledger.NewPostgresRepository(f.db),
		Idempotency: idempotency.NewPostgresRepository(f.db),
		Outbox:      outbox.NewPostgresRepository(f.db),
	}
}

// RunInTransaction opens one database transaction, builds a UnitOfWork
// bound to it, and invokes fn. fn's error triggers rollback; a nil
// return commits. No implicit commit happens on any other path.
func (f *Factory) RunInTransaction(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) error {
	return dbtx.RunInTransaction(ctx, f.db, func(txCtx context.Context) error {
		return fn(txCtx, f.New())
	})
}
