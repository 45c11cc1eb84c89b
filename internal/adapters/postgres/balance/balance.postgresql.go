// Package balance is the data-access surface over account_balances: a
// snapshot read, a locked read used to serialize concurrent transfers,
// and a version-guarded update implementing optimistic concurrency.
package balance

import (
	"context"
	"database/sql"
	"errors"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the account-balance data-access surface bound to an
// open unit of work.
type Repository interface {
	Get(ctx context.Context, accountID string) (*mmodel.AccountBalance, error)
	GetForUpdate(ctx context.Context, accountID string) (*mmodel.AccountBalance, error)
	Update(ctx context.Context, accountID string, newAvailableCents, expectedVersion int64) error
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns a snapshot read of the balance, taking no lock.
func (r *PostgresRepository) Get(ctx context.Context, accountID string) (*mmodel.AccountBalance, error) {
	return r.get(ctx, accountID, false)
}

// GetForUpdate acquires a row-level exclusive lock on the balance row,
// held until the enclosing transaction ends. Callers are responsible for
// acquiring these locks in a globally consistent order across a
// transfer's two accounts to avoid deadlocks.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, accountID string) (*mmodel.AccountBalance, error) {
	return r.get(ctx, accountID, true)
}

func (r *PostgresRepository) get(ctx context.Context, accountID string, forUpdate bool) (*mmodel.AccountBalance, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	builder := sqrl.
		Select("account_id", "available_balance_cents", "pending_balance_cents", "currency", "version", "updated_at").
		From("account_balances").
		Where(sqrl.Eq{"account_id": accountID}).
		PlaceholderFormat(placeholder)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	if forUpdate {
		query += " FOR UPDATE"
	}

	var b mmodel.AccountBalance

	row := exec.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&b.AccountID, &b.AvailableCents, &b.PendingCents, &b.Currency, &b.Version, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &b, nil
}

// Update conditionally sets available_balance_cents and increments
// version iff the stored version equals expectedVersion. A zero
// affected-row count is surfaced to the caller as a domain
// OptimisticLockError, not a plain sentinel.
func (r *PostgresRepository) Update(ctx context.Context, accountID string, newAvailableCents, expectedVersion int64) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("account_balances").
		Set("available_balance_cents", newAvailableCents).
		Set("version", sqrl.Expr("version + 1")).
		Set("updated_at", sqrl.Expr("now()")).
		Where(sqrl.Eq{"account_id": accountID, "version": expectedVersion}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return &mmodel.OptimisticLockError{Entity: "AccountBalance", EntityID: accountID}
	}

	return nil
}
