// Package ledger is the data-access surface over the append-only
// ledger_entries table.
package ledger

import (
	"context"
	"database/sql"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the ledger-entries data-access surface bound to an open
// unit of work.
type Repository interface {
	Add(ctx context.Context, e *mmodel.LedgerEntry) error
	ListByPayment(ctx context.Context, paymentID string) ([]*mmodel.LedgerEntry, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*mmodel.LedgerEntry, error)
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add appends one ledger entry. Two calls (one DEBIT, one CREDIT) are
// made per authorized payment, inside the same transaction as the
// balance updates they describe.
func (r *PostgresRepository) Add(ctx context.Context, e *mmodel.LedgerEntry) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Insert("ledger_entries").
		Columns("id", "payment_id", "account_id", "entry_type", "amount_cents", "currency", "balance_after_cents", "created_at").
		Values(e.ID, e.PaymentID, e.AccountID, e.EntryType, e.AmountCents, e.Currency, e.BalanceAfterCents, e.CreatedAt).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// ListByPayment returns the entries for a payment, ordered by creation.
func (r *PostgresRepository) ListByPayment(ctx context.Context, paymentID string) ([]*mmodel.LedgerEntry, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("id", "payment_id", "account_id", "entry_type", "amount_cents", "currency", "balance_after_cents", "created_at").
		From("ledger_entries").
		Where(sqrl.Eq{"payment_id": paymentID}).
		OrderBy("created_at ASC").
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.scanRows(exec.QueryContext(ctx, query, args...))
}

// ListByAccount returns the most recent entries touching an account,
// newest first, bounded by limit.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*mmodel.LedgerEntry, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("id", "payment_id", "account_id", "entry_type", "amount_cents", "currency", "balance_after_cents", "created_at").
		From("ledger_entries").
		Where(sqrl.Eq{"account_id": accountID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.scanRows(exec.QueryContext(ctx, query, args...))
}

func (r *PostgresRepository) scanRows(rows *sql.Rows, err error) ([]*mmodel.LedgerEntry, error) {
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []*mmodel.LedgerEntry

	for rows.Next() {
		var e mmodel.LedgerEntry

		if err := rows.Scan(&e.ID, &e.PaymentID, &e.AccountID, &e.EntryType, &e.AmountCents,
			&e.Currency, &e.BalanceAfterCents, &e.CreatedAt); err != nil {
			return nil, err
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
