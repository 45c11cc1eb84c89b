// Package account is the narrow data-access surface over the accounts
// table. Accounts are provisioned externally to this core; the
// authorization pipeline itself only ever reads them, but the
// repository also exposes the write operations an account-management
// surface outside this core's scope needs.
package account

import (
	"context"
	"database/sql"
	"errors"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the accounts data-access surface bound to an open unit
// of work. Add and UpdateStatus exist for account provisioning and
// lifecycle management, both external to the authorization pipeline's
// own happy path, which only ever reads.
type Repository interface {
	GetByID(ctx context.Context, id string) (*mmodel.Account, error)
	Add(ctx context.Context, a *mmodel.Account) error
	UpdateStatus(ctx context.Context, id string, status mmodel.AccountStatus) error
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the account with the given id, or (nil, nil) if none
// exists — not-found is represented as an absent value, never an error.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*mmodel.Account, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("id", "owner_id", "currency", "status", "created_at", "updated_at").
		From("accounts").
		Where(sqrl.Eq{"id": id}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	var a mmodel.Account

	row := exec.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Currency, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &a, nil
}

// Add inserts a new account row. Provisioning is external to the
// authorization pipeline; this exists for the account-management
// surface that creates the rows the pipeline later reads.
func (r *PostgresRepository) Add(ctx context.Context, a *mmodel.Account) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Insert("accounts").
		Columns("id", "owner_id", "currency", "status", "created_at", "updated_at").
		Values(a.ID, a.OwnerID, a.Currency, a.Status, a.CreatedAt, a.UpdatedAt).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// UpdateStatus transitions an account's status, e.g. ACTIVE to CLOSED.
// The pipeline never calls this; it exists for the account-management
// surface.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status mmodel.AccountStatus) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("accounts").
		Set("status", status).
		Set("updated_at", sqrl.Expr("now()")).
		Where(sqrl.Eq{"id": id}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}
