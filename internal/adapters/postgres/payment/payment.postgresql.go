// Package payment is the data-access surface over the payments table.
package payment

import (
	"context"
	"database/sql"
	"errors"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the payments data-access surface bound to an open unit
// of work.
type Repository interface {
	GetByID(ctx context.Context, id string) (*mmodel.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*mmodel.Payment, error)
	Add(ctx context.Context, p *mmodel.Payment) error
	UpdateStatus(ctx context.Context, id string, status mmodel.PaymentStatus, errorCode, errorMessage string) error
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*mmodel.Payment, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (*mmodel.Payment, error) {
	return r.getBy(ctx, "idempotency_key", key)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*mmodel.Payment, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("id", "idempotency_key", "payer_account_id", "payee_account_id", "amount_cents",
			"currency", "status", "description", "error_code", "error_message", "created_at", "updated_at").
		From("payments").
		Where(sqrl.Eq{column: value}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p mmodel.Payment

	var description, errorCode, errorMessage sql.NullString

	row := exec.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&p.ID, &p.IdempotencyKey, &p.PayerAccountID, &p.PayeeAccountID, &p.AmountCents,
		&p.Currency, &p.Status, &description, &errorCode, &errorMessage, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	p.Description = description.String
	p.ErrorCode = errorCode.String
	p.ErrorMessage = errorMessage.String

	return &p, nil
}

// Add inserts a new payment row, invariably with status AUTHORIZED on
// the happy path of the pipeline.
func (r *PostgresRepository) Add(ctx context.Context, p *mmodel.Payment) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Insert("payments").
		Columns("id", "idempotency_key", "payer_account_id", "payee_account_id", "amount_cents",
			"currency", "status", "description", "error_code", "error_message", "created_at", "updated_at").
		Values(p.ID, p.IdempotencyKey, p.PayerAccountID, p.PayeeAccountID, p.AmountCents,
			p.Currency, p.Status, p.Description, nullableString(p.ErrorCode),
			nullableString(p.ErrorMessage), p.CreatedAt, p.UpdatedAt).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// UpdateStatus is used only by externally-driven state changes; the
// core's happy path never mutates a payment after authorization commit.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status mmodel.PaymentStatus, errorCode, errorMessage string) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("payments").
		Set("status", status).
		Set("error_code", nullableString(errorCode)).
		Set("error_message", nullableString(errorMessage)).
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

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
