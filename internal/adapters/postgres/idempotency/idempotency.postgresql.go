// Package idempotency is the data-access surface over idempotency_keys,
// the record that makes repeated authorize calls under the same
// caller-supplied key safe to retry.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the idempotency-keys data-access surface bound to an
// open unit of work.
type Repository interface {
	Get(ctx context.Context, key string, now time.Time) (*mmodel.IdempotencyRecord, error)
	Create(ctx context.Context, key string, expiresAt time.Time) error
	MarkCompleted(ctx context.Context, key, paymentID string, response []byte) error
	MarkFailed(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the record for key iff it exists and has not expired as
// of now; an expired or absent record is reported as (nil, nil).
func (r *PostgresRepository) Get(ctx context.Context, key string, now time.Time) (*mmodel.IdempotencyRecord, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("key", "status", "payment_id", "response_data", "created_at", "expires_at").
		From("idempotency_keys").
		Where(sqrl.Eq{"key": key}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rec mmodel.IdempotencyRecord

	var paymentID sql.NullString

	var response []byte

	row := exec.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&rec.Key, &rec.Status, &paymentID, &response, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	rec.PaymentID = paymentID.String
	rec.ResponseData = response

	if rec.Expired(now) {
		return nil, nil
	}

	return &rec, nil
}

// Create inserts a PENDING record with the given expiry. If key already
// exists, the insert is a silent no-op: the caller proceeds as if no
// record had been present, and the existing row is finalized later.
func (r *PostgresRepository) Create(ctx context.Context, key string, expiresAt time.Time) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Insert("idempotency_keys").
		Columns("key", "status", "created_at", "expires_at").
		Values(key, mmodel.IdempotencyStatusPending, sqrl.Expr("now()"), expiresAt).
		Suffix("ON CONFLICT (key) DO NOTHING").
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// MarkCompleted transitions the record to COMPLETED, recording the
// resulting payment id and optional cached response envelope.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, key, paymentID string, response []byte) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("idempotency_keys").
		Set("status", mmodel.IdempotencyStatusCompleted).
		Set("payment_id", paymentID).
		Set("response_data", response).
		Where(sqrl.Eq{"key": key}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// MarkFailed transitions the record to FAILED.
func (r *PostgresRepository) MarkFailed(ctx context.Context, key string) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("idempotency_keys").
		Set("status", mmodel.IdempotencyStatusFailed).
		Where(sqrl.Eq{"key": key}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// DeleteExpired prunes every record whose expiry instant has passed as
// of now and reports how many rows were removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Delete("idempotency_keys").
		Where(sqrl.Lt{"expires_at": now}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
