// Package outbox is the data-access surface over the outbox table, the
// durable record of pending event emissions drained by the dispatcher.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/ledgerflow/paymentcore/internal/dbtx"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

var placeholder = sqrl.Dollar

// Repository is the outbox data-access surface bound to an open unit of
// work.
type Repository interface {
	Add(ctx context.Context, e *mmodel.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*mmodel.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
	IncrementRetryCount(ctx context.Context, id string) error
}

// PostgresRepository is the postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add inserts a new outbox row. Callers must invoke this inside the
// same transaction as the business mutation that produced the event.
func (r *PostgresRepository) Add(ctx context.Context, e *mmodel.OutboxEvent) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	query, args, err := sqrl.
		Insert("outbox").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at", "retry_count").
		Values(e.ID, e.AggregateType, e.AggregateID, e.EventType, payload, e.CreatedAt, e.RetryCount).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// GetUnpublished returns up to limit unpublished rows ordered by
// creation ascending, locking each returned row for the remainder of
// the caller's transaction and skipping rows already locked by a
// concurrent dispatcher so no two dispatchers ever contend for the same
// row.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*mmodel.OutboxEvent, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at", "retry_count").
		From("outbox").
		Where(sqrl.Eq{"published_at": nil}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var events []*mmodel.OutboxEvent

	for rows.Next() {
		var e mmodel.OutboxEvent

		var payload []byte

		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt, &e.RetryCount); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}

		events = append(events, &e)
	}

	return events, rows.Err()
}

// MarkPublished sets published_at to now for every given id. Once set,
// published_at never returns to null.
func (r *PostgresRepository) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("outbox").
		Set("published_at", sqrl.Expr("now()")).
		Where(sqrl.Eq{"id": ids}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}

// IncrementRetryCount atomically adds one to a row's retry_count.
func (r *PostgresRepository) IncrementRetryCount(ctx context.Context, id string) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	query, args, err := sqrl.
		Update("outbox").
		Set("retry_count", sqrl.Expr("retry_count + 1")).
		Where(sqrl.Eq{"id": id}).
		PlaceholderFormat(placeholder).
		ToSql()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, query, args...)

	return err
}
