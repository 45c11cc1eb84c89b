package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

func TestPostgresRepository_GetUnpublished_LocksAndSkips(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at", "retry_count"}).
		AddRow("evt-1", "Payment", "pay-1", "PaymentAuthorized", []byte(`{"payment_id":"pay-1"}`), now, 0)

	mock.ExpectQuery("SELECT (.+) FROM outbox WHERE published_at IS NULL ORDER BY created_at ASC LIMIT 100 FOR UPDATE SKIP LOCKED").
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)

	events, err := repo.GetUnpublished(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "pay-1", events[0].AggregateID)
	assert.Equal(t, "pay-1", events[0].Payload["payment_id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Add_MarshalsPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)

	err = repo.Add(context.Background(), &mmodel.OutboxEvent{
		ID:            "evt-1",
		AggregateType: "Payment",
		AggregateID:   "pay-1",
		EventType:     "PaymentAuthorized",
		Payload:       map[string]any{"payment_id": "pay-1"},
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_MarkPublished_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)

	assert.NoError(t, repo.MarkPublished(context.Background(), nil))
}
