package account

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

func TestPostgresRepository_GetByID_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "currency", "status", "created_at", "updated_at"}).
		AddRow("01ACC0000000000000000000AA", "owner-1", "USD", "ACTIVE", now, now)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("01ACC0000000000000000000AA").
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)

	acc, err := repo.GetByID(context.Background(), "01ACC0000000000000000000AA")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "owner-1", acc.OwnerID)
	assert.Equal(t, "USD", acc.Currency)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewPostgresRepository(db)

	acc, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, acc)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Add(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("01ACC0000000000000000000AA", "owner-1", "USD", "ACTIVE", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)

	err = repo.Add(context.Background(), &mmodel.Account{
		ID:        "01ACC0000000000000000000AA",
		OwnerID:   "owner-1",
		Currency:  "USD",
		Status:    mmodel.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE accounts SET status").
		WithArgs(mmodel.AccountStatusClosed, "01ACC0000000000000000000AA").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)

	err = repo.UpdateStatus(context.Background(), "01ACC0000000000000000000AA", mmodel.AccountStatusClosed)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
