package balance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

func TestPostgresRepository_GetForUpdate_LocksRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"account_id", "available_balance_cents", "pending_balance_cents", "currency", "version", "updated_at"}).
		AddRow("acc-1", int64(10000), int64(0), "USD", int64(3), now)

	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("acc-1").
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)

	b, err := repo.GetForUpdate(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(10000), b.AvailableCents)
	assert.Equal(t, int64(3), b.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Update_OptimisticLockFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE account_balances SET").
		WithArgs(int64(5000), "acc-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)

	err = repo.Update(context.Background(), "acc-1", 5000, 2)
	require.Error(t, err)

	var lockErr *mmodel.OptimisticLockError
	assert.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "acc-1", lockErr.EntityID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Update_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE account_balances SET").
		WithArgs(int64(5000), "acc-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepository(db)

	err = repo.Update(context.Background(), "acc-1", 5000, 2)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
