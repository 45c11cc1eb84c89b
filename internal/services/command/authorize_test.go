package command

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/internal/idgen"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
	"github.com/ledgerflow/paymentcore/internal/uow"
)

// discardLogger satisfies mlog.Logger by doing nothing; tests care
// about pipeline outcomes, not log output.
type discardLogger struct{}

func (discardLogger) Info(args ...any)                  {}
func (discardLogger) Infof(format string, args ...any)  {}
func (discardLogger) Error(args ...any)                 {}
func (discardLogger) Errorf(format string, args ...any) {}
func (discardLogger) Warn(args ...any)                  {}
func (discardLogger) Warnf(format string, args ...any)  {}
func (discardLogger) Debug(args ...any)                 {}
func (discardLogger) Debugf(format string, args ...any) {}
func (discardLogger) Fatal(args ...any)                 {}
func (discardLogger) Fatalf(format string, args ...any) {}
func (discardLogger) WithFields(fields ...any) mlog.Logger { return discardLogger{} }
func (discardLogger) Sync() error                          { return nil }

func TestUseCase_Authorize_SameAccountDecline(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k3").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE idempotency_keys SET status").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k3",
		PayerAccountID: "A",
		PayeeAccountID: "A",
		AmountCents:    100,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusDeclined, result.Status)
	assert.Equal(t, "SAME_ACCOUNT", result.ErrorCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_InvalidAmountDecline(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k-invalid").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE idempotency_keys SET status").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-invalid",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    0,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusDeclined, result.Status)
	assert.Equal(t, "INVALID_AMOUNT", result.ErrorCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_DuplicateReturnsStoredResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectBegin()

	rows := sqlmock.NewRows([]string{"key", "status", "payment_id", "response_data", "created_at", "expires_at"}).
		AddRow("k1", mmodel.IdempotencyStatusCompleted, "pay-1", nil, now, now.Add(24*time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k1",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    5000,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusDuplicate, result.Status)
	assert.Equal(t, "pay-1", result.PaymentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// fakeCache is a hand-written stub of ResponseCache for this narrow,
// single-call interface.
type fakeCache struct {
	entries map[string][]byte
	puts    int
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.entries[key]
	if !ok {
		return nil, nil
	}

	return v, nil
}

func (c *fakeCache) Put(_ context.Context, key string, response []byte, _ time.Duration) error {
	c.puts++

	if c.entries == nil {
		c.entries = map[string][]byte{}
	}

	c.entries[key] = response

	return nil
}

func TestUseCase_Authorize_CacheHitSkipsUnitOfWork(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	cache := &fakeCache{entries: map[string][]byte{
		"k-cached": []byte(`{"payment_id":"pay-cached","created_at":"` + now.Format(time.RFC3339Nano) + `"}`),
	}}

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})
	uc.Cache = cache

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-cached",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    5000,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusDuplicate, result.Status)
	assert.Equal(t, "pay-cached", result.PaymentID)

	// No Begin/Commit expectations were set: a cache hit never opens a
	// unit of work.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_AccountNotFoundDecline(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("A").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("UPDATE idempotency_keys SET status").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-missing",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    100,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusDeclined, result.Status)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", result.ErrorCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_Authorized(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	accountCols := []string{"id", "owner_id", "currency", "status", "created_at", "updated_at"}
	balanceCols := []string{"account_id", "available_balance_cents", "pending_balance_cents", "currency", "version", "updated_at"}

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k-auth").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("A", "owner-a", "USD", mmodel.AccountStatusActive, now, now))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("B", "owner-b", "USD", mmodel.AccountStatusActive, now, now))

	// pre-lock snapshot read, no FOR UPDATE suffix
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1$").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(10000), int64(0), "USD", int64(1), now))

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// transfer() locks in lexicographic order: "A" then "B".
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(10000), int64(0), "USD", int64(1), now))
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("B", int64(2000), int64(0), "USD", int64(1), now))

	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "A", mmodel.LedgerEntryDebit, int64(5000), "USD", int64(5000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "B", mmodel.LedgerEntryCredit, int64(5000), "USD", int64(7000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("UPDATE account_balances SET").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE account_balances SET").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("INSERT INTO outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("UPDATE idempotency_keys SET status").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-auth",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    5000,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, mmodel.PaymentStatusAuthorized, result.Status)
	assert.NotEmpty(t, result.PaymentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_PostLockInsufficientFundsIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	accountCols := []string{"id", "owner_id", "currency", "status", "created_at", "updated_at"}
	balanceCols := []string{"account_id", "available_balance_cents", "pending_balance_cents", "currency", "version", "updated_at"}

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k-race").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("A", "owner-a", "USD", mmodel.AccountStatusActive, now, now))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("B", "owner-b", "USD", mmodel.AccountStatusActive, now, now))

	// validate() sees a comfortable snapshot balance...
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1$").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(10000), int64(0), "USD", int64(1), now))

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// ...but a concurrent transfer has drained it by the time transfer()
	// acquires the row lock.
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(1000), int64(0), "USD", int64(2), now))
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("B", int64(2000), int64(0), "USD", int64(1), now))

	mock.ExpectRollback()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-race",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    5000,
		Currency:       "USD",
	})
	require.Error(t, err)
	assert.Nil(t, result)

	var insufficientFunds *mmodel.InsufficientFundsError
	assert.ErrorAs(t, err, &insufficientFunds)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUseCase_Authorize_PostLockOptimisticLockIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	accountCols := []string{"id", "owner_id", "currency", "status", "created_at", "updated_at"}
	balanceCols := []string{"account_id", "available_balance_cents", "pending_balance_cents", "currency", "version", "updated_at"}

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM idempotency_keys WHERE key = \\$1").
		WithArgs("k-lock").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("A", "owner-a", "USD", mmodel.AccountStatusActive, now, now))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("B", "owner-b", "USD", mmodel.AccountStatusActive, now, now))

	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1$").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(10000), int64(0), "USD", int64(1), now))

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("A", int64(10000), int64(0), "USD", int64(1), now))
	mock.ExpectQuery("SELECT (.+) FROM account_balances WHERE account_id = \\$1 FOR UPDATE").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow("B", int64(2000), int64(0), "USD", int64(1), now))

	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// the payer's version already moved on; Update affects zero rows.
	mock.ExpectExec("UPDATE account_balances SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectRollback()

	uc := NewUseCase(uow.NewFactory(db), idgen.New(), discardLogger{})

	result, err := uc.Authorize(context.Background(), Command{
		IdempotencyKey: "k-lock",
		PayerAccountID: "A",
		PayeeAccountID: "B",
		AmountCents:    5000,
		Currency:       "USD",
	})
	require.Error(t, err)
	assert.Nil(t, result)

	var optimisticLock *mmodel.OptimisticLockError
	assert.ErrorAs(t, err, &optimisticLock)

	assert.NoError(t, mock.ExpectationsWereMet())
}
