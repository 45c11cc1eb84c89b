// Package command implements the authorization pipeline: the
// transactional use case that validates a transfer, mutates two
// balances under concurrency, writes a double-entry ledger, enqueues a
// domain event, and records idempotency state, all atomically.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/internal/idgen"
	"github.com/ledgerflow/paymentcore/internal/metrics"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
	"github.com/ledgerflow/paymentcore/internal/uow"
)

// defaultIdempotencyTTL is used whenever UseCase.IdempotencyTTL is left
// at its zero value.
const defaultIdempotencyTTL = 24 * time.Hour

// ResponseCache is a narrow read-through accelerator in front of the
// idempotency table: Get returns a cached result envelope for an
// idempotency key (nil, nil on a miss); Put stores one with a TTL.
// internal/adapters/redis.ResponseCache is the only production
// implementation. A nil Cache on UseCase disables the accelerator
// entirely; the postgres idempotency table remains authoritative
// either way.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// cachedResponse is the envelope ResponseCache stores: just enough to
// replay the DUPLICATE branch of the algorithm without touching
// postgres.
type cachedResponse struct {
	PaymentID string    `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Command is the caller-supplied authorization request.
type Command struct {
	IdempotencyKey string
	PayerAccountID string
	PayeeAccountID string
	AmountCents    int64
	Currency       string
	Description    string
}

// Result is the outcome of an authorize call.
type Result struct {
	PaymentID    string
	Status       mmodel.PaymentStatus
	ErrorCode    string
	ErrorMessage string
	ProcessedAt  time.Time
}

// UseCase orchestrates the authorization pipeline.
type UseCase struct {
	UOW    *uow.Factory
	IDGen  *idgen.Generator
	Logger mlog.Logger

	// Cache is an optional read-through accelerator checked before a
	// unit of work is opened at all. Nil disables it.
	Cache ResponseCache

	// IdempotencyTTL is how long a PENDING/COMPLETED idempotency record
	// (and its mirrored response-cache entry) remains valid. Zero falls
	// back to defaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// NewUseCase builds an authorization UseCase.
func NewUseCase(uowFactory *uow.Factory, idGen *idgen.Generator, logger mlog.Logger) *UseCase {
	return &UseCase{UOW: uowFactory, IDGen: idGen, Logger: logger}
}

// ttl returns IdempotencyTTL, falling back to defaultIdempotencyTTL when
// unset.
func (uc *UseCase) ttl() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}

	return uc.IdempotencyTTL
}

// decline is the internal representation of a pre-lock validation
// failure; it never leaves this file as an error value returned to the
// caller of Authorize.
type decline struct {
	code    string
	message string
}

// Authorize runs the full algorithm inside one unit of work: idempotency
// lookup, pre-lock validation, the locked transfer, ledger writes,
// outbox enqueue, and idempotency finalization.
func (uc *UseCase) Authorize(ctx context.Context, cmd Command) (*Result, error) {
	started := time.Now()

	if cached, hit := uc.lookupCache(ctx, cmd.IdempotencyKey); hit {
		metrics.RecordAuthorization(string(cached.Status), time.Since(started))
		return cached, nil
	}

	var result *Result

	err := uc.UOW.RunInTransaction(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		now := time.Now().UTC()

		existing, err := u.Idempotency.Get(ctx, cmd.IdempotencyKey, now)
		if err != nil {
			return err
		}

		if existing != nil && existing.Status == mmodel.IdempotencyStatusCompleted {
			result = &Result{
				PaymentID:   existing.PaymentID,
				Status:      mmodel.PaymentStatusDuplicate,
				ProcessedAt: existing.CreatedAt,
			}

			return nil
		}

		if existing == nil {
			if err := u.Idempotency.Create(ctx, cmd.IdempotencyKey, now.Add(uc.ttl())); err != nil {
				return err
			}
		}

		dec, err := uc.validate(ctx, u, cmd)
		if err != nil {
			return err
		}

		if dec != nil {
			if err := u.Idempotency.MarkFailed(ctx, cmd.IdempotencyKey); err != nil {
				return err
			}

			result = &Result{
				Status:       mmodel.PaymentStatusDeclined,
				ErrorCode:    dec.code,
				ErrorMessage: dec.message,
				ProcessedAt:  now,
			}

			return nil
		}

		paymentID, err := uc.IDGen.New()
		if err != nil {
			return err
		}

		payment := &mmodel.Payment{
			ID:             paymentID,
			IdempotencyKey: cmd.IdempotencyKey,
			PayerAccountID: cmd.PayerAccountID,
			PayeeAccountID: cmd.PayeeAccountID,
			AmountCents:    cmd.AmountCents,
			Currency:       cmd.Currency,
			Status:         mmodel.PaymentStatusAuthorized,
			Description:    cmd.Description,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := u.Payments.Add(ctx, payment); err != nil {
			return err
		}

		if err := uc.transfer(ctx, u, cmd, payment, now); err != nil {
			return err
		}

		if err := uc.enqueueOutboxEvent(ctx, u, payment, now); err != nil {
			return err
		}

		if err := u.Idempotency.MarkCompleted(ctx, cmd.IdempotencyKey, payment.ID, nil); err != nil {
			return err
		}

		result = &Result{
			PaymentID:   payment.ID,
			Status:      mmodel.PaymentStatusAuthorized,
			ProcessedAt: payment.CreatedAt,
		}

		return nil
	})
	if err != nil {
		var optimisticLock *mmodel.OptimisticLockError
		if errors.As(err, &optimisticLock) {
			metrics.RecordOptimisticLockConflict(optimisticLock.Entity)
		}

		metrics.RecordAuthorization("ERROR", time.Since(started))

		return nil, err
	}

	uc.cacheResult(ctx, cmd.IdempotencyKey, result)

	metrics.RecordAuthorization(string(result.Status), time.Since(started))

	return result, nil
}

// lookupCache consults the response cache before any unit of work is
// opened, sparing a postgres round trip for the common heavy-retry
// case. A cache hit always replays as DUPLICATE, matching the
// semantics of the COMPLETED branch of step 1 in the algorithm. Any
// cache error is treated as a miss — the accelerator is never allowed
// to fail a request that the authoritative postgres path would have
// served.
func (uc *UseCase) lookupCache(ctx context.Context, key string) (*Result, bool) {
	if uc.Cache == nil {
		return nil, false
	}

	raw, err := uc.Cache.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		uc.Logger.Warnf("idempotency response cache: decode entry for key %s: %v", key, err)
		return nil, false
	}

	return &Result{
		PaymentID:   cached.PaymentID,
		Status:      mmodel.PaymentStatusDuplicate,
		ProcessedAt: cached.CreatedAt,
	}, true
}

// cacheResult mirrors a freshly AUTHORIZED result into the response
// cache so the next retry under the same key can skip postgres
// entirely. Declines are not cached: a FAILED idempotency record is
// meant to admit a fresh attempt, not be replayed.
func (uc *UseCase) cacheResult(ctx context.Context, key string, result *Result) {
	if uc.Cache == nil || result.Status != mmodel.PaymentStatusAuthorized {
		return
	}

	body, err := json.Marshal(cachedResponse{PaymentID: result.PaymentID, CreatedAt: result.ProcessedAt})
	if err != nil {
		uc.Logger.Warnf("idempotency response cache: encode entry for key %s: %v", key, err)
		return
	}

	if err := uc.Cache.Put(ctx, key, body, uc.ttl()); err != nil {
		uc.Logger.Warnf("idempotency response cache: write entry for key %s: %v", key, err)
	}
}

// validate runs every lock-free precondition check in the fixed order
// the determinism-of-declines rule requires: INVALID_AMOUNT ->
// SAME_ACCOUNT -> ACCOUNT_NOT_FOUND (payer before payee) ->
// INSUFFICIENT_FUNDS. The first failing check wins.
func (uc *UseCase) validate(ctx context.Context, u *uow.UnitOfWork, cmd Command) (*decline, error) {
	if cmd.AmountCents <= 0 {
		return &decline{code: "INVALID_AMOUNT", message: "amount_cents must be a positive integer"}, nil
	}

	if cmd.PayerAccountID == cmd.PayeeAccountID {
		return &decline{code: "SAME_ACCOUNT", message: "payer and payee accounts must differ"}, nil
	}

	payer, err := u.Accounts.GetByID(ctx, cmd.PayerAccountID)
	if err != nil {
		return nil, err
	}

	if payer == nil {
		return &decline{code: "ACCOUNT_NOT_FOUND", message: "payer account not found"}, nil
	}

	payee, err := u.Accounts.GetByID(ctx, cmd.PayeeAccountID)
	if err != nil {
		return nil, err
	}

	if payee == nil {
		return &decline{code: "ACCOUNT_NOT_FOUND", message: "payee account not found"}, nil
	}

	payerBalance, err := u.Balances.Get(ctx, cmd.PayerAccountID)
	if err != nil {
		return nil, err
	}

	if payerBalance == nil || payerBalance.AvailableCents < cmd.AmountCents {
		return &decline{code: "INSUFFICIENT_FUNDS", message: "payer account has insufficient available balance"}, nil
	}

	return nil, nil
}

// transfer acquires locks on both balances in lexicographic order of
// account id (regardless of which is payer and which is payee),
// re-checks available funds, then applies the debit/credit pair.
func (uc *UseCase) transfer(ctx context.Context, u *uow.UnitOfWork, cmd Command, payment *mmodel.Payment, now time.Time) error {
	firstID, secondID := cmd.PayerAccountID, cmd.PayeeAccountID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := u.Balances.GetForUpdate(ctx, firstID)
	if err != nil {
		return err
	}

	second, err := u.Balances.GetForUpdate(ctx, secondID)
	if err != nil {
		return err
	}

	var payerBalance, payeeBalance *mmodel.AccountBalance
	if firstID == cmd.PayerAccountID {
		payerBalance, payeeBalance = first, second
	} else {
		payerBalance, payeeBalance = second, first
	}

	if payerBalance == nil || payeeBalance == nil {
		return errors.New("balance row disappeared under lock")
	}

	if payerBalance.AvailableCents < cmd.AmountCents {
		return &mmodel.InsufficientFundsError{
			AccountID: cmd.PayerAccountID,
			Required:  cmd.AmountCents,
			Available: payerBalance.AvailableCents,
		}
	}

	newPayerAvailable := payerBalance.AvailableCents - cmd.AmountCents
	newPayeeAvailable := payeeBalance.AvailableCents + cmd.AmountCents

	debitID, err := uc.IDGen.New()
	if err != nil {
		return err
	}

	creditID, err := uc.IDGen.New()
	if err != nil {
		return err
	}

	if err := u.Ledger.Add(ctx, &mmodel.LedgerEntry{
		ID:                debitID,
		PaymentID:         payment.ID,
		AccountID:         cmd.PayerAccountID,
		EntryType:         mmodel.LedgerEntryDebit,
		AmountCents:       cmd.AmountCents,
		Currency:          cmd.Currency,
		BalanceAfterCents: newPayerAvailable,
		CreatedAt:         now,
	}); err != nil {
		return err
	}

	if err := u.Ledger.Add(ctx, &mmodel.LedgerEntry{
		ID:                creditID,
		PaymentID:         payment.ID,
		AccountID:         cmd.PayeeAccountID,
		EntryType:         mmodel.LedgerEntryCredit,
		AmountCents:       cmd.AmountCents,
		Currency:          cmd.Currency,
		BalanceAfterCents: newPayeeAvailable,
		CreatedAt:         now,
	}); err != nil {
		return err
	}

	if err := u.Balances.Update(ctx, cmd.PayerAccountID, newPayerAvailable, payerBalance.Version); err != nil {
		return err
	}

	if err := u.Balances.Update(ctx, cmd.PayeeAccountID, newPayeeAvailable, payeeBalance.Version); err != nil {
		return err
	}

	return nil
}

func (uc *UseCase) enqueueOutboxEvent(ctx context.Context, u *uow.UnitOfWork, payment *mmodel.Payment, now time.Time) error {
	eventID, err := uc.IDGen.New()
	if err != nil {
		return err
	}

	payload := map[string]any{
		"payment_id":       payment.ID,
		"payer_account_id": payment.PayerAccountID,
		"payee_account_id": payment.PayeeAccountID,
		"amount_cents":     payment.AmountCents,
		"currency":         payment.Currency,
	}

	if payment.Description != "" {
		payload["description"] = payment.Description
	}

	return u.Outbox.Add(ctx, &mmodel.OutboxEvent{
		ID:            eventID,
		AggregateType: "Payment",
		AggregateID:   payment.ID,
		EventType:     "PaymentAuthorized",
		Payload:       payload,
		CreatedAt:     now,
	})
}
