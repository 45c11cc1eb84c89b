package mmodel

import (
	"fmt"

	cn "github.com/ledgerflow/paymentcore/common/constant"
)

// InsufficientFundsError reports that a payer account lacks the
// available balance a payment requires.
type InsufficientFundsError struct {
	AccountID string
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %s has insufficient funds: required %d, available %d", e.AccountID, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error { return cn.ErrInsufficientFunds }

// AccountNotFoundError reports that an account identifier does not
// resolve to an existing account.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

func (e *AccountNotFoundError) Unwrap() error { return cn.ErrAccountNotFound }

// InvalidAmountError reports a payment amount that fails validation.
type InvalidAmountError struct {
	Amount int64
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d: %s", e.Amount, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return cn.ErrInvalidAmount }

// SameAccountError reports that payer and payee identifiers match.
type SameAccountError struct {
	AccountID string
}

func (e *SameAccountError) Error() string {
	return fmt.Sprintf("payer and payee account %s must differ", e.AccountID)
}

func (e *SameAccountError) Unwrap() error { return cn.ErrSameAccount }

// CurrencyMismatchError reports a currency that does not match an
// expected one.
type CurrencyMismatchError struct {
	Expected string
	Actual   string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *CurrencyMismatchError) Unwrap() error { return cn.ErrCurrencyMismatch }

// OptimisticLockError reports that a version-guarded update affected no
// rows because the stored version had already advanced.
type OptimisticLockError struct {
	Entity   string
	EntityID string
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failure on %s %s", e.Entity, e.EntityID)
}

func (e *OptimisticLockError) Unwrap() error { return cn.ErrOptimisticLock }

// PaymentNotFoundError reports that a payment identifier or idempotency
// key does not resolve to an existing payment.
type PaymentNotFoundError struct {
	Ref string
}

func (e *PaymentNotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.Ref)
}

func (e *PaymentNotFoundError) Unwrap() error { return cn.ErrPaymentNotFound }

// RateLimitExceededError reports that the caller has exhausted its
// admission budget for the current sliding window.
type RateLimitExceededError struct {
	WindowSeconds int64
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Retry after %ds", e.WindowSeconds)
}

func (e *RateLimitExceededError) Unwrap() error { return cn.ErrRateLimitExceeded }
