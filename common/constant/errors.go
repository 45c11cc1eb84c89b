// Package constant holds the numeric business-error codes surfaced to
// callers, mirroring the sentinel-error-per-code convention used across
// the rest of the error-handling stack.
package constant

import "errors"

var (
	ErrInvalidAmount      = errors.New("0001")
	ErrSameAccount        = errors.New("0002")
	ErrAccountNotFound    = errors.New("0003")
	ErrInsufficientFunds  = errors.New("0004")
	ErrCurrencyMismatch   = errors.New("0005")
	ErrOptimisticLock     = errors.New("0006")
	ErrPaymentNotFound    = errors.New("0007")
	ErrDuplicateIdempKey  = errors.New("0008")
	ErrMissingField       = errors.New("0009")
	ErrRateLimitExceeded  = errors.New("0010")
)
