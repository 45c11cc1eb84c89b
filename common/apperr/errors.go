// Package apperr defines the typed, HTTP-facing error envelopes returned
// by the front door, and the mapper that turns domain sentinel errors
// into them.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	cn "github.com/ledgerflow/paymentcore/common/constant"
)

// EntityNotFoundError indicates a lookup found nothing matching the
// given identifier.
type EntityNotFoundError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}

	if strings.TrimSpace(e.EntityType) != "" {
		return fmt.Sprintf("entity %s not found", e.EntityType)
	}

	return "entity not found"
}

func (e EntityNotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates a request failed a business rule check. The
// HTTP front door renders it as 400 Bad Request (429 for a rate-limit
// denial); authorize declines are returned as DECLINED results instead
// and never take this form.
type ValidationError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

func (e ValidationError) Error() string {
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

func (e ValidationError) Unwrap() error { return e.Err }

// EntityConflictError indicates a concurrent mutation invalidated the
// caller's expectation (optimistic-lock failure, duplicate key).
type EntityConflictError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

func (e EntityConflictError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

func (e EntityConflictError) Unwrap() error { return e.Err }

// InternalServerError wraps any failure that is not attributable to
// caller input: database, broker, or rate-limiter-store errors.
type InternalServerError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

func (e InternalServerError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

func (e InternalServerError) Unwrap() error { return e.Err }

// MissingFieldError indicates a required request argument was absent;
// it maps to transport invalid-argument.
type MissingFieldError struct {
	Field   string
	Message string
}

func (e MissingFieldError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}

	return fmt.Sprintf("missing required field: %s", e.Field)
}

// ValidateBusinessError maps a sentinel domain error to its rich,
// transport-facing representation. entityType is recorded in the
// result's EntityType field; args, when given, are appended to the
// account-not-found message and ignored for every other error.
func ValidateBusinessError(err error, entityType string, args ...any) error {
	switch {
	case errors.Is(err, cn.ErrInvalidAmount):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrInvalidAmount.Error(),
			Title:      "Invalid Amount",
			Message:    "The payment amount must be a positive integer number of minor currency units.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrSameAccount):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrSameAccount.Error(),
			Title:      "Same Account",
			Message:    "The payer and payee accounts must differ.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrAccountNotFound):
		return EntityNotFoundError{
			EntityType: entityType,
			Code:       cn.ErrAccountNotFound.Error(),
			Title:      "Account Not Found",
			Message:    fmt.Sprintf("No account was found matching the provided identifier %v.", args),
			Err:        err,
		}
	case errors.Is(err, cn.ErrCurrencyMismatch):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrCurrencyMismatch.Error(),
			Title:      "Currency Mismatch",
			Message:    "The payment currency must match both accounts' currency.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrPaymentNotFound):
		return EntityNotFoundError{
			EntityType: entityType,
			Code:       cn.ErrPaymentNotFound.Error(),
			Title:      "Payment Not Found",
			Message:    "No payment was found matching the provided identifier.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrRateLimitExceeded):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrRateLimitExceeded.Error(),
			Title:      "Rate Limit Exceeded",
			Message:    err.Error(),
			Err:        err,
		}
	default:
		// cn.ErrInsufficientFunds and cn.ErrOptimisticLock fall through
		// here too: both are only ever raised inside transfer(), by its
		// post-lock funds re-check and by the version-guarded balance
		// update, after the pre-lock snapshot check already passed, so a
		// failure there is a serialization anomaly rather than a
		// client-facing decline.
		return InternalServerError{
			EntityType: entityType,
			Code:       "internal",
			Title:      "Internal Server Error",
			Message:    "An internal error occurred while processing the request.",
			Err:        err,
		}
	}
}
