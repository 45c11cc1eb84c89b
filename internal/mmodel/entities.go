// Package mmodel defines the persisted entity types of the payment
// authorization core and the domain errors they can produce.
package mmodel

import "time"

// AccountStatus enumerates the lifecycle states of an Account.
// AccountStatusActive is the only active value; the others are reserved
// for provisioning workflows. The authorization pipeline does not read
// an account's status.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusClosed   AccountStatus = "CLOSED"
)

// Account is created externally to this core; the pipeline only ever
// reads it.
type Account struct {
	ID        string
	OwnerID   string
	Currency  string
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountBalance is the per-account mutable record the pipeline updates
// under lock. Version is the basis of optimistic concurrency on Update.
type AccountBalance struct {
	AccountID        string
	AvailableCents   int64
	PendingCents     int64
	Currency         string
	Version          int64
	UpdatedAt        time.Time
}

// PaymentStatus enumerates the outcome of an authorization attempt.
type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	PaymentStatusDeclined   PaymentStatus = "DECLINED"
	PaymentStatusDuplicate  PaymentStatus = "DUPLICATE"
)

// Payment is created once per successful authorization attempt (not per
// decline or duplicate lookup).
type Payment struct {
	ID               string
	IdempotencyKey   string
	PayerAccountID   string
	PayeeAccountID   string
	AmountCents      int64
	Currency         string
	Status           PaymentStatus
	Description      string
	ErrorCode        string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LedgerEntryType distinguishes the debit and credit sides of a
// double-entry pair.
type LedgerEntryType string

const (
	LedgerEntryDebit  LedgerEntryType = "DEBIT"
	LedgerEntryCredit LedgerEntryType = "CREDIT"
)

// LedgerEntry is an append-only audit record. Every authorized payment
// produces exactly two: one debit on the payer, one credit on the payee.
type LedgerEntry struct {
	ID                string
	PaymentID         string
	AccountID         string
	EntryType         LedgerEntryType
	AmountCents       int64
	Currency          string
	BalanceAfterCents int64
	CreatedAt         time.Time
}

// IdempotencyStatus tracks the lifecycle of a caller-supplied
// idempotency key across retries.
type IdempotencyStatus string

const (
	IdempotencyStatusPending   IdempotencyStatus = "PENDING"
	IdempotencyStatusCompleted IdempotencyStatus = "COMPLETED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is keyed by the caller-supplied idempotency key. At
// most one record exists per key at any time.
type IdempotencyRecord struct {
	Key          string
	Status       IdempotencyStatus
	PaymentID    string
	ResponseData []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the record's expiry instant has passed as of
// now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// OutboxEvent is a durable intent to publish, written in the same
// transaction as the business mutation that produced it.
type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	RetryCount    int
}

// Unpublished reports whether the event has not yet been marked
// published.
func (e *OutboxEvent) Unpublished() bool {
	return e.PublishedAt == nil
}
