package dispatcher

import (
	"encoding/json"
	"time"

	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

// envelope is the canonical payload published to the broker for every
// outbox row, normal or dead-lettered.
type envelope struct {
	EventID       string         `json:"event_id"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	Timestamp     string         `json:"timestamp"`
	RetryCount    *int           `json:"retry_count,omitempty"`
	FailedAt      string         `json:"failed_at,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// buildEnvelope renders an event's normal-publish envelope.
func buildEnvelope(e *mmodel.OutboxEvent, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		EventID:       e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
	})
}

// buildDLQEnvelope renders a dead-letter envelope: the normal envelope
// plus retry_count, failed_at, and a fixed error string.
func buildDLQEnvelope(e *mmodel.OutboxEvent, now time.Time) ([]byte, error) {
	retryCount := e.RetryCount

	return json.Marshal(envelope{
		EventID:       e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		RetryCount:    &retryCount,
		FailedAt:      now.UTC().Format(time.RFC3339Nano),
		Error:         maxRetriesExceeded,
	})
}
