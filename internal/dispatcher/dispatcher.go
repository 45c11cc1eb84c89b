// Package dispatcher implements the transactional outbox dispatcher: a
// background worker that drains unpublished events from the database
// and publishes them to an external broker with retry, dead-letter
// escalation, and a consecutive-failure circuit breaker.
package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ledgerflow/paymentcore/common"
	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/internal/metrics"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
	"github.com/ledgerflow/paymentcore/internal/uow"
)

// Producer publishes a value to a topic, partitioned by key, and
// releases its resources on Close. internal/adapters/rabbitmq.OutboxProducer
// is the only production implementation.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Dispatcher drains the outbox table on a wall-clock poll and publishes
// to Producer. The zero value is not ready to use; build one with New.
type Dispatcher struct {
	UOW      *uow.Factory
	Producer Producer
	Config   Config
	Logger   mlog.Logger

	running            atomic.Bool
	consecutiveFailure int
	stopCh             chan struct{}
}

// New builds a Dispatcher. Config zero fields fall back to
// DefaultConfig's values (see Config.withDefaults).
func New(uowFactory *uow.Factory, producer Producer, cfg Config, logger mlog.Logger) *Dispatcher {
	return &Dispatcher{
		UOW:      uowFactory,
		Producer: producer,
		Config:   cfg.withDefaults(),
		Logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run implements common.App so the dispatcher can be registered on a
// Launcher alongside the HTTP front door and the idempotency GC loop.
// It blocks until Stop is called or the circuit breaker opens.
func (d *Dispatcher) Run(_ *common.Launcher) error {
	return d.Start(context.Background())
}

// Start runs the poll loop until Stop is called, ctx is cancelled, or
// ConsecutiveFailureLimit consecutive poll failures trip the circuit
// breaker (in which case Start returns an error and the process is
// expected to need operator intervention before restarting).
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}

	defer d.running.Store(false)

	d.Logger.Infof("outbox dispatcher starting: batch_size=%d poll_interval=%s max_retries=%d",
		d.Config.BatchSize, d.Config.PollInterval, d.Config.MaxRetries)

	ticker := time.NewTicker(d.Config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopCh:
			return nil
		case <-ticker.C:
		}

		empty, err := d.pollOnce(ctx)
		if err != nil {
			d.consecutiveFailure++
			metrics.SetOutboxConsecutiveFailures(d.consecutiveFailure)

			d.Logger.Errorf("outbox dispatcher poll failed (%d/%d consecutive): %v",
				d.consecutiveFailure, d.Config.ConsecutiveFailureLimit, err)

			if d.consecutiveFailure >= d.Config.ConsecutiveFailureLimit {
				d.Logger.Errorf("outbox dispatcher circuit open after %d consecutive failures, stopping", d.consecutiveFailure)
				return err
			}

			continue
		}

		d.consecutiveFailure = 0
		metrics.SetOutboxConsecutiveFailures(0)

		if empty {
			continue
		}
	}
}

// Stop requests the loop exit at its next poll boundary. Idempotent:
// a double Stop is a no-op.
func (d *Dispatcher) Stop() error {
	if !d.running.Load() {
		return nil
	}

	select {
	case <-d.stopCh:
		// already closed by a prior Stop
	default:
		close(d.stopCh)
	}

	return d.Producer.Close()
}

// pollOnce runs one iteration of steps 1-7 of the dispatch algorithm
// inside a single unit of work. The returned bool reports whether the
// batch read was empty (nothing to publish this iteration).
func (d *Dispatcher) pollOnce(ctx context.Context) (empty bool, err error) {
	txErr := d.UOW.RunInTransaction(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		events, err := u.Outbox.GetUnpublished(ctx, d.Config.BatchSize)
		if err != nil {
			return err
		}

		metrics.RecordOutboxPollBatch(len(events))

		if len(events) == 0 {
			empty = true
			return nil
		}

		normal, dlq := d.partition(events)

		now := time.Now().UTC()

		published := d.publishNormal(ctx, u, normal, now)
		published = append(published, d.publishDLQ(ctx, u, dlq, now)...)

		return u.Outbox.MarkPublished(ctx, published)
	})

	return empty, txErr
}

// partition splits a batch into events that have exhausted their retry
// budget (routed to the dead-letter topic) and those still eligible for
// normal publishing.
func (d *Dispatcher) partition(events []*mmodel.OutboxEvent) (normal, dlq []*mmodel.OutboxEvent) {
	for _, e := range events {
		if e.RetryCount >= d.Config.MaxRetries {
			dlq = append(dlq, e)
		} else {
			normal = append(normal, e)
		}
	}

	return normal, dlq
}

// publishNormal publishes each event to its per-event-type topic. A
// successful publish's id is returned for marking published; a failed
// publish has its retry_count incremented in place so a later poll
// (after its exponential delay would have elapsed) picks it up again.
func (d *Dispatcher) publishNormal(ctx context.Context, u *uow.UnitOfWork, events []*mmodel.OutboxEvent, now time.Time) []string {
	var published []string

	for _, e := range events {
		body, err := buildEnvelope(e, now)
		if err != nil {
			d.Logger.Errorf("outbox event %s: encode envelope: %v", e.ID, err)
			continue
		}

		topic := d.Config.topicFor(e.EventType)

		if err := d.Producer.Publish(ctx, topic, e.AggregateID, body); err != nil {
			metrics.RecordOutboxPublishFailure(topic)

			d.Logger.Warnf("outbox event %s: publish to %s failed: %v", e.ID, topic, err)

			if incErr := u.Outbox.IncrementRetryCount(ctx, e.ID); incErr != nil {
				d.Logger.Errorf("outbox event %s: increment retry count: %v", e.ID, incErr)
			}

			continue
		}

		metrics.RecordOutboxPublished(topic)

		published = append(published, e.ID)
	}

	return published
}

// publishDLQ publishes each exhausted event to the dead-letter topic.
// A failed DLQ publish leaves the row unpublished: the next poll will
// again route it to this branch (retry_count is already >= max), with
// no further escalation path besides the circuit breaker.
func (d *Dispatcher) publishDLQ(ctx context.Context, _ *uow.UnitOfWork, events []*mmodel.OutboxEvent, now time.Time) []string {
	var published []string

	topic := d.Config.dlqTopic()

	for _, e := range events {
		body, err := buildDLQEnvelope(e, now)
		if err != nil {
			d.Logger.Errorf("outbox event %s: encode dlq envelope: %v", e.ID, err)
			continue
		}

		if err := d.Producer.Publish(ctx, topic, e.AggregateID, body); err != nil {
			metrics.RecordOutboxPublishFailure(topic)
			d.Logger.Errorf("outbox event %s: dlq publish failed: %v", e.ID, err)

			continue
		}

		metrics.RecordOutboxDLQ()

		published = append(published, e.ID)
	}

	return published
}
