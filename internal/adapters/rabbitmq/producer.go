// Package rabbitmq adapts the outbox dispatcher's broker producer to the
// remote message broker: idempotent, all-acks-required publishing via
// publisher confirms.
package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/common/mrabbitmq"
)

// OutboxProducer publishes outbox envelopes to the broker. A channel
// opened in confirm mode (see mrabbitmq.Connect) stands in for
// "idempotent, all-acks" producer semantics: every publish blocks on
// its broker acknowledgment before being reported as successful.
type OutboxProducer struct {
	conn   *mrabbitmq.RabbitMQConnection
	Logger mlog.Logger
}

// NewOutboxProducer builds an OutboxProducer bound to conn. conn must
// already be configured for publisher confirms (Connect does this).
func NewOutboxProducer(conn *mrabbitmq.RabbitMQConnection, logger mlog.Logger) *OutboxProducer {
	return &OutboxProducer{conn: conn, Logger: logger}
}

// Publish sends value to topic (the routing key on the default
// exchange) with the given partition key carried as a header, and
// waits for the broker's publisher confirm before returning. A nacked
// or timed-out confirm is reported as an error, driving the
// dispatcher's retry path.
func (p *OutboxProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	ch, err := p.conn.GetChannel()
	if err != nil {
		return fmt.Errorf("get rabbitmq channel: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",    // default exchange: routing key selects the queue directly
		topic, // used as the topic/queue routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"partition_key": key},
			Body:         value,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	if confirmation == nil {
		return nil
	}

	ok, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for publish confirm on %s: %w", topic, err)
	}

	if !ok {
		return fmt.Errorf("broker nacked publish to %s", topic)
	}

	return nil
}

// Close releases the underlying connection. Idempotent because
// mrabbitmq.RabbitMQConnection.Close is.
func (p *OutboxProducer) Close() error {
	return p.conn.Close()
}
