// Package mrabbitmq is the connection hub the outbox dispatcher's
// producer uses to publish to the broker.
package mrabbitmq

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ledgerflow/paymentcore/common/mlog"
)

// RabbitMQConnection is a hub which deals with the rabbitmq connection
// and channel.
type RabbitMQConnection struct {
	ConnectionString string
	Connection       *amqp.Connection
	Channel          *amqp.Channel
	Connected        bool
	Logger           mlog.Logger
}

// Connect opens a connection and a channel, and puts the channel into
// publisher-confirm mode so publishes can be acknowledged individually.
func (rc *RabbitMQConnection) Connect() error {
	rc.Logger.Info("connecting to rabbitmq")

	conn, err := amqp.Dial(rc.ConnectionString)
	if err != nil {
		rc.Logger.Errorf("failed to connect to rabbitmq: %v", err)
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		rc.Logger.Errorf("failed to open rabbitmq channel: %v", err)
		return err
	}

	if err := ch.Confirm(false); err != nil {
		rc.Logger.Errorf("failed to put channel into confirm mode: %v", err)
		return err
	}

	rc.Connection = conn
	rc.Channel = ch
	rc.Connected = true

	rc.Logger.Info("connected to rabbitmq")

	return nil
}

// GetChannel returns the channel, connecting lazily if necessary.
func (rc *RabbitMQConnection) GetChannel() (*amqp.Channel, error) {
	if rc.Channel == nil {
		if err := rc.Connect(); err != nil {
			return nil, err
		}
	}

	return rc.Channel, nil
}

// HealthCheck reports whether the connection and channel are both
// still open.
func (rc *RabbitMQConnection) HealthCheck() bool {
	if !rc.Connected || rc.Connection == nil || rc.Connection.IsClosed() {
		return false
	}

	return rc.Channel != nil
}

// Close releases the channel and connection. It is idempotent.
func (rc *RabbitMQConnection) Close() error {
	if rc.Channel == nil && rc.Connection == nil {
		return nil
	}

	var err error

	if rc.Channel != nil {
		err = rc.Channel.Close()
		rc.Channel = nil
	}

	if rc.Connection != nil {
		if cerr := rc.Connection.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}

		rc.Connection = nil
	}

	rc.Connected = false

	return err
}
