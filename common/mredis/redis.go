// Package mredis is the connection hub shared by the rate limiter and
// the idempotency response cache.
package mredis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/paymentcore/common/mlog"
)

// RedisConnection is a hub which deals with redis connections.
type RedisConnection struct {
	ConnectionString string
	Client            *redis.Client
	Connected         bool
	Logger            mlog.Logger
}

// Connect opens a singleton connection to redis.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("connecting to redis")

	opts, err := redis.ParseURL(rc.ConnectionString)
	if err != nil {
		return err
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		rc.Logger.Errorf("redis ping failed: %v", err)
		return err
	}

	rc.Client = client
	rc.Connected = true

	rc.Logger.Info("connected to redis")

	return nil
}

// GetClient returns the redis client, connecting lazily if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}

// HealthCheck reports whether the connection is up and reachable.
func (rc *RedisConnection) HealthCheck(ctx context.Context) bool {
	if !rc.Connected || rc.Client == nil {
		return false
	}

	return rc.Client.Ping(ctx).Err() == nil
}
