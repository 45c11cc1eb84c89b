package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache mirrors a completed idempotency record's response
// envelope in redis so repeated lookups for a recently completed key
// avoid a round trip to postgres under heavy retry traffic. It is a
// read-through accelerator, not a source of truth — the idempotency
// table in postgres remains authoritative.
type ResponseCache struct {
	Client *redis.Client
	Prefix string
}

// NewResponseCache builds a ResponseCache.
func NewResponseCache(client *redis.Client, prefix string) *ResponseCache {
	return &ResponseCache{Client: client, Prefix: prefix}
}

// Put stores response under key with ttl.
func (c *ResponseCache) Put(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, c.Prefix+key, response, ttl).Err()
}

// Get returns the cached response for key, or (nil, nil) on a cache
// miss.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, err
	}

	return val, nil
}
