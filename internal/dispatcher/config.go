package dispatcher

import (
	"math/rand"
	"strings"
	"time"
)

const maxRetriesExceeded = "max_retries_exceeded"

// Config parameterizes the dispatcher's poll cadence, retry budget, and
// circuit breaker. Zero values are replaced with DefaultConfig's values
// by New.
type Config struct {
	BatchSize                int
	PollInterval             time.Duration
	MaxRetries               int
	BaseDelay                time.Duration
	MaxDelay                 time.Duration
	ConsecutiveFailureLimit  int
	TopicPrefix              string
}

// DefaultConfig returns the dispatcher's default parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:               100,
		PollInterval:            time.Second,
		MaxRetries:              5,
		BaseDelay:               time.Second,
		MaxDelay:                60 * time.Second,
		ConsecutiveFailureLimit: 10,
		TopicPrefix:             "payments",
	}
}

// withDefaults fills any zero field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}

	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}

	if c.ConsecutiveFailureLimit <= 0 {
		c.ConsecutiveFailureLimit = d.ConsecutiveFailureLimit
	}

	if strings.TrimSpace(c.TopicPrefix) == "" {
		c.TopicPrefix = d.TopicPrefix
	}

	return c
}

// topicFor returns the normal-publish topic for an event type:
// "<prefix>.<lowercased event_type>".
func (c Config) topicFor(eventType string) string {
	return c.TopicPrefix + "." + strings.ToLower(eventType)
}

// dlqTopic returns the dead-letter topic: "<prefix>.dlq".
func (c Config) dlqTopic() string {
	return c.TopicPrefix + ".dlq"
}

// calculateBackoff returns the exponential-backoff-plus-jitter delay for
// a given retry count: min(base * 2^retryCount, max) + uniform(0, 10%).
// The dispatcher's poll loop does not itself sleep by this amount —
// retry progress is instead driven by retry_count across polls (see
// Dispatcher.pollOnce) — and nothing in the dispatcher calls it; DLQ
// escalation is decided by retry_count against MaxRetries alone.
func (c Config) calculateBackoff(retryCount int) time.Duration {
	delay := float64(c.BaseDelay) * pow2(retryCount)
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}

	jitter := delay * 0.10 * rand.Float64()

	return time.Duration(delay + jitter)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}

	return result
}
