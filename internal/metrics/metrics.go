// Package metrics exposes the prometheus collectors instrumenting the
// three core subsystems: the authorization pipeline, the outbox
// dispatcher, and the rate limiter.
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authorization pipeline metrics.
var (
	AuthorizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorizations_total",
			Help: "Total number of authorize calls, by resulting status",
		},
		[]string{"status"},
	)

	AuthorizationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authorization_duration_seconds",
			Help:    "Duration of the authorize pipeline in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"status"},
	)

	OptimisticLockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimistic_lock_conflicts_total",
			Help: "Total number of optimistic-lock failures, by entity",
		},
		[]string{"entity"},
	)
)

// Outbox dispatcher metrics.
var (
	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events successfully published, by topic",
		},
		[]string{"topic"},
	)

	OutboxPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts, by topic",
		},
		[]string{"topic"},
	)

	OutboxDLQTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dlq_total",
			Help: "Total number of events escalated to the dead-letter topic",
		},
	)

	OutboxPollBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_poll_batch_size",
			Help:    "Number of unpublished rows read per dispatcher poll",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	OutboxConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_dispatcher_consecutive_failures",
			Help: "Current consecutive poll-failure count of the outbox dispatcher",
		},
	)
)

// Rate limiter metrics.
var (
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate-limit admission decisions",
		},
		[]string{"allowed"},
	)
)

// FiberHandler wraps promhttp.Handler for direct registration on a
// fiber router (`app.Get("/metrics", metrics.FiberHandler())`).
func FiberHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordAuthorization records the outcome and duration of one
// authorize call.
func RecordAuthorization(status string, duration time.Duration) {
	AuthorizationsTotal.WithLabelValues(status).Inc()
	AuthorizationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordOptimisticLockConflict increments the conflict counter for the
// given entity type.
func RecordOptimisticLockConflict(entity string) {
	OptimisticLockConflicts.WithLabelValues(entity).Inc()
}

// RecordOutboxPublished increments the per-topic success counter.
func RecordOutboxPublished(topic string) {
	OutboxPublishedTotal.WithLabelValues(topic).Inc()
}

// RecordOutboxPublishFailure increments the per-topic failure counter.
func RecordOutboxPublishFailure(topic string) {
	OutboxPublishFailuresTotal.WithLabelValues(topic).Inc()
}

// RecordOutboxDLQ increments the dead-letter escalation counter.
func RecordOutboxDLQ() {
	OutboxDLQTotal.Inc()
}

// RecordOutboxPollBatch observes the size of a dispatcher poll batch.
func RecordOutboxPollBatch(size int) {
	OutboxPollBatchSize.Observe(float64(size))
}

// SetOutboxConsecutiveFailures sets the current circuit-breaker
// failure streak gauge.
func SetOutboxConsecutiveFailures(n int) {
	OutboxConsecutiveFailures.Set(float64(n))
}

// RecordRateLimitDecision records whether a rate-limit check admitted
// or denied a request.
func RecordRateLimitDecision(allowed bool) {
	label := "true"
	if !allowed {
		label = "false"
	}

	RateLimitDecisionsTotal.WithLabelValues(label).Inc()
}
