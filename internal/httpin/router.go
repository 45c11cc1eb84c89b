package httpin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/internal/adapters/redis"
	"github.com/ledgerflow/paymentcore/internal/metrics"
)

// RateLimitConfig controls whether and how the front door gates RPC
// calls behind the sliding-window limiter.
type RateLimitConfig struct {
	Enabled bool
	Limiter *redis.SlidingWindowLimiter
}

// HealthChecker reports the liveness of one dependency (a connection
// hub's Connected flag plus reachability ping).
type HealthChecker func() bool

// NewRouter registers the three RPC operations (authorize, get-payment,
// get-balance), the rate-limit gate in front of each, and the
// unauthenticated health/metrics endpoints (exempt from rate limiting).
// checks may be empty; each named checker is aggregated into the
// /healthz response.
func NewRouter(logger mlog.Logger, h *Handlers, rl RateLimitConfig, checks map[string]HealthChecker) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Use(cors.New())
	f.Use(WithCorrelationID())
	f.Use(WithHTTPLogging(logger))

	gate := func(method string) fiber.Handler {
		if !rl.Enabled {
			return func(c *fiber.Ctx) error { return c.Next() }
		}

		return WithRateLimit(rl.Limiter, method)
	}

	f.Post("/v1/authorize", gate("authorize"), h.Authorize)
	f.Get("/v1/payments/:id", gate("get-payment"), h.GetPayment)
	f.Get("/v1/accounts/:id/balance", gate("get-balance"), h.GetBalance)

	f.Get("/healthz", Healthz(checks))
	f.Get("/metrics", metrics.FiberHandler())

	return f
}

// Healthz aggregates every named connection hub's Connected/reachable
// state into one liveness response: 200 when all pass, 503 otherwise.
func Healthz(checks map[string]HealthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		components := make(fiber.Map, len(checks))
		healthy := true

		for name, check := range checks {
			ok := check()
			components[name] = ok

			if !ok {
				healthy = false
			}
		}

		status := fiber.StatusOK
		if !healthy {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(fiber.Map{
			"status":     map[bool]string{true: "ok", false: "degraded"}[healthy],
			"components": components,
		})
	}
}
