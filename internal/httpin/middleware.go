package httpin

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerflow/paymentcore/internal/adapters/redis"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

const headerClientID = "X-Client-Id"
const headerForwardedFor = "X-Forwarded-For"

// rateLimitIdentifier picks the identifier in priority order: a
// caller-supplied client id header, then the first address in a
// forwarded-for header, then the RPC method name itself.
func rateLimitIdentifier(c *fiber.Ctx, method string) string {
	if id := strings.TrimSpace(c.Get(headerClientID)); id != "" {
		return id
	}

	if fwd := c.Get(headerForwardedFor); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}

	return method
}

// WithRateLimit builds a fiber middleware that gates the wrapped RPC
// method behind limiter, using identifier resolution in rateLimitIdentifier.
// Health and metadata endpoints are exempt by never being wrapped with
// this middleware.
func WithRateLimit(limiter *redis.SlidingWindowLimiter, method string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := rateLimitIdentifier(c, method)

		allowed, _, err := limiter.IsAllowed(c.UserContext(), identifier)
		if err != nil {
			return WithError(c, err)
		}

		if !allowed {
			return RespondError(c, &mmodel.RateLimitExceededError{WindowSeconds: limiter.WindowSeconds}, "RateLimit")
		}

		return c.Next()
	}
}
