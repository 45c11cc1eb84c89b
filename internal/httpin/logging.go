package httpin

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ledgerflow/paymentcore/common/mlog"
)

const headerCorrelationID = "X-Correlation-ID"

// WithCorrelationID stamps every request with a correlation id, reusing
// a caller-supplied one when present.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := c.Get(headerCorrelationID)
		if cid == "" {
			cid = uuid.New().String()
		}

		c.Set(headerCorrelationID, cid)
		c.Request().Header.Set(headerCorrelationID, cid)

		return c.Next()
	}
}

// WithHTTPLogging logs one structured line per request: method, path,
// status, duration, and correlation id.
func WithHTTPLogging(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()

		err := c.Next()

		logger.Infof("http request method=%s path=%s status=%d duration=%s correlation_id=%s",
			c.Method(), c.Path(), c.Response().StatusCode(), time.Since(started), c.Get(headerCorrelationID))

		return err
	}
}
