// Package httpin is the RPC front door: a thin JSON surface over the
// authorize and query use cases, a rate-limit gate, and the process
// health/metrics endpoints (see DESIGN.md for the transport choice).
package httpin

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerflow/paymentcore/common/apperr"
	cn "github.com/ledgerflow/paymentcore/common/constant"
)

// RespondError normalizes a use-case error into its rich apperr
// representation (tagged with entityType) and writes the matching HTTP
// status and body.
func RespondError(c *fiber.Ctx, err error, entityType string) error {
	return WithError(c, apperr.ValidateBusinessError(err, entityType))
}

// WithError maps an already-normalized apperr error to its HTTP
// representation.
func WithError(c *fiber.Ctx, err error) error {
	var notFound apperr.EntityNotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(errorBody(notFound.Code, notFound.Title, notFound.Message))
	}

	var conflict apperr.EntityConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(errorBody(conflict.Code, conflict.Title, conflict.Message))
	}

	var validation apperr.ValidationError
	if errors.As(err, &validation) {
		status := fiber.StatusBadRequest
		if validation.Code == cn.ErrRateLimitExceeded.Error() {
			status = fiber.StatusTooManyRequests
		}

		return c.Status(status).JSON(errorBody(validation.Code, validation.Title, validation.Message))
	}

	var missing apperr.MissingFieldError
	if errors.As(err, &missing) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("0009", "Missing Field", missing.Error()))
	}

	var internal apperr.InternalServerError
	if errors.As(err, &internal) {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(internal.Code, internal.Title, internal.Message))
	}

	return c.Status(fiber.StatusInternalServerError).JSON(errorBody("internal", "Internal Server Error", err.Error()))
}

func errorBody(code, title, message string) fiber.Map {
	return fiber.Map{
		"code":    code,
		"title":   title,
		"message": message,
	}
}
