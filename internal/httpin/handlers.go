package httpin

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerflow/paymentcore/common/apperr"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
	"github.com/ledgerflow/paymentcore/internal/services/command"
	"github.com/ledgerflow/paymentcore/internal/services/query"
)

// Handlers holds the two use cases the RPC surface dispatches to.
type Handlers struct {
	Command *command.UseCase
	Query   *query.UseCase
}

// NewHandlers builds a Handlers.
func NewHandlers(cmd *command.UseCase, qry *query.UseCase) *Handlers {
	return &Handlers{Command: cmd, Query: qry}
}

// authorizeRequest is the wire shape of an authorize call.
type authorizeRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PayerAccountID string `json:"payer_account_id"`
	PayeeAccountID string `json:"payee_account_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
}

type authorizeResponse struct {
	PaymentID    string    `json:"payment_id,omitempty"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Authorize is the single core RPC operation: POST /v1/authorize.
func (h *Handlers) Authorize(c *fiber.Ctx) error {
	var req authorizeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return RespondError(c, &mmodel.InvalidAmountError{Reason: "request body is not valid JSON"}, "Payment")
	}

	if req.IdempotencyKey == "" {
		return WithError(c, apperr.MissingFieldError{Field: "idempotency_key"})
	}

	result, err := h.Command.Authorize(c.UserContext(), command.Command{
		IdempotencyKey: req.IdempotencyKey,
		PayerAccountID: req.PayerAccountID,
		PayeeAccountID: req.PayeeAccountID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		return RespondError(c, err, "Payment")
	}

	return c.Status(fiber.StatusOK).JSON(authorizeResponse{
		PaymentID:    result.PaymentID,
		Status:       string(result.Status),
		ErrorCode:    result.ErrorCode,
		ErrorMessage: result.ErrorMessage,
		ProcessedAt:  result.ProcessedAt,
	})
}

// GetPayment is GET /v1/payments/:id.
func (h *Handlers) GetPayment(c *fiber.Ctx) error {
	id := c.Params("id")

	payment, err := h.Query.GetPayment(c.UserContext(), id)
	if err != nil {
		return RespondError(c, err, "Payment")
	}

	return c.Status(fiber.StatusOK).JSON(payment)
}

// GetBalance is GET /v1/accounts/:id/balance.
func (h *Handlers) GetBalance(c *fiber.Ctx) error {
	id := c.Params("id")

	balance, err := h.Query.GetBalance(c.UserContext(), id)
	if err != nil {
		return RespondError(c, err, "AccountBalance")
	}

	if balance == nil {
		return RespondError(c, &mmodel.AccountNotFoundError{AccountID: id}, "AccountBalance")
	}

	return c.Status(fiber.StatusOK).JSON(balance)
}
