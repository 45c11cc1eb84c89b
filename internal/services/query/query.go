// Package query implements the read-only entry points the RPC surface
// exposes alongside Authorize: fetching a payment by id and a balance
// by account id. Neither opens a unit of work — both are plain,
// lock-free repository calls.
package query

import (
	"context"

	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/balance"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/payment"
	"github.com/ledgerflow/paymentcore/internal/mmodel"
)

// UseCase serves the read-only query surface.
type UseCase struct {
	Payments payment.Repository
	Balances balance.Repository
}

// NewUseCase builds a query UseCase.
func NewUseCase(payments payment.Repository, balances balance.Repository) *UseCase {
	return &UseCase{Payments: payments, Balances: balances}
}

// GetPayment fetches a payment by id. A missing payment is reported as
// a *mmodel.PaymentNotFoundError, never as a nil, nil return.
func (uc *UseCase) GetPayment(ctx context.Context, id string) (*mmodel.Payment, error) {
	p, err := uc.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, &mmodel.PaymentNotFoundError{Ref: id}
	}

	return p, nil
}

// GetBalance fetches the current snapshot balance for an account. A nil
// return means the account has no balance row provisioned yet.
func (uc *UseCase) GetBalance(ctx context.Context, accountID string) (*mmodel.AccountBalance, error) {
	return uc.Balances.Get(ctx, accountID)
}
