// Package payment defines the external payment collaborator. Order
// assembly performs post-authorization bookkeeping only; authorization
// itself belongs to whatever gateway implements Authorizer.
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Result struct {
	Authorized bool
	Reference  string
	Reason     string
}

type Authorizer interface {
	Authorize(ctx context.Context, userID int64, amount decimal.Decimal) (Result, error)
}

// AcceptAll authorizes every charge. It stands in while no real gateway is
// integrated.
type AcceptAll struct{}

func (AcceptAll) Authorize(_ context.Context, _ int64, _ decimal.Decimal) (Result, error) {
	return Result{
		Authorized: true,
		Reference:  "noop-" + uuid.NewString(),
	}, nil
}
