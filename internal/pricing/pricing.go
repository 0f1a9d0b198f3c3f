// Package pricing derives order totals from a cart snapshot. It is pure:
// the same lines and policy always produce the same breakdown.
package pricing

import (
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

// Context selects which charges apply. The cart page shows subtotal and tax
// only; shipping is charged at checkout.
type Context int

const (
	ContextPreview Context = iota
	ContextCheckout
)

type Policy struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Price computes the breakdown for a set of cart lines using live product
// prices. Tax is rounded half-up to two decimal places once, on the
// aggregate subtotal, so per-line rounding drift cannot accumulate.
//
// An empty cart is an error in checkout context and a zero breakdown in
// preview context.
func Price(lines []models.CartLine, pctx Context, policy Policy) (Breakdown, error) {
	if len(lines) == 0 {
		if pctx == ContextCheckout {
			return Breakdown{}, database.ErrEmptyCart
		}
		return zeroBreakdown(), nil
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	tax := subtotal.Mul(policy.TaxRate).Round(2)

	shipping := decimal.Zero
	if pctx == ContextCheckout {
		shipping = policy.ShippingFee
	}

	return Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}, nil
}

func zeroBreakdown() Breakdown {
	return Breakdown{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
	}
}
