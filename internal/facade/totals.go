package facade

import "github.com/laenvidiadelsur/storefront/internal/domain"

// Pricing holds the storefront's display-pricing knobs. Amounts are cents,
// the tax rate is basis points.
type Pricing struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRateBps            int64
}

// Totals is the checkout summary derived from the cart. It is recomputed on
// every read and never cached, so there is no second invariant to maintain.
type Totals struct {
	Subtotal    int64
	ShippingFee int64
	Tax         int64
	GrandTotal  int64
}

// ComputeTotals derives the display totals from a cart snapshot. Shipping is
// free at or above the threshold, a flat fee below it.
func ComputeTotals(cart domain.Cart, pricing Pricing) Totals {
	subtotal := cart.Total()

	var shippingFee int64
	if subtotal < pricing.FreeShippingThreshold {
		shippingFee = pricing.FlatShippingFee
	}

	tax := subtotal * pricing.TaxRateBps / 10_000

	return Totals{
		Subtotal:    subtotal,
		ShippingFee: shippingFee,
		Tax:         tax,
		GrandTotal:  subtotal + tax + shippingFee,
	}
}
