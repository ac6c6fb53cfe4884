package services

import "github.com/shopspring/decimal"

// ShippingCalculator prices shipping for an order subtotal. Checkout treats
// the policy as a pluggable strategy rather than hardwired arithmetic.
type ShippingCalculator interface {
	Cost(subtotal decimal.Decimal) decimal.Decimal
}

// FlatRateShipping charges a flat rate, waived at or above an optional
// free-shipping threshold.
type FlatRateShipping struct {
	rate          decimal.Decimal
	freeThreshold decimal.Decimal
}

// NewFlatRateShipping creates the flat-rate policy. A zero or negative
// threshold disables free shipping entirely.
func NewFlatRateShipping(rate, freeThreshold decimal.Decimal) *FlatRateShipping {
	return &FlatRateShipping{rate: rate, freeThreshold: freeThreshold}
}

// Cost returns the flat rate, or zero once the subtotal clears the
// free-shipping threshold.
func (f *FlatRateShipping) Cost(subtotal decimal.Decimal) decimal.Decimal {
	if f.freeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(f.freeThreshold) {
		return decimal.Zero
	}
	return f.rate
}
