// Package money converts between display amounts and the integer minor
// units (kobo, cents) the payment gateway speaks.
package money

import "github.com/shopspring/decimal"

const minorExp = 2

var hundred = decimal.New(1, minorExp)

// ToMinor rounds half-up at the minor-unit boundary.
func ToMinor(amount decimal.Decimal) int64 {
	scaled := amount.Mul(hundred)
	if scaled.IsNegative() {
		// half-up means toward +inf for negatives too
		return scaled.Add(decimal.New(5, -1)).Floor().IntPart()
	}
	return scaled.Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExp)
}
