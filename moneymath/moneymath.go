// Package moneymath holds the fixed-point arithmetic conventions shared
// by every monetary calculation in the engine. Persisted amounts are
// int64 minor units; decimals appear only inside a computation chain,
// and rounding happens exactly once, on the chain's final output.
package moneymath

import (
	"github.com/shopspring/decimal"
)

// Round rounds a decimal amount to the nearest minor unit, half up.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// FromUnits converts a minor-unit amount into a decimal for use in a
// computation chain.
func FromUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// FromInt converts a plain integer (count, tenure) into a decimal.
func FromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// Ratio divides two minor-unit amounts into a float ratio. The result
// is informational (affordability, progress) and never persisted as
// money.
func Ratio(numerator, denominator int64) float64 {
	return float64(numerator) / float64(denominator)
}
