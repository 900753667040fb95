package shared

import "github.com/shopspring/decimal"

// Tolerance is the rounding slack allowed when comparing ledger amounts.
var Tolerance = decimal.New(1, -2)

// WithinTolerance reports whether |a-b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Exceeds reports whether a is greater than limit by more than Tolerance.
func Exceeds(a, limit decimal.Decimal) bool {
	return a.GreaterThan(limit.Add(Tolerance))
}

// MoneyScale is the number of decimal places amount columns store.
const MoneyScale = 2

// WholeCents reports whether d has no digits beyond MoneyScale, so storage
// keeps it exactly.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
