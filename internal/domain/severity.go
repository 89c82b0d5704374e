package domain

import "github.com/shopspring/decimal"

// Breach-ratio bucket upper bounds (exclusive). Anything at or above the last
// bound is critical.
var (
	lowBreachBound    = decimal.RequireFromString("0.10")
	mediumBreachBound = decimal.RequireFromString("0.25")
	highBreachBound   = decimal.RequireFromString("0.50")
)

// BreachRatio measures how far value is from threshold, relative to the
// threshold's magnitude. A zero threshold falls back to the absolute distance.
func BreachRatio(value, threshold decimal.Decimal) decimal.Decimal {
	distance := value.Sub(threshold).Abs()
	if threshold.IsZero() {
		return distance
	}
	return distance.Div(threshold.Abs())
}

// SeverityForBreach maps breach magnitude to a severity. The mapping is
// monotonic: a larger breach never yields a lower severity.
func SeverityForBreach(value, threshold decimal.Decimal) Severity {
	ratio := BreachRatio(value, threshold)
	switch {
	case ratio.LessThan(lowBreachBound):
		return SeverityLow
	case ratio.LessThan(mediumBreachBound):
		return SeverityMedium
	case ratio.LessThan(highBreachBound):
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
