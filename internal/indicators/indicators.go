// Package indicators computes technical indicators over close-price
// series. Values are decimal so strategy signals stay exact against the
// rest of the accounting.
package indicators

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPeriod is returned when a period is not positive.
	ErrInvalidPeriod = errors.New("indicator period must be positive")

	// ErrInsufficientData is returned when the series is shorter than
	// the indicator requires.
	ErrInsufficientData = errors.New("insufficient data for indicator")
)

// Indicator computes a derived series from close prices. The result is
// aligned with the input; positions before the warm-up window hold zero.
type Indicator interface {
	Name() string
	Period() int
	Calculate(closes []decimal.Decimal) ([]decimal.Decimal, error)
}

// mean averages a window of values.
func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
