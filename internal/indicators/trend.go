package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SMA calculates the Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(closes) < s.period {
		return nil, ErrInsufficientData
	}

	result := make([]decimal.Decimal, len(closes))
	for i := s.period - 1; i < len(closes); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}
	return result, nil
}

// SMAValue returns the simple moving average of the last period closes,
// offset bars back from the end. Zero when the window does not fit.
func SMAValue(closes []decimal.Decimal, period, offset int) decimal.Decimal {
	end := len(closes) - offset
	start := end - period
	if period <= 0 || start < 0 {
		return decimal.Zero
	}
	return mean(closes[start:end])
}

// EMA calculates the Exponential Moving Average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(closes) < e.period {
		return nil, ErrInsufficientData
	}

	result := make([]decimal.Decimal, len(closes))
	two := decimal.NewFromInt(2)
	multiplier := two.Div(decimal.NewFromInt(int64(e.period + 1)))

	// First EMA is the SMA of the warm-up window.
	result[e.period-1] = mean(closes[:e.period])

	for i := e.period; i < len(closes); i++ {
		result[i] = closes[i].Sub(result[i-1]).Mul(multiplier).Add(result[i-1])
	}
	return result, nil
}
