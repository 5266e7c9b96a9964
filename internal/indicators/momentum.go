package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI calculates the Relative Strength Index with Wilder smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator. The conventional period is 14.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	n := len(closes)
	if n < r.period+1 {
		return nil, ErrInsufficientData
	}

	result := make([]decimal.Decimal, n)
	gains := make([]decimal.Decimal, n)
	losses := make([]decimal.Decimal, n)

	for i := 1; i < n; i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			gains[i] = change
		} else {
			losses[i] = change.Neg()
		}
	}

	// First averages are plain means, then Wilder smoothing.
	avgGain := mean(gains[1 : r.period+1])
	avgLoss := mean(losses[1 : r.period+1])
	result[r.period] = rsiValue(avgGain, avgLoss)

	periodDec := decimal.NewFromInt(int64(r.period))
	prevWeight := decimal.NewFromInt(int64(r.period - 1))
	for i := r.period + 1; i < n; i++ {
		avgGain = avgGain.Mul(prevWeight).Add(gains[i]).Div(periodDec)
		avgLoss = avgLoss.Mul(prevWeight).Add(losses[i]).Div(periodDec)
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result, nil
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}
