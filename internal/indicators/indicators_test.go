package indicators

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func closes(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSMACalculate(t *testing.T) {
	sma := NewSMA(3)
	got, err := sma.Calculate(closes(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	want := closes(0, 0, 2, 3, 4)
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("sma[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSMAErrors(t *testing.T) {
	if _, err := NewSMA(0).Calculate(closes(1, 2, 3)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("zero period error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewSMA(5).Calculate(closes(1, 2, 3)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series error = %v, want ErrInsufficientData", err)
	}
}

func TestSMAValue(t *testing.T) {
	series := closes(10, 20, 30, 40)

	if got := SMAValue(series, 2, 0); !got.Equal(decimal.NewFromInt(35)) {
		t.Errorf("SMAValue(period 2, offset 0) = %s, want 35", got)
	}
	if got := SMAValue(series, 2, 1); !got.Equal(decimal.NewFromInt(25)) {
		t.Errorf("SMAValue(period 2, offset 1) = %s, want 25", got)
	}
	if got := SMAValue(series, 5, 0); !got.IsZero() {
		t.Errorf("SMAValue with oversized window = %s, want 0", got)
	}
	if got := SMAValue(series, 0, 0); !got.IsZero() {
		t.Errorf("SMAValue with zero period = %s, want 0", got)
	}
}

func TestEMACalculate(t *testing.T) {
	ema := NewEMA(3)
	got, err := ema.Calculate(closes(2, 4, 6, 8, 10))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// Seed is the SMA of the first three closes; multiplier is 2/4.
	want := closes(0, 0, 4, 6, 8)
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("ema[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEMAErrors(t *testing.T) {
	if _, err := NewEMA(-1).Calculate(closes(1, 2)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("negative period error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewEMA(10).Calculate(closes(1, 2)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series error = %v, want ErrInsufficientData", err)
	}
}

func TestRSIAllGains(t *testing.T) {
	rsi := NewRSI(3)
	got, err := rsi.Calculate(closes(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i := 3; i < len(got); i++ {
		if !got[i].Equal(hundred) {
			t.Errorf("rsi[%d] = %s, want 100 on a monotonic rise", i, got[i])
		}
	}
}

func TestRSISeedValueBalancedMoves(t *testing.T) {
	// Over the seed window the gains and losses average out equally, so
	// the first RSI value sits exactly on the 50 midline.
	rsi := NewRSI(4)
	got, err := rsi.Calculate(closes(10, 11, 10, 11, 10))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !got[4].Equal(decimal.NewFromInt(50)) {
		t.Errorf("rsi[4] = %s, want 50", got[4])
	}
}

func TestRSIWarmupIsZero(t *testing.T) {
	rsi := NewRSI(3)
	got, err := rsi.Calculate(closes(5, 6, 7, 8, 9))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !got[i].IsZero() {
			t.Errorf("rsi[%d] = %s, want 0 before warm-up", i, got[i])
		}
	}
}

func TestRSIBounds(t *testing.T) {
	rsi := NewRSI(3)
	got, err := rsi.Calculate(closes(50, 53, 41, 62, 38, 71, 44, 60, 39))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i := 3; i < len(got); i++ {
		if got[i].IsNegative() || got[i].GreaterThan(hundred) {
			t.Errorf("rsi[%d] = %s, out of [0, 100]", i, got[i])
		}
	}
}

func TestRSIErrors(t *testing.T) {
	if _, err := NewRSI(0).Calculate(closes(1, 2, 3)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("zero period error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewRSI(14).Calculate(closes(1, 2, 3)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series error = %v, want ErrInsufficientData", err)
	}
}

func TestIndicatorNames(t *testing.T) {
	tests := []struct {
		ind  Indicator
		want string
	}{
		{NewSMA(20), "SMA_20"},
		{NewEMA(12), "EMA_12"},
		{NewRSI(14), "RSI_14"},
	}
	for _, tt := range tests {
		if got := tt.ind.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
