package cli

import "testing"

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "$0.00"},
		{0.5, "$0.50"},
		{999, "$999.00"},
		{1000, "$1,000.00"},
		{1234567.5, "$1,234,567.50"},
		{-42.75, "-$42.75"},
		{-1000000, "-$1,000,000.00"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.amount); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0.00%"},
		{5.25, "+5.25%"},
		{-3.1, "-3.10%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.value); got != tt.want {
			t.Errorf("FormatPercent(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestFormatPnL(t *testing.T) {
	tests := []struct {
		pnl  float64
		want string
	}{
		{1500, "+$1,500.00"},
		{0, "$0.00"},
		{-250.5, "-$250.50"},
	}
	for _, tt := range tests {
		if got := FormatPnL(tt.pnl); got != tt.want {
			t.Errorf("FormatPnL(%v) = %q, want %q", tt.pnl, got, tt.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		qty  int64
		want string
	}{
		{0, "0"},
		{100, "100"},
		{2500, "2,500"},
		{1000000, "1,000,000"},
		{-7500, "-7,500"},
	}
	for _, tt := range tests {
		if got := FormatQuantity(tt.qty); got != tt.want {
			t.Errorf("FormatQuantity(%d) = %q, want %q", tt.qty, got, tt.want)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		volume int64
		want   string
	}{
		{999, "999"},
		{1500, "1.5K"},
		{2500000, "2.50M"},
		{1200000000, "1.20B"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.volume); got != tt.want {
			t.Errorf("FormatVolume(%d) = %q, want %q", tt.volume, got, tt.want)
		}
	}
}
