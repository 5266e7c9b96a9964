package feed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadCSVParsesRows(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "aapl.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-01-02T09:30:00Z,100.5,101.25,99.75,101,125000\n"+
			"2024-01-02T09:31:00Z,101,102,100.5,101.5,98000\n")

	f, err := LoadCSV(path, "AAPL")
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", f.Len())
	}

	ev, err := f.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", ev.Symbol)
	}
	want := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
	if !ev.Open.Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("Open = %s, want 100.5", ev.Open)
	}
	if !ev.High.Equal(decimal.NewFromFloat(101.25)) {
		t.Errorf("High = %s, want 101.25", ev.High)
	}
	if ev.Volume != 125000 {
		t.Errorf("Volume = %d, want 125000", ev.Volume)
	}
}

func TestLoadCSVTimestampLayouts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2024-01-02T09:30:00Z", time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)},
		{"datetime", "2024-01-02 09:30:00", time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)},
		{"date only", "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeCSV(t, dir, "bars.csv",
				"timestamp,open,high,low,close,volume\n"+
					tt.raw+",100,101,99,100.5,1000\n")

			f, err := LoadCSV(path, "SPY")
			if err != nil {
				t.Fatalf("LoadCSV: %v", err)
			}
			ev, err := f.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if !ev.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", ev.Timestamp, tt.want)
			}
		})
	}
}

func TestLoadCSVRejectsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "bad.csv",
		"timestamp,open,high,low,close,volume\n"+
			"01/02/2024,100,101,99,100.5,1000\n")

	if _, err := LoadCSV(path, "SPY"); err == nil {
		t.Fatal("LoadCSV accepted an unrecognized timestamp format")
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "SPY"); err == nil {
		t.Fatal("LoadCSV succeeded on a missing file")
	}
}

func TestLoadCSVDirMergesChronologically(t *testing.T) {
	dir := t.TempDir()
	aapl := writeCSV(t, dir, "aapl.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-01-02T09:30:00Z,100,100,100,100,1000\n"+
			"2024-01-02T09:32:00Z,102,102,102,102,1000\n")
	msft := writeCSV(t, dir, "msft.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-01-02T09:31:00Z,300,300,300,300,1000\n"+
			"2024-01-02T09:32:00Z,301,301,301,301,1000\n")

	f, err := LoadCSVDir(map[string]string{"AAPL": aapl, "MSFT": msft}, []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("LoadCSVDir: %v", err)
	}

	var got []string
	for {
		ev, err := f.Next()
		if errors.Is(err, ErrEndOfData) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, ev.Symbol+"@"+ev.Timestamp.Format("15:04"))
	}

	want := []string{"AAPL@09:30", "MSFT@09:31", "AAPL@09:32", "MSFT@09:32"}
	if len(got) != len(want) {
		t.Fatalf("merged %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLoadCSVDirUnknownSymbol(t *testing.T) {
	_, err := LoadCSVDir(map[string]string{}, []string{"AAPL"})
	if err == nil {
		t.Fatal("LoadCSVDir succeeded with no path for requested symbol")
	}
}

func TestMemoryFeedSymbols(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "spy.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-01-02,100,101,99,100.5,1000\n")

	f, err := LoadCSV(path, "SPY")
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	syms := f.Symbols()
	if len(syms) != 1 || syms[0] != "SPY" {
		t.Errorf("Symbols() = %v, want [SPY]", syms)
	}
}
