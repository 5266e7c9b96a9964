// Package integration holds end-to-end tests covering the full pipeline
// from csv data through the engine to analytics and the run archive.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quantbt/internal/analytics"
	"quantbt/internal/config"
	"quantbt/internal/engine"
	"quantbt/internal/feed"
	"quantbt/internal/models"
	"quantbt/internal/store"
	"quantbt/internal/strategy"
	"quantbt/internal/sweep"
)

var instruments = []models.Instrument{
	{Symbol: "AAPL", Name: "Apple Inc.", LotSize: 1},
	{Symbol: "MSFT", Name: "Microsoft Corp.", LotSize: 1},
}

// writeBars writes a daily csv with a price walk long enough for the
// moving-average strategies to warm up and cross.
func writeBars(t *testing.T, dir, name string, prices []float64) string {
	t.Helper()
	content := "timestamp,open,high,low,close,volume\n"
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, p := range prices {
		content += fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%d\n",
			day.Format("2006-01-02"), p, p+1, p-1, p, 500000)
		day = day.AddDate(0, 0, 1)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// trendingPrices dips then rallies so a short SMA crosses above and
// later below a long SMA.
func trendingPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		switch {
		case i < n/3:
			prices[i] = 100 - float64(i)*0.5
		case i < 2*n/3:
			prices[i] = prices[i-1] + 1.5
		default:
			prices[i] = prices[i-1] - 1.0
		}
	}
	return prices
}

func TestCSVToArchivePipeline(t *testing.T) {
	dir := t.TempDir()
	aapl := writeBars(t, dir, "aapl.csv", trendingPrices(60))

	f, err := feed.LoadCSVDir(map[string]string{"AAPL": aapl}, []string{"AAPL"})
	if err != nil {
		t.Fatalf("LoadCSVDir: %v", err)
	}

	cfg := config.Default()
	cfg.Commission.Model = "per_trade"
	cfg.Commission.PerTrade = 1

	bt, err := engine.New(cfg, strategy.NewSMACrossover(5, 20, 100), instruments, []feed.Feed{f})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	result, err := bt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != engine.StateCompleted {
		t.Fatalf("State = %s, want COMPLETED", result.State)
	}
	if len(result.Snapshots) != 60 {
		t.Errorf("got %d snapshots, want one per bar", len(result.Snapshots))
	}
	if len(result.Fills) == 0 {
		t.Fatal("crossover strategy produced no fills on a trending series")
	}

	report := analytics.Analyze(result)
	if report.FillCount != len(result.Fills) {
		t.Errorf("report FillCount = %d, result has %d", report.FillCount, len(result.Fills))
	}

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.SaveResult(ctx, result, "smacross"); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	rec, err := s.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	wantEquity, _ := result.FinalEquity().Float64()
	if rec.FinalEquity != wantEquity {
		t.Errorf("archived FinalEquity = %v, want %v", rec.FinalEquity, wantEquity)
	}
	if rec.FillCount != len(result.Fills) {
		t.Errorf("archived FillCount = %d, want %d", rec.FillCount, len(result.Fills))
	}

	fills, err := s.GetFills(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetFills: %v", err)
	}
	if len(fills) != len(result.Fills) {
		t.Fatalf("archived %d fills, want %d", len(fills), len(result.Fills))
	}
	for i := range fills {
		if fills[i].ID != result.Fills[i].ID {
			t.Errorf("fill[%d] archived as %s, want %s", i, fills[i].ID, result.Fills[i].ID)
		}
	}

	curve, err := s.GetEquityCurve(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetEquityCurve: %v", err)
	}
	if len(curve) != len(result.Snapshots) {
		t.Errorf("archived %d equity points, want %d", len(curve), len(result.Snapshots))
	}
}

func TestMultiInstrumentRun(t *testing.T) {
	dir := t.TempDir()
	aapl := writeBars(t, dir, "aapl.csv", trendingPrices(40))
	msft := writeBars(t, dir, "msft.csv", trendingPrices(40))

	f, err := feed.LoadCSVDir(
		map[string]string{"AAPL": aapl, "MSFT": msft},
		[]string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("LoadCSVDir: %v", err)
	}

	bt, err := engine.New(config.Default(), strategy.NewBuyAndHold(10), instruments, []feed.Feed{f})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	result, err := bt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Both instruments tick on every day, one snapshot per event.
	if len(result.Snapshots) != 80 {
		t.Errorf("got %d snapshots, want 80", len(result.Snapshots))
	}
	if result.State != engine.StateCompleted {
		t.Errorf("State = %s, want COMPLETED", result.State)
	}
}

func TestSweepOverCSVData(t *testing.T) {
	dir := t.TempDir()
	aapl := writeBars(t, dir, "aapl.csv", trendingPrices(60))

	variant := func(short, long int) sweep.Variant {
		return sweep.Variant{
			Name:   fmt.Sprintf("sma-%d-%d", short, long),
			Config: config.Default(),
			Strategy: func() strategy.Strategy {
				return strategy.NewSMACrossover(short, long, 100)
			},
			Feeds: func() ([]feed.Feed, error) {
				f, err := feed.LoadCSVDir(map[string]string{"AAPL": aapl}, []string{"AAPL"})
				if err != nil {
					return nil, err
				}
				return []feed.Feed{f}, nil
			},
		}
	}

	runner := sweep.NewRunner(instruments, sweep.WithWorkers(2))
	outcomes, err := runner.Run(context.Background(),
		[]sweep.Variant{variant(3, 10), variant(5, 20), variant(10, 30)})
	if err != nil {
		t.Fatalf("sweep Run: %v", err)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("variant %s failed: %v", o.Name, o.Err)
		}
	}
	if best := sweep.Best(outcomes); best == nil {
		t.Error("no best outcome from an all-healthy sweep")
	}
}
