// Package store provides persistence for finished backtest runs.
package store

import (
	"context"
	"time"

	"quantbt/internal/engine"
	"quantbt/internal/models"
)

// RunRecord is the archived summary of a backtest run.
type RunRecord struct {
	RunID        string
	CreatedAt    time.Time
	Strategy     string
	State        string
	StartingCash float64
	FinalEquity  float64
	FillCount    int
	OrderCount   int
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Strategy string
	Since    time.Time
	Limit    int
}

// ResultStore archives run results for later comparison. The simulation
// core never touches persistence; the engine's report boundary feeds it.
type ResultStore interface {
	// SaveResult archives a run's summary, fill ledger and equity curve.
	SaveResult(ctx context.Context, result *engine.Result, strategyName string) error

	// GetRun returns an archived run summary.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns archived runs, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// GetFills returns a run's fill ledger in execution order.
	GetFills(ctx context.Context, runID string) ([]models.Fill, error)

	// GetEquityCurve returns a run's equity points in time order.
	GetEquityCurve(ctx context.Context, runID string) ([]EquityPoint, error)

	// Close releases the underlying database.
	Close() error
}

// EquityPoint is one archived equity-curve sample.
type EquityPoint struct {
	Timestamp     time.Time
	Equity        float64
	Cash          float64
	RealizedPnL   float64
	UnrealizedPnL float64
}
