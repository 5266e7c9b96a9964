package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"quantbt/internal/engine"
	"quantbt/internal/models"
)

// SQLiteStore implements ResultStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a run archive at dbPath. Use
// ":memory:" for an ephemeral archive.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		strategy TEXT NOT NULL,
		state TEXT NOT NULL,
		starting_cash REAL NOT NULL,
		final_equity REAL NOT NULL,
		fill_count INTEGER NOT NULL,
		order_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fills (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		commission REAL NOT NULL,
		slippage REAL NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, seq);

	CREATE TABLE IF NOT EXISTS equity_curve (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		timestamp DATETIME NOT NULL,
		equity REAL NOT NULL,
		cash REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		unrealized_pnl REAL NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_curve(run_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResult implements ResultStore. The whole result is written in one
// transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *engine.Result, strategyName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	startingCash, _ := result.StartingCash.Float64()
	finalEquity, _ := result.FinalEquity().Float64()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, state, starting_cash, final_equity, fill_count, order_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, strategyName, string(result.State), startingCash, finalEquity,
		len(result.Fills), len(result.Orders))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i := range result.Fills {
		f := &result.Fills[i]
		price, _ := f.Price.Float64()
		commission, _ := f.Commission.Float64()
		slippage, _ := f.Slippage.Float64()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO fills (id, run_id, order_id, symbol, side, timestamp, quantity, price, commission, slippage, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, result.RunID, f.OrderID, f.Symbol, string(f.Side), f.Timestamp,
			f.Quantity, price, commission, slippage, i)
		if err != nil {
			return fmt.Errorf("inserting fill %s: %w", f.ID, err)
		}
	}

	for i := range result.Snapshots {
		snap := &result.Snapshots[i]
		equity, _ := snap.Equity.Float64()
		cash, _ := snap.Cash.Float64()
		realized, _ := snap.RealizedPnL.Float64()
		unrealized, _ := snap.UnrealizedPnL.Float64()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO equity_curve (run_id, timestamp, equity, cash, realized_pnl, unrealized_pnl, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, snap.Timestamp, equity, cash, realized, unrealized, i)
		if err != nil {
			return fmt.Errorf("inserting equity point: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun implements ResultStore.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, strategy, state, starting_cash, final_equity, fill_count, order_count
		FROM runs WHERE run_id = ?`, runID)

	var rec RunRecord
	err := row.Scan(&rec.RunID, &rec.CreatedAt, &rec.Strategy, &rec.State,
		&rec.StartingCash, &rec.FinalEquity, &rec.FillCount, &rec.OrderCount)
	if err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRuns implements ResultStore.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `
		SELECT run_id, created_at, strategy, state, starting_cash, final_equity, fill_count, order_count
		FROM runs WHERE 1=1`
	var args []interface{}

	if filter.Strategy != "" {
		query += " AND strategy = ?"
		args = append(args, filter.Strategy)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.CreatedAt, &rec.Strategy, &rec.State,
			&rec.StartingCash, &rec.FinalEquity, &rec.FillCount, &rec.OrderCount); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetFills implements ResultStore.
func (s *SQLiteStore) GetFills(ctx context.Context, runID string) ([]models.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, symbol, side, timestamp, quantity, price, commission, slippage
		FROM fills WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching fills for %s: %w", runID, err)
	}
	defer rows.Close()

	var fills []models.Fill
	for rows.Next() {
		var f models.Fill
		var side string
		var price, commission, slippage float64
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &side, &f.Timestamp,
			&f.Quantity, &price, &commission, &slippage); err != nil {
			return nil, err
		}
		f.Side = models.Side(side)
		f.Price = decimal.NewFromFloat(price)
		f.Commission = decimal.NewFromFloat(commission)
		f.Slippage = decimal.NewFromFloat(slippage)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// GetEquityCurve implements ResultStore.
func (s *SQLiteStore) GetEquityCurve(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, equity, cash, realized_pnl, unrealized_pnl
		FROM equity_curve WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching equity curve for %s: %w", runID, err)
	}
	defer rows.Close()

	var points []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Equity, &p.Cash, &p.RealizedPnL, &p.UnrealizedPnL); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close implements ResultStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ ResultStore = (*SQLiteStore)(nil)
