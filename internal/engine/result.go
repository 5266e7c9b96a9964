package engine

import (
	"github.com/shopspring/decimal"

	"quantbt/internal/models"
)

// Result is the outcome of a backtest run: the ordered snapshot
// sequence (equity curve), the append-only fill ledger and every order
// registered during the run. A Result from an aborted run carries the
// partial data accumulated up to the abort point.
type Result struct {
	RunID        string
	State        State
	StartingCash decimal.Decimal
	Snapshots    []models.PortfolioSnapshot
	Fills        []models.Fill
	Orders       []models.Order
	Err          error
}

// FinalSnapshot returns the last snapshot, or false when no event was
// processed.
func (r *Result) FinalSnapshot() (models.PortfolioSnapshot, bool) {
	if len(r.Snapshots) == 0 {
		return models.PortfolioSnapshot{}, false
	}
	return r.Snapshots[len(r.Snapshots)-1], true
}

// FinalEquity returns the last snapshot's equity, or starting cash when
// no event was processed.
func (r *Result) FinalEquity() decimal.Decimal {
	snap, ok := r.FinalSnapshot()
	if !ok {
		return r.StartingCash
	}
	return snap.Equity
}

// OrdersByStatus filters the order ledger.
func (r *Result) OrdersByStatus(status models.OrderStatus) []models.Order {
	var out []models.Order
	for i := range r.Orders {
		if r.Orders[i].Status == status {
			out = append(out, r.Orders[i])
		}
	}
	return out
}

// TotalCommission sums commissions across the fill ledger.
func (r *Result) TotalCommission() decimal.Decimal {
	total := decimal.Zero
	for i := range r.Fills {
		total = total.Add(r.Fills[i].Commission)
	}
	return total
}
