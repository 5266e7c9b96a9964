package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a signed holding in a single instrument.
// Owned exclusively by the portfolio accountant.
type Position struct {
	Symbol   string
	Quantity int64
	// CostBasis is the exact signed acquisition cost of the open
	// quantity, negative for shorts. Valuations derive from it rather
	// than from the per-share average, which rounds whenever the
	// division does not terminate.
	CostBasis decimal.Decimal
	// AvgCost is the weighted-average cost per share for reporting.
	// Always non-negative regardless of position sign.
	AvgCost decimal.Decimal
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL returns the open profit or loss at the given price.
func (p Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return p.MarketValue(price).Sub(p.CostBasis)
}

// PortfolioSnapshot is a point-in-time view of the portfolio. The
// ordered sequence of snapshots over a run is the equity curve.
type PortfolioSnapshot struct {
	Timestamp     time.Time
	Cash          decimal.Decimal
	Positions     map[string]Position
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	// Equity is cash plus the market value of all open positions.
	Equity decimal.Decimal
}

// Position returns the snapshot's position for symbol, zero-valued if flat.
func (s *PortfolioSnapshot) Position(symbol string) Position {
	if p, ok := s.Positions[symbol]; ok {
		return p
	}
	return Position{Symbol: symbol, AvgCost: decimal.Zero}
}
