// Package portfolio provides position and cash accounting for backtest runs.
package portfolio

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	btErrors "quantbt/internal/errors"
	"quantbt/internal/models"
)

// Accountant owns positions, cash and realized P&L. It is mutated only
// by fills; mark-to-market valuations never touch positions or cash.
// Each backtest run owns its own instance.
type Accountant struct {
	log           zerolog.Logger
	startingCash  decimal.Decimal
	cash          decimal.Decimal
	positions     map[string]*models.Position
	realized      decimal.Decimal
	marginEnabled bool
	leverage      decimal.Decimal
}

// Option configures an Accountant.
type Option func(*Accountant)

// WithMargin enables the margin buying-power model with the given leverage.
func WithMargin(leverage decimal.Decimal) Option {
	return func(a *Accountant) {
		a.marginEnabled = true
		a.leverage = leverage
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Accountant) {
		a.log = log
	}
}

// NewAccountant creates an accountant with the given starting cash.
func NewAccountant(startingCash decimal.Decimal, opts ...Option) *Accountant {
	a := &Accountant{
		log:          zerolog.Nop(),
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]*models.Position),
		realized:     decimal.Zero,
		leverage:     decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Cash returns the current cash balance.
func (a *Accountant) Cash() decimal.Decimal {
	return a.cash
}

// StartingCash returns the initial cash balance.
func (a *Accountant) StartingCash() decimal.Decimal {
	return a.startingCash
}

// RealizedPnL returns accumulated realized P&L net of commissions. It is
// monotonically accumulated across fills and never recomputed.
func (a *Accountant) RealizedPnL() decimal.Decimal {
	return a.realized
}

// Position returns the current position for symbol, zero-valued if flat.
func (a *Accountant) Position(symbol string) models.Position {
	if p, ok := a.positions[symbol]; ok {
		return *p
	}
	return models.Position{Symbol: symbol, AvgCost: decimal.Zero}
}

// ApplyFill updates cash, the position's weighted-average cost basis and
// realized P&L for a single fill. Cash and position quantities change
// together; there is no intermediate observable state.
func (a *Accountant) ApplyFill(f *models.Fill) {
	notional := f.Notional()
	if f.Side == models.SideBuy {
		a.cash = a.cash.Sub(notional).Sub(f.Commission)
	} else {
		a.cash = a.cash.Add(notional).Sub(f.Commission)
	}

	pos, ok := a.positions[f.Symbol]
	if !ok {
		pos = &models.Position{Symbol: f.Symbol, AvgCost: decimal.Zero}
		a.positions[f.Symbol] = pos
	}

	delta := f.Quantity * f.Side.Sign()
	oldQty := pos.Quantity
	newQty := oldQty + delta

	switch {
	case oldQty == 0 || sameSign(oldQty, delta):
		// Opening or increasing: the exact basis absorbs the notional,
		// the per-share average is derived and may round.
		pos.CostBasis = pos.CostBasis.Add(f.Price.Mul(decimal.NewFromInt(delta)))
		pos.AvgCost = pos.CostBasis.Div(decimal.NewFromInt(newQty)).Abs()
	case abs(delta) <= abs(oldQty):
		// Reducing or closing: realize proceeds less the removed slice
		// of the basis. The remainder keeps the complement, so any
		// rounding in the split never leaks out of the ledger.
		costRemoved := pos.CostBasis.
			Mul(decimal.NewFromInt(abs(delta))).
			Div(decimal.NewFromInt(abs(oldQty)))
		a.realized = a.realized.
			Add(f.Price.Mul(decimal.NewFromInt(-delta))).
			Sub(costRemoved)
		pos.CostBasis = pos.CostBasis.Sub(costRemoved)
		if newQty == 0 {
			pos.AvgCost = decimal.Zero
		}
	default:
		// Flipping through zero: close the whole old position, open the
		// remainder at the fill price.
		a.realized = a.realized.
			Add(f.Price.Mul(decimal.NewFromInt(oldQty))).
			Sub(pos.CostBasis)
		pos.CostBasis = f.Price.Mul(decimal.NewFromInt(newQty))
		pos.AvgCost = f.Price
	}

	// Commissions reduce realized P&L so the accounting identity
	// equity = startingCash + realized + unrealized holds exactly.
	a.realized = a.realized.Sub(f.Commission)

	pos.Quantity = newQty
	if newQty == 0 {
		delete(a.positions, f.Symbol)
	}

	a.log.Debug().
		Str("order_id", f.OrderID).
		Str("symbol", f.Symbol).
		Int64("qty", delta).
		Str("price", f.Price.String()).
		Str("cash", a.cash.String()).
		Msg("fill applied")
}

// MarkToMarket returns total unrealized P&L for all open positions as of
// ts, using the latest known price per instrument. Positions without a
// known price are valued at cost. The accountant itself is not mutated.
func (a *Accountant) MarkToMarket(ts time.Time, prices map[string]decimal.Decimal) decimal.Decimal {
	unrealized := decimal.Zero
	for sym, pos := range a.positions {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		unrealized = unrealized.Add(pos.UnrealizedPnL(price))
	}
	return unrealized
}

// CheckBuyingPower reports whether the order could be afforded at the
// reference price. Pure predicate: no state changes. Under the cash-only
// model buys must be covered by cash and sells may not open or extend a
// short position; under the margin model buying power is cash times
// leverage and shorts are permitted.
func (a *Accountant) CheckBuyingPower(order *models.Order, refPrice decimal.Decimal) error {
	required := refPrice.Mul(decimal.NewFromInt(order.Remaining()))

	if order.Side == models.SideSell {
		if a.marginEnabled {
			return nil
		}
		held := int64(0)
		if pos, ok := a.positions[order.Symbol]; ok {
			held = pos.Quantity
		}
		if order.Remaining() > held {
			return &btErrors.InsufficientFundsError{
				OrderID:   order.ID,
				Symbol:    order.Symbol,
				Required:  decimal.NewFromInt(order.Remaining()).String() + " shares",
				Available: decimal.NewFromInt(held).String() + " shares",
			}
		}
		return nil
	}

	available := a.cash
	if a.marginEnabled {
		available = available.Mul(a.leverage)
	}
	if required.GreaterThan(available) {
		return &btErrors.InsufficientFundsError{
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Required:  required.String(),
			Available: available.String(),
		}
	}
	return nil
}

// Snapshot captures cash, positions and P&L at the given timestamp,
// valuing open positions at the supplied prices.
func (a *Accountant) Snapshot(ts time.Time, prices map[string]decimal.Decimal) models.PortfolioSnapshot {
	positions := make(map[string]models.Position, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		positions[sym] = *pos
		if price, ok := prices[sym]; ok {
			equity = equity.Add(pos.MarketValue(price))
		} else {
			equity = equity.Add(pos.CostBasis)
		}
	}
	return models.PortfolioSnapshot{
		Timestamp:     ts,
		Cash:          a.cash,
		Positions:     positions,
		RealizedPnL:   a.realized,
		UnrealizedPnL: a.MarkToMarket(ts, prices),
		Equity:        equity,
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
