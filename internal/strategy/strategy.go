// Package strategy defines the user-extension point of the backtester.
//
// Strategies must be deterministic functions of the events and snapshots
// delivered to them; that contract is documented rather than enforced,
// and it is what makes replayed backtests reproducible.
package strategy

import (
	"time"

	"quantbt/internal/models"
)

// Strategy consumes market events and portfolio state and emits order
// requests. All callbacks are dispatched synchronously, once per event,
// in the order delivered by the event queue.
type Strategy interface {
	// OnMarketEvent is called for every market event after pending
	// orders have been worked. The snapshot reflects all fills applied
	// up to and including this event.
	OnMarketEvent(ev *models.MarketEvent, snap *models.PortfolioSnapshot) []models.OrderRequest

	// OnFillReport is called once per fill of the strategy's orders.
	OnFillReport(fill *models.Fill)

	// OnOrderReport is called on order status transitions, including
	// every rejection and cancellation exactly once.
	OnOrderReport(order *models.Order)
}

// TimerHandler is an optional extension for strategies that schedule
// wake-up timers via the engine.
type TimerHandler interface {
	OnTimer(now time.Time, tag string, snap *models.PortfolioSnapshot) []models.OrderRequest
}

// Base is a no-op implementation to embed in concrete strategies.
type Base struct{}

// OnMarketEvent implements Strategy.
func (Base) OnMarketEvent(_ *models.MarketEvent, _ *models.PortfolioSnapshot) []models.OrderRequest {
	return nil
}

// OnFillReport implements Strategy.
func (Base) OnFillReport(_ *models.Fill) {}

// OnOrderReport implements Strategy.
func (Base) OnOrderReport(_ *models.Order) {}
