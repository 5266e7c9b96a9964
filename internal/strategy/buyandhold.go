package strategy

import (
	"quantbt/internal/models"
)

// BuyAndHold submits one market buy per symbol on its first event and
// holds to the end of the run.
type BuyAndHold struct {
	Base
	Quantity int64
	bought   map[string]bool
}

// NewBuyAndHold creates a buy-and-hold strategy buying qty shares of
// each instrument it sees.
func NewBuyAndHold(qty int64) *BuyAndHold {
	return &BuyAndHold{
		Quantity: qty,
		bought:   make(map[string]bool),
	}
}

// OnMarketEvent implements Strategy.
func (s *BuyAndHold) OnMarketEvent(ev *models.MarketEvent, _ *models.PortfolioSnapshot) []models.OrderRequest {
	if s.bought[ev.Symbol] {
		return nil
	}
	s.bought[ev.Symbol] = true
	return []models.OrderRequest{{
		Symbol:   ev.Symbol,
		Side:     models.SideBuy,
		Type:     models.OrderTypeMarket,
		Quantity: s.Quantity,
	}}
}
