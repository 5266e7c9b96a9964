package strategy

import (
	"github.com/shopspring/decimal"

	"quantbt/internal/indicators"
	"quantbt/internal/models"
)

// SMACrossover trades simple moving-average crossovers: buy when the
// short average crosses above the long one, liquidate when it crosses
// back below. Long-only.
type SMACrossover struct {
	Base
	ShortPeriod int
	LongPeriod  int
	Quantity    int64

	closes map[string][]decimal.Decimal
}

// NewSMACrossover creates an SMA crossover strategy. Typical periods
// are 10/20.
func NewSMACrossover(shortPeriod, longPeriod int, qty int64) *SMACrossover {
	return &SMACrossover{
		ShortPeriod: shortPeriod,
		LongPeriod:  longPeriod,
		Quantity:    qty,
		closes:      make(map[string][]decimal.Decimal),
	}
}

// OnMarketEvent implements Strategy.
func (s *SMACrossover) OnMarketEvent(ev *models.MarketEvent, snap *models.PortfolioSnapshot) []models.OrderRequest {
	history := append(s.closes[ev.Symbol], ev.Close)
	s.closes[ev.Symbol] = history

	if len(history) <= s.LongPeriod {
		return nil
	}

	shortNow := indicators.SMAValue(history, s.ShortPeriod, 0)
	longNow := indicators.SMAValue(history, s.LongPeriod, 0)
	shortPrev := indicators.SMAValue(history, s.ShortPeriod, 1)
	longPrev := indicators.SMAValue(history, s.LongPeriod, 1)

	held := snap.Position(ev.Symbol).Quantity

	// Golden cross: go long if flat.
	if shortPrev.LessThanOrEqual(longPrev) && shortNow.GreaterThan(longNow) && held == 0 {
		return []models.OrderRequest{{
			Symbol:   ev.Symbol,
			Side:     models.SideBuy,
			Type:     models.OrderTypeMarket,
			Quantity: s.Quantity,
		}}
	}

	// Death cross: liquidate.
	if shortPrev.GreaterThanOrEqual(longPrev) && shortNow.LessThan(longNow) && held > 0 {
		return []models.OrderRequest{{
			Symbol:   ev.Symbol,
			Side:     models.SideSell,
			Type:     models.OrderTypeMarket,
			Quantity: held,
		}}
	}

	return nil
}
