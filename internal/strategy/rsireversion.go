package strategy

import (
	"github.com/shopspring/decimal"

	"quantbt/internal/indicators"
	"quantbt/internal/models"
)

// RSIReversion trades oversold and overbought extremes: buy when RSI
// drops below the oversold level while flat, liquidate when it rises
// above the overbought level. Long-only.
type RSIReversion struct {
	Base
	Period     int
	Oversold   decimal.Decimal
	Overbought decimal.Decimal
	Quantity   int64

	closes map[string][]decimal.Decimal
}

// NewRSIReversion creates an RSI mean-reversion strategy with the
// conventional 30/70 bands.
func NewRSIReversion(period int, qty int64) *RSIReversion {
	return &RSIReversion{
		Period:     period,
		Oversold:   decimal.NewFromInt(30),
		Overbought: decimal.NewFromInt(70),
		Quantity:   qty,
		closes:     make(map[string][]decimal.Decimal),
	}
}

// OnMarketEvent implements Strategy.
func (s *RSIReversion) OnMarketEvent(ev *models.MarketEvent, snap *models.PortfolioSnapshot) []models.OrderRequest {
	history := append(s.closes[ev.Symbol], ev.Close)
	s.closes[ev.Symbol] = history

	series, err := indicators.NewRSI(s.Period).Calculate(history)
	if err != nil {
		return nil
	}
	rsi := series[len(series)-1]

	held := snap.Position(ev.Symbol).Quantity

	if rsi.LessThan(s.Oversold) && held == 0 {
		return []models.OrderRequest{{
			Symbol:   ev.Symbol,
			Side:     models.SideBuy,
			Type:     models.OrderTypeMarket,
			Quantity: s.Quantity,
		}}
	}

	if rsi.GreaterThan(s.Overbought) && held > 0 {
		return []models.OrderRequest{{
			Symbol:   ev.Symbol,
			Side:     models.SideSell,
			Type:     models.OrderTypeMarket,
			Quantity: held,
		}}
	}

	return nil
}
