// Package execution simulates order fills against historical market data.
//
// The simulator converts pending orders into fills using only market
// events strictly later than each order's creation timestamp. This is
// the engine's core anti-look-ahead guarantee.
package execution

import (
	"github.com/shopspring/decimal"

	"quantbt/internal/config"
	btErrors "quantbt/internal/errors"
	"quantbt/internal/models"
)

// SlippageModel adjusts a reference price into an execution price.
// Implementations must be pure functions of their arguments so replayed
// runs stay deterministic.
type SlippageModel func(order *models.Order, refPrice decimal.Decimal) decimal.Decimal

// CommissionModel prices a fill. The fill's Commission field is unset
// when the model is invoked.
type CommissionModel func(fill *models.Fill) decimal.Decimal

// FillPriceFunc selects the reference price a market order fills at.
type FillPriceFunc func(order *models.Order, ev *models.MarketEvent) decimal.Decimal

var bpsDenominator = decimal.NewFromInt(10000)

// FixedBpsSlippage returns the default slippage model: a fixed
// basis-point adjustment against the order's side. Buys pay up, sells
// receive less.
func FixedBpsSlippage(bps decimal.Decimal) SlippageModel {
	return func(order *models.Order, ref decimal.Decimal) decimal.Decimal {
		adj := ref.Mul(bps).Div(bpsDenominator)
		if order.Side == models.SideBuy {
			return ref.Add(adj)
		}
		return ref.Sub(adj)
	}
}

// NoSlippage executes at the reference price.
func NoSlippage() SlippageModel {
	return func(_ *models.Order, ref decimal.Decimal) decimal.Decimal {
		return ref
	}
}

// PerShareCommission charges a fixed cost per share with an optional
// per-fill minimum.
func PerShareCommission(perShare, minimum decimal.Decimal) CommissionModel {
	return func(fill *models.Fill) decimal.Decimal {
		c := perShare.Mul(decimal.NewFromInt(fill.Quantity))
		if c.LessThan(minimum) {
			return minimum
		}
		return c
	}
}

// FlatCommission charges a flat fee per fill.
func FlatCommission(perTrade decimal.Decimal) CommissionModel {
	return func(_ *models.Fill) decimal.Decimal {
		return perTrade
	}
}

// NoCommission charges nothing.
func NoCommission() CommissionModel {
	return func(_ *models.Fill) decimal.Decimal {
		return decimal.Zero
	}
}

// FillAtOpen references the bar's open price.
func FillAtOpen(_ *models.Order, ev *models.MarketEvent) decimal.Decimal {
	return ev.Open
}

// FillAtClose references the bar's close price.
func FillAtClose(_ *models.Order, ev *models.MarketEvent) decimal.Decimal {
	return ev.Close
}

// ModelsFromConfig builds the configured slippage, commission and
// fill-price models. Unknown names were already rejected by config
// validation; this only translates.
func ModelsFromConfig(cfg *config.Config) (SlippageModel, CommissionModel, FillPriceFunc, error) {
	var slip SlippageModel
	switch cfg.Slippage.Model {
	case "fixed_bps":
		slip = FixedBpsSlippage(decimal.NewFromFloat(cfg.Slippage.Bps))
	case "none", "":
		slip = NoSlippage()
	default:
		return nil, nil, nil, btErrors.NewConfigurationError("slippage.model", cfg.Slippage.Model, "unknown model")
	}

	var comm CommissionModel
	switch cfg.Commission.Model {
	case "per_share":
		comm = PerShareCommission(
			decimal.NewFromFloat(cfg.Commission.PerShare),
			decimal.NewFromFloat(cfg.Commission.Minimum))
	case "per_trade":
		comm = FlatCommission(decimal.NewFromFloat(cfg.Commission.PerTrade))
	case "none", "":
		comm = NoCommission()
	default:
		return nil, nil, nil, btErrors.NewConfigurationError("commission.model", cfg.Commission.Model, "unknown model")
	}

	var fillPrice FillPriceFunc
	switch cfg.Fill.PriceRule {
	case "open":
		fillPrice = FillAtOpen
	case "close", "":
		fillPrice = FillAtClose
	default:
		return nil, nil, nil, btErrors.NewConfigurationError("fill.price_rule", cfg.Fill.PriceRule, "unknown rule")
	}

	return slip, comm, fillPrice, nil
}
