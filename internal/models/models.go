// Package models provides domain models for the backtesting engine.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// TimeInForce controls how long an order remains eligible before expiry.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
)

// OrderStatus represents the lifecycle state of an order.
// Pending -> PartiallyFilled -> Filled | Cancelled | Rejected.
// Filled, Cancelled and Rejected are terminal.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Instrument represents a tradeable instrument. Immutable once registered.
type Instrument struct {
	Symbol   string
	Name     string
	TickSize decimal.Decimal
	LotSize  int64
}

// MarketEvent represents one bar of market data for a single instrument.
// Timestamps are non-decreasing per instrument; consumers treat events
// as read-only.
type MarketEvent struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// InRange reports whether price p traded within the event's low/high range.
func (e *MarketEvent) InRange(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(e.Low) && p.LessThanOrEqual(e.High)
}
