package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is what a strategy submits to the engine. The engine
// validates it, assigns an ID and creation timestamp, and registers the
// resulting Order with the execution simulator.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    int64
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce TimeInForce
	// GoodTillDays caps how long a GTC order stays open. Zero means the
	// default of 90 calendar days.
	GoodTillDays int
}

// Order represents an order registered with the execution simulator.
// Orders are created by the engine from strategy OrderRequests and
// mutated only by the simulator.
type Order struct {
	ID          string
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    int64
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce TimeInForce
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Status      OrderStatus
	FilledQty   int64
	AvgPrice    decimal.Decimal
	// StopTriggered is set once the stop threshold has been crossed;
	// the order then fills with market (or limit) semantics on a
	// subsequent event.
	StopTriggered bool
	// Reason records why an order was cancelled or rejected.
	Reason string
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQty
}

// Open reports whether the order can still receive fills.
func (o *Order) Open() bool {
	return !o.Status.Terminal()
}

// Cancel transitions an open order to Cancelled.
func (o *Order) Cancel(reason string) {
	if o.Status.Terminal() {
		return
	}
	o.Status = OrderStatusCancelled
	o.Reason = reason
}

// Reject transitions an open order to Rejected.
func (o *Order) Reject(reason string) {
	if o.Status.Terminal() {
		return
	}
	o.Status = OrderStatusRejected
	o.Reason = reason
}

// RecordFill applies a fill's quantity and price to the order state.
func (o *Order) RecordFill(qty int64, price decimal.Decimal) {
	filledNotional := o.AvgPrice.Mul(decimal.NewFromInt(o.FilledQty))
	newNotional := price.Mul(decimal.NewFromInt(qty))
	o.FilledQty += qty
	if o.FilledQty > 0 {
		o.AvgPrice = filledNotional.Add(newNotional).Div(decimal.NewFromInt(o.FilledQty))
	}
	if o.Remaining() == 0 {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Fill is the immutable execution record of an order against market
// liquidity. Fills form an append-only ledger.
type Fill struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      Side
	Timestamp time.Time
	Quantity  int64
	Price     decimal.Decimal
	// Commission charged for this fill.
	Commission decimal.Decimal
	// Slippage is the signed per-share difference between the execution
	// price and the reference price.
	Slippage decimal.Decimal
}

// Notional returns quantity times price.
func (f *Fill) Notional() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}
