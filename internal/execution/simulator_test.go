package execution

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantbt/internal/config"
	btErrors "quantbt/internal/errors"
	"quantbt/internal/models"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

var baseTime = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

// allowAll accepts every order regardless of price.
type allowAll struct{}

func (allowAll) CheckBuyingPower(*models.Order, decimal.Decimal) error { return nil }

// denyAll rejects every order.
type denyAll struct{}

func (denyAll) CheckBuyingPower(o *models.Order, _ decimal.Decimal) error {
	return &btErrors.InsufficientFundsError{OrderID: o.ID, Symbol: o.Symbol}
}

func newTestSim(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	s, err := NewSimulator(config.Default(), []models.Instrument{
		{Symbol: "AAPL", LotSize: 1},
		{Symbol: "LOTS", LotSize: 100},
	}, opts...)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

func bar(minsAfter int, open, high, low, close float64, volume int64) *models.MarketEvent {
	return &models.MarketEvent{
		Symbol:    "AAPL",
		Timestamp: baseTime.Add(time.Duration(minsAfter) * time.Minute),
		Open:      dec(open),
		High:      dec(high),
		Low:       dec(low),
		Close:     dec(close),
		Volume:    volume,
	}
}

func order(id string, side models.Side, typ models.OrderType, qty int64) *models.Order {
	return &models.Order{
		ID:        id,
		Symbol:    "AAPL",
		Side:      side,
		Type:      typ,
		Quantity:  qty,
		CreatedAt: baseTime,
		Status:    models.OrderStatusPending,
	}
}

func TestMarketOrderFillsOnNextEvent(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeMarket, 10)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Same-timestamp event must not fill: fills come only from events
	// strictly later than order creation.
	res := s.OnMarketEvent(bar(0, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 0 {
		t.Fatalf("order filled against its creation timestamp")
	}

	res = s.OnMarketEvent(bar(1, 101, 103, 100, 102, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	f := res.Fills[0]
	// Default rule fills at the bar close.
	if !f.Price.Equal(dec(102)) {
		t.Errorf("expected fill at 102, got %s", f.Price)
	}
	if f.Quantity != 10 {
		t.Errorf("expected qty 10, got %d", f.Quantity)
	}
	if o.Status != models.OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", o.Status)
	}
}

func TestMarketOrderFillAtOpenRule(t *testing.T) {
	s := newTestSim(t, WithFillPriceFunc(FillAtOpen))

	o := order("o1", models.SideBuy, models.OrderTypeMarket, 10)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := s.OnMarketEvent(bar(1, 101, 103, 100, 102, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if !res.Fills[0].Price.Equal(dec(101)) {
		t.Errorf("expected fill at open 101, got %s", res.Fills[0].Price)
	}
}

func TestLimitOrderFillsWhenCrossed(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeLimit, 10)
	o.LimitPrice = dec(100)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Bar entirely above the limit: no fill, order rests.
	res := s.OnMarketEvent(bar(1, 102, 104, 101, 103, 1000), allowAll{})
	if len(res.Fills) != 0 {
		t.Fatal("buy limit filled above its price")
	}
	if o.Status != models.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", o.Status)
	}

	// Bar trades through the limit: fill at the limit price.
	res = s.OnMarketEvent(bar(2, 101, 102, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if !res.Fills[0].Price.Equal(dec(100)) {
		t.Errorf("expected fill at limit 100, got %s", res.Fills[0].Price)
	}
}

func TestLimitOrderFillsAtOpenWhenGapped(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeLimit, 10)
	o.LimitPrice = dec(100)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Bar opens below the limit: execution improves to the open.
	res := s.OnMarketEvent(bar(1, 97, 99, 96, 98, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if !res.Fills[0].Price.Equal(dec(97)) {
		t.Errorf("expected fill at open 97, got %s", res.Fills[0].Price)
	}
}

func TestLimitSlippageNeverBreachesLimit(t *testing.T) {
	s := newTestSim(t, WithSlippageModel(FixedBpsSlippage(dec(500)))) // 5%

	o := order("o1", models.SideBuy, models.OrderTypeLimit, 10)
	o.LimitPrice = dec(100)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := s.OnMarketEvent(bar(1, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Fills[0].Price.GreaterThan(dec(100)) {
		t.Errorf("slippage pushed buy fill above limit: %s", res.Fills[0].Price)
	}
}

func TestLiquidityCapPartialFills(t *testing.T) {
	cfg := config.Default()
	cfg.Liquidity.MaxVolumeShare = 0.1
	s, err := NewSimulator(cfg, []models.Instrument{{Symbol: "AAPL", LotSize: 1}})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}

	o := order("o1", models.SideBuy, models.OrderTypeLimit, 250)
	o.LimitPrice = dec(100)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 10% of 1000 shares = 100 per bar.
	res := s.OnMarketEvent(bar(1, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 1 || res.Fills[0].Quantity != 100 {
		t.Fatalf("expected partial fill of 100, got %+v", res.Fills)
	}
	if o.Status != models.OrderStatusPartiallyFilled {
		t.Errorf("expected PARTIALLY_FILLED, got %s", o.Status)
	}

	res = s.OnMarketEvent(bar(2, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 1 || res.Fills[0].Quantity != 100 {
		t.Fatalf("expected second partial fill of 100, got %+v", res.Fills)
	}

	res = s.OnMarketEvent(bar(3, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 1 || res.Fills[0].Quantity != 50 {
		t.Fatalf("expected final fill of 50, got %+v", res.Fills)
	}
	if o.Status != models.OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", o.Status)
	}
}

func TestStopOrderTriggersThenFills(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeStop, 10)
	o.StopPrice = dec(105)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Bar below the stop: nothing happens.
	res := s.OnMarketEvent(bar(1, 100, 103, 99, 102, 1000), allowAll{})
	if len(res.Fills) != 0 || o.StopTriggered {
		t.Fatal("stop acted before its threshold was crossed")
	}

	// Bar crosses the stop: triggered, but the fill waits for the next
	// event.
	res = s.OnMarketEvent(bar(2, 104, 106, 103, 105, 1000), allowAll{})
	if len(res.Fills) != 0 {
		t.Fatal("stop filled on its trigger event")
	}
	if !o.StopTriggered {
		t.Fatal("stop not triggered by a bar crossing its threshold")
	}

	// Next event: market-semantics fill at the close.
	res = s.OnMarketEvent(bar(3, 106, 108, 105, 107, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if !res.Fills[0].Price.Equal(dec(107)) {
		t.Errorf("expected fill at 107, got %s", res.Fills[0].Price)
	}
}

func TestStopLimitConvertsToLimit(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideSell, models.OrderTypeStopLimit, 10)
	o.StopPrice = dec(95)
	o.LimitPrice = dec(94)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Trigger: bar low touches the stop.
	res := s.OnMarketEvent(bar(1, 97, 98, 95, 96, 1000), allowAll{})
	if len(res.Fills) != 0 || !o.StopTriggered {
		t.Fatal("expected trigger with no fill")
	}

	// Next bar stays above the limit? No: sell limit 94 crosses when
	// high >= 94; fill comes at limit or better.
	res = s.OnMarketEvent(bar(2, 96, 97, 93, 94, 1000), allowAll{})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Fills[0].Price.LessThan(dec(94)) {
		t.Errorf("sell stop-limit filled below its limit: %s", res.Fills[0].Price)
	}
}

func TestBuyingPowerRejection(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeMarket, 10)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := s.OnMarketEvent(bar(1, 100, 101, 99, 100, 1000), denyAll{})
	if len(res.Fills) != 0 {
		t.Fatal("rejected order produced a fill")
	}
	if o.Status != models.OrderStatusRejected {
		t.Errorf("expected REJECTED, got %s", o.Status)
	}
	if len(res.Reports) != 1 {
		t.Errorf("expected rejection report, got %d reports", len(res.Reports))
	}

	// A terminal order never comes back.
	res = s.OnMarketEvent(bar(2, 100, 101, 99, 100, 1000), allowAll{})
	if len(res.Fills) != 0 {
		t.Error("rejected order filled later")
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newTestSim(t)

	tests := []struct {
		name  string
		order *models.Order
	}{
		{"unknown symbol", &models.Order{ID: "v1", Symbol: "NOPE", Side: models.SideBuy, Type: models.OrderTypeMarket, Quantity: 1}},
		{"zero quantity", order("v2", models.SideBuy, models.OrderTypeMarket, 0)},
		{"negative quantity", order("v3", models.SideBuy, models.OrderTypeMarket, -5)},
		{"limit without price", order("v4", models.SideBuy, models.OrderTypeLimit, 10)},
		{"stop without price", order("v5", models.SideSell, models.OrderTypeStop, 10)},
		{"bad side", &models.Order{ID: "v6", Symbol: "AAPL", Side: "HOLD", Type: models.OrderTypeMarket, Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Submit(tt.order)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, btErrors.ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}

	lot := &models.Order{ID: "v7", Symbol: "LOTS", Side: models.SideBuy, Type: models.OrderTypeMarket, Quantity: 150, CreatedAt: baseTime}
	if err := s.Submit(lot); err == nil {
		t.Error("expected lot size violation for 150 with lot 100")
	}
}

func TestExpireCancelsRemainder(t *testing.T) {
	s := newTestSim(t)

	o := order("o1", models.SideBuy, models.OrderTypeLimit, 10)
	o.LimitPrice = dec(50)
	if err := s.Submit(o); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	expired := s.Expire("o1", baseTime.Add(time.Hour))
	if expired == nil {
		t.Fatal("Expire returned nil for an open order")
	}
	if o.Status != models.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", o.Status)
	}

	if again := s.Expire("o1", baseTime.Add(2*time.Hour)); again != nil {
		t.Error("Expire acted on a terminal order")
	}
}

func TestCancelAllReturnsSorted(t *testing.T) {
	s := newTestSim(t)

	for _, id := range []string{"c", "a", "b"} {
		o := order(id, models.SideBuy, models.OrderTypeLimit, 10)
		o.LimitPrice = dec(50)
		if err := s.Submit(o); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}

	cancelled := s.CancelAll("end of data")
	if len(cancelled) != 3 {
		t.Fatalf("expected 3 cancellations, got %d", len(cancelled))
	}
	for i, want := range []string{"a", "b", "c"} {
		if cancelled[i].ID != want {
			t.Errorf("cancelled[%d] = %s, want %s", i, cancelled[i].ID, want)
		}
		if cancelled[i].Status != models.OrderStatusCancelled {
			t.Errorf("order %s not cancelled", cancelled[i].ID)
		}
	}
	if len(s.OpenOrders()) != 0 {
		t.Error("open orders remain after CancelAll")
	}
}

func TestFillIDsAreDeterministic(t *testing.T) {
	run := func() []string {
		s := newTestSim(t)
		o := order("o1", models.SideBuy, models.OrderTypeMarket, 10)
		if err := s.Submit(o); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		res := s.OnMarketEvent(bar(1, 100, 101, 99, 100, 1000), allowAll{})
		ids := make([]string, len(res.Fills))
		for i, f := range res.Fills {
			ids[i] = f.ID
		}
		return ids
	}

	first, second := run(), run()
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("replayed runs produced different fill IDs: %v vs %v", first, second)
	}
}
