package execution

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quantbt/internal/config"
	btErrors "quantbt/internal/errors"
	"quantbt/internal/models"
)

// Simulator converts pending orders into fills using feed data. One
// instance per run; never shared.
type Simulator struct {
	log            zerolog.Logger
	slippage       SlippageModel
	commission     CommissionModel
	fillPrice      FillPriceFunc
	maxVolumeShare decimal.Decimal
	instruments    map[string]models.Instrument
	books          map[string]*book
	orders         map[string]*models.Order
	seq            uint64
	fillSeq        uint64
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSlippageModel overrides the configured slippage model.
func WithSlippageModel(m SlippageModel) Option {
	return func(s *Simulator) { s.slippage = m }
}

// WithCommissionModel overrides the configured commission model.
func WithCommissionModel(m CommissionModel) Option {
	return func(s *Simulator) { s.commission = m }
}

// WithFillPriceFunc overrides the configured market fill-price rule.
func WithFillPriceFunc(f FillPriceFunc) Option {
	return func(s *Simulator) { s.fillPrice = f }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

// NewSimulator builds a simulator from run configuration. Instruments
// must be registered up front; orders for unknown symbols are rejected.
func NewSimulator(cfg *config.Config, instruments []models.Instrument, opts ...Option) (*Simulator, error) {
	slip, comm, fillPrice, err := ModelsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		log:            zerolog.Nop(),
		slippage:       slip,
		commission:     comm,
		fillPrice:      fillPrice,
		maxVolumeShare: decimal.NewFromFloat(cfg.Liquidity.MaxVolumeShare),
		instruments:    make(map[string]models.Instrument, len(instruments)),
		books:          make(map[string]*book),
		orders:         make(map[string]*models.Order),
	}
	for _, inst := range instruments {
		s.instruments[inst.Symbol] = inst
		s.books[inst.Symbol] = newBook(inst.Symbol)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates and registers an order. The order begins Pending and
// becomes eligible for fills only against events strictly later than its
// creation timestamp.
func (s *Simulator) Submit(o *models.Order) error {
	if err := s.validate(o); err != nil {
		return err
	}

	s.orders[o.ID] = o
	o.Status = models.OrderStatusPending
	b := s.books[o.Symbol]
	s.seq++

	switch o.Type {
	case models.OrderTypeMarket:
		b.addMarket(o, s.seq, o.CreatedAt)
	case models.OrderTypeLimit:
		b.addLimit(o, s.seq)
	case models.OrderTypeStop, models.OrderTypeStopLimit:
		b.addStop(o, s.seq)
	}

	s.log.Debug().
		Str("order_id", o.ID).
		Str("symbol", o.Symbol).
		Str("type", string(o.Type)).
		Str("side", string(o.Side)).
		Int64("qty", o.Quantity).
		Msg("order accepted")
	return nil
}

func (s *Simulator) validate(o *models.Order) error {
	inst, known := s.instruments[o.Symbol]
	if !known {
		return btErrors.NewOrderValidationError(o.Symbol, "symbol", o.Symbol, "instrument not registered")
	}
	if o.Side != models.SideBuy && o.Side != models.SideSell {
		return btErrors.NewOrderValidationError(o.Symbol, "side", o.Side, "must be BUY or SELL")
	}
	if o.Quantity <= 0 {
		return btErrors.NewOrderValidationError(o.Symbol, "quantity", o.Quantity, "must be positive")
	}
	if inst.LotSize > 1 && o.Quantity%inst.LotSize != 0 {
		return btErrors.NewOrderValidationError(o.Symbol, "quantity", o.Quantity,
			fmt.Sprintf("must be a multiple of lot size %d", inst.LotSize))
	}
	switch o.Type {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if !o.LimitPrice.IsPositive() {
			return btErrors.NewOrderValidationError(o.Symbol, "limit_price", o.LimitPrice, "must be positive")
		}
	case models.OrderTypeStop:
		if !o.StopPrice.IsPositive() {
			return btErrors.NewOrderValidationError(o.Symbol, "stop_price", o.StopPrice, "must be positive")
		}
	case models.OrderTypeStopLimit:
		if !o.StopPrice.IsPositive() || !o.LimitPrice.IsPositive() {
			return btErrors.NewOrderValidationError(o.Symbol, "stop_price", o.StopPrice,
				"stop and limit prices must be positive")
		}
	default:
		return btErrors.NewOrderValidationError(o.Symbol, "type", o.Type, "unknown order type")
	}
	return nil
}

// BuyingPowerChecker is the accountant-side predicate queried before a
// fill is created.
type BuyingPowerChecker interface {
	CheckBuyingPower(order *models.Order, refPrice decimal.Decimal) error
}

// EventResult lists what happened to pending orders during one market
// event: fills in execution order plus every order whose status changed.
type EventResult struct {
	Fills   []*models.Fill
	Reports []*models.Order
}

// OnMarketEvent works all pending orders for the event's instrument.
// Only orders created strictly before the event's timestamp are
// eligible. Stops trigger on this event and execute on a subsequent one.
func (s *Simulator) OnMarketEvent(ev *models.MarketEvent, bp BuyingPowerChecker) *EventResult {
	res := &EventResult{}
	b, ok := s.books[ev.Symbol]
	if !ok {
		return res
	}

	// Limit crossings are collected before stops trigger so a
	// stop-limit converted by this event cannot also fill against it.
	crossed := b.crossedLimits(ev)

	// 1. Trigger stops whose threshold the bar crossed. Stop orders
	// convert to market semantics, stop-limits to resting limits; both
	// execute against later events only.
	for _, e := range b.triggeredStops(ev) {
		o := e.order
		b.removeResting(o)
		o.StopTriggered = true
		s.seq++
		if o.Type == models.OrderTypeStopLimit {
			b.addLimit(o, s.seq)
		} else {
			b.addMarket(o, s.seq, ev.Timestamp)
		}
		s.log.Debug().Str("order_id", o.ID).Str("stop", o.StopPrice.String()).Msg("stop triggered")
	}

	// 2. Market-style executions: plain market orders eligible after
	// creation, triggered stops eligible after their trigger event.
	var remaining []*marketEntry
	for _, e := range b.market {
		if !ev.Timestamp.After(e.eligibleAfter) {
			remaining = append(remaining, e)
			continue
		}
		o := e.order
		ref := s.fillPrice(o, ev)
		execPrice := s.slippage(o, ref)
		if err := bp.CheckBuyingPower(o, execPrice); err != nil {
			o.Reject(err.Error())
			res.Reports = append(res.Reports, o)
			s.log.Info().Str("order_id", o.ID).Str("reason", o.Reason).Msg("order rejected")
			continue
		}
		fill := s.newFill(o, ev.Timestamp, o.Remaining(), execPrice, ref)
		o.RecordFill(fill.Quantity, fill.Price)
		res.Fills = append(res.Fills, fill)
		res.Reports = append(res.Reports, o)
	}
	b.market = remaining

	// 3. Limit executions where the bar's range crossed the limit.
	for _, e := range crossed {
		o := e.order
		fill, rejected := s.fillLimit(o, ev, bp)
		if rejected {
			b.removeResting(o)
			res.Reports = append(res.Reports, o)
			continue
		}
		if fill == nil {
			continue
		}
		res.Fills = append(res.Fills, fill)
		res.Reports = append(res.Reports, o)
		if !o.Open() {
			b.removeResting(o)
		}
	}

	return res
}

// fillLimit executes a crossed limit order against the bar. Returns the
// fill (nil when the liquidity cap leaves nothing to fill this bar) and
// whether the order was rejected by the buying-power check.
func (s *Simulator) fillLimit(o *models.Order, ev *models.MarketEvent, bp BuyingPowerChecker) (*models.Fill, bool) {
	// If the bar opened through the limit, execution happens at the
	// better open price; otherwise at the limit itself.
	base := o.LimitPrice
	if o.Side == models.SideBuy && ev.Open.LessThan(o.LimitPrice) {
		base = ev.Open
	}
	if o.Side == models.SideSell && ev.Open.GreaterThan(o.LimitPrice) {
		base = ev.Open
	}

	execPrice := s.slippage(o, base)
	// Slippage never breaches the limit: buys cap at the limit price,
	// sells floor at it.
	if o.Side == models.SideBuy && execPrice.GreaterThan(o.LimitPrice) {
		execPrice = o.LimitPrice
	}
	if o.Side == models.SideSell && execPrice.LessThan(o.LimitPrice) {
		execPrice = o.LimitPrice
	}

	qty := o.Remaining()
	if s.maxVolumeShare.IsPositive() {
		maxQty := s.maxVolumeShare.Mul(decimal.NewFromInt(ev.Volume)).IntPart()
		if maxQty < qty {
			qty = maxQty
		}
		if qty <= 0 {
			return nil, false
		}
	}

	if err := bp.CheckBuyingPower(o, execPrice); err != nil {
		o.Reject(err.Error())
		s.log.Info().Str("order_id", o.ID).Str("reason", o.Reason).Msg("order rejected")
		return nil, true
	}

	fill := s.newFill(o, ev.Timestamp, qty, execPrice, base)
	o.RecordFill(fill.Quantity, fill.Price)
	return fill, false
}

// newFill builds an immutable fill record. Fill IDs are derived from a
// run-local sequence so replayed runs produce identical ledgers.
func (s *Simulator) newFill(o *models.Order, ts time.Time, qty int64, execPrice, ref decimal.Decimal) *models.Fill {
	s.fillSeq++
	f := &models.Fill{
		ID:        models.DeterministicID("fill", s.fillSeq),
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Timestamp: ts,
		Quantity:  qty,
		Price:     execPrice,
		Slippage:  execPrice.Sub(ref),
	}
	f.Commission = s.commission(f)
	s.log.Debug().
		Str("fill_id", f.ID).
		Str("order_id", o.ID).
		Int64("qty", qty).
		Str("price", execPrice.String()).
		Msg("fill")
	return f
}

// Expire cancels the unfilled remainder of an order whose time-in-force
// has lapsed. Returns the order for reporting, or nil if it already
// reached a terminal state.
func (s *Simulator) Expire(orderID string, now time.Time) *models.Order {
	o, ok := s.orders[orderID]
	if !ok || !o.Open() {
		return nil
	}
	s.remove(o)
	o.Cancel("time in force expired")
	s.log.Info().Str("order_id", o.ID).Time("at", now).Msg("order expired")
	return o
}

// Cancel cancels an open order on request. Returns the order for
// reporting, or nil if unknown or already terminal.
func (s *Simulator) Cancel(orderID, reason string) *models.Order {
	o, ok := s.orders[orderID]
	if !ok || !o.Open() {
		return nil
	}
	s.remove(o)
	o.Cancel(reason)
	return o
}

// CancelAll cancels every open order, e.g. at end of stream. Cancelled
// orders are returned for reporting; nothing is silently dropped.
func (s *Simulator) CancelAll(reason string) []*models.Order {
	var cancelled []*models.Order
	for _, o := range s.orders {
		if !o.Open() {
			continue
		}
		s.remove(o)
		o.Cancel(reason)
		cancelled = append(cancelled, o)
	}
	sort.Slice(cancelled, func(i, j int) bool {
		return cancelled[i].ID < cancelled[j].ID
	})
	return cancelled
}

// OpenOrders returns the orders still eligible for fills, sorted by ID.
func (s *Simulator) OpenOrders() []*models.Order {
	var open []*models.Order
	for _, o := range s.orders {
		if o.Open() {
			open = append(open, o)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open
}

// Order returns a registered order by ID.
func (s *Simulator) Order(id string) (*models.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

func (s *Simulator) remove(o *models.Order) {
	if b, ok := s.books[o.Symbol]; ok {
		b.remove(o)
	}
}
