package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quantbt/internal/config"
	btErrors "quantbt/internal/errors"
	"quantbt/internal/execution"
	"quantbt/internal/feed"
	"quantbt/internal/logging"
	"quantbt/internal/models"
	"quantbt/internal/portfolio"
	"quantbt/internal/strategy"
)

// State is the backtest lifecycle state.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateAborted     State = "ABORTED"
)

// defaultGoodTillDays caps how long a GTC order stays open when the
// request does not say otherwise.
const defaultGoodTillDays = 90

// Backtest orchestrates one deterministic run: clock, event queue,
// execution simulator, portfolio accountant and strategy. Every
// component is owned by the run; nothing is shared across runs, so
// independent backtests may execute in parallel.
type Backtest struct {
	log   zerolog.Logger
	cfg   *config.Config
	runID string

	clock *Clock
	queue *EventQueue
	sim   *execution.Simulator
	acct  *portfolio.Accountant
	strat strategy.Strategy

	state      State
	lastPrices map[string]decimal.Decimal
	snapshots  []models.PortfolioSnapshot
	fills      []models.Fill
	orders     []*models.Order
	orderSeq   uint64
	runErr     error
}

// BacktestOption configures a Backtest.
type BacktestOption func(*backtestOptions)

type backtestOptions struct {
	log     zerolog.Logger
	simOpts []execution.Option
}

// WithLogger attaches a logger; it is tagged with the run ID.
func WithLogger(log zerolog.Logger) BacktestOption {
	return func(o *backtestOptions) {
		o.log = log
	}
}

// WithSimulatorOptions passes options through to the execution
// simulator, e.g. a custom slippage or commission model.
func WithSimulatorOptions(opts ...execution.Option) BacktestOption {
	return func(o *backtestOptions) {
		o.simOpts = append(o.simOpts, opts...)
	}
}

// New builds a backtest in the Initialized state. Configuration is
// validated here, before any event is processed; an invalid model
// parameter is fatal.
func New(cfg *config.Config, strat strategy.Strategy, instruments []models.Instrument, feeds []feed.Feed, opts ...BacktestOption) (*Backtest, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &backtestOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(options)
	}

	runID := models.NewRunID()
	bt := &Backtest{
		log:        logging.WithRunID(options.log, runID),
		cfg:        cfg,
		runID:      runID,
		clock:      &Clock{},
		queue:      NewEventQueue(),
		strat:      strat,
		state:      StateInitialized,
		lastPrices: make(map[string]decimal.Decimal),
	}

	acctOpts := []portfolio.Option{portfolio.WithLogger(bt.log)}
	if cfg.Margin.Enabled {
		acctOpts = append(acctOpts, portfolio.WithMargin(decimal.NewFromFloat(cfg.Margin.Leverage)))
	}
	bt.acct = portfolio.NewAccountant(decimal.NewFromFloat(cfg.StartingCash), acctOpts...)

	simOpts := append(options.simOpts, execution.WithLogger(bt.log))
	sim, err := execution.NewSimulator(cfg, instruments, simOpts...)
	if err != nil {
		return nil, err
	}
	bt.sim = sim

	for _, f := range feeds {
		bt.queue.RegisterFeed(f)
	}

	return bt, nil
}

// RunID identifies this run.
func (bt *Backtest) RunID() string {
	return bt.runID
}

// State returns the current lifecycle state.
func (bt *Backtest) State() State {
	return bt.state
}

// ScheduleTimer registers a timer event. Strategies implementing
// strategy.TimerHandler receive it during the run.
func (bt *Backtest) ScheduleTimer(at time.Time, tag string) {
	bt.queue.ScheduleTimer(at, tag)
}

// Run executes the event loop to completion. It returns the run result
// in every case: on a data error or cancellation the result carries the
// partial snapshots and fills accumulated up to the abort point.
func (bt *Backtest) Run(ctx context.Context) (*Result, error) {
	if bt.state != StateInitialized {
		return bt.Result(), btErrors.ErrRunFinished
	}
	bt.state = StateRunning
	bt.log.Info().Str("state", string(bt.state)).Msg("backtest started")

	for {
		// Cancellation is honored only between event dispatches; a
		// computed fill is always fully applied first.
		if err := ctx.Err(); err != nil {
			bt.abort(err)
			return bt.Result(), err
		}

		ev, err := bt.queue.Advance()
		if errors.Is(err, btErrors.ErrEndOfStream) {
			bt.complete()
			return bt.Result(), nil
		}
		if err != nil {
			bt.abort(err)
			return bt.Result(), err
		}

		bt.clock.advanceTo(ev.Time)

		switch ev.Kind {
		case KindMarketData:
			bt.onMarketEvent(ev.Market)
		case KindOrderExpiry:
			if o := bt.sim.Expire(ev.OrderID, ev.Time); o != nil {
				bt.strat.OnOrderReport(o)
			}
		case KindTimer:
			bt.onTimer(ev)
		}
	}
}

func (bt *Backtest) onMarketEvent(ev *models.MarketEvent) {
	bt.lastPrices[ev.Symbol] = ev.Close

	// Work pending orders first. Fills are applied to the portfolio
	// before the strategy sees this event's snapshot.
	res := bt.sim.OnMarketEvent(ev, bt.acct)
	for _, f := range res.Fills {
		bt.acct.ApplyFill(f)
		bt.fills = append(bt.fills, *f)
		bt.strat.OnFillReport(f)
	}
	for _, o := range res.Reports {
		bt.strat.OnOrderReport(o)
	}

	snap := bt.acct.Snapshot(ev.Timestamp, bt.lastPrices)
	bt.snapshots = append(bt.snapshots, snap)

	reqs := bt.strat.OnMarketEvent(ev, &snap)
	bt.submitRequests(reqs, ev.Timestamp)
}

func (bt *Backtest) onTimer(ev *Event) {
	th, ok := bt.strat.(strategy.TimerHandler)
	if !ok {
		return
	}
	snap := bt.acct.Snapshot(ev.Time, bt.lastPrices)
	reqs := th.OnTimer(ev.Time, ev.Tag, &snap)
	bt.submitRequests(reqs, ev.Time)
}

// submitRequests turns strategy order requests into registered orders.
// Orders are created at the current timestamp and become eligible for
// fills only against strictly later events.
func (bt *Backtest) submitRequests(reqs []models.OrderRequest, now time.Time) {
	for i := range reqs {
		req := &reqs[i]
		bt.orderSeq++
		o := &models.Order{
			ID:          models.DeterministicID("order", bt.orderSeq),
			Symbol:      req.Symbol,
			Side:        req.Side,
			Type:        req.Type,
			Quantity:    req.Quantity,
			LimitPrice:  req.LimitPrice,
			StopPrice:   req.StopPrice,
			TimeInForce: req.TimeInForce,
			CreatedAt:   now,
			Status:      models.OrderStatusPending,
		}
		o.ExpiresAt = expiryFor(req, now)

		bt.orders = append(bt.orders, o)

		if err := bt.sim.Submit(o); err != nil {
			o.Reject(err.Error())
			bt.log.Info().Str("order_id", o.ID).Str("reason", o.Reason).Msg("order rejected")
			bt.strat.OnOrderReport(o)
			continue
		}
		bt.queue.ScheduleExpiry(o.ExpiresAt, o.ID)
		bt.strat.OnOrderReport(o)
	}
}

// expiryFor computes the expiry timestamp for a request: day orders
// lapse at the end of the creation day, GTC orders after their
// good-till window (default 90 days).
func expiryFor(req *models.OrderRequest, now time.Time) time.Time {
	if req.TimeInForce == models.TIFDay {
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	}
	days := req.GoodTillDays
	if days <= 0 {
		days = defaultGoodTillDays
	}
	return now.AddDate(0, 0, days)
}

func (bt *Backtest) complete() {
	for _, o := range bt.sim.CancelAll("end of data") {
		bt.strat.OnOrderReport(o)
	}
	bt.state = StateCompleted
	bt.log.Info().
		Int("events", len(bt.snapshots)).
		Int("fills", len(bt.fills)).
		Msg("backtest completed")
}

func (bt *Backtest) abort(err error) {
	bt.state = StateAborted
	bt.runErr = err
	bt.log.Error().Err(err).Msg("backtest aborted; partial results preserved")
}

// Result captures the run's outcome so far: the equity curve, the full
// fill ledger and every order ever registered. Safe to call at any
// point; after an abort it carries the partial results.
func (bt *Backtest) Result() *Result {
	orders := make([]models.Order, len(bt.orders))
	for i, o := range bt.orders {
		orders[i] = *o
	}
	snapshots := make([]models.PortfolioSnapshot, len(bt.snapshots))
	copy(snapshots, bt.snapshots)
	fills := make([]models.Fill, len(bt.fills))
	copy(fills, bt.fills)

	return &Result{
		RunID:        bt.runID,
		State:        bt.state,
		StartingCash: bt.acct.StartingCash(),
		Snapshots:    snapshots,
		Fills:        fills,
		Orders:       orders,
		Err:          bt.runErr,
	}
}
