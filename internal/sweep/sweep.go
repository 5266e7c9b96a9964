// Package sweep runs a strategy across many parameter variants in
// parallel. Each variant gets its own engine, feeds and accountant, so
// runs never share mutable state.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"quantbt/internal/analytics"
	"quantbt/internal/config"
	"quantbt/internal/engine"
	"quantbt/internal/feed"
	"quantbt/internal/models"
	"quantbt/internal/strategy"
)

// Variant is one point in the parameter grid. The factories must build
// fresh objects on every call; feeds in particular are consumed as a run
// advances and cannot be reused.
type Variant struct {
	Name     string
	Config   *config.Config
	Strategy func() strategy.Strategy
	Feeds    func() ([]feed.Feed, error)
}

// Outcome pairs a variant with its finished run.
type Outcome struct {
	Name   string
	Result *engine.Result
	Report *analytics.Report
	Err    error
}

// Runner executes variants on a bounded pool of workers.
type Runner struct {
	log         zerolog.Logger
	workers     int
	instruments []models.Instrument
	started     atomic.Uint64
	finished    atomic.Uint64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds concurrency. Zero or negative means one worker per
// CPU.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger attaches a logger to the runner and its runs.
func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner for the given instrument universe.
func NewRunner(instruments []models.Instrument, opts ...RunnerOption) *Runner {
	r := &Runner{
		log:         zerolog.Nop(),
		instruments: instruments,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 {
		r.workers = runtime.NumCPU()
	}
	return r
}

// Run executes every variant and returns outcomes in variant order.
// A failed variant is reported in its Outcome; Run itself only fails
// when the context is cancelled before all variants complete.
func (r *Runner) Run(ctx context.Context, variants []Variant) ([]Outcome, error) {
	outcomes := make([]Outcome, len(variants))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = r.runOne(ctx, variants[idx])
			}
		}()
	}

	var ctxErr error
dispatch:
	for i := range variants {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return outcomes, fmt.Errorf("sweep cancelled: %w", ctxErr)
	}
	return outcomes, nil
}

// Stats reports how many variants have started and finished.
func (r *Runner) Stats() (started, finished uint64) {
	return r.started.Load(), r.finished.Load()
}

func (r *Runner) runOne(ctx context.Context, v Variant) Outcome {
	r.started.Add(1)
	defer r.finished.Add(1)

	out := Outcome{Name: v.Name}

	feeds, err := v.Feeds()
	if err != nil {
		out.Err = fmt.Errorf("building feeds for %s: %w", v.Name, err)
		return out
	}

	bt, err := engine.New(v.Config, v.Strategy(), r.instruments, feeds,
		engine.WithLogger(r.log.With().Str("variant", v.Name).Logger()))
	if err != nil {
		out.Err = fmt.Errorf("building engine for %s: %w", v.Name, err)
		return out
	}

	result, err := bt.Run(ctx)
	out.Result = result
	if err != nil {
		out.Err = fmt.Errorf("running %s: %w", v.Name, err)
		return out
	}

	out.Report = analytics.Analyze(result)
	r.log.Info().
		Str("variant", v.Name).
		Str("run_id", result.RunID).
		Str("final_equity", result.FinalEquity().StringFixed(2)).
		Msg("sweep variant complete")
	return out
}

// Best returns the outcome with the highest final equity, skipping
// failed variants. Returns nil when every variant failed.
func Best(outcomes []Outcome) *Outcome {
	var best *Outcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil || o.Result == nil {
			continue
		}
		if best == nil || o.Result.FinalEquity().GreaterThan(best.Result.FinalEquity()) {
			best = o
		}
	}
	return best
}
