// Package feed provides market data feeds for backtest runs.
//
// A feed produces a lazy, finite, time-ordered sequence of market events
// for one or more instruments. Feeds are single-use: construct a fresh
// instance for every run. The engine verifies per-instrument timestamp
// ordering and aborts the run on violations; feeds must be internally
// sorted.
package feed

import (
	"errors"

	"quantbt/internal/models"
)

// ErrEndOfData is returned by Next when the feed is exhausted.
var ErrEndOfData = errors.New("feed: end of data")

// Feed is the market data source contract. Implementations must not
// perform on-demand network I/O inside Next; data is pre-materialized or
// prefetched so the simulation loop never blocks.
type Feed interface {
	// Next returns the next market event, or ErrEndOfData once the
	// historical range is exhausted.
	Next() (*models.MarketEvent, error)

	// Symbols lists the instruments this feed covers.
	Symbols() []string
}
