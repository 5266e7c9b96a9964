// Package engine orchestrates deterministic event-driven backtest runs.
package engine

import "time"

// Clock is the simulation's discrete-event time source. It advances
// only when the event queue delivers the next event; it never moves
// backwards.
type Clock struct {
	now     time.Time
	started bool
}

// Now returns the current simulation time. Zero until the first event.
func (c *Clock) Now() time.Time {
	return c.now
}

// Started reports whether any event has advanced the clock.
func (c *Clock) Started() bool {
	return c.started
}

// advanceTo moves the clock forward. Regressions are ignored; event
// ordering is the queue's responsibility.
func (c *Clock) advanceTo(t time.Time) {
	if !c.started || t.After(c.now) {
		c.now = t
	}
	c.started = true
}
