package engine

import (
	"container/heap"
	"fmt"
	"time"

	btErrors "quantbt/internal/errors"
	"quantbt/internal/feed"
	"quantbt/internal/models"
)

// EventKind identifies an event's source. The numeric order is the
// tie-break precedence at equal timestamps: timers before order-expiry
// events before market data.
type EventKind int

const (
	KindTimer EventKind = iota
	KindOrderExpiry
	KindMarketData
)

// Event is one causally-ordered item delivered by the queue.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Market  *models.MarketEvent // KindMarketData
	OrderID string              // KindOrderExpiry
	Tag     string              // KindTimer

	feedIdx int
	seq     uint64
}

// eventHeap orders events by timestamp, then kind precedence, then
// insertion sequence. The final tie-break makes two runs with identical
// inputs process events in identical order.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if !h[i].Time.Equal(h[j].Time) {
		return h[i].Time.Before(h[j].Time)
	}
	if h[i].Kind != h[j].Kind {
		return h[i].Kind < h[j].Kind
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue merges market data feeds, scheduled order-expiry events and
// timers into one causally-ordered stream. Feeds are consumed lazily:
// the queue holds at most one pending event per feed.
type EventQueue struct {
	heap    eventHeap
	seq     uint64
	feeds   []feed.Feed
	lastTS  []map[string]time.Time // per feed, per symbol
	primed  bool
	pending error

	liveFeeds    int // feeds that have not returned ErrEndOfData
	marketQueued int // market events currently in the heap
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// RegisterFeed adds a market data feed. Must be called before the first
// Advance.
func (q *EventQueue) RegisterFeed(f feed.Feed) {
	q.feeds = append(q.feeds, f)
	q.lastTS = append(q.lastTS, make(map[string]time.Time))
	q.liveFeeds++
}

// ScheduleTimer enqueues a timer event.
func (q *EventQueue) ScheduleTimer(at time.Time, tag string) {
	q.push(&Event{Kind: KindTimer, Time: at, Tag: tag})
}

// ScheduleExpiry enqueues an order-expiry event.
func (q *EventQueue) ScheduleExpiry(at time.Time, orderID string) {
	q.push(&Event{Kind: KindOrderExpiry, Time: at, OrderID: orderID})
}

func (q *EventQueue) push(e *Event) {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.heap, e)
}

// Advance returns the chronologically earliest event across all sources.
// It returns ErrEndOfStream once the market data is exhausted: any
// expiry or timer event scheduled past the last data timestamp is
// discarded, because the clock never reaches it. A queue with no feeds
// registered drains its scheduled events instead. Advance returns a
// DataError when a feed yields a timestamp earlier than its own
// last-emitted timestamp for that instrument; the event preceding a
// detected violation is still delivered before the error surfaces, so
// partial results cover everything up to the abort point.
func (q *EventQueue) Advance() (*Event, error) {
	if q.pending != nil {
		err := q.pending
		q.pending = nil
		return nil, err
	}

	if !q.primed {
		q.primed = true
		for i := range q.feeds {
			if err := q.pull(i); err != nil {
				return nil, err
			}
		}
	}

	// Everything still queued is later than the last market event, by
	// heap order and kind precedence at equal timestamps.
	if len(q.feeds) > 0 && q.liveFeeds == 0 && q.marketQueued == 0 {
		return nil, btErrors.ErrEndOfStream
	}

	if len(q.heap) == 0 {
		return nil, btErrors.ErrEndOfStream
	}

	e := heap.Pop(&q.heap).(*Event)
	if e.Kind == KindMarketData {
		q.marketQueued--
		if err := q.pull(e.feedIdx); err != nil {
			// Deliver the current event first; the violation aborts
			// the run on the next Advance.
			q.pending = err
		}
	}
	return e, nil
}

// pull fetches the next event from feed i, verifying per-instrument
// timestamp ordering.
func (q *EventQueue) pull(i int) error {
	ev, err := q.feeds[i].Next()
	if err == feed.ErrEndOfData {
		q.liveFeeds--
		return nil
	}
	if err != nil {
		return &btErrors.DataError{Err: fmt.Errorf("feed %d: %w", i, err)}
	}

	if last, ok := q.lastTS[i][ev.Symbol]; ok && ev.Timestamp.Before(last) {
		return btErrors.NewOutOfOrderError(ev.Symbol, ev.Timestamp, last)
	}
	q.lastTS[i][ev.Symbol] = ev.Timestamp

	q.push(&Event{
		Kind:    KindMarketData,
		Time:    ev.Timestamp,
		Market:  ev,
		feedIdx: i,
	})
	q.marketQueued++
	return nil
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return len(q.heap)
}
