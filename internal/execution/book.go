package execution

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"quantbt/internal/models"
)

// restingEntry is a pending order resting on a price-ordered tree. For
// limit (and triggered stop-limit) orders the key price is the limit;
// for untriggered stop orders it is the stop threshold.
type restingEntry struct {
	price decimal.Decimal
	seq   uint64
	order *models.Order
}

// marketEntry is an order awaiting market-style execution. Plain market
// orders are eligible on the first event after creation; triggered stops
// are eligible on the first event after their trigger.
type marketEntry struct {
	seq           uint64
	order         *models.Order
	eligibleAfter time.Time
}

// buyLimitLess orders buy limits by price descending so iteration visits
// the most aggressive (highest) limit first. Ties break by submission
// sequence for determinism.
func buyLimitLess(a, b *restingEntry) bool {
	if !a.price.Equal(b.price) {
		return a.price.GreaterThan(b.price)
	}
	return a.seq < b.seq
}

// sellLimitLess orders sell limits by price ascending: lowest limit is
// most aggressive.
func sellLimitLess(a, b *restingEntry) bool {
	if !a.price.Equal(b.price) {
		return a.price.LessThan(b.price)
	}
	return a.seq < b.seq
}

// buyStopLess orders buy stops ascending: the lowest stop triggers first
// as price rises.
func buyStopLess(a, b *restingEntry) bool {
	if !a.price.Equal(b.price) {
		return a.price.LessThan(b.price)
	}
	return a.seq < b.seq
}

// sellStopLess orders sell stops descending: the highest stop triggers
// first as price falls.
func sellStopLess(a, b *restingEntry) bool {
	if !a.price.Equal(b.price) {
		return a.price.GreaterThan(b.price)
	}
	return a.seq < b.seq
}

const treeDegree = 16

// book holds all pending orders for a single instrument.
type book struct {
	symbol     string
	market     []*marketEntry
	buyLimits  *btree.BTreeG[*restingEntry]
	sellLimits *btree.BTreeG[*restingEntry]
	buyStops   *btree.BTreeG[*restingEntry]
	sellStops  *btree.BTreeG[*restingEntry]
	// entries indexes every resting entry by order ID for removal.
	entries map[string]*restingEntry
}

func newBook(symbol string) *book {
	return &book{
		symbol:     symbol,
		buyLimits:  btree.NewG(treeDegree, buyLimitLess),
		sellLimits: btree.NewG(treeDegree, sellLimitLess),
		buyStops:   btree.NewG(treeDegree, buyStopLess),
		sellStops:  btree.NewG(treeDegree, sellStopLess),
		entries:    make(map[string]*restingEntry),
	}
}

// addMarket queues an order for market-style execution.
func (b *book) addMarket(o *models.Order, seq uint64, eligibleAfter time.Time) {
	b.market = append(b.market, &marketEntry{seq: seq, order: o, eligibleAfter: eligibleAfter})
}

// addLimit rests a limit order on the appropriate side.
func (b *book) addLimit(o *models.Order, seq uint64) {
	e := &restingEntry{price: o.LimitPrice, seq: seq, order: o}
	b.entries[o.ID] = e
	if o.Side == models.SideBuy {
		b.buyLimits.ReplaceOrInsert(e)
	} else {
		b.sellLimits.ReplaceOrInsert(e)
	}
}

// addStop rests a stop or stop-limit order keyed by its stop threshold.
func (b *book) addStop(o *models.Order, seq uint64) {
	e := &restingEntry{price: o.StopPrice, seq: seq, order: o}
	b.entries[o.ID] = e
	if o.Side == models.SideBuy {
		b.buyStops.ReplaceOrInsert(e)
	} else {
		b.sellStops.ReplaceOrInsert(e)
	}
}

// removeResting deletes an order from whichever tree holds it.
func (b *book) removeResting(o *models.Order) {
	e, ok := b.entries[o.ID]
	if !ok {
		return
	}
	delete(b.entries, o.ID)
	for _, t := range []*btree.BTreeG[*restingEntry]{b.buyLimits, b.sellLimits, b.buyStops, b.sellStops} {
		if _, removed := t.Delete(e); removed {
			return
		}
	}
}

// removeMarket deletes an order from the market queue.
func (b *book) removeMarket(o *models.Order) {
	for i, e := range b.market {
		if e.order.ID == o.ID {
			b.market = append(b.market[:i], b.market[i+1:]...)
			return
		}
	}
}

// remove deletes an order from the book wherever it rests.
func (b *book) remove(o *models.Order) {
	b.removeResting(o)
	b.removeMarket(o)
}

// triggeredStops collects stop orders whose threshold the event's range
// crossed: buy stops at or below the high, sell stops at or above the
// low. Only orders created strictly before the event are considered.
func (b *book) triggeredStops(ev *models.MarketEvent) []*restingEntry {
	var hits []*restingEntry
	b.buyStops.Ascend(func(e *restingEntry) bool {
		if e.price.GreaterThan(ev.High) {
			return false
		}
		if ev.Timestamp.After(e.order.CreatedAt) {
			hits = append(hits, e)
		}
		return true
	})
	b.sellStops.Ascend(func(e *restingEntry) bool {
		if e.price.LessThan(ev.Low) {
			return false
		}
		if ev.Timestamp.After(e.order.CreatedAt) {
			hits = append(hits, e)
		}
		return true
	})
	return hits
}

// crossedLimits collects limit orders the event's range crossed: buy
// limits at or above the low, sell limits at or below the high. Only
// orders created strictly before the event are considered.
func (b *book) crossedLimits(ev *models.MarketEvent) []*restingEntry {
	var hits []*restingEntry
	b.buyLimits.Ascend(func(e *restingEntry) bool {
		if e.price.LessThan(ev.Low) {
			return false
		}
		if ev.Timestamp.After(e.order.CreatedAt) {
			hits = append(hits, e)
		}
		return true
	})
	b.sellLimits.Ascend(func(e *restingEntry) bool {
		if e.price.GreaterThan(ev.High) {
			return false
		}
		if ev.Timestamp.After(e.order.CreatedAt) {
			hits = append(hits, e)
		}
		return true
	})
	return hits
}

// pending reports how many orders rest on the book.
func (b *book) pending() int {
	return len(b.entries) + len(b.market)
}
