package feed

import (
	"sort"

	"quantbt/internal/models"
)

// MemoryFeed serves a pre-materialized slice of market events in the
// order given. It makes no attempt to re-sort its input: a feed that is
// not internally sorted surfaces as a data error in the engine, which is
// exercised deliberately in tests.
type MemoryFeed struct {
	events []models.MarketEvent
	idx    int
}

// NewMemoryFeed creates a feed over the given events, served as-is.
func NewMemoryFeed(events []models.MarketEvent) *MemoryFeed {
	return &MemoryFeed{events: events}
}

// NewMergedFeed creates a feed from per-instrument series, merged into a
// single chronological stream. Each series must already be sorted; the
// merge is stable so equal timestamps keep series registration order.
func NewMergedFeed(series map[string][]models.MarketEvent, symbolOrder []string) *MemoryFeed {
	var merged []models.MarketEvent
	for _, sym := range symbolOrder {
		merged = append(merged, series[sym]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return &MemoryFeed{events: merged}
}

// Next implements Feed.
func (f *MemoryFeed) Next() (*models.MarketEvent, error) {
	if f.idx >= len(f.events) {
		return nil, ErrEndOfData
	}
	ev := f.events[f.idx]
	f.idx++
	return &ev, nil
}

// Symbols implements Feed.
func (f *MemoryFeed) Symbols() []string {
	seen := make(map[string]bool)
	var syms []string
	for i := range f.events {
		if !seen[f.events[i].Symbol] {
			seen[f.events[i].Symbol] = true
			syms = append(syms, f.events[i].Symbol)
		}
	}
	return syms
}

// Len returns the total number of events in the feed.
func (f *MemoryFeed) Len() int {
	return len(f.events)
}
