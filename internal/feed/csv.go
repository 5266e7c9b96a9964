package feed

import (
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"quantbt/internal/models"
)

// csvBar is the on-disk OHLCV row shape.
type csvBar struct {
	Timestamp csvTime `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
}

// csvTime parses the timestamp column, accepting datetime or date-only.
type csvTime struct {
	time.Time
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *csvTime) UnmarshalCSV(s string) error {
	for _, layout := range csvTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadCSV reads an OHLCV csv file for a single instrument and returns a
// pre-materialized feed over its rows. Rows are served in file order;
// ordering violations surface when the engine consumes the feed.
func LoadCSV(path, symbol string) (*MemoryFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	events := make([]models.MarketEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.MarketEvent{
			Symbol:    symbol,
			Timestamp: row.Timestamp.Time,
			Open:      decimal.NewFromFloat(row.Open),
			High:      decimal.NewFromFloat(row.High),
			Low:       decimal.NewFromFloat(row.Low),
			Close:     decimal.NewFromFloat(row.Close),
			Volume:    row.Volume,
		})
	}

	return NewMemoryFeed(events), nil
}

// LoadCSVDir loads one csv per instrument and merges them into a single
// chronological feed. paths maps symbol to file path.
func LoadCSVDir(paths map[string]string, symbolOrder []string) (*MemoryFeed, error) {
	series := make(map[string][]models.MarketEvent, len(paths))
	for _, sym := range symbolOrder {
		path, ok := paths[sym]
		if !ok {
			return nil, fmt.Errorf("no csv path for symbol %s", sym)
		}
		f, err := LoadCSV(path, sym)
		if err != nil {
			return nil, err
		}
		series[sym] = f.events
	}
	return NewMergedFeed(series, symbolOrder), nil
}
