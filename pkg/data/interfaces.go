package data

import (
	"time"

	"tradecore/pkg/types"
)

// Provider loads historical bars for one symbol from a source path or
// endpoint.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// LoadBars loads the full bar history for symbol from source, in
	// chronological order.
	LoadBars(source, symbol string) ([]types.Bar, error)

	// ValidateBars checks the integrity of a loaded series.
	ValidateBars(bars []types.Bar) error
}

// Cache stores bar series keyed by their source.
type Cache interface {
	Get(key string) ([]types.Bar, bool)
	Set(key string, bars []types.Bar)
	Clear()
	Size() int
}

// FilterByDateRange returns the bars inside [start, end], inclusive on
// both ends. Zero bounds are open.
func FilterByDateRange(bars []types.Bar, start, end time.Time) []types.Bar {
	var filtered []types.Bar
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered
}
