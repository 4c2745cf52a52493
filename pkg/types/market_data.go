package types

import "time"

// Bar is one OHLCV sample for a symbol over a fixed interval.
// Bars are produced by the data feed and consumed read-only.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Tick is a single trade observation, used by strategies that implement
// the optional tick handler.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance describes a single asset balance on an exchange account.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}
