package types

import "math"

// PortfolioPosition is the ledger entry for one symbol.
type PortfolioPosition struct {
	Symbol       string
	Quantity     float64
	AvgPrice     float64
	CurrentPrice float64
}

// MarketValue returns quantity * current price.
func (p PortfolioPosition) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// UnrealizedPnL returns the open profit against the average entry price.
func (p PortfolioPosition) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.AvgPrice) * p.Quantity
}

// PortfolioState is the live account snapshot the decision core reads.
// It is owned by the execution collaborator / portfolio manager; the
// risk engine reads it but never mutates it.
type PortfolioState struct {
	Cash             float64
	Equity           float64
	DailyStartEquity float64
	DailyPnL         float64
	Positions        map[string]*PortfolioPosition
}

// NewPortfolioState creates a portfolio with the given starting cash.
func NewPortfolioState(initialCash float64) *PortfolioState {
	return &PortfolioState{
		Cash:             initialCash,
		Equity:           initialCash,
		DailyStartEquity: initialCash,
		Positions:        make(map[string]*PortfolioPosition),
	}
}

// Exposure returns the sum of absolute market values across positions.
func (s *PortfolioState) Exposure() float64 {
	total := 0.0
	for _, pos := range s.Positions {
		total += math.Abs(pos.MarketValue())
	}
	return total
}

// Position returns the position for symbol, or nil when flat.
func (s *PortfolioState) Position(symbol string) *PortfolioPosition {
	return s.Positions[symbol]
}

// PositionQuantity returns the held quantity for symbol, zero when flat.
func (s *PortfolioState) PositionQuantity(symbol string) float64 {
	if pos, ok := s.Positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// OpenPositions counts symbols with a non-zero quantity.
func (s *PortfolioState) OpenPositions() int {
	n := 0
	for _, pos := range s.Positions {
		if pos.Quantity != 0 {
			n++
		}
	}
	return n
}
