package sizing

import (
	"tradecore/pkg/types"
)

// Default sizing parameters
const (
	DefaultEquityFraction = 0.02 // 2% of equity per entry
	DefaultRiskPerTrade   = 0.01 // 1% of equity at risk per trade
)

// PositionSizer converts a signal into a candidate order quantity.
//
// Two candidates are computed: a fixed fraction of equity, and, when a
// valid stop-loss is supplied, a risk-based quantity derived from the
// distance to the stop. The smaller of the two wins; an explicit size
// on the signal overrides both.
type PositionSizer struct {
	equityFraction float64
	riskPerTrade   float64
}

// NewPositionSizer creates a position sizer. Non-positive parameters
// fall back to defaults.
func NewPositionSizer(equityFraction, riskPerTrade float64) *PositionSizer {
	if equityFraction <= 0 {
		equityFraction = DefaultEquityFraction
	}
	if riskPerTrade <= 0 {
		riskPerTrade = DefaultRiskPerTrade
	}
	return &PositionSizer{
		equityFraction: equityFraction,
		riskPerTrade:   riskPerTrade,
	}
}

// Size returns the candidate quantity for a signal at the given price.
// stopLoss <= 0 means no stop-loss was supplied. The result is never
// negative; a zero result means the signal should be skipped.
func (s *PositionSizer) Size(signal types.Signal, price float64, portfolio *types.PortfolioState, stopLoss float64) float64 {
	// Strategy override wins unchanged.
	if signal.Size > 0 {
		return signal.Size
	}

	if price <= 0 || portfolio == nil || portfolio.Equity <= 0 {
		return 0
	}

	fixedQty := (portfolio.Equity * s.equityFraction) / price

	// The risk-based candidate only applies when the stop is on the
	// correct side of the price for a long entry.
	if stopLoss > 0 && stopLoss < price {
		riskQty := (portfolio.Equity * s.riskPerTrade) / (price - stopLoss)
		if riskQty < fixedQty {
			fixedQty = riskQty
		}
	}

	if fixedQty < 0 {
		return 0
	}
	return fixedQty
}
