package strategy

import (
	"tradecore/internal/indicators"
	"tradecore/pkg/types"
)

// Default Bollinger mean-reversion parameters
const (
	DefaultBBPeriod  = 20
	DefaultBBStdDev  = 2.0
	bbOversoldEntry  = 20.0 // %B below which price hugs the lower band
	bbOverboughtExit = 80.0
)

type bollingerState struct {
	closes   []float64
	wasBelow bool
	wasAbove bool
}

// BollingerReversion buys when price drops to the lower Bollinger band
// and flattens when it reaches the upper band. Entries carry the lower
// band as the stop-loss level.
type BollingerReversion struct {
	bands   *indicators.BollingerBands
	period  int
	symbols map[string]*bollingerState
}

// NewBollingerReversion creates a Bollinger mean-reversion strategy.
func NewBollingerReversion(period int, stdDev float64) *BollingerReversion {
	if period <= 0 {
		period = DefaultBBPeriod
	}
	if stdDev <= 0 {
		stdDev = DefaultBBStdDev
	}
	return &BollingerReversion{
		bands:   indicators.NewBollingerBands(period, stdDev),
		period:  period,
		symbols: make(map[string]*bollingerState),
	}
}

// Name implements Strategy.
func (s *BollingerReversion) Name() string { return "bollinger_reversion" }

// OnBar implements Strategy.
func (s *BollingerReversion) OnBar(bar types.Bar) []types.Signal {
	st, ok := s.symbols[bar.Symbol]
	if !ok {
		st = &bollingerState{}
		s.symbols[bar.Symbol] = st
	}

	st.closes = append(st.closes, bar.Close)
	if len(st.closes) > s.period {
		st.closes = st.closes[1:]
	}

	bands, err := s.bands.Calculate(st.closes)
	if err != nil {
		return nil
	}

	below := bands.PercentB < bbOversoldEntry
	above := bands.PercentB > bbOverboughtExit
	defer func() {
		st.wasBelow = below
		st.wasAbove = above
	}()

	// Edge-triggered: signal only on entering a zone, not every bar
	// spent inside it.
	if below && !st.wasBelow {
		confidence := 0.5 + (bbOversoldEntry-bands.PercentB)/bbOversoldEntry*0.4
		// On a sharp drop the close can already be through the lower
		// band; fall back to the bar low so the stop stays below entry.
		stop := bands.Lower
		if stop >= bar.Close {
			stop = bar.Low
		}
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionBuy,
			Confidence: clamp01(confidence),
			Metadata: map[string]float64{
				types.MetaStopLoss: stop,
			},
		}}
	}
	if above && !st.wasAbove {
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionFlat,
			Confidence: 0.5,
		}}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
