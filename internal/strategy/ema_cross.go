package strategy

import (
	"tradecore/internal/indicators"
	"tradecore/pkg/types"
)

// Default EMA-cross parameters
const (
	DefaultFastPeriod      = 12
	DefaultSlowPeriod      = 26
	DefaultStopLookback    = 10
	emaCrossBaseConfidence = 0.6
)

type emaCrossState struct {
	fast     *indicators.EMA
	slow     *indicators.EMA
	bars     int
	prevDiff float64
	lows     []float64
}

// EMACross goes long when the fast EMA crosses above the slow EMA and
// flattens on the opposite cross. The stop-loss attached to entries is
// the lowest low of the recent bars.
type EMACross struct {
	fastPeriod   int
	slowPeriod   int
	stopLookback int
	symbols      map[string]*emaCrossState
}

// NewEMACross creates an EMA crossover strategy. Non-positive periods
// fall back to defaults.
func NewEMACross(fast, slow int) *EMACross {
	if fast <= 0 {
		fast = DefaultFastPeriod
	}
	if slow <= 0 {
		slow = DefaultSlowPeriod
	}
	return &EMACross{
		fastPeriod:   fast,
		slowPeriod:   slow,
		stopLookback: DefaultStopLookback,
		symbols:      make(map[string]*emaCrossState),
	}
}

// Name implements Strategy.
func (s *EMACross) Name() string { return "ema_cross" }

// OnBar implements Strategy.
func (s *EMACross) OnBar(bar types.Bar) []types.Signal {
	st, ok := s.symbols[bar.Symbol]
	if !ok {
		st = &emaCrossState{
			fast: indicators.NewEMA(s.fastPeriod),
			slow: indicators.NewEMA(s.slowPeriod),
		}
		s.symbols[bar.Symbol] = st
	}

	diff := st.fast.Update(bar.Close) - st.slow.Update(bar.Close)
	st.bars++

	st.lows = append(st.lows, bar.Low)
	if len(st.lows) > s.stopLookback {
		st.lows = st.lows[1:]
	}

	prev := st.prevDiff
	st.prevDiff = diff

	// Warmup: the slow EMA needs its window before crosses mean much.
	if st.bars <= s.slowPeriod {
		return nil
	}

	switch {
	case prev <= 0 && diff > 0:
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionBuy,
			Confidence: emaCrossBaseConfidence,
			Metadata: map[string]float64{
				types.MetaStopLoss: minOf(st.lows),
			},
		}}
	case prev >= 0 && diff < 0:
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionFlat,
			Confidence: emaCrossBaseConfidence,
		}}
	}
	return nil
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
