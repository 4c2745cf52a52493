package strategy

import (
	"tradecore/internal/indicators"
	"tradecore/pkg/types"
)

// Default RSI+MACD parameters
const (
	DefaultRSIPeriod     = 14
	DefaultRSIOversold   = 30.0
	DefaultRSIOverbought = 70.0
)

type rsiMACDState struct {
	closes       []float64
	macd         *indicators.MACD
	last         indicators.MACDValue
	wasConfirmed bool
}

// RSIMACD buys oversold dips confirmed by a positive MACD histogram
// and flattens once RSI reaches the overbought zone.
type RSIMACD struct {
	rsi        *indicators.RSI
	oversold   float64
	overbought float64
	window     int
	symbols    map[string]*rsiMACDState
}

// NewRSIMACD creates an RSI strategy with MACD confirmation using the
// conventional 14/12-26-9 parameters.
func NewRSIMACD() *RSIMACD {
	return &RSIMACD{
		rsi:        indicators.NewRSI(DefaultRSIPeriod),
		oversold:   DefaultRSIOversold,
		overbought: DefaultRSIOverbought,
		window:     DefaultRSIPeriod * 3,
		symbols:    make(map[string]*rsiMACDState),
	}
}

// Name implements Strategy.
func (s *RSIMACD) Name() string { return "rsi_macd" }

// OnBar implements Strategy.
func (s *RSIMACD) OnBar(bar types.Bar) []types.Signal {
	st, ok := s.symbols[bar.Symbol]
	if !ok {
		st = &rsiMACDState{macd: indicators.NewMACD(12, 26, 9)}
		s.symbols[bar.Symbol] = st
	}

	st.closes = append(st.closes, bar.Close)
	if len(st.closes) > s.window {
		st.closes = st.closes[1:]
	}
	st.last = st.macd.Update(bar.Close)

	value, err := s.rsi.Calculate(st.closes)
	if err != nil || !st.macd.Ready() {
		return nil
	}

	// Edge-triggered on the combined condition: one entry per confirmed
	// oversold episode, even if RSI was oversold for many bars before
	// the MACD histogram turned positive.
	confirmed := value < s.oversold && st.last.Histogram > 0
	defer func() { st.wasConfirmed = confirmed }()

	if confirmed && !st.wasConfirmed {
		// Deeper oversold readings carry more conviction.
		confidence := 0.5 + (s.oversold-value)/s.oversold*0.5
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionBuy,
			Confidence: clamp01(confidence),
		}}
	}
	if value > s.overbought {
		return []types.Signal{{
			Symbol:     bar.Symbol,
			Action:     types.ActionFlat,
			Confidence: 0.5,
		}}
	}
	return nil
}
