package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/pkg/types"
)

type barFeed struct {
	t time.Time
}

func newBarFeed() *barFeed {
	return &barFeed{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *barFeed) bar(close float64) types.Bar {
	f.t = f.t.Add(time.Minute)
	return types.Bar{
		Symbol:    "BTCUSDT",
		Timestamp: f.t,
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
	}
}

func feed(s Strategy, f *barFeed, closes []float64) []types.Signal {
	var out []types.Signal
	for _, c := range closes {
		out = append(out, s.OnBar(f.bar(c))...)
	}
	return out
}

func ramp(start, step float64, n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}
	return prices
}

func actions(signals []types.Signal, action types.SignalAction) []types.Signal {
	var out []types.Signal
	for _, s := range signals {
		if s.Action == action {
			out = append(out, s)
		}
	}
	return out
}

func TestEMACross_SignalsOnCrossovers(t *testing.T) {
	s := NewEMACross(3, 6)
	f := newBarFeed()

	// Decline through warmup, no signals.
	signals := feed(s, f, ramp(100, -1, 12))
	assert.Empty(t, signals)

	// Recovery forces a single bullish cross.
	signals = feed(s, f, ramp(90, 2, 10))
	buys := actions(signals, types.ActionBuy)
	require.Len(t, buys, 1)
	assert.Empty(t, actions(signals, types.ActionFlat))

	stop, ok := buys[0].StopLoss()
	require.True(t, ok, "entry carries a stop from recent lows")
	assert.Greater(t, stop, 0.0)
	assert.Less(t, stop, 108.0)

	// Reversal forces a single bearish cross.
	signals = feed(s, f, ramp(108, -2, 10))
	assert.Len(t, actions(signals, types.ActionFlat), 1)
	assert.Empty(t, actions(signals, types.ActionBuy))
}

func TestEMACross_PerSymbolState(t *testing.T) {
	s := NewEMACross(3, 6)
	f := newBarFeed()

	// Bars from a second symbol must not advance BTC warmup.
	for _, c := range ramp(50, 1, 20) {
		b := f.bar(c)
		b.Symbol = "ETHUSDT"
		s.OnBar(b)
	}

	signals := feed(s, f, ramp(100, -1, 5))
	assert.Empty(t, signals, "BTC still warming up")
}

func TestBollingerReversion_BuysLowerBandTouch(t *testing.T) {
	s := NewBollingerReversion(20, 2.0)
	f := newBarFeed()

	// A flat series fills the window without producing signals.
	signals := feed(s, f, ramp(100, 0, 20))
	assert.Empty(t, signals)

	// Sharp drop through the lower band.
	signals = feed(s, f, []float64{90})
	buys := actions(signals, types.ActionBuy)
	require.Len(t, buys, 1)
	assert.Greater(t, buys[0].Confidence, 0.5)

	stop, ok := buys[0].StopLoss()
	require.True(t, ok)
	assert.Greater(t, stop, 0.0)
	assert.Less(t, stop, 90.0, "stop sits below the entry close")

	// Staying below the band does not re-enter.
	signals = feed(s, f, []float64{90})
	assert.Empty(t, signals)

	// Rally through the upper band flattens once.
	signals = feed(s, f, []float64{110, 110})
	assert.Len(t, actions(signals, types.ActionFlat), 1)
}

func TestRSIMACD_BuysConfirmedOversoldBounce(t *testing.T) {
	s := NewRSIMACD()
	f := newBarFeed()

	// Long decline: oversold, but the MACD histogram stays negative so
	// no entry fires.
	signals := feed(s, f, ramp(200, -1, 60))
	assert.Empty(t, actions(signals, types.ActionBuy))

	// A bounce turns the histogram positive while RSI is still
	// depressed: exactly one confirmed entry.
	signals = feed(s, f, ramp(141.5, 0.5, 10))
	assert.Len(t, actions(signals, types.ActionBuy), 1)
}

func TestRSIMACD_FlattensWhenOverbought(t *testing.T) {
	s := NewRSIMACD()
	f := newBarFeed()

	feed(s, f, ramp(100, -0.5, 40))
	signals := feed(s, f, ramp(81, 2, 40))

	flats := actions(signals, types.ActionFlat)
	require.NotEmpty(t, flats, "sustained rally drives RSI overbought")
	assert.Equal(t, "BTCUSDT", flats[0].Symbol)
}

func TestStrategyNames(t *testing.T) {
	assert.Equal(t, "ema_cross", NewEMACross(0, 0).Name())
	assert.Equal(t, "bollinger_reversion", NewBollingerReversion(0, 0).Name())
	assert.Equal(t, "rsi_macd", NewRSIMACD().Name())
}

func TestBuild(t *testing.T) {
	for _, name := range Names() {
		s, err := Build(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := Build("martingale")
	assert.Error(t, err)
}
