package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStrategyBreaker(cfg StrategyBreakerConfig) (*StrategyCircuitBreaker, *fakeClock) {
	cb := NewStrategyCircuitBreaker("test", cfg)
	clock := newFakeClock()
	cb.now = clock.Now
	return cb, clock
}

func TestStrategyBreaker_TripsOnThirdConsecutiveLoss(t *testing.T) {
	cb, _ := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 3,
		MaxDrawdownPct:       0.5,
		Cooldown:             time.Minute,
	})

	cb.RecordTrade(-100, 99900)
	assert.Equal(t, StateArmed, cb.State())
	cb.RecordTrade(-100, 99800)
	assert.Equal(t, StateArmed, cb.State())
	cb.RecordTrade(-100, 99700)
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripConsecutiveLosses, cb.LastTrip().Reason)
	assert.Equal(t, 3.0, cb.LastTrip().Value)
	assert.False(t, cb.CanTrade())
}

func TestStrategyBreaker_WinResetsLossStreak(t *testing.T) {
	cb, _ := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 3,
		MaxDrawdownPct:       0.5,
		Cooldown:             time.Minute,
	})

	cb.RecordTrade(-100, 99900)
	cb.RecordTrade(-100, 99800)
	cb.RecordTrade(50, 99850) // win clears the streak
	cb.RecordTrade(-100, 99750)
	cb.RecordTrade(-100, 99650)
	assert.Equal(t, StateArmed, cb.State())
	assert.True(t, cb.CanTrade())
}

func TestStrategyBreaker_TripsOnDrawdown(t *testing.T) {
	cb, _ := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 100,
		MaxDrawdownPct:       0.10,
		Cooldown:             time.Minute,
	})

	cb.RecordTrade(500, 100000) // sets the peak
	cb.RecordTrade(-100, 92000) // (100000-92000)/100000 = 8%
	assert.Equal(t, StateArmed, cb.State())
	cb.RecordTrade(-100, 89000) // 11% >= 10%
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripDrawdown, cb.LastTrip().Reason)
	assert.InDelta(t, 0.11, cb.LastTrip().Value, 1e-9)
}

// Cooldown is evaluated lazily: a single CanTrade call past the window
// both re-arms the breaker and returns true.
func TestStrategyBreaker_LazyCooldownReset(t *testing.T) {
	cb, clock := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 3,
		MaxDrawdownPct:       0.5,
		Cooldown:             time.Minute,
	})

	cb.RecordTrade(-100, 99900)
	cb.RecordTrade(-100, 99800)
	cb.RecordTrade(-100, 99700)
	assert.False(t, cb.CanTrade())

	clock.Advance(30 * time.Second)
	assert.False(t, cb.CanTrade(), "still inside cooldown")

	clock.Advance(31 * time.Second)
	assert.True(t, cb.CanTrade(), "cooldown elapsed, breaker re-arms")
	assert.Equal(t, StateArmed, cb.State())

	// Counters were cleared: two more losses do not trip.
	cb.RecordTrade(-100, 99600)
	cb.RecordTrade(-100, 99500)
	assert.Equal(t, StateArmed, cb.State())
}

func TestGlobalBreaker_TripsOnDrawdownFromPeak(t *testing.T) {
	cb := NewGlobalCircuitBreaker(GlobalBreakerConfig{
		DailyLossLimitPct: 0.50,
		MaxDrawdownPct:    0.20,
		Cooldown:          time.Minute,
	})
	clock := newFakeClock()
	cb.now = clock.Now

	cb.Observe(100000)
	cb.Observe(120000)
	assert.Equal(t, StateArmed, cb.State())

	// (120000-94000)/120000 = 21.67% >= 20%
	cb.Observe(94000)
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripDrawdown, cb.LastTrip().Reason)
	assert.InDelta(t, 26000.0/120000.0, cb.LastTrip().Value, 1e-9)
	assert.False(t, cb.CanTrade())
}

func TestGlobalBreaker_TripsOnDailyLoss(t *testing.T) {
	cb := NewGlobalCircuitBreaker(GlobalBreakerConfig{
		DailyLossLimitPct: 0.03,
		MaxDrawdownPct:    0.50,
		Cooldown:          time.Minute,
	})

	cb.Observe(100000) // fixes session start
	cb.Observe(98000)
	assert.Equal(t, StateArmed, cb.State())
	cb.Observe(96900) // 3.1% session loss
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripDailyLoss, cb.LastTrip().Reason)
}

func TestGlobalBreaker_CooldownClearsSessionTrackers(t *testing.T) {
	cb := NewGlobalCircuitBreaker(GlobalBreakerConfig{
		DailyLossLimitPct: 0.03,
		MaxDrawdownPct:    0.50,
		Cooldown:          time.Minute,
	})
	clock := newFakeClock()
	cb.now = clock.Now

	cb.Observe(100000)
	cb.Observe(96000)
	assert.False(t, cb.CanTrade())

	clock.Advance(2 * time.Minute)
	assert.True(t, cb.CanTrade())

	// A fresh session baseline is fixed by the next observation.
	cb.Observe(96000)
	cb.Observe(95000) // ~1% off the new baseline, stays armed
	assert.Equal(t, StateArmed, cb.State())
}

// Config files carry the cooldown in seconds; a value of 3600 must
// resolve to a one-hour window, not 3.6µs of nanoseconds.
func TestStrategyBreaker_CooldownSecondsResolvesToSeconds(t *testing.T) {
	cb, clock := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 3,
		MaxDrawdownPct:       0.5,
		CooldownSeconds:      3600,
	})

	cb.RecordTrade(-100, 99900)
	cb.RecordTrade(-100, 99800)
	cb.RecordTrade(-100, 99700)
	assert.False(t, cb.CanTrade())
	assert.Equal(t, time.Hour, cb.LastTrip().CooldownUntil.Sub(cb.LastTrip().TriggeredAt))

	clock.Advance(10 * time.Millisecond)
	assert.False(t, cb.CanTrade(), "still halted well inside the hour")

	clock.Advance(time.Hour)
	assert.True(t, cb.CanTrade())
}

func TestGlobalBreaker_CooldownSecondsResolvesToSeconds(t *testing.T) {
	cb := NewGlobalCircuitBreaker(GlobalBreakerConfig{
		DailyLossLimitPct: 0.03,
		MaxDrawdownPct:    0.50,
		CooldownSeconds:   7200,
	})
	clock := newFakeClock()
	cb.now = clock.Now

	cb.Observe(100000)
	cb.Observe(96000)
	assert.False(t, cb.CanTrade())
	assert.Equal(t, 2*time.Hour, cb.LastTrip().CooldownUntil.Sub(cb.LastTrip().TriggeredAt))

	clock.Advance(time.Hour)
	assert.False(t, cb.CanTrade(), "still halted after one of two hours")
}

// ObserveEquity advances the peak without touching the loss streak, so
// a drawdown from the equity at entry trips even before any exit has
// recorded a trade.
func TestStrategyBreaker_ObserveEquityTracksPeak(t *testing.T) {
	cb, _ := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 100,
		MaxDrawdownPct:       0.05,
		Cooldown:             time.Minute,
	})

	cb.ObserveEquity(100000)
	cb.RecordTrade(-1000, 94000) // 6% off the entry peak
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripDrawdown, cb.LastTrip().Reason)
	assert.InDelta(t, 0.06, cb.LastTrip().Value, 1e-9)
}

func TestStrategyBreaker_ObserveEquityCanTripAlone(t *testing.T) {
	cb, _ := newTestStrategyBreaker(StrategyBreakerConfig{
		MaxConsecutiveLosses: 100,
		MaxDrawdownPct:       0.05,
		Cooldown:             time.Minute,
	})

	cb.ObserveEquity(100000)
	cb.ObserveEquity(99000)
	assert.Equal(t, StateArmed, cb.State())

	cb.ObserveEquity(94000)
	assert.Equal(t, StateTriggered, cb.State())
	assert.Equal(t, TripDrawdown, cb.LastTrip().Reason)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "ARMED", StateArmed.String())
	assert.Equal(t, "TRIGGERED", StateTriggered.String())
	assert.Equal(t, "RESET", StateReset.String())
}
