package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/execution"
	"tradecore/internal/portfolio"
	"tradecore/internal/risk"
	"tradecore/internal/safety"
	"tradecore/pkg/types"
)

// scriptedStrategy replays a fixed signal script, one step per bar.
type scriptedStrategy struct {
	name  string
	steps [][]types.Signal
	calls int
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) OnBar(types.Bar) []types.Signal {
	s.calls++
	if s.calls <= len(s.steps) {
		return s.steps[s.calls-1]
	}
	return nil
}

// captureLogger records engine events as compact strings.
type captureLogger struct {
	decisions []string
	trips     []string
	resets    []string
	fills     []string
}

func (l *captureLogger) LogDecision(strategy, symbol, outcome, reason string, originalQty, finalQty float64) {
	l.decisions = append(l.decisions, fmt.Sprintf("%s:%s:%s", strategy, outcome, reason))
}

func (l *captureLogger) LogBreakerTrip(scope, reason string, value float64, until time.Time) {
	l.trips = append(l.trips, fmt.Sprintf("%s:%s", scope, reason))
}

func (l *captureLogger) LogBreakerReset(scope string) {
	l.resets = append(l.resets, scope)
}

func (l *captureLogger) LogFill(symbol, side, status string, qty, price, pnl float64) {
	l.fills = append(l.fills, fmt.Sprintf("%s:%s:%s", symbol, side, status))
}

type engineFixture struct {
	engine *TradingEngine
	pm     *portfolio.Manager
	log    *captureLogger
	t      time.Time
}

func newFixture(t *testing.T, cfg Config, strat *scriptedStrategy) *engineFixture {
	t.Helper()

	pm := portfolio.NewManager(portfolio.Config{InitialCash: 100000})
	log := &captureLogger{}
	cfg.Executor = execution.NewPaperEngine(pm, execution.DefaultCommission)
	cfg.Logger = log

	eng, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.RegisterStrategy(strat))

	return &engineFixture{
		engine: eng,
		pm:     pm,
		log:    log,
		t:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *engineFixture) bar(close float64) types.Bar {
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

func buySignal(meta map[string]float64) []types.Signal {
	return []types.Signal{{Symbol: "BTCUSDT", Action: types.ActionBuy, Confidence: 0.8, Metadata: meta}}
}

func sellSignal() []types.Signal {
	return []types.Signal{{Symbol: "BTCUSDT", Action: types.ActionSell, Confidence: 0.8}}
}

func flatSignal() []types.Signal {
	return []types.Signal{{Symbol: "BTCUSDT", Action: types.ActionFlat, Confidence: 0.8}}
}

func TestEngine_BuySignalSizedAndExecuted(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{buySignal(nil)}}
	f := newFixture(t, Config{}, strat)

	fills := f.engine.OnBar(f.bar(100))

	require.Len(t, fills, 1)
	assert.Equal(t, types.FillStatusFilled, fills[0].Status)
	// 2% of 100k equity at $100.
	assert.InDelta(t, 20.0, fills[0].FilledQuantity, 1e-9)
	assert.InDelta(t, 20.0, f.pm.State().PositionQuantity("BTCUSDT"), 1e-9)
	assert.Contains(t, f.log.decisions, "test:ALLOW:")
}

func TestEngine_FlatClosesFullPosition(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		buySignal(nil),
		flatSignal(),
	}}
	f := newFixture(t, Config{}, strat)

	f.engine.OnBar(f.bar(100))
	fills := f.engine.OnBar(f.bar(110))

	require.Len(t, fills, 1)
	assert.Equal(t, types.SideSell, fills[0].Order.Side)
	assert.InDelta(t, 20.0, fills[0].FilledQuantity, 1e-9)
	assert.Greater(t, fills[0].PnL, 0.0)
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
}

func TestEngine_FlatClosesShortPosition(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		sellSignal(),
		flatSignal(),
	}}
	f := newFixture(t, Config{}, strat)

	f.engine.OnBar(f.bar(100))
	require.InDelta(t, -20.0, f.pm.State().PositionQuantity("BTCUSDT"), 1e-9)

	// FLAT on a short buys the cover, it never no-ops.
	fills := f.engine.OnBar(f.bar(90))

	require.Len(t, fills, 1)
	assert.Equal(t, types.SideBuy, fills[0].Order.Side)
	assert.InDelta(t, 20.0, fills[0].FilledQuantity, 1e-9)
	assert.Greater(t, fills[0].PnL, 0.0)
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
}

func TestEngine_EntryEquityFeedsStrategyDrawdown(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		buySignal(nil),
		flatSignal(),
	}}
	f := newFixture(t, Config{
		StrategyBreaker: safety.StrategyBreakerConfig{
			MaxConsecutiveLosses: 10,
			MaxDrawdownPct:       0.001,
			Cooldown:             time.Hour,
		},
	}, strat)

	f.engine.OnBar(f.bar(100))
	cb := f.engine.StrategyBreaker("test")
	require.Equal(t, safety.StateArmed, cb.State())

	// The losing exit is measured against the peak set by the entry
	// fill, not against its own post-trade equity.
	f.engine.OnBar(f.bar(95))
	require.Equal(t, safety.StateTriggered, cb.State())
	assert.Equal(t, safety.TripDrawdown, cb.LastTrip().Reason)
	assert.Contains(t, f.log.trips, "test:"+safety.TripDrawdown)
}

func TestEngine_FlatWithoutPositionIsNoop(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{flatSignal()}}
	f := newFixture(t, Config{}, strat)

	fills := f.engine.OnBar(f.bar(100))

	assert.Empty(t, fills)
	assert.Empty(t, f.log.decisions, "no order reaches admission")
}

func TestEngine_RejectedOrderNotExecuted(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxPositionPct = 0.001
	limits.AllowPartial = false

	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{buySignal(nil)}}
	f := newFixture(t, Config{Risk: risk.NewEngine(limits, nil)}, strat)

	fills := f.engine.OnBar(f.bar(100))

	assert.Empty(t, fills)
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
	assert.Contains(t, f.log.decisions, "test:REJECT:"+risk.ReasonPositionLimitExceeded)
}

func TestEngine_ModifiedOrderExecutesResized(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxPositionPct = 0.01 // caps the position at $1000

	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{buySignal(nil)}}
	f := newFixture(t, Config{Risk: risk.NewEngine(limits, nil)}, strat)

	fills := f.engine.OnBar(f.bar(100))

	require.Len(t, fills, 1)
	assert.InDelta(t, 10.0, fills[0].FilledQuantity, 1e-9)
	assert.Contains(t, f.log.decisions, "test:MODIFY:"+risk.ReasonResizedPositionLimit)
}

func TestEngine_StrategyBreakerTripsOnLossStreak(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		buySignal(nil), flatSignal(),
		buySignal(nil), flatSignal(),
		buySignal(nil), flatSignal(),
		buySignal(nil), // never reached: breaker tripped on the third loss
	}}
	f := newFixture(t, Config{
		StrategyBreaker: safety.StrategyBreakerConfig{
			MaxConsecutiveLosses: 3,
			MaxDrawdownPct:       0.99,
			Cooldown:             time.Hour,
		},
	}, strat)

	// Three buy-high sell-low round trips.
	for i := 0; i < 3; i++ {
		f.engine.OnBar(f.bar(100))
		f.engine.OnBar(f.bar(95))
	}

	cb := f.engine.StrategyBreaker("test")
	require.Equal(t, safety.StateTriggered, cb.State())
	assert.Equal(t, safety.TripConsecutiveLosses, cb.LastTrip().Reason)
	assert.Contains(t, f.log.trips, "test:"+safety.TripConsecutiveLosses)

	// Subsequent bars skip the strategy entirely.
	f.engine.OnBar(f.bar(100))
	assert.Equal(t, 6, strat.calls)
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
}

func TestEngine_ProtectiveExitFeedsStrategyBreaker(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		buySignal(map[string]float64{types.MetaStopLoss: 95}),
	}}
	f := newFixture(t, Config{
		StrategyBreaker: safety.StrategyBreakerConfig{
			MaxConsecutiveLosses: 1,
			MaxDrawdownPct:       0.99,
			Cooldown:             time.Hour,
		},
	}, strat)

	f.engine.OnBar(f.bar(100))
	require.InDelta(t, 20.0, f.pm.State().PositionQuantity("BTCUSDT"), 1e-9)

	// The gap through the stop exits during mark-to-market; the exit is
	// attributed to the entering strategy and trips its breaker.
	fills := f.engine.OnBar(f.bar(94))
	require.Len(t, fills, 1)
	assert.Equal(t, execution.ExitStopLoss, fills[0].Reason)
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
	assert.Equal(t, safety.StateTriggered, f.engine.StrategyBreaker("test").State())
}

func TestEngine_GlobalBreakerHaltsAllTrading(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxPositionPct = 1.0
	limits.MaxLeverage = 10

	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{
		{{Symbol: "BTCUSDT", Action: types.ActionBuy, Size: 600}},
		buySignal(nil),
		buySignal(nil),
	}}
	f := newFixture(t, Config{
		Risk:   risk.NewEngine(limits, nil),
		Global: safety.NewGlobalCircuitBreaker(safety.GlobalBreakerConfig{DailyLossLimitPct: 0.05, Cooldown: 4 * time.Hour}),
	}, strat)

	f.engine.OnBar(f.bar(100))
	require.InDelta(t, 600.0, f.pm.State().PositionQuantity("BTCUSDT"), 1e-9)

	// A 10% drop on the position takes equity down ~6%: the global
	// breaker trips and the bar's buy signal is not admitted.
	fills := f.engine.OnBar(f.bar(90))
	assert.Empty(t, fills)
	assert.Equal(t, safety.StateTriggered, f.engine.GlobalBreaker().State())
	assert.Contains(t, f.log.trips, GlobalScope+":"+safety.TripDailyLoss)

	// Still halted on the next bar.
	fills = f.engine.OnBar(f.bar(90))
	assert.Empty(t, fills)
	assert.InDelta(t, 600.0, f.pm.State().PositionQuantity("BTCUSDT"), 1e-9)
}

func TestEngine_EquityCurveSampledPerBar(t *testing.T) {
	strat := &scriptedStrategy{name: "test"}
	f := newFixture(t, Config{}, strat)

	f.engine.OnBar(f.bar(100))
	f.engine.OnBar(f.bar(101))
	f.engine.OnBar(f.bar(102))

	curve := f.engine.EquityCurve()
	require.Len(t, curve, 3)
	assert.True(t, curve[0].Time.Before(curve[1].Time))
	assert.InDelta(t, 100000.0, curve[0].Equity, 1e-9)
}

func TestEngine_RegisterStrategyRejectsDuplicates(t *testing.T) {
	strat := &scriptedStrategy{name: "test"}
	f := newFixture(t, Config{}, strat)

	err := f.engine.RegisterStrategy(&scriptedStrategy{name: "test"})
	assert.Error(t, err)
	assert.Len(t, f.engine.Strategies(), 1)
}

func TestEngine_RequiresExecutor(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

// tickStrategy adds a tick reaction on top of the scripted bar replay.
type tickStrategy struct {
	scriptedStrategy
	tickSignals []types.Signal
	tickCalls   int
}

func (s *tickStrategy) OnTick(types.Tick) []types.Signal {
	s.tickCalls++
	out := s.tickSignals
	s.tickSignals = nil
	return out
}

func TestEngine_OnTickRoutesToTickStrategies(t *testing.T) {
	strat := &tickStrategy{
		scriptedStrategy: scriptedStrategy{name: "ticker"},
		tickSignals:      buySignal(nil),
	}

	pm := portfolio.NewManager(portfolio.Config{InitialCash: 100000})
	log := &captureLogger{}
	eng, err := New(Config{
		Executor: execution.NewPaperEngine(pm, execution.DefaultCommission),
		Logger:   log,
	})
	require.NoError(t, err)
	require.NoError(t, eng.RegisterStrategy(strat))

	fills := eng.OnTick(types.Tick{
		Symbol:    "BTCUSDT",
		Price:     200,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC),
	})

	require.Len(t, fills, 1)
	assert.Equal(t, 1, strat.tickCalls)
	assert.InDelta(t, 200.0, fills[0].FillPrice, 1e-9)
	// 2% of 100k equity at $200.
	assert.InDelta(t, 10.0, fills[0].FilledQuantity, 1e-9)
}

func TestEngine_OnTickIgnoresBarOnlyStrategies(t *testing.T) {
	strat := &scriptedStrategy{name: "bars-only", steps: [][]types.Signal{buySignal(nil)}}
	f := newFixture(t, Config{}, strat)

	fills := f.engine.OnTick(types.Tick{Symbol: "BTCUSDT", Price: 100, Timestamp: f.t})

	assert.Empty(t, fills)
	assert.Zero(t, strat.calls)
}

func TestEngine_WarmupPrimesWithoutTrading(t *testing.T) {
	strat := &scriptedStrategy{name: "test", steps: [][]types.Signal{buySignal(nil)}}
	f := newFixture(t, Config{}, strat)

	f.engine.Warmup([]types.Bar{f.bar(100), f.bar(101)})

	assert.Equal(t, 2, strat.calls)
	assert.Empty(t, f.engine.EquityCurve())
	assert.Zero(t, f.pm.State().PositionQuantity("BTCUSDT"))
	assert.Empty(t, f.log.decisions)
}

func TestMultiLogger_FansOut(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := MultiLogger{a, b}

	m.LogDecision("s", "BTCUSDT", "ALLOW", "", 1, 1)
	m.LogBreakerTrip("global", "drawdown", 0.2, time.Now())
	m.LogBreakerReset("global")
	m.LogFill("BTCUSDT", "BUY", "FILLED", 1, 100, 0)

	for _, l := range []*captureLogger{a, b} {
		assert.Len(t, l.decisions, 1)
		assert.Len(t, l.trips, 1)
		assert.Len(t, l.resets, 1)
		assert.Len(t, l.fills, 1)
	}
}
