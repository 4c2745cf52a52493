package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tradecore/internal/monitoring"
	"tradecore/internal/risk"
	"tradecore/internal/safety"
	"tradecore/internal/sizing"
	"tradecore/internal/strategy"
	"tradecore/pkg/types"
)

// GlobalScope labels the account-wide breaker in logs and metrics.
const GlobalScope = "global"

// Executor is the execution venue the engine drives: paper simulation
// for backtests, a live exchange adapter in production. All calls are
// synchronous; the engine reads the portfolio back after every call.
type Executor interface {
	// UpdateMarkToMarket marks the bar's symbol and returns any fills
	// the venue generated on its own (protective exits).
	UpdateMarkToMarket(bar types.Bar) []types.Fill

	// ExecuteOrder executes an admitted order against the bar. Orders
	// the venue refuses come back as rejected fills, not errors.
	ExecuteOrder(order types.OrderRequest, bar types.Bar) types.Fill

	// Portfolio returns the current portfolio state.
	Portfolio() *types.PortfolioState
}

// EventLogger receives the engine's decision and breaker events.
// *logger.Logger satisfies it; tests supply their own.
type EventLogger interface {
	LogDecision(strategy, symbol, outcome, reason string, originalQty, finalQty float64)
	LogBreakerTrip(scope, reason string, value float64, cooldownUntil time.Time)
	LogBreakerReset(scope string)
	LogFill(symbol, side, status string, qty, price, pnl float64)
}

// MultiLogger fans engine events out to several sinks, typically the
// file logger plus a notifier.
type MultiLogger []EventLogger

func (m MultiLogger) LogDecision(strategy, symbol, outcome, reason string, originalQty, finalQty float64) {
	for _, l := range m {
		l.LogDecision(strategy, symbol, outcome, reason, originalQty, finalQty)
	}
}

func (m MultiLogger) LogBreakerTrip(scope, reason string, value float64, cooldownUntil time.Time) {
	for _, l := range m {
		l.LogBreakerTrip(scope, reason, value, cooldownUntil)
	}
}

func (m MultiLogger) LogBreakerReset(scope string) {
	for _, l := range m {
		l.LogBreakerReset(scope)
	}
}

func (m MultiLogger) LogFill(symbol, side, status string, qty, price, pnl float64) {
	for _, l := range m {
		l.LogFill(symbol, side, status, qty, price, pnl)
	}
}

// EquityPoint is one sample of the equity curve, taken after each bar.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Config wires the engine's collaborators. Executor is required; every
// other field falls back to a sensible default.
type Config struct {
	Executor        Executor
	Risk            *risk.Engine
	Sizer           *sizing.PositionSizer
	Global          *safety.GlobalCircuitBreaker
	StrategyBreaker safety.StrategyBreakerConfig
	Logger          EventLogger
	Metrics         *monitoring.Metrics
}

// TradingEngine runs the per-bar decision pipeline: mark-to-market,
// breaker gates, strategy signals, position sizing, risk admission and
// execution. It is driven from a single goroutine; nothing in the
// pipeline locks.
type TradingEngine struct {
	executor   Executor
	risk       *risk.Engine
	sizer      *sizing.PositionSizer
	global     *safety.GlobalCircuitBreaker
	breakerCfg safety.StrategyBreakerConfig
	log        EventLogger
	metrics    *monitoring.Metrics

	// Strategies iterate in registration order so runs are
	// reproducible.
	names      []string
	strategies map[string]strategy.Strategy
	breakers   map[string]*safety.StrategyCircuitBreaker

	tripped map[string]bool
	curve   []EquityPoint
}

// New creates a trading engine from the given configuration.
func New(cfg Config) (*TradingEngine, error) {
	if cfg.Executor == nil {
		return nil, errors.New("engine: executor is required")
	}
	if cfg.Risk == nil {
		cfg.Risk = risk.NewEngine(risk.DefaultLimits(), nil)
	}
	if cfg.Sizer == nil {
		cfg.Sizer = sizing.NewPositionSizer(0, 0)
	}
	if cfg.Global == nil {
		cfg.Global = safety.NewGlobalCircuitBreaker(safety.GlobalBreakerConfig{})
	}

	return &TradingEngine{
		executor:   cfg.Executor,
		risk:       cfg.Risk,
		sizer:      cfg.Sizer,
		global:     cfg.Global,
		breakerCfg: cfg.StrategyBreaker,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		strategies: make(map[string]strategy.Strategy),
		breakers:   make(map[string]*safety.StrategyCircuitBreaker),
		tripped:    make(map[string]bool),
	}, nil
}

// RegisterStrategy adds a strategy to the pipeline with its own circuit
// breaker. Names must be unique.
func (e *TradingEngine) RegisterStrategy(s strategy.Strategy) error {
	name := s.Name()
	if _, exists := e.strategies[name]; exists {
		return fmt.Errorf("engine: strategy %q already registered", name)
	}
	e.names = append(e.names, name)
	e.strategies[name] = s
	e.breakers[name] = safety.NewStrategyCircuitBreaker(name, e.breakerCfg)
	return nil
}

// Warmup feeds historical bars to the registered strategies so their
// indicators initialize before live bars arrive. No orders, breaker
// observations or equity samples are produced.
func (e *TradingEngine) Warmup(bars []types.Bar) {
	for _, bar := range bars {
		for _, name := range e.names {
			e.strategies[name].OnBar(bar)
		}
	}
}

// OnBar runs one bar through the full pipeline and returns every fill
// it produced, protective exits included.
func (e *TradingEngine) OnBar(bar types.Bar) []types.Fill {
	fills := e.executor.UpdateMarkToMarket(bar)

	state := e.executor.Portfolio()
	for _, f := range fills {
		e.recordFill(f, state.Equity, true)
	}

	e.global.Observe(state.Equity)
	e.observeBreaker(GlobalScope, e.global.State(), e.global.LastTrip())

	if e.metrics != nil {
		e.metrics.UpdatePrice(bar.Symbol, bar.Close)
	}

	for _, name := range e.names {
		cb := e.breakers[name]
		canTrade := cb.CanTrade()
		e.observeBreaker(name, cb.State(), cb.LastTrip())
		if !canTrade {
			continue
		}

		for _, sig := range e.strategies[name].OnBar(bar) {
			// The global breaker halts everything, including
			// strategies later in the iteration order.
			if !e.global.CanTrade() {
				e.observeBreaker(GlobalScope, e.global.State(), e.global.LastTrip())
				return e.finishBar(bar, fills)
			}
			if fill, ok := e.processSignal(name, sig, bar); ok {
				fills = append(fills, fill)
			}
		}
	}

	return e.finishBar(bar, fills)
}

// OnTick forwards a tick to the strategies that react to ticks. Signals
// run through the same admission pipeline, priced at the tick. No
// equity sample is taken; the curve stays bar-resolution.
func (e *TradingEngine) OnTick(tick types.Tick) []types.Fill {
	bar := types.Bar{
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
		Volume:    tick.Volume,
	}

	var fills []types.Fill
	for _, name := range e.names {
		ts, ok := e.strategies[name].(strategy.TickStrategy)
		if !ok {
			continue
		}
		if !e.breakers[name].CanTrade() {
			continue
		}
		for _, sig := range ts.OnTick(tick) {
			if !e.global.CanTrade() {
				return fills
			}
			if fill, ok := e.processSignal(name, sig, bar); ok {
				fills = append(fills, fill)
			}
		}
	}
	return fills
}

// finishBar samples the equity curve after all of the bar's activity.
func (e *TradingEngine) finishBar(bar types.Bar, fills []types.Fill) []types.Fill {
	equity := e.executor.Portfolio().Equity
	e.curve = append(e.curve, EquityPoint{Time: bar.Timestamp, Equity: equity})
	if e.metrics != nil {
		e.metrics.UpdateEquity(equity)
	}
	return fills
}

// processSignal turns one signal into an order, runs it through risk
// admission and executes it.
func (e *TradingEngine) processSignal(name string, sig types.Signal, bar types.Bar) (types.Fill, bool) {
	state := e.executor.Portfolio()

	var order types.OrderRequest
	switch sig.Action {
	case types.ActionFlat:
		// FLAT closes the whole position, long or short; nothing to do
		// when flat already.
		held := state.PositionQuantity(sig.Symbol)
		if math.Abs(held) < 1e-9 {
			return types.Fill{}, false
		}
		side := types.SideSell
		if held < 0 {
			side = types.SideBuy
		}
		order = types.OrderRequest{
			Symbol:       sig.Symbol,
			Side:         side,
			Quantity:     math.Abs(held),
			Type:         types.OrderTypeMarket,
			StrategyName: name,
		}

	case types.ActionBuy:
		stop, _ := sig.StopLoss()
		qty := e.sizer.Size(sig, bar.Close, state, stop)
		if qty <= 0 {
			return types.Fill{}, false
		}
		order = types.OrderRequest{
			Symbol:       sig.Symbol,
			Side:         types.SideBuy,
			Quantity:     qty,
			Type:         types.OrderTypeMarket,
			StopLoss:     stop,
			TakeProfit:   sig.Metadata[types.MetaTakeProfit],
			TrailingStop: sig.Metadata[types.MetaTrailingStop],
			StrategyName: name,
		}

	case types.ActionSell:
		qty := e.sizer.Size(sig, bar.Close, state, 0)
		if qty <= 0 {
			return types.Fill{}, false
		}
		order = types.OrderRequest{
			Symbol:       sig.Symbol,
			Side:         types.SideSell,
			Quantity:     qty,
			Type:         types.OrderTypeMarket,
			StrategyName: name,
		}

	default:
		return types.Fill{}, false
	}

	decision := e.risk.Evaluate(order, state, bar.Close)
	if e.log != nil {
		e.log.LogDecision(name, order.Symbol, decision.Outcome.String(), decision.Reason,
			decision.OriginalQuantity, decision.Order.Quantity)
	}
	if e.metrics != nil {
		e.metrics.RecordDecision(decision.Outcome.String(), decision.Reason)
	}
	if !decision.Allowed() {
		return types.Fill{}, false
	}

	// A buy reduces exposure only when the strategy was short going in;
	// read the position before the fill mutates it.
	cover := decision.Order.Side == types.SideBuy && state.PositionQuantity(decision.Order.Symbol) < 0

	fill := e.executor.ExecuteOrder(decision.Order, bar)
	e.recordFill(fill, e.executor.Portfolio().Equity, cover)
	return fill, true
}

// recordFill logs and meters a fill and feeds realized results into the
// breakers. Sells and short covers count toward a strategy's loss
// streak; a plain entry buy only advances its peak-equity tracking,
// since entry commission is not a trading loss.
func (e *TradingEngine) recordFill(f types.Fill, equity float64, closing bool) {
	if e.log != nil {
		e.log.LogFill(f.Order.Symbol, f.Order.Side.String(), f.Status.String(),
			f.FilledQuantity, f.FillPrice, f.PnL)
	}
	if e.metrics != nil {
		e.metrics.RecordFill(f.Order.Symbol, f.Order.Side.String(), f.Status.String(),
			f.FilledQuantity*f.FillPrice)
	}
	if f.Status != types.FillStatusFilled {
		return
	}

	if cb, ok := e.breakers[f.Order.StrategyName]; ok {
		if f.Order.Side == types.SideSell || closing {
			cb.RecordTrade(f.PnL, equity)
		} else {
			cb.ObserveEquity(equity)
		}
		e.observeBreaker(f.Order.StrategyName, cb.State(), cb.LastTrip())
	}

	e.global.Observe(equity)
	e.observeBreaker(GlobalScope, e.global.State(), e.global.LastTrip())
}

// observeBreaker emits trip/reset events on state transitions.
func (e *TradingEngine) observeBreaker(scope string, state safety.BreakerState, trip safety.TripInfo) {
	triggered := state == safety.StateTriggered
	was := e.tripped[scope]
	e.tripped[scope] = triggered

	if triggered == was {
		return
	}
	if triggered {
		if e.log != nil {
			e.log.LogBreakerTrip(scope, trip.Reason, trip.Value, trip.CooldownUntil)
		}
	} else if e.log != nil {
		e.log.LogBreakerReset(scope)
	}
	if e.metrics != nil {
		e.metrics.UpdateBreakerState(scope, triggered)
	}
}

// EquityCurve returns the per-bar equity samples recorded so far.
func (e *TradingEngine) EquityCurve() []EquityPoint { return e.curve }

// Strategies returns the registered strategy names in pipeline order.
func (e *TradingEngine) Strategies() []string { return e.names }

// StrategyBreaker returns the breaker owned by the named strategy.
func (e *TradingEngine) StrategyBreaker(name string) *safety.StrategyCircuitBreaker {
	return e.breakers[name]
}

// GlobalBreaker returns the account-wide breaker.
func (e *TradingEngine) GlobalBreaker() *safety.GlobalCircuitBreaker { return e.global }
