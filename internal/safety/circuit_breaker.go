package safety

import (
	"time"
)

// BreakerState represents the state of a trading circuit breaker
type BreakerState int

const (
	StateArmed BreakerState = iota
	StateTriggered
	StateReset
)

// String returns the string representation of the breaker state
func (s BreakerState) String() string {
	switch s {
	case StateArmed:
		return "ARMED"
	case StateTriggered:
		return "TRIGGERED"
	case StateReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Trip reasons reported alongside a TRIGGERED transition.
const (
	TripConsecutiveLosses = "consecutive_losses"
	TripDrawdown          = "drawdown"
	TripDailyLoss         = "daily_loss"
)

// TripInfo describes why a breaker tripped and when it may re-arm.
type TripInfo struct {
	Reason        string
	Value         float64
	TriggeredAt   time.Time
	CooldownUntil time.Time
}

// StrategyBreakerConfig holds limits for a per-strategy breaker.
// Config files express the cooldown in seconds; Cooldown is the
// resolved duration and is not read from JSON, where a bare number
// would silently mean nanoseconds.
type StrategyBreakerConfig struct {
	MaxConsecutiveLosses int           `json:"max_consecutive_losses"`
	MaxDrawdownPct       float64       `json:"max_drawdown_pct"`
	CooldownSeconds      float64       `json:"cooldown_seconds"`
	Cooldown             time.Duration `json:"-"`
}

// DefaultStrategyBreakerConfig returns conservative per-strategy limits.
func DefaultStrategyBreakerConfig() StrategyBreakerConfig {
	return StrategyBreakerConfig{
		MaxConsecutiveLosses: 5,
		MaxDrawdownPct:       0.10,
		Cooldown:             time.Hour,
	}
}

// StrategyCircuitBreaker halts one strategy after a loss streak or a
// drawdown from its peak equity. The state machine is
// ARMED -> TRIGGERED -> (cooldown elapses) -> RESET -> ARMED, with the
// cooldown evaluated lazily inside CanTrade rather than by a timer.
//
// The breaker is driven from the single engine goroutine and holds no
// locks.
type StrategyCircuitBreaker struct {
	name   string
	config StrategyBreakerConfig

	state             BreakerState
	consecutiveLosses int
	peakEquity        float64
	trip              TripInfo

	now func() time.Time
}

// NewStrategyCircuitBreaker creates a per-strategy breaker. Zero config
// values fall back to defaults.
func NewStrategyCircuitBreaker(name string, config StrategyBreakerConfig) *StrategyCircuitBreaker {
	def := DefaultStrategyBreakerConfig()
	if config.MaxConsecutiveLosses <= 0 {
		config.MaxConsecutiveLosses = def.MaxConsecutiveLosses
	}
	if config.MaxDrawdownPct <= 0 {
		config.MaxDrawdownPct = def.MaxDrawdownPct
	}
	if config.CooldownSeconds > 0 {
		config.Cooldown = time.Duration(config.CooldownSeconds * float64(time.Second))
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &StrategyCircuitBreaker{
		name:   name,
		config: config,
		state:  StateArmed,
		now:    time.Now,
	}
}

// Name returns the owning strategy's name.
func (cb *StrategyCircuitBreaker) Name() string { return cb.name }

// CanTrade reports whether the strategy may trade. A triggered breaker
// whose cooldown has elapsed re-arms as a side effect and returns true.
func (cb *StrategyCircuitBreaker) CanTrade() bool {
	switch cb.state {
	case StateArmed:
		return true
	case StateTriggered:
		if cb.now().Sub(cb.trip.TriggeredAt) > cb.config.Cooldown {
			cb.reset()
			return true
		}
		return false
	default:
		return false
	}
}

// RecordTrade feeds a completed trade's realized pnl and the strategy's
// equity after the trade into the breaker.
func (cb *StrategyCircuitBreaker) RecordTrade(pnl, equity float64) {
	if pnl < 0 {
		cb.consecutiveLosses++
	} else {
		cb.consecutiveLosses = 0
	}

	if equity > cb.peakEquity {
		cb.peakEquity = equity
	}

	if cb.state == StateTriggered {
		return
	}

	if cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.tripBreaker(TripConsecutiveLosses, float64(cb.consecutiveLosses))
		return
	}

	if dd := cb.Drawdown(equity); dd >= cb.config.MaxDrawdownPct {
		cb.tripBreaker(TripDrawdown, dd)
	}
}

// ObserveEquity updates peak-equity tracking without recording a trade
// outcome. Entry fills feed this so the drawdown trigger measures from
// the equity at entry rather than from the first exit.
func (cb *StrategyCircuitBreaker) ObserveEquity(equity float64) {
	if equity > cb.peakEquity {
		cb.peakEquity = equity
	}

	if cb.state == StateTriggered {
		return
	}

	if dd := cb.Drawdown(equity); dd >= cb.config.MaxDrawdownPct {
		cb.tripBreaker(TripDrawdown, dd)
	}
}

// Drawdown returns the decline from peak equity as a fraction of the peak.
func (cb *StrategyCircuitBreaker) Drawdown(equity float64) float64 {
	if cb.peakEquity <= 0 {
		return 0
	}
	return (cb.peakEquity - equity) / cb.peakEquity
}

// State returns the current breaker state.
func (cb *StrategyCircuitBreaker) State() BreakerState { return cb.state }

// LastTrip returns details of the most recent trip.
func (cb *StrategyCircuitBreaker) LastTrip() TripInfo { return cb.trip }

func (cb *StrategyCircuitBreaker) tripBreaker(reason string, value float64) {
	triggeredAt := cb.now()
	cb.state = StateTriggered
	cb.trip = TripInfo{
		Reason:        reason,
		Value:         value,
		TriggeredAt:   triggeredAt,
		CooldownUntil: triggeredAt.Add(cb.config.Cooldown),
	}
}

// reset clears all counters and trackers. RESET is transient; the
// breaker re-enters ARMED before the call returns.
func (cb *StrategyCircuitBreaker) reset() {
	cb.state = StateReset
	cb.consecutiveLosses = 0
	cb.peakEquity = 0
	cb.trip = TripInfo{}
	cb.state = StateArmed
}

// GlobalBreakerConfig holds limits for the account-wide breaker. As
// with StrategyBreakerConfig, config files carry the cooldown in
// seconds and Cooldown is the resolved duration.
type GlobalBreakerConfig struct {
	DailyLossLimitPct float64       `json:"daily_loss_limit_pct"`
	MaxDrawdownPct    float64       `json:"max_drawdown_pct"`
	CooldownSeconds   float64       `json:"cooldown_seconds"`
	Cooldown          time.Duration `json:"-"`
}

// DefaultGlobalBreakerConfig returns conservative account-wide limits.
func DefaultGlobalBreakerConfig() GlobalBreakerConfig {
	return GlobalBreakerConfig{
		DailyLossLimitPct: 0.05,
		MaxDrawdownPct:    0.20,
		Cooldown:          4 * time.Hour,
	}
}

// GlobalCircuitBreaker halts all trading when account equity falls too
// far from its session start or its peak. Same FSM and lazy-cooldown
// semantics as the strategy breaker.
type GlobalCircuitBreaker struct {
	config GlobalBreakerConfig

	state              BreakerState
	sessionStartEquity float64
	peakEquity         float64
	trip               TripInfo

	now func() time.Time
}

// NewGlobalCircuitBreaker creates an account-wide breaker. Zero config
// values fall back to defaults.
func NewGlobalCircuitBreaker(config GlobalBreakerConfig) *GlobalCircuitBreaker {
	def := DefaultGlobalBreakerConfig()
	if config.DailyLossLimitPct <= 0 {
		config.DailyLossLimitPct = def.DailyLossLimitPct
	}
	if config.MaxDrawdownPct <= 0 {
		config.MaxDrawdownPct = def.MaxDrawdownPct
	}
	if config.CooldownSeconds > 0 {
		config.Cooldown = time.Duration(config.CooldownSeconds * float64(time.Second))
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &GlobalCircuitBreaker{
		config: config,
		state:  StateArmed,
		now:    time.Now,
	}
}

// CanTrade reports whether any trading is allowed. Cooldown is
// evaluated lazily, re-arming the breaker as a side effect.
func (cb *GlobalCircuitBreaker) CanTrade() bool {
	switch cb.state {
	case StateArmed:
		return true
	case StateTriggered:
		if cb.now().Sub(cb.trip.TriggeredAt) > cb.config.Cooldown {
			cb.reset()
			return true
		}
		return false
	default:
		return false
	}
}

// Observe feeds the current account equity into the breaker. The first
// observation fixes the session start equity.
func (cb *GlobalCircuitBreaker) Observe(equity float64) {
	if cb.sessionStartEquity == 0 {
		cb.sessionStartEquity = equity
	}
	if equity > cb.peakEquity {
		cb.peakEquity = equity
	}

	if cb.state == StateTriggered {
		return
	}

	if cb.peakEquity > 0 {
		if dd := (cb.peakEquity - equity) / cb.peakEquity; dd >= cb.config.MaxDrawdownPct {
			cb.tripBreaker(TripDrawdown, dd)
			return
		}
	}

	if cb.sessionStartEquity > 0 {
		if loss := (cb.sessionStartEquity - equity) / cb.sessionStartEquity; loss >= cb.config.DailyLossLimitPct {
			cb.tripBreaker(TripDailyLoss, loss)
		}
	}
}

// State returns the current breaker state.
func (cb *GlobalCircuitBreaker) State() BreakerState { return cb.state }

// LastTrip returns details of the most recent trip.
func (cb *GlobalCircuitBreaker) LastTrip() TripInfo { return cb.trip }

func (cb *GlobalCircuitBreaker) tripBreaker(reason string, value float64) {
	triggeredAt := cb.now()
	cb.state = StateTriggered
	cb.trip = TripInfo{
		Reason:        reason,
		Value:         value,
		TriggeredAt:   triggeredAt,
		CooldownUntil: triggeredAt.Add(cb.config.Cooldown),
	}
}

func (cb *GlobalCircuitBreaker) reset() {
	cb.state = StateReset
	cb.sessionStartEquity = 0
	cb.peakEquity = 0
	cb.trip = TripInfo{}
	cb.state = StateArmed
}
