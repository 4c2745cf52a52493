package risk

import (
	"fmt"
	"math"
	"time"

	"tradecore/pkg/types"
)

// Tolerance applied to cap comparisons so resized orders sitting exactly
// on a limit are not rejected by floating-point noise.
const epsilon = 1e-9

// round8 rounds a quantity to 8 decimal places, half to even. Every
// resized quantity passes through here so venues never see quantities
// with float dust in the low digits.
func round8(v float64) float64 {
	return math.RoundToEven(v*1e8) / 1e8
}

// Context carries the read-only inputs one evaluation runs against,
// plus the resize bookkeeping shared by the rules.
type Context struct {
	Portfolio   *types.PortfolioState
	MarketPrice float64
	Now         time.Time
	Limits      Limits
	Session     *SessionConfig

	modified     bool
	modifyReason string
	originalQty  float64
}

// resize replaces the candidate order with a smaller copy and records
// the modification. The original order is never mutated.
func (c *Context) resize(order types.OrderRequest, qty float64, reason string) types.OrderRequest {
	c.modified = true
	c.modifyReason = reason
	return order.WithQuantity(round8(qty))
}

// rule is one link of the admission chain. It either passes the order
// through (possibly resized, with a nil decision) or short-circuits the
// chain with a terminal REJECT.
type rule struct {
	name  string
	apply func(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision)
}

// Engine is the risk-admission engine: an ordered chain of independent
// rules evaluated against a candidate order. Rule order is a contract;
// the daily-loss kill switch always runs before any sizing rule so no
// partial order is authorized once the kill switch is active.
type Engine struct {
	limits  Limits
	session *SessionConfig
	rules   []rule

	now func() time.Time
}

// NewEngine creates a risk engine with the given limits. session may be
// nil when the venue has no session-hours or circuit-band requirements.
func NewEngine(limits Limits, session *SessionConfig) *Engine {
	e := &Engine{
		limits:  limits,
		session: session,
		now:     time.Now,
	}

	e.rules = []rule{
		{"order_sanity", orderSanity},
		{"equity_sanity", equitySanity},
		{"daily_loss_kill_switch", dailyLossKillSwitch},
		{"order_notional_cap", orderNotionalCap},
		{"position_cap", positionCap},
		{"leverage_cap", leverageCap},
		{"open_positions_cap", openPositionsCap},
		{"session", sessionRule},
	}

	return e
}

// Evaluate runs the candidate order through the rule chain and returns
// exactly one decision. Later rules see the already-resized order from
// earlier rules. Non-finite inputs are a contract violation upstream
// and panic rather than produce a decision.
func (e *Engine) Evaluate(order types.OrderRequest, portfolio *types.PortfolioState, marketPrice float64) Decision {
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		panic(fmt.Sprintf("risk: non-finite market price %v for %s", marketPrice, order.Symbol))
	}
	if math.IsNaN(order.Quantity) || math.IsInf(order.Quantity, 0) {
		panic(fmt.Sprintf("risk: non-finite quantity %v for %s", order.Quantity, order.Symbol))
	}

	ctx := &Context{
		Portfolio:   portfolio,
		MarketPrice: marketPrice,
		Now:         e.now(),
		Limits:      e.limits,
		Session:     e.session,
		originalQty: order.Quantity,
	}

	for _, r := range e.rules {
		next, decision := r.apply(order, ctx)
		if decision != nil {
			return *decision
		}
		order = next
	}

	if ctx.modified {
		return Modify(order, ctx.modifyReason, ctx.originalQty)
	}
	return Allow(order)
}

// ConfiguredLimits returns the admission limits the engine enforces.
func (e *Engine) ConfiguredLimits() Limits { return e.limits }
