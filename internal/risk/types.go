package risk

import (
	"time"

	"tradecore/pkg/types"
)

// DecisionOutcome is the admission result for one candidate order
type DecisionOutcome int

const (
	OutcomeAllow DecisionOutcome = iota
	OutcomeModify
	OutcomeReject
)

func (o DecisionOutcome) String() string {
	switch o {
	case OutcomeAllow:
		return "ALLOW"
	case OutcomeModify:
		return "MODIFY"
	case OutcomeReject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// Reject reason codes.
const (
	ReasonNoEquity              = "NO_EQUITY"
	ReasonDailyLossLimit        = "DAILY_LOSS_LIMIT"
	ReasonOrderNotionalExceeded = "ORDER_NOTIONAL_EXCEEDED"
	ReasonPositionLimitExceeded = "POSITION_LIMIT_EXCEEDED"
	ReasonLeverageExceeded      = "LEVERAGE_EXCEEDED"
	ReasonMaxOpenPositions      = "MAX_OPEN_POSITIONS"
	ReasonOutsideMarketHours    = "OUTSIDE_MARKET_HOURS"
	ReasonTimeCutoff            = "TIME_CUTOFF"
	ReasonMissingRiskInput      = "MISSING_RISK_INPUT"
	ReasonCircuitLimitBreach    = "CIRCUIT_LIMIT_BREACH"
	ReasonInvalidQty            = "INVALID_QTY"
)

// Modify reason codes.
const (
	ReasonResizedNotional      = "ORDER_RESIZED_NOTIONAL"
	ReasonResizedPositionLimit = "ORDER_RESIZED_POSITION_LIMIT"
	ReasonResizedLeverage      = "ORDER_RESIZED_LEVERAGE"
)

// Decision is the admission verdict for one candidate order. Exactly
// one decision is produced per evaluation; it is never partially
// applied. For ALLOW and MODIFY the Order field carries the final
// (possibly resized) order.
type Decision struct {
	Outcome          DecisionOutcome
	Order            types.OrderRequest
	Reason           string
	Detail           string
	OriginalQuantity float64
}

// Allowed reports whether the order may proceed to execution.
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeReject
}

// Allow builds an ALLOW decision for an unchanged order.
func Allow(order types.OrderRequest) Decision {
	return Decision{
		Outcome:          OutcomeAllow,
		Order:            order,
		OriginalQuantity: order.Quantity,
	}
}

// Modify builds a MODIFY decision carrying the resized order.
func Modify(order types.OrderRequest, reason string, originalQty float64) Decision {
	return Decision{
		Outcome:          OutcomeModify,
		Order:            order,
		Reason:           reason,
		OriginalQuantity: originalQty,
	}
}

// Reject builds a REJECT decision.
func Reject(order types.OrderRequest, reason, detail string) Decision {
	return Decision{
		Outcome:          OutcomeReject,
		Order:            order,
		Reason:           reason,
		Detail:           detail,
		OriginalQuantity: order.Quantity,
	}
}

// Limits holds the account-level admission limits
type Limits struct {
	MaxPositionPct   float64 `json:"max_position_pct"`
	MaxLeverage      float64 `json:"max_leverage"`
	MaxOpenPositions int     `json:"max_open_positions"`
	MaxDailyLoss     float64 `json:"max_daily_loss"`
	MaxOrderNotional float64 `json:"max_order_notional"` // 0 disables the cap
	AllowPartial     bool    `json:"allow_partial"`
}

// DefaultLimits returns the default admission limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionPct:   0.10,
		MaxLeverage:      2.0,
		MaxOpenPositions: 10,
		MaxDailyLoss:     0.05,
		MaxOrderNotional: 0,
		AllowPartial:     true,
	}
}

// CircuitBand is a symbol's exchange circuit price band.
type CircuitBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SessionConfig enables the venue session rule: market hours, an
// intraday entry cutoff, and exchange circuit price bands. A nil
// SessionConfig disables the rule entirely.
type SessionConfig struct {
	Location *time.Location
	// Minutes since midnight in Location.
	OpenMinute   int
	CloseMinute  int
	CutoffMinute int // 0 disables the cutoff
	// Fail closed when a symbol has no circuit band or margin data on
	// record.
	StrictCircuitCheck bool
	CircuitBands       map[string]CircuitBand
	// Per-symbol margin requirement as a fraction of notional. A nil
	// map disables the margin-data check.
	MarginBySymbol map[string]float64
}
