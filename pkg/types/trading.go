package types

import "time"

// SignalAction represents the directional recommendation of a strategy
type SignalAction int

const (
	ActionBuy SignalAction = iota
	ActionSell
	ActionFlat
)

func (a SignalAction) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionFlat:
		return "FLAT"
	default:
		return "UNKNOWN"
	}
}

// Metadata keys recognized on signals and orders.
const (
	MetaStopLoss     = "stop_loss"
	MetaTakeProfit   = "take_profit"
	MetaTrailingStop = "trailing_stop"
)

// Signal is a strategy's recommendation for one symbol on one bar.
// Size is optional; when zero the engine derives the quantity through
// the position sizer. Metadata may carry stop_loss/take_profit/
// trailing_stop price levels.
type Signal struct {
	Symbol     string
	Action     SignalAction
	Confidence float64
	Size       float64
	Metadata   map[string]float64
}

// StopLoss returns the stop-loss level attached to the signal, if any.
func (s Signal) StopLoss() (float64, bool) {
	v, ok := s.Metadata[MetaStopLoss]
	return v, ok
}

// OrderSide represents the side of an order
type OrderSide int

const (
	SideBuy OrderSide = iota
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType represents how an order should be priced
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderRequest is a candidate order built from a signal. The risk engine
// never mutates a request in place; a resized order is a fresh copy.
type OrderRequest struct {
	Symbol       string
	Side         OrderSide
	Quantity     float64
	Type         OrderType
	LimitPrice   float64
	StopLoss     float64
	TakeProfit   float64
	TrailingStop float64
	StrategyName string
	Metadata     map[string]float64
}

// WithQuantity returns a copy of the request with a different quantity.
func (o OrderRequest) WithQuantity(qty float64) OrderRequest {
	o.Quantity = qty
	return o
}

// FillStatus represents the terminal status of an executed order
type FillStatus int

const (
	FillStatusFilled FillStatus = iota
	FillStatusRejected
)

func (s FillStatus) String() string {
	switch s {
	case FillStatusFilled:
		return "FILLED"
	case FillStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Fill is the terminal record of an executed (or refused) order.
// Immutable once created.
type Fill struct {
	Order          OrderRequest
	FilledQuantity float64
	FillPrice      float64
	PnL            float64
	Status         FillStatus
	Reason         string
	Timestamp      time.Time
}
