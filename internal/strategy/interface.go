package strategy

import (
	"tradecore/pkg/types"
)

// Strategy is the interface trading strategies implement. A strategy
// may keep its own rolling history, but must be pure with respect to
// engine state: it sees bars and emits signals, nothing else.
type Strategy interface {
	// Name identifies the strategy in the engine registry, fill
	// records and breaker logs.
	Name() string

	// OnBar analyzes one bar and returns zero or more signals.
	OnBar(bar types.Bar) []types.Signal
}

// TickStrategy is optionally implemented by strategies that also react
// to individual ticks.
type TickStrategy interface {
	OnTick(tick types.Tick) []types.Signal
}
