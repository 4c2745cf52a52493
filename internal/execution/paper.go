package execution

import (
	"math"
	"time"

	"tradecore/internal/portfolio"
	"tradecore/pkg/types"
)

// DefaultCommission is the taker fee applied to paper fills.
const DefaultCommission = 0.0005 // 0.05%

// Exit reasons reported on fills the paper engine generates on its own.
const (
	ExitStopLoss     = "STOP_LOSS"
	ExitTakeProfit   = "TAKE_PROFIT"
	ExitTrailingStop = "TRAILING_STOP"
)

// protectiveStops tracks the exit levels armed by an entry order.
// TrailingStop is a fractional distance below the high-water mark.
type protectiveStops struct {
	stopLoss     float64
	takeProfit   float64
	trailingStop float64
	highWater    float64
	strategy     string
}

// PaperEngine simulates an execution venue against the local portfolio
// ledger: market fills at the bar close with commission, and
// stop-loss / take-profit / trailing-stop exits triggered during
// mark-to-market. It presents the synchronous contract the decision
// core expects.
type PaperEngine struct {
	pm         *portfolio.Manager
	commission float64
	stops      map[string]*protectiveStops
}

// NewPaperEngine creates a paper execution engine over the given
// portfolio manager. A non-positive commission falls back to the
// default taker fee.
func NewPaperEngine(pm *portfolio.Manager, commission float64) *PaperEngine {
	if commission <= 0 {
		commission = DefaultCommission
	}
	return &PaperEngine{
		pm:         pm,
		commission: commission,
		stops:      make(map[string]*protectiveStops),
	}
}

// Portfolio returns the live portfolio state the engine reads after
// every call.
func (e *PaperEngine) Portfolio() *types.PortfolioState { return e.pm.State() }

// PortfolioManager returns the underlying ledger, for reporting.
func (e *PaperEngine) PortfolioManager() *portfolio.Manager { return e.pm }

// UpdateMarkToMarket marks the bar's symbol to its close, rolls the
// daily bookkeeping at day boundaries, and fires any protective exits
// the bar's range touched. Fills it generates on its own are returned.
func (e *PaperEngine) UpdateMarkToMarket(bar types.Bar) []types.Fill {
	day := bar.Timestamp.Truncate(24 * time.Hour)
	if !day.Equal(e.pm.CurrentDay()) {
		e.pm.StartNewDay(bar.Timestamp)
	}

	e.pm.UpdatePrices(map[string]float64{bar.Symbol: bar.Close})

	return e.triggerStops(bar)
}

// ExecuteOrder fills a market order at the bar close, applies
// commission, and arms the order's protective stops. Orders the ledger
// refuses come back as rejected fills, not errors.
func (e *PaperEngine) ExecuteOrder(order types.OrderRequest, bar types.Bar) types.Fill {
	price := bar.Close
	if order.Type == types.OrderTypeLimit && order.LimitPrice > 0 {
		price = order.LimitPrice
	}

	pnl, ok := e.pm.ApplyTrade(order.Symbol, order.Quantity, price, order.Side)
	if !ok {
		return types.Fill{
			Order:     order,
			Status:    types.FillStatusRejected,
			Reason:    "refused by ledger position cap",
			Timestamp: bar.Timestamp,
		}
	}

	fee := order.Quantity * price * e.commission
	e.pm.Debit(fee)

	if order.Side == types.SideBuy {
		e.armStops(order)
	} else if e.pm.State().PositionQuantity(order.Symbol) == 0 {
		delete(e.stops, order.Symbol)
	}

	return types.Fill{
		Order:          order,
		FilledQuantity: order.Quantity,
		FillPrice:      price,
		PnL:            pnl - fee,
		Status:         types.FillStatusFilled,
		Timestamp:      bar.Timestamp,
	}
}

func (e *PaperEngine) armStops(order types.OrderRequest) {
	if order.StopLoss <= 0 && order.TakeProfit <= 0 && order.TrailingStop <= 0 {
		return
	}
	e.stops[order.Symbol] = &protectiveStops{
		stopLoss:     order.StopLoss,
		takeProfit:   order.TakeProfit,
		trailingStop: order.TrailingStop,
		strategy:     order.StrategyName,
	}
}

// triggerStops checks the bar's range against the armed exits for its
// symbol. Stop-loss wins over take-profit when both are inside the
// same bar.
func (e *PaperEngine) triggerStops(bar types.Bar) []types.Fill {
	stops, ok := e.stops[bar.Symbol]
	if !ok {
		return nil
	}
	held := e.pm.State().PositionQuantity(bar.Symbol)
	if held <= 0 {
		delete(e.stops, bar.Symbol)
		return nil
	}

	if stops.trailingStop > 0 && bar.High > stops.highWater {
		stops.highWater = bar.High
	}

	exitPrice := 0.0
	reason := ""
	switch {
	case stops.stopLoss > 0 && bar.Low <= stops.stopLoss:
		exitPrice, reason = stops.stopLoss, ExitStopLoss
	case stops.trailingStop > 0 && bar.Low <= stops.highWater*(1-stops.trailingStop):
		exitPrice, reason = stops.highWater*(1-stops.trailingStop), ExitTrailingStop
	case stops.takeProfit > 0 && bar.High >= stops.takeProfit:
		exitPrice, reason = stops.takeProfit, ExitTakeProfit
	}
	if reason == "" {
		return nil
	}

	// Gap protection: never fill outside the bar's range.
	exitPrice = math.Min(math.Max(exitPrice, bar.Low), bar.High)

	order := types.OrderRequest{
		Symbol:       bar.Symbol,
		Side:         types.SideSell,
		Quantity:     held,
		Type:         types.OrderTypeMarket,
		StrategyName: stops.strategy,
	}

	pnl, ok := e.pm.ApplyTrade(bar.Symbol, held, exitPrice, types.SideSell)
	if !ok {
		return nil
	}
	fee := held * exitPrice * e.commission
	e.pm.Debit(fee)
	delete(e.stops, bar.Symbol)

	return []types.Fill{{
		Order:          order,
		FilledQuantity: held,
		FillPrice:      exitPrice,
		PnL:            pnl - fee,
		Status:         types.FillStatusFilled,
		Reason:         reason,
		Timestamp:      bar.Timestamp,
	}}
}
