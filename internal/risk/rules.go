package risk

import (
	"fmt"
	"math"

	"tradecore/pkg/types"
)

// direction returns +1 for orders that add to the signed position and
// -1 for orders that subtract from it.
func direction(side types.OrderSide) float64 {
	if side == types.SideBuy {
		return 1
	}
	return -1
}

// orderSanity refuses orders no venue would accept.
func orderSanity(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	if order.Quantity <= 0 {
		d := Reject(order, ReasonInvalidQty, fmt.Sprintf("quantity %.8f is not positive", order.Quantity))
		return order, &d
	}
	if ctx.MarketPrice <= 0 {
		d := Reject(order, ReasonMissingRiskInput, "missing market price")
		return order, &d
	}
	return order, nil
}

// equitySanity rejects everything once the account has no equity.
func equitySanity(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	if ctx.Portfolio == nil || ctx.Portfolio.Equity <= 0 {
		d := Reject(order, ReasonNoEquity, "No equity available")
		return order, &d
	}
	return order, nil
}

// dailyLossKillSwitch rejects every order for the remainder of the
// trading day once the session loss breaches the limit. It runs before
// any sizing rule so no partial order is authorized after the breach.
func dailyLossKillSwitch(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	p := ctx.Portfolio
	if p.DailyStartEquity > 0 && p.DailyPnL/p.DailyStartEquity < -ctx.Limits.MaxDailyLoss {
		d := Reject(order, ReasonDailyLossLimit, fmt.Sprintf(
			"Daily loss limit reached: %.2f%% of %.2f",
			p.DailyPnL/p.DailyStartEquity*100, p.DailyStartEquity))
		return order, &d
	}
	return order, nil
}

// orderNotionalCap bounds the dollar size of a single order.
func orderNotionalCap(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	max := ctx.Limits.MaxOrderNotional
	if max <= 0 {
		return order, nil
	}

	notional := order.Quantity * ctx.MarketPrice
	if notional <= max+epsilon {
		return order, nil
	}

	if !ctx.Limits.AllowPartial {
		d := Reject(order, ReasonOrderNotionalExceeded, fmt.Sprintf(
			"order notional %.2f exceeds cap %.2f", notional, max))
		return order, &d
	}

	return ctx.resize(order, max/ctx.MarketPrice, ReasonResizedNotional), nil
}

// positionCap bounds the post-trade notional of the traded symbol
// relative to equity. Exposure-reducing trades always pass.
func positionCap(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	limits := ctx.Limits
	if limits.MaxPositionPct <= 0 {
		return order, nil
	}

	price := ctx.MarketPrice
	equity := ctx.Portfolio.Equity
	held := ctx.Portfolio.PositionQuantity(order.Symbol)
	after := held + direction(order.Side)*order.Quantity

	afterNotional := math.Abs(after) * price
	currentNotional := math.Abs(held) * price
	capNotional := limits.MaxPositionPct * equity

	if afterNotional <= capNotional+epsilon {
		return order, nil
	}
	if afterNotional < currentNotional {
		// Reducing an already-over-cap position must not be blocked.
		return order, nil
	}

	if !limits.AllowPartial {
		d := Reject(order, ReasonPositionLimitExceeded, fmt.Sprintf(
			"position notional %.2f would exceed %.1f%% of equity",
			afterNotional, limits.MaxPositionPct*100))
		return order, &d
	}

	// Largest quantity that keeps |held + d*qty| within the cap.
	maxQty := capNotional/price - direction(order.Side)*held
	if maxQty <= epsilon {
		d := Reject(order, ReasonPositionLimitExceeded, fmt.Sprintf(
			"no room under %.1f%% position cap for %s", limits.MaxPositionPct*100, order.Symbol))
		return order, &d
	}

	return ctx.resize(order, maxQty, ReasonResizedPositionLimit), nil
}

// leverageCap bounds total portfolio exposure after the trade.
func leverageCap(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	limits := ctx.Limits
	if limits.MaxLeverage <= 0 {
		return order, nil
	}

	price := ctx.MarketPrice
	equity := ctx.Portfolio.Equity
	held := ctx.Portfolio.PositionQuantity(order.Symbol)
	after := held + direction(order.Side)*order.Quantity

	// Other symbols are marked at their last known price; the traded
	// symbol is revalued at the current market price.
	exposureOther := 0.0
	for sym, pos := range ctx.Portfolio.Positions {
		if sym != order.Symbol {
			exposureOther += math.Abs(pos.MarketValue())
		}
	}

	afterNotional := math.Abs(after) * price
	currentNotional := math.Abs(held) * price
	exposureAfter := exposureOther + afterNotional
	maxExposure := limits.MaxLeverage * equity

	if exposureAfter <= maxExposure+epsilon {
		return order, nil
	}
	if afterNotional < currentNotional {
		return order, nil
	}

	if !limits.AllowPartial {
		d := Reject(order, ReasonLeverageExceeded, fmt.Sprintf(
			"exposure %.2f would exceed %.1fx leverage", exposureAfter, limits.MaxLeverage))
		return order, &d
	}

	allowedNotional := maxExposure - exposureOther
	maxQty := allowedNotional/price - direction(order.Side)*held
	if allowedNotional <= 0 || maxQty <= epsilon {
		d := Reject(order, ReasonLeverageExceeded, fmt.Sprintf(
			"no room under %.1fx leverage cap for %s", limits.MaxLeverage, order.Symbol))
		return order, &d
	}

	return ctx.resize(order, maxQty, ReasonResizedLeverage), nil
}

// openPositionsCap refuses orders that would open one symbol too many.
func openPositionsCap(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	limits := ctx.Limits
	if limits.MaxOpenPositions <= 0 {
		return order, nil
	}

	held := ctx.Portfolio.PositionQuantity(order.Symbol)
	if held == 0 && ctx.Portfolio.OpenPositions() >= limits.MaxOpenPositions {
		d := Reject(order, ReasonMaxOpenPositions, fmt.Sprintf(
			"%d positions already open (max %d)", ctx.Portfolio.OpenPositions(), limits.MaxOpenPositions))
		return order, &d
	}
	return order, nil
}

// sessionRule enforces venue session hours, the intraday entry cutoff
// and exchange circuit price bands. Disabled when no SessionConfig is
// set. Missing circuit data fails closed when StrictCircuitCheck is on.
func sessionRule(order types.OrderRequest, ctx *Context) (types.OrderRequest, *Decision) {
	cfg := ctx.Session
	if cfg == nil {
		return order, nil
	}

	now := ctx.Now
	if cfg.Location != nil {
		now = now.In(cfg.Location)
	}
	minute := now.Hour()*60 + now.Minute()

	if minute < cfg.OpenMinute || minute >= cfg.CloseMinute {
		d := Reject(order, ReasonOutsideMarketHours, fmt.Sprintf(
			"order at %02d:%02d outside session %02d:%02d-%02d:%02d",
			now.Hour(), now.Minute(),
			cfg.OpenMinute/60, cfg.OpenMinute%60, cfg.CloseMinute/60, cfg.CloseMinute%60))
		return order, &d
	}

	if cfg.CutoffMinute > 0 && minute >= cfg.CutoffMinute {
		d := Reject(order, ReasonTimeCutoff, fmt.Sprintf(
			"past intraday entry cutoff %02d:%02d", cfg.CutoffMinute/60, cfg.CutoffMinute%60))
		return order, &d
	}

	if cfg.MarginBySymbol != nil && cfg.StrictCircuitCheck {
		if _, ok := cfg.MarginBySymbol[order.Symbol]; !ok {
			d := Reject(order, ReasonMissingRiskInput, fmt.Sprintf(
				"missing margin data for %s", order.Symbol))
			return order, &d
		}
	}

	band, ok := cfg.CircuitBands[order.Symbol]
	if !ok {
		if cfg.StrictCircuitCheck {
			d := Reject(order, ReasonMissingRiskInput, fmt.Sprintf(
				"missing circuit limits for %s", order.Symbol))
			return order, &d
		}
		return order, nil
	}

	if ctx.MarketPrice < band.Lower || ctx.MarketPrice > band.Upper {
		d := Reject(order, ReasonCircuitLimitBreach, fmt.Sprintf(
			"price %.2f outside circuit band [%.2f, %.2f]", ctx.MarketPrice, band.Lower, band.Upper))
		return order, &d
	}

	return order, nil
}
