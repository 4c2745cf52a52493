package bybit

import (
	"context"
	"time"

	"tradecore/internal/portfolio"
	"tradecore/pkg/types"
)

// LiveExecutor routes orders to the venue and mirrors resulting fills
// into a local portfolio ledger so the risk engine sees the same state
// it would see in a backtest. Protective stop-loss and take-profit
// levels travel with the order and are enforced venue-side.
type LiveExecutor struct {
	client     *Client
	category   string
	pm         *portfolio.Manager
	commission float64
	timeout    time.Duration
	now        func() time.Time
}

// NewLiveExecutor creates an executor backed by the given client.
func NewLiveExecutor(client *Client, category string, pm *portfolio.Manager, commission float64) *LiveExecutor {
	if category == "" {
		category = "spot"
	}
	if commission < 0 {
		commission = 0
	}
	return &LiveExecutor{
		client:     client,
		category:   category,
		pm:         pm,
		commission: commission,
		timeout:    10 * time.Second,
		now:        time.Now,
	}
}

// UpdateMarkToMarket rolls the trading day and revalues open positions
// against the bar close. Protective exits are enforced by the venue,
// so no synthetic exit fills are produced here.
func (e *LiveExecutor) UpdateMarkToMarket(bar types.Bar) []types.Fill {
	day := bar.Timestamp.Truncate(24 * time.Hour)
	if !day.Equal(e.pm.CurrentDay()) {
		e.pm.StartNewDay(day)
	}
	e.pm.UpdatePrices(map[string]float64{bar.Symbol: bar.Close})
	return nil
}

// ExecuteOrder places the order on the venue and mirrors the result
// into the local ledger. A venue rejection comes back as a rejected
// fill rather than an error so the engine's per-bar flow is uniform
// across paper and live execution.
func (e *LiveExecutor) ExecuteOrder(order types.OrderRequest, bar types.Bar) types.Fill {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	result, err := e.client.PlaceOrder(ctx, e.category, order)
	if err != nil {
		return types.Fill{
			Order:     order,
			Status:    types.FillStatusRejected,
			Reason:    err.Error(),
			Timestamp: e.now(),
		}
	}

	fillPrice := result.AvgPrice
	if fillPrice <= 0 {
		// Spot market acks may omit the average price; fall back to
		// the bar close for the ledger mirror.
		fillPrice = bar.Close
	}
	qty := result.ExecutedQty
	if qty <= 0 {
		qty = order.Quantity
	}

	realized, ok := e.pm.ApplyTrade(order.Symbol, qty, fillPrice, order.Side)
	if !ok {
		return types.Fill{
			Order:     order,
			Status:    types.FillStatusRejected,
			Reason:    "local ledger rejected venue fill",
			Timestamp: e.now(),
		}
	}
	e.pm.Debit(qty * fillPrice * e.commission)

	return types.Fill{
		Order:          order,
		FilledQuantity: qty,
		FillPrice:      fillPrice,
		PnL:            realized,
		Status:         types.FillStatusFilled,
		Timestamp:      e.now(),
	}
}

// Portfolio returns the mirrored portfolio state.
func (e *LiveExecutor) Portfolio() *types.PortfolioState {
	return e.pm.State()
}

// PortfolioManager exposes the underlying ledger.
func (e *LiveExecutor) PortfolioManager() *portfolio.Manager {
	return e.pm
}
