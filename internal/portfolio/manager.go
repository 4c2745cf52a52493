package portfolio

import (
	"math"
	"time"

	"tradecore/pkg/types"
)

// Config holds the limits the portfolio manager reports against.
type Config struct {
	InitialCash    float64 `json:"initial_cash"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	MaxDailyLoss   float64 `json:"max_daily_loss"`
	MaxPositionPct float64 `json:"max_position_pct"`
}

// DefaultConfig returns the default portfolio limits.
func DefaultConfig() Config {
	return Config{
		InitialCash:    10000.0,
		MaxDrawdownPct: 0.20,
		MaxDailyLoss:   0.05,
		MaxPositionPct: 0.10,
	}
}

const epsilon = 1e-9

// Manager owns the position ledger and the account bookkeeping derived
// from it: realized and unrealized P&L, drawdown, daily-loss tracking
// and the return series behind the VaR estimate.
//
// The manager is driven from the single engine goroutine; it holds no
// locks.
type Manager struct {
	config Config
	state  *types.PortfolioState

	realizedPnL float64
	peakEquity  float64

	// Daily equity returns recorded on price updates, for the
	// historical-simulation VaR estimate.
	returns    []float64
	lastEquity float64
	currentDay time.Time
}

// NewManager creates a portfolio manager with the configured starting
// cash.
func NewManager(config Config) *Manager {
	if config.InitialCash <= 0 {
		config.InitialCash = DefaultConfig().InitialCash
	}
	return &Manager{
		config:     config,
		state:      types.NewPortfolioState(config.InitialCash),
		peakEquity: config.InitialCash,
		lastEquity: config.InitialCash,
	}
}

// State returns the live portfolio snapshot. Callers treat it as
// read-only; only fills and price updates mutate it.
func (m *Manager) State() *types.PortfolioState { return m.state }

// UpdatePosition applies a trade to the ledger. It returns false, and
// applies nothing, when the trade would push the symbol's notional past
// the position cap: the check runs before the fill, never after.
func (m *Manager) UpdatePosition(symbol string, quantity, price float64, side types.OrderSide) bool {
	_, ok := m.ApplyTrade(symbol, quantity, price, side)
	return ok
}

// ApplyTrade is UpdatePosition plus the realized P&L of the trade,
// needed by execution collaborators building fill records.
func (m *Manager) ApplyTrade(symbol string, quantity, price float64, side types.OrderSide) (float64, bool) {
	if quantity <= 0 || price <= 0 {
		return 0, false
	}
	if !m.positionSizeAllows(symbol, quantity, price, side) {
		return 0, false
	}

	pos, ok := m.state.Positions[symbol]
	if !ok {
		pos = &types.PortfolioPosition{Symbol: symbol, CurrentPrice: price}
		m.state.Positions[symbol] = pos
	}
	pos.CurrentPrice = price

	realized := 0.0
	if side == types.SideBuy {
		if pos.Quantity >= 0 {
			// Adding to (or opening) a long: weighted-average cost.
			total := pos.Quantity + quantity
			pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*quantity) / total
			pos.Quantity = total
		} else {
			// Covering a short realizes P&L on the covered amount.
			covered := math.Min(-pos.Quantity, quantity)
			realized = (pos.AvgPrice - price) * covered
			pos.Quantity += quantity
			if pos.Quantity > 0 {
				pos.AvgPrice = price
			}
		}
		m.state.Cash -= quantity * price
	} else {
		if pos.Quantity > 0 {
			closed := math.Min(pos.Quantity, quantity)
			realized = (price - pos.AvgPrice) * closed
			pos.Quantity -= quantity
			if pos.Quantity < 0 {
				pos.AvgPrice = price
			}
		} else {
			// Adding to (or opening) a short.
			total := pos.Quantity - quantity
			pos.AvgPrice = (pos.AvgPrice*-pos.Quantity + price*quantity) / -total
			pos.Quantity = total
		}
		m.state.Cash += quantity * price
	}

	if math.Abs(pos.Quantity) < epsilon {
		delete(m.state.Positions, symbol)
	}

	m.realizedPnL += realized
	m.recalculate()
	return realized, true
}

// Debit removes cash from the account, e.g. for commission. The
// amount must be non-negative.
func (m *Manager) Debit(amount float64) {
	if amount > 0 {
		m.state.Cash -= amount
		m.recalculate()
	}
}

// UpdatePrices marks all positions to the latest prices and refreshes
// the derived account figures.
func (m *Manager) UpdatePrices(prices map[string]float64) {
	for symbol, price := range prices {
		if pos, ok := m.state.Positions[symbol]; ok && price > 0 {
			pos.CurrentPrice = price
		}
	}
	m.recalculate()
	m.recordReturn()
}

// CalculatePortfolioValue returns cash plus the market value of all
// positions.
func (m *Manager) CalculatePortfolioValue() float64 {
	value := m.state.Cash
	for _, pos := range m.state.Positions {
		value += pos.MarketValue()
	}
	return value
}

// RealizedPnL returns the cumulative realized P&L since start.
func (m *Manager) RealizedPnL() float64 { return m.realizedPnL }

// UnrealizedPnL returns the open P&L across all positions.
func (m *Manager) UnrealizedPnL() float64 {
	total := 0.0
	for _, pos := range m.state.Positions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// Drawdown returns the decline from peak equity as a fraction of the
// peak.
func (m *Manager) Drawdown() float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	return (m.peakEquity - m.state.Equity) / m.peakEquity
}

// StartNewDay rolls the daily-loss bookkeeping over to a new trading
// day. Called by the engine when the bar date changes.
func (m *Manager) StartNewDay(day time.Time) {
	m.currentDay = day.Truncate(24 * time.Hour)
	m.state.DailyStartEquity = m.state.Equity
	m.state.DailyPnL = 0
}

// CurrentDay returns the trading day of the last StartNewDay call.
func (m *Manager) CurrentDay() time.Time { return m.currentDay }

// positionSizeAllows is the pre-trade position cap check: a trade that
// would breach the cap is refused rather than reversed.
func (m *Manager) positionSizeAllows(symbol string, quantity, price float64, side types.OrderSide) bool {
	if m.config.MaxPositionPct <= 0 || m.state.Equity <= 0 {
		return true
	}

	held := m.state.PositionQuantity(symbol)
	after := held + quantity
	if side == types.SideSell {
		after = held - quantity
	}

	afterNotional := math.Abs(after) * price
	currentNotional := math.Abs(held) * price
	if afterNotional < currentNotional {
		return true
	}
	return afterNotional/m.state.Equity <= m.config.MaxPositionPct+epsilon
}

// recalculate refreshes equity, exposure-derived figures and the peak.
func (m *Manager) recalculate() {
	m.state.Equity = m.CalculatePortfolioValue()
	if m.state.Equity > m.peakEquity {
		m.peakEquity = m.state.Equity
	}
	if m.state.DailyStartEquity > 0 {
		m.state.DailyPnL = m.state.Equity - m.state.DailyStartEquity
	}
}

// recordReturn appends the equity return since the previous price
// update to the series used for VaR.
func (m *Manager) recordReturn() {
	if m.lastEquity > 0 {
		m.returns = append(m.returns, m.state.Equity/m.lastEquity-1)
		if len(m.returns) > maxReturnHistory {
			m.returns = m.returns[len(m.returns)-maxReturnHistory:]
		}
	}
	m.lastEquity = m.state.Equity
}
