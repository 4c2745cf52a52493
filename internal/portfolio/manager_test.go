package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/pkg/types"
)

func newTestManager() *Manager {
	return NewManager(Config{
		InitialCash:    100000.0,
		MaxDrawdownPct: 0.20,
		MaxDailyLoss:   0.05,
		MaxPositionPct: 0.50,
	})
}

func TestManager_BuyOpensPosition(t *testing.T) {
	m := newTestManager()

	ok := m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy)
	require.True(t, ok)

	pos := m.State().Position("BTCUSDT")
	require.NotNil(t, pos)
	assert.Equal(t, 10.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgPrice)
	assert.Equal(t, 99000.0, m.State().Cash)
	assert.InDelta(t, 100000.0, m.State().Equity, 1e-9, "buying at market keeps equity flat")
}

func TestManager_WeightedAverageCost(t *testing.T) {
	m := newTestManager()

	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 120.0, types.SideBuy))

	pos := m.State().Position("BTCUSDT")
	assert.Equal(t, 20.0, pos.Quantity)
	assert.InDelta(t, 110.0, pos.AvgPrice, 1e-9)
}

func TestManager_SellRealizesPnL(t *testing.T) {
	m := newTestManager()

	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	pnl, ok := m.ApplyTrade("BTCUSDT", 4, 110.0, types.SideSell)
	require.True(t, ok)

	assert.InDelta(t, 40.0, pnl, 1e-9) // (110-100)*4
	assert.InDelta(t, 40.0, m.RealizedPnL(), 1e-9)
	assert.Equal(t, 6.0, m.State().Position("BTCUSDT").Quantity)
}

// Realized P&L on a reduction is capped at the existing quantity: an
// oversell flips the position, realizing only the held amount.
func TestManager_OversellCapsRealizedAtHeld(t *testing.T) {
	m := newTestManager()

	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	pnl, ok := m.ApplyTrade("BTCUSDT", 15, 110.0, types.SideSell)
	require.True(t, ok)

	assert.InDelta(t, 100.0, pnl, 1e-9) // (110-100)*10, not *15
	pos := m.State().Position("BTCUSDT")
	require.NotNil(t, pos)
	assert.Equal(t, -5.0, pos.Quantity)
	assert.Equal(t, 110.0, pos.AvgPrice, "flipped position carries the flip price")
}

func TestManager_FullCloseRemovesPosition(t *testing.T) {
	m := newTestManager()

	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 90.0, types.SideSell))

	assert.Nil(t, m.State().Position("BTCUSDT"))
	assert.InDelta(t, -100.0, m.RealizedPnL(), 1e-9)
	assert.Equal(t, 0, m.State().OpenPositions())
}

func TestManager_ShortCoverRealizesPnL(t *testing.T) {
	m := newTestManager()

	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideSell))
	pnl, ok := m.ApplyTrade("BTCUSDT", 10, 90.0, types.SideBuy)
	require.True(t, ok)

	assert.InDelta(t, 100.0, pnl, 1e-9) // (100-90)*10
	assert.Nil(t, m.State().Position("BTCUSDT"))
}

// The position cap check runs before the fill is applied: a breaching
// trade is refused and the ledger stays untouched.
func TestManager_PreTradePositionCap(t *testing.T) {
	m := NewManager(Config{
		InitialCash:    100000.0,
		MaxPositionPct: 0.10,
	})

	ok := m.UpdatePosition("BTCUSDT", 150, 100.0, types.SideBuy) // 15% of equity
	assert.False(t, ok)
	assert.Nil(t, m.State().Position("BTCUSDT"))
	assert.Equal(t, 100000.0, m.State().Cash)

	// A conforming trade passes, and reductions always pass.
	require.True(t, m.UpdatePosition("BTCUSDT", 100, 100.0, types.SideBuy))
	require.True(t, m.UpdatePosition("BTCUSDT", 50, 100.0, types.SideSell))
}

func TestManager_UpdatePricesRecomputesUnrealized(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))

	m.UpdatePrices(map[string]float64{"BTCUSDT": 120.0})

	pos := m.State().Position("BTCUSDT")
	assert.Equal(t, 120.0, pos.CurrentPrice)
	assert.InDelta(t, 200.0, pos.UnrealizedPnL(), 1e-9)
	assert.InDelta(t, 100200.0, m.State().Equity, 1e-9)
	assert.InDelta(t, 100200.0, m.CalculatePortfolioValue(), 1e-9)
}

func TestManager_DailyRollover(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	m.UpdatePrices(map[string]float64{"BTCUSDT": 90.0})
	assert.InDelta(t, -100.0, m.State().DailyPnL, 1e-9)

	m.StartNewDay(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 0.0, m.State().DailyPnL)
	assert.InDelta(t, 99900.0, m.State().DailyStartEquity, 1e-9)
}

func TestManager_CheckRiskLimits(t *testing.T) {
	m := NewManager(Config{
		InitialCash:    100000.0,
		MaxDrawdownPct: 0.10,
		MaxDailyLoss:   0.05,
		MaxPositionPct: 0.50,
	})

	status := m.CheckRiskLimits()
	assert.True(t, status.OverallOK)

	// Push equity down 12% from peak: drawdown and daily loss trip.
	require.True(t, m.UpdatePosition("BTCUSDT", 400, 100.0, types.SideBuy))
	m.UpdatePrices(map[string]float64{"BTCUSDT": 70.0})

	status = m.CheckRiskLimits()
	assert.False(t, status.DrawdownOK)
	assert.False(t, status.DailyLossOK)
	assert.False(t, status.OverallOK)

	// Idempotent with no intervening trades.
	assert.Equal(t, status, m.CheckRiskLimits())
}

func TestManager_RiskMetrics(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("BTCUSDT", 100, 100.0, types.SideBuy)) // 10k
	require.True(t, m.UpdatePosition("ETHUSDT", 300, 100.0, types.SideBuy)) // 30k

	metrics := m.GetRiskMetrics()

	assert.InDelta(t, 0.25, metrics.Concentrations["BTCUSDT"], 1e-9)
	assert.InDelta(t, 0.75, metrics.Concentrations["ETHUSDT"], 1e-9)
	assert.InDelta(t, 0.25*0.25+0.75*0.75, metrics.HerfindahlIndex, 1e-9)
	assert.InDelta(t, 40000.0, metrics.Exposure, 1e-9)
	assert.InDelta(t, 0.4, metrics.Leverage, 1e-9)

	// Too little history: parametric fallback, VaR99 > VaR95 > 0.
	assert.Greater(t, metrics.VaR95, 0.0)
	assert.Greater(t, metrics.VaR99, metrics.VaR95)
}

func TestManager_HistoricalVaR(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))

	// Feed enough alternating price moves to switch to historical
	// simulation.
	price := 100.0
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			price *= 0.999
		} else {
			price *= 1.001
		}
		m.UpdatePrices(map[string]float64{"BTCUSDT": price})
	}

	metrics := m.GetRiskMetrics()
	assert.Greater(t, metrics.VaR95, 0.0)
	assert.Less(t, metrics.VaR95, m.State().Equity*0.01,
		"historical VaR on tiny moves must be far below the parametric fallback")
}

func TestManager_PositionSummarySorted(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("ETHUSDT", 1, 100.0, types.SideBuy))
	require.True(t, m.UpdatePosition("BTCUSDT", 1, 100.0, types.SideBuy))

	rows := m.GetPositionSummary()
	require.Len(t, rows, 2)
	assert.Equal(t, "BTCUSDT", rows[0].Symbol)
	assert.Equal(t, "ETHUSDT", rows[1].Symbol)
}

func TestManager_GetPortfolioSummary(t *testing.T) {
	m := newTestManager()
	require.True(t, m.UpdatePosition("BTCUSDT", 10, 100.0, types.SideBuy))
	m.UpdatePrices(map[string]float64{"BTCUSDT": 110.0})

	s := m.GetPortfolioSummary()
	assert.InDelta(t, 100100.0, s.Equity, 1e-9)
	assert.InDelta(t, 99000.0, s.Cash, 1e-9)
	assert.InDelta(t, 1100.0, s.Exposure, 1e-9)
	assert.InDelta(t, 100.0, s.UnrealizedPnL, 1e-9)
	assert.Equal(t, 1, s.OpenPositions)
}

func TestManager_Debit(t *testing.T) {
	m := newTestManager()
	m.Debit(25.0)
	assert.Equal(t, 99975.0, m.State().Cash)
	m.Debit(-5) // ignored
	assert.Equal(t, 99975.0, m.State().Cash)
}
