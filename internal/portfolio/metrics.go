package portfolio

import (
	"math"
	"sort"
)

// maxReturnHistory bounds the return series kept for VaR.
const maxReturnHistory = 2520 // ~10 trading years of daily bars

// minimum observations before the historical VaR is trusted over the
// parametric fallback
const minVaRObservations = 30

// fallbackDailyVol is the volatility assumption used until enough
// returns have been observed.
const fallbackDailyVol = 0.02

// RiskLimitStatus is the idempotent risk-limit snapshot exposed to
// dashboards and reports.
type RiskLimitStatus struct {
	DrawdownOK      bool
	DailyLossOK     bool
	PositionSizesOK bool
	OverallOK       bool
}

// PositionSummary is one row of the position report.
type PositionSummary struct {
	Symbol        string
	Quantity      float64
	AvgPrice      float64
	CurrentPrice  float64
	MarketValue   float64
	UnrealizedPnL float64
}

// Summary is the account-level report.
type Summary struct {
	Equity        float64
	Cash          float64
	Exposure      float64
	RealizedPnL   float64
	UnrealizedPnL float64
	DailyPnL      float64
	Drawdown      float64
	OpenPositions int
}

// RiskMetrics carries the portfolio risk figures: VaR estimates,
// concentration per symbol and the Herfindahl concentration index.
type RiskMetrics struct {
	VaR95           float64
	VaR99           float64
	HerfindahlIndex float64
	Concentrations  map[string]float64
	Exposure        float64
	Leverage        float64
}

// CheckRiskLimits reports whether drawdown, daily loss and per-position
// sizes are inside their limits. Calling it twice with no intervening
// trades returns identical results.
func (m *Manager) CheckRiskLimits() RiskLimitStatus {
	status := RiskLimitStatus{
		DrawdownOK:      true,
		DailyLossOK:     true,
		PositionSizesOK: true,
	}

	if m.config.MaxDrawdownPct > 0 && m.Drawdown() >= m.config.MaxDrawdownPct {
		status.DrawdownOK = false
	}

	if m.config.MaxDailyLoss > 0 && m.state.DailyStartEquity > 0 {
		if m.state.DailyPnL/m.state.DailyStartEquity < -m.config.MaxDailyLoss {
			status.DailyLossOK = false
		}
	}

	if m.config.MaxPositionPct > 0 && m.state.Equity > 0 {
		for _, pos := range m.state.Positions {
			if math.Abs(pos.MarketValue())/m.state.Equity > m.config.MaxPositionPct+epsilon {
				status.PositionSizesOK = false
				break
			}
		}
	}

	status.OverallOK = status.DrawdownOK && status.DailyLossOK && status.PositionSizesOK
	return status
}

// GetPositionSummary returns one row per open position.
func (m *Manager) GetPositionSummary() []PositionSummary {
	rows := make([]PositionSummary, 0, len(m.state.Positions))
	for _, pos := range m.state.Positions {
		rows = append(rows, PositionSummary{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgPrice:      pos.AvgPrice,
			CurrentPrice:  pos.CurrentPrice,
			MarketValue:   pos.MarketValue(),
			UnrealizedPnL: pos.UnrealizedPnL(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// GetPortfolioSummary returns the account-level report.
func (m *Manager) GetPortfolioSummary() Summary {
	return Summary{
		Equity:        m.state.Equity,
		Cash:          m.state.Cash,
		Exposure:      m.state.Exposure(),
		RealizedPnL:   m.realizedPnL,
		UnrealizedPnL: m.UnrealizedPnL(),
		DailyPnL:      m.state.DailyPnL,
		Drawdown:      m.Drawdown(),
		OpenPositions: m.state.OpenPositions(),
	}
}

// GetRiskMetrics computes VaR, concentration per symbol and the
// Herfindahl index from the current ledger.
func (m *Manager) GetRiskMetrics() RiskMetrics {
	exposure := m.state.Exposure()

	concentrations := make(map[string]float64, len(m.state.Positions))
	herfindahl := 0.0
	if exposure > 0 {
		for symbol, pos := range m.state.Positions {
			w := math.Abs(pos.MarketValue()) / exposure
			concentrations[symbol] = w
			herfindahl += w * w
		}
	}

	leverage := 0.0
	if m.state.Equity > 0 {
		leverage = exposure / m.state.Equity
	}

	return RiskMetrics{
		VaR95:           m.valueAtRisk(0.95),
		VaR99:           m.valueAtRisk(0.99),
		HerfindahlIndex: herfindahl,
		Concentrations:  concentrations,
		Exposure:        exposure,
		Leverage:        leverage,
	}
}

// valueAtRisk estimates the one-period loss threshold at the given
// confidence via historical simulation over the recorded equity
// returns, with a parametric normal fallback while the series is
// short. Reported as a positive dollar amount.
func (m *Manager) valueAtRisk(confidence float64) float64 {
	equity := m.state.Equity
	if equity <= 0 {
		return 0
	}

	if len(m.returns) < minVaRObservations {
		return zScore(confidence) * fallbackDailyVol * equity
	}

	sorted := make([]float64, len(m.returns))
	copy(sorted, m.returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	loss := -sorted[idx]
	if loss < 0 {
		loss = 0
	}
	return loss * equity
}

// zScore returns the one-tailed normal quantile for the confidence
// levels the manager reports.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	case confidence >= 0.95:
		return 1.645
	default:
		return 1.282
	}
}
