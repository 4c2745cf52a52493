package reporting

import (
	"math"
	"time"

	"tradecore/internal/engine"
	"tradecore/pkg/types"
)

// Results summarizes one backtest run: balance movement, risk-adjusted
// metrics from the equity curve, and trade statistics from the fills.
type Results struct {
	Symbol   string
	Strategy string

	StartBalance     float64
	EndBalance       float64
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
	SortinoRatio     float64
	ProfitFactor     float64
	WinRate          float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	Fills       []types.Fill
	EquityCurve []engine.EquityPoint
}

// BuildResults computes the run summary from the engine's equity curve
// and fills. Trade statistics count position-reducing fills, where PnL
// is realized.
func BuildResults(symbol, strategyName string, fills []types.Fill, curve []engine.EquityPoint) *Results {
	r := &Results{
		Symbol:      symbol,
		Strategy:    strategyName,
		Fills:       fills,
		EquityCurve: curve,
	}

	if len(curve) > 0 {
		r.StartBalance = curve[0].Equity
		r.EndBalance = curve[len(curve)-1].Equity
		if r.StartBalance > 0 {
			r.TotalReturn = (r.EndBalance - r.StartBalance) / r.StartBalance
		}
	}

	r.MaxDrawdown = maxDrawdown(curve)
	r.SharpeRatio, r.SortinoRatio = ratios(curve)
	r.AnnualizedReturn = annualizedReturn(curve)
	r.tradeStats()

	return r
}

func (r *Results) tradeStats() {
	totalProfit := 0.0
	totalLoss := 0.0

	for _, f := range r.Fills {
		if f.Status != types.FillStatusFilled || f.Order.Side != types.SideSell {
			continue
		}
		r.TotalTrades++
		if f.PnL > 0 {
			r.WinningTrades++
			totalProfit += f.PnL
		} else {
			r.LosingTrades++
			totalLoss += math.Abs(f.PnL)
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	switch {
	case totalLoss > 0:
		r.ProfitFactor = totalProfit / totalLoss
	case totalProfit > 0:
		r.ProfitFactor = math.Inf(1)
	}
}

func maxDrawdown(curve []engine.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ratios computes the per-bar Sharpe and Sortino ratios from the equity
// curve's return series.
func ratios(curve []engine.EquityPoint) (sharpe, sortino float64) {
	returns := barReturns(curve)
	if len(returns) == 0 {
		return 0, 0
	}

	avg := 0.0
	for _, r := range returns {
		avg += r
	}
	avg /= float64(len(returns))

	variance := 0.0
	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		d := r - avg
		variance += d * d
		if r < 0 {
			downsideVariance += r * r
			downsideCount++
		}
	}
	variance /= float64(len(returns))

	if stdDev := math.Sqrt(variance); stdDev > 1e-10 {
		sharpe = avg / stdDev
	}
	if downsideCount > 0 {
		sortino = avg / math.Sqrt(downsideVariance/float64(downsideCount))
	} else if avg > 0 {
		sortino = math.Inf(1)
	}
	return sharpe, sortino
}

func annualizedReturn(curve []engine.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	first, last := curve[0], curve[len(curve)-1]
	years := last.Time.Sub(first.Time).Hours() / (24 * 365.25)
	if years <= 0 || first.Equity <= 0 {
		return 0
	}
	return math.Pow(last.Equity/first.Equity, 1.0/years) - 1.0
}

func barReturns(curve []engine.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Equity > 0 {
			returns = append(returns, (curve[i].Equity-curve[i-1].Equity)/curve[i-1].Equity)
		}
	}
	return returns
}

// Duration returns the wall-clock span of the run.
func (r *Results) Duration() time.Duration {
	if len(r.EquityCurve) < 2 {
		return 0
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Time.Sub(r.EquityCurve[0].Time)
}
