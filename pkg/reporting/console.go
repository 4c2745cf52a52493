package reporting

import (
	"fmt"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tradecore/pkg/types"
)

// ConsoleReporter renders run results as terminal tables.
type ConsoleReporter struct{}

// NewConsoleReporter creates a console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintResults renders the backtest summary table.
func (r *ConsoleReporter) PrintResults(results *Results) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BACKTEST RESULTS - %s", results.Symbol)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", results.StartBalance)},
		{"💰 Final Balance", fmt.Sprintf("$%.2f", results.EndBalance)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", results.TotalReturn*100)},
		{"📈 Annualized Return", fmt.Sprintf("%.2f%%", results.AnnualizedReturn*100)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", results.MaxDrawdown*100)},
		{"📊 Sharpe Ratio", fmt.Sprintf("%.3f", results.SharpeRatio)},
		{"📊 Sortino Ratio", formatRatio(results.SortinoRatio)},
		{"💹 Profit Factor", formatRatio(results.ProfitFactor)},
		{"🔄 Total Trades", fmt.Sprintf("%d", results.TotalTrades)},
		{"✅ Winning Trades", fmt.Sprintf("%d (%.1f%%)", results.WinningTrades, results.WinRate)},
		{"❌ Losing Trades", fmt.Sprintf("%d", results.LosingTrades)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 18, WidthMax: 25, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

// PrintFills renders the fill log, protective exits flagged by reason.
func (r *ConsoleReporter) PrintFills(results *Results) {
	if len(results.Fills) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("FILLS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Side", "Qty", "Price", "PnL", "Status", "Reason"})

	for _, f := range results.Fills {
		t.AppendRow(table.Row{
			f.Timestamp.Format("2006-01-02 15:04"),
			f.Order.Side.String(),
			fmt.Sprintf("%.6f", f.FilledQuantity),
			fmt.Sprintf("%.2f", f.FillPrice),
			fmt.Sprintf("%.2f", f.PnL),
			f.Status.String(),
			f.Reason,
		})
	}

	t.Render()
	fmt.Println()
}

// PrintRejections renders only the rejected fills, for a quick view of
// what the admission layer and venue refused.
func (r *ConsoleReporter) PrintRejections(results *Results) {
	var rejected []types.Fill
	for _, f := range results.Fills {
		if f.Status == types.FillStatusRejected {
			rejected = append(rejected, f)
		}
	}
	if len(rejected) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("REJECTED ORDERS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Side", "Qty", "Reason"})
	for _, f := range rejected {
		t.AppendRow(table.Row{
			f.Timestamp.Format("2006-01-02 15:04"),
			f.Order.Side.String(),
			fmt.Sprintf("%.6f", f.Order.Quantity),
			f.Reason,
		})
	}
	t.Render()
	fmt.Println()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.3f", v)
}
