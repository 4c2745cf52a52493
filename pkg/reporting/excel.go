package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter writes run results to a workbook: a summary sheet, the
// fill log and the equity curve.
type ExcelReporter struct{}

// NewExcelReporter creates an Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteResults writes the workbook to path, creating directories as
// needed.
func (r *ExcelReporter) WriteResults(results *Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const fillsSheet = "Fills"
	const equitySheet = "Equity Curve"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if _, err := fx.NewSheet(fillsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, results); err != nil {
		return err
	}
	if err := r.writeFillsSheet(fx, fillsSheet, results); err != nil {
		return err
	}
	if err := r.writeEquitySheet(fx, equitySheet, results); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, results *Results) error {
	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Symbol", results.Symbol},
		{"Strategy", results.Strategy},
		{"Initial Balance", results.StartBalance},
		{"Final Balance", results.EndBalance},
		{"Total Return %", results.TotalReturn * 100},
		{"Annualized Return %", results.AnnualizedReturn * 100},
		{"Max Drawdown %", results.MaxDrawdown * 100},
		{"Sharpe Ratio", results.SharpeRatio},
		{"Sortino Ratio", results.SortinoRatio},
		{"Profit Factor", results.ProfitFactor},
		{"Total Trades", results.TotalTrades},
		{"Winning Trades", results.WinningTrades},
		{"Losing Trades", results.LosingTrades},
		{"Win Rate %", results.WinRate},
	}

	for i, row := range rows {
		keyCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, keyCell, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valueCell, row[1]); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, keyCell, keyCell, headerStyle); err != nil {
			return err
		}
	}

	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func (r *ExcelReporter) writeFillsSheet(fx *excelize.File, sheet string, results *Results) error {
	headers := []string{"Timestamp", "Symbol", "Side", "Quantity", "Price", "PnL", "Status", "Reason", "Strategy"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, f := range results.Fills {
		values := []interface{}{
			f.Timestamp.Format("2006-01-02 15:04:05"),
			f.Order.Symbol,
			f.Order.Side.String(),
			f.FilledQuantity,
			f.FillPrice,
			f.PnL,
			f.Status.String(),
			f.Reason,
			f.Order.StrategyName,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "I", 12)
	return nil
}

func (r *ExcelReporter) writeEquitySheet(fx *excelize.File, sheet string, results *Results) error {
	for i, h := range []string{"Timestamp", "Equity"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, p := range results.EquityCurve {
		timeCell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		equityCell, err := excelize.CoordinatesToCellName(2, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, timeCell, p.Time.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, equityCell, p.Equity); err != nil {
			return err
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "B", 14)
	return nil
}
