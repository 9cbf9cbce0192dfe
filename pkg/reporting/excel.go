package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
)

// Sheet names of the workbook
const (
	SummarySheet = "Summary"
	TradesSheet  = "Trades"
	TrialsSheet  = "Trials"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteWorkbook writes a Summary and a Trades sheet, plus a Trials sheet
// when optimization is not nil
func (r *DefaultExcelReporter) WriteWorkbook(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error {
	if results == nil {
		return fmt.Errorf("no results to report")
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), SummarySheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(TradesSheet); err != nil {
		return err
	}
	if optimization != nil {
		if _, err := fx.NewSheet(TrialsSheet); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, results, optimization, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, results, styles); err != nil {
		return err
	}
	if optimization != nil {
		if err := r.writeTrialsSheet(fx, optimization, styles); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thin := func(color string) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: color, Style: 1},
			{Type: "right", Color: color, Style: 1},
			{Type: "top", Color: color, Style: 1},
			{Type: "bottom", Color: color, Style: 1},
		}
	}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thin("000000"),
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: thin("E0E0E0")})
	if err != nil {
		return styles, err
	}

	customDate := "yyyy-mm-dd hh:mm"
	styles.DateStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &customDate, Border: thin("E0E0E0")})
	if err != nil {
		return styles, err
	}

	// 7: "$#,##0.00", 9: "0%", 10: "0.00%"
	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.GreenCurrency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "008000"},
		Border: thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.RedCurrency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "FF0000"},
		Border: thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryKeyStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Border: thin("E0E0E0"),
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, results *backtest.BacktestResults, optimization *backtest.OptimizationResult, styles ExcelStyles) error {
	type row struct {
		key   string
		value interface{}
		style int
	}
	rows := []row{
		{"Symbol", results.Symbol, styles.BaseStyle},
		{"Start", results.StartTime, styles.DateStyle},
		{"End", results.EndTime, styles.DateStyle},
		{"Bars", results.Bars, styles.BaseStyle},
		{"First Decision Bar", results.StartIndex, styles.BaseStyle},
		{"Profit Threshold", results.Params.ProfitThreshold, styles.PercentStyle},
		{"Trailing Stop", results.Params.TrailingStop, styles.PercentStyle},
		{"ML Gate", onOff(results.MLGateActive), styles.BaseStyle},
		{"Total Profit", results.TotalProfit, styles.CurrencyStyle},
		{"Max Drawdown", results.MaxDrawdown, styles.PercentStyle},
		{"Sharpe Ratio", results.SharpeRatio, styles.BaseStyle},
		{"Profit Factor", formatRatio(results.ProfitFactor), styles.BaseStyle},
		{"Total Trades", results.TotalTrades, styles.BaseStyle},
		{"Winning Trades", results.WinningTrades, styles.BaseStyle},
		{"Losing Trades", results.LosingTrades, styles.BaseStyle},
		{"Win Rate", results.WinRate / 100, styles.PercentStyle},
		{"Gross Profit", results.GrossProfit, styles.CurrencyStyle},
		{"Gross Loss", results.GrossLoss, styles.CurrencyStyle},
	}
	if optimization != nil {
		rows = append(rows,
			row{"Optimizer Best Objective", optimization.BestObjective, styles.CurrencyStyle},
			row{"Optimizer Trials", len(optimization.Trials), styles.BaseStyle},
			row{"Optimizer Seed", optimization.Seed, styles.BaseStyle},
		)
	}

	if err := r.writeHeader(fx, SummarySheet, []string{"Metric", "Value"}, styles); err != nil {
		return err
	}
	for i, rw := range rows {
		rowNum := i + 2
		keyCell, _ := excelize.CoordinatesToCellName(1, rowNum)
		valCell, _ := excelize.CoordinatesToCellName(2, rowNum)
		if err := fx.SetCellValue(SummarySheet, keyCell, rw.key); err != nil {
			return err
		}
		if err := fx.SetCellValue(SummarySheet, valCell, rw.value); err != nil {
			return err
		}
		_ = fx.SetCellStyle(SummarySheet, keyCell, keyCell, styles.SummaryKeyStyle)
		_ = fx.SetCellStyle(SummarySheet, valCell, valCell, rw.style)
	}
	_ = fx.SetColWidth(SummarySheet, "A", "A", 26)
	_ = fx.SetColWidth(SummarySheet, "B", "B", 22)
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, results *backtest.BacktestResults, styles ExcelStyles) error {
	if err := r.writeHeader(fx, TradesSheet, TradesHeader, styles); err != nil {
		return err
	}
	for i, t := range results.Trades {
		profitStyle := styles.GreenCurrency
		if t.Profit <= 0 {
			profitStyle = styles.RedCurrency
		}
		values := []interface{}{
			i + 1, t.Symbol, t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice,
			t.Quantity, t.Profit, t.ReturnPct, t.ExitReason,
		}
		cellStyles := []int{
			styles.BaseStyle, styles.BaseStyle, styles.DateStyle, styles.CurrencyStyle, styles.DateStyle,
			styles.CurrencyStyle, styles.BaseStyle, profitStyle, styles.PercentStyle, styles.BaseStyle,
		}
		if err := r.writeRow(fx, TradesSheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}

	_ = fx.SetColWidth(TradesSheet, "A", "B", 10)
	_ = fx.SetColWidth(TradesSheet, "C", "F", 18)
	_ = fx.SetColWidth(TradesSheet, "G", "I", 14)
	_ = fx.SetColWidth(TradesSheet, "J", "J", 28)
	return fx.SetPanes(TradesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (r *DefaultExcelReporter) writeTrialsSheet(fx *excelize.File, optimization *backtest.OptimizationResult, styles ExcelStyles) error {
	header := []string{"Iteration", "Phase", "Profit Threshold", "Trailing Stop", "Objective"}
	if err := r.writeHeader(fx, TrialsSheet, header, styles); err != nil {
		return err
	}
	for i, t := range optimization.Trials {
		values := []interface{}{t.Iteration, t.Phase, t.Params.ProfitThreshold, t.Params.TrailingStop, t.Objective}
		cellStyles := []int{styles.BaseStyle, styles.BaseStyle, styles.PercentStyle, styles.PercentStyle, styles.CurrencyStyle}
		if err := r.writeRow(fx, TrialsSheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}
	_ = fx.SetColWidth(TrialsSheet, "A", "E", 18)
	return nil
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, header []string, styles ExcelStyles) error {
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	return fx.SetCellStyle(sheet, first, last, styles.HeaderStyle)
}

func (r *DefaultExcelReporter) writeRow(fx *excelize.File, sheet string, row int, values []interface{}, cellStyles []int) error {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if col < len(cellStyles) {
			_ = fx.SetCellStyle(sheet, cell, cell, cellStyles[col])
		}
	}
	return nil
}

// WriteWorkbook writes a workbook with the default Excel reporter
func WriteWorkbook(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error {
	return NewDefaultExcelReporter().WriteWorkbook(results, optimization, path)
}
