// Package reporting renders backtest and optimization results to the
// console, CSV, Excel and JSON.
package reporting

import (
	"io"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
)

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(w io.Writer, results *backtest.BacktestResults)
	OutputOptimization(w io.Writer, result *backtest.OptimizationResult, top int)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(results *backtest.BacktestResults, path string) error
	WriteWorkbook(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error
	WriteReportJSON(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle     int
	CurrencyStyle   int
	PercentStyle    int
	BaseStyle       int
	RedCurrency     int
	GreenCurrency   int
	DateStyle       int
	SummaryKeyStyle int
}
