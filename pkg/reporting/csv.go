package reporting

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
)

// TradesHeader is the column set of WriteTradesCSV
var TradesHeader = []string{
	"Trade", "Symbol", "Entry Time", "Entry Price", "Exit Time", "Exit Price",
	"Quantity", "Profit", "Return %", "Exit Reason",
}

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes closed trades to path. A .xlsx path is delegated
// to the workbook writer.
func (r *DefaultCSVReporter) WriteTradesCSV(results *backtest.BacktestResults, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewDefaultExcelReporter().WriteWorkbook(results, nil, path)
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteTrades(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTrades encodes the trades of results as CSV
func (r *DefaultCSVReporter) WriteTrades(w io.Writer, results *backtest.BacktestResults) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradesHeader); err != nil {
		return err
	}
	if results != nil {
		for i, t := range results.Trades {
			if err := cw.Write([]string{
				strconv.Itoa(i + 1),
				t.Symbol,
				t.EntryTime.UTC().Format(time.RFC3339),
				strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
				t.ExitTime.UTC().Format(time.RFC3339),
				strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
				strconv.FormatFloat(t.Quantity, 'f', -1, 64),
				strconv.FormatFloat(t.Profit, 'f', 4, 64),
				strconv.FormatFloat(t.ReturnPct*100, 'f', 4, 64),
				t.ExitReason,
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes trades with the default CSV reporter
func WriteTradesCSV(results *backtest.BacktestResults, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(results, path)
}
