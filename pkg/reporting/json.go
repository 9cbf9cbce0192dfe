package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// Report is the JSON document written by WriteReportJSON. Non-finite
// ratios are encoded as null.
type Report struct {
	Symbol       string           `json:"symbol"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Params       strategy.Params  `json:"params"`
	MLGateActive bool             `json:"ml_gate_active"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Bars         int              `json:"bars"`
	StartIndex   int              `json:"start_index"`
	Summary      ReportSummary    `json:"summary"`
	Trades       []ReportTrade    `json:"trades"`
	OpenPosition *ReportPosition  `json:"open_position,omitempty"`
	Optimization *ReportOptimizer `json:"optimization,omitempty"`
}

// ReportSummary mirrors backtest.Summary with JSON-safe ratios
type ReportSummary struct {
	TotalProfit   float64  `json:"total_profit"`
	MaxDrawdown   float64  `json:"max_drawdown"`
	SharpeRatio   *float64 `json:"sharpe_ratio"`
	TotalTrades   int      `json:"total_trades"`
	WinningTrades int      `json:"winning_trades"`
	LosingTrades  int      `json:"losing_trades"`
	WinRate       float64  `json:"win_rate"`
	ProfitFactor  *float64 `json:"profit_factor"`
	GrossProfit   float64  `json:"gross_profit"`
	GrossLoss     float64  `json:"gross_loss"`
}

// ReportTrade is one closed trade
type ReportTrade struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	Profit     float64   `json:"profit"`
	ReturnPct  float64   `json:"return_pct"`
	ExitReason string    `json:"exit_reason"`
}

// ReportPosition is the position still held at the last bar; it is not
// part of the summary figures
type ReportPosition struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
}

// ReportOptimizer is the optimizer section of a Report
type ReportOptimizer struct {
	BestParams    strategy.Params  `json:"best_params"`
	BestObjective float64          `json:"best_objective"`
	Seed          int64            `json:"seed"`
	Duration      string           `json:"duration"`
	Trials        []backtest.Trial `json:"trials"`
}

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct {
	now func() time.Time
}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{now: time.Now}
}

// BuildReport converts results and an optional optimization into a Report
func (f *DefaultJSONFormatter) BuildReport(results *backtest.BacktestResults, optimization *backtest.OptimizationResult) (*Report, error) {
	if results == nil {
		return nil, fmt.Errorf("no results to report")
	}

	report := &Report{
		Symbol:       results.Symbol,
		GeneratedAt:  f.now().UTC(),
		Params:       results.Params,
		MLGateActive: results.MLGateActive,
		StartTime:    results.StartTime,
		EndTime:      results.EndTime,
		Bars:         results.Bars,
		StartIndex:   results.StartIndex,
		Summary: ReportSummary{
			TotalProfit:   results.TotalProfit,
			MaxDrawdown:   results.MaxDrawdown,
			SharpeRatio:   finite(results.SharpeRatio),
			TotalTrades:   results.TotalTrades,
			WinningTrades: results.WinningTrades,
			LosingTrades:  results.LosingTrades,
			WinRate:       results.WinRate,
			ProfitFactor:  finite(results.ProfitFactor),
			GrossProfit:   results.GrossProfit,
			GrossLoss:     results.GrossLoss,
		},
		Trades: make([]ReportTrade, 0, len(results.Trades)),
	}
	for _, t := range results.Trades {
		report.Trades = append(report.Trades, ReportTrade{
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			Profit:     t.Profit,
			ReturnPct:  t.ReturnPct,
			ExitReason: t.ExitReason,
		})
	}
	if pos := results.OpenPosition; pos != nil && pos.IsOpen() {
		report.OpenPosition = &ReportPosition{
			EntryTime:  pos.EntryTime,
			EntryPrice: pos.EntryPrice,
			Quantity:   pos.Quantity,
		}
	}
	if optimization != nil {
		report.Optimization = &ReportOptimizer{
			BestParams:    optimization.BestParams,
			BestObjective: optimization.BestObjective,
			Seed:          optimization.Seed,
			Duration:      optimization.Duration.String(),
			Trials:        optimization.Trials,
		}
	}
	return report, nil
}

// WriteReportJSON writes the indented Report to path
func (f *DefaultJSONFormatter) WriteReportJSON(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error {
	report, err := f.BuildReport(results, optimization)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteBestParamsJSON writes the best parameters in the params file format
// accepted by the bot configuration
func WriteBestParamsJSON(params strategy.Params, path string) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteReportJSON writes a report with the default JSON formatter
func WriteReportJSON(results *backtest.BacktestResults, optimization *backtest.OptimizationResult, path string) error {
	return NewDefaultJSONFormatter().WriteReportJSON(results, optimization, path)
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
