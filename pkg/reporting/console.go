package reporting

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
)

// DefaultConsoleReporter implements console output functionality
type DefaultConsoleReporter struct{}

// NewDefaultConsoleReporter creates a new console reporter
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{}
}

// OutputResults prints the summary table followed by the trade list
func (r *DefaultConsoleReporter) OutputResults(w io.Writer, results *backtest.BacktestResults) {
	if results == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("📊 BACKTEST RESULTS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Symbol", results.Symbol},
		{"📅 Period", formatPeriod(results.StartTime, results.EndTime)},
		{"🕯️ Bars", fmt.Sprintf("%d (decisions from #%d)", results.Bars, results.StartIndex)},
		{"🔧 Params", fmt.Sprintf("profit %.2f%% / trailing %.2f%%",
			results.Params.ProfitThreshold*100, results.Params.TrailingStop*100)},
		{"🤖 ML Gate", onOff(results.MLGateActive)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Total Profit", fmt.Sprintf("$%.2f", results.TotalProfit)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", results.MaxDrawdown*100)},
		{"📊 Sharpe Ratio", fmt.Sprintf("%.3f", results.SharpeRatio)},
		{"💹 Profit Factor", formatRatio(results.ProfitFactor)},
		{"🔄 Trades", fmt.Sprintf("%d (%d entries / %d exits)", results.TotalTrades, results.Entries, results.Exits)},
		{"✅ Winning", fmt.Sprintf("%d (%.1f%%)", results.WinningTrades, results.WinRate)},
		{"❌ Losing", results.LosingTrades},
	})
	if pos := results.OpenPosition; pos != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"📌 Open Position", fmt.Sprintf("%.6f @ $%.4f since %s",
			pos.Quantity, pos.EntryPrice, pos.EntryTime.UTC().Format(time.DateTime))})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 50, Align: text.AlignLeft},
	})
	t.Render()

	if len(results.Trades) == 0 {
		fmt.Fprintln(w, "No closed trades.")
		return
	}

	trades := table.NewWriter()
	trades.SetOutputMirror(w)
	trades.SetTitle("🔄 TRADES")
	trades.SetStyle(table.StyleRounded)
	trades.AppendHeader(table.Row{"#", "Entry Time", "Entry", "Exit Time", "Exit", "Qty", "Profit", "Return", "Reason"})
	for i, trade := range results.Trades {
		trades.AppendRow(table.Row{
			i + 1,
			trade.EntryTime.UTC().Format(time.DateTime),
			fmt.Sprintf("%.4f", trade.EntryPrice),
			trade.ExitTime.UTC().Format(time.DateTime),
			fmt.Sprintf("%.4f", trade.ExitPrice),
			fmt.Sprintf("%.6f", trade.Quantity),
			fmt.Sprintf("%.2f", trade.Profit),
			fmt.Sprintf("%.2f%%", trade.ReturnPct*100),
			trade.ExitReason,
		})
	}
	trades.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", results.TotalProfit), "", ""})
	trades.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	trades.Render()
}

// OutputOptimization prints the best point and the top trials by
// objective. top <= 0 prints every trial.
func (r *DefaultConsoleReporter) OutputOptimization(w io.Writer, result *backtest.OptimizationResult, top int) {
	if result == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("🎯 OPTIMIZATION")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"🏆 Profit Threshold", fmt.Sprintf("%.4f", result.BestParams.ProfitThreshold)},
		{"🏆 Trailing Stop", fmt.Sprintf("%.4f", result.BestParams.TrailingStop)},
		{"💰 Best Objective", fmt.Sprintf("$%.2f", result.BestObjective)},
		{"🔁 Trials", len(result.Trials)},
		{"🎲 Seed", result.Seed},
		{"⏱️ Duration", result.Duration.Round(time.Millisecond).String()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
	})
	t.Render()

	trials := RankTrials(result.Trials)
	if top > 0 && len(trials) > top {
		trials = trials[:top]
	}
	if len(trials) == 0 {
		return
	}

	tt := table.NewWriter()
	tt.SetOutputMirror(w)
	tt.SetTitle("📋 TOP TRIALS")
	tt.SetStyle(table.StyleRounded)
	tt.AppendHeader(table.Row{"Rank", "Iter", "Phase", "Profit Threshold", "Trailing Stop", "Objective"})
	for i, trial := range trials {
		tt.AppendRow(table.Row{
			i + 1,
			trial.Iteration,
			trial.Phase,
			fmt.Sprintf("%.4f", trial.Params.ProfitThreshold),
			fmt.Sprintf("%.4f", trial.Params.TrailingStop),
			fmt.Sprintf("%.2f", trial.Objective),
		})
	}
	tt.Render()
}

// RankTrials returns a copy of trials sorted by objective, best first.
// Ties keep iteration order.
func RankTrials(trials []backtest.Trial) []backtest.Trial {
	ranked := append([]backtest.Trial(nil), trials...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Objective > ranked[j].Objective
	})
	return ranked
}

// OutputResults prints results with the default console reporter
func OutputResults(w io.Writer, results *backtest.BacktestResults) {
	NewDefaultConsoleReporter().OutputResults(w, results)
}

// OutputOptimization prints an optimization with the default console reporter
func OutputOptimization(w io.Writer, result *backtest.OptimizationResult, top int) {
	NewDefaultConsoleReporter().OutputOptimization(w, result, top)
}

func formatRatio(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "∞"
	case math.IsNaN(v):
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatPeriod(start, end time.Time) string {
	if start.IsZero() {
		return "n/a"
	}
	return fmt.Sprintf("%s → %s", start.UTC().Format(time.DateTime), end.UTC().Format(time.DateTime))
}

func onOff(b bool) string {
	if b {
		return "active"
	}
	return "inactive"
}
