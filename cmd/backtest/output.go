package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/reporting"
)

func defaultOutputDir(symbol, interval string) string {
	return reporting.DefaultOutputDir(symbol, interval)
}

// printRun renders the results, the optimization and the holdout to w
func printRun(w io.Writer, run *BacktestRun, opts *BacktestOptions) {
	if run.Optimization != nil {
		reporting.OutputOptimization(w, run.Optimization, opts.TopTrials)
		fmt.Fprintln(w)
	}
	reporting.OutputResults(w, run.Results)
	if run.Holdout != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "🧪 HOLDOUT (%.0f%% of bars)\n", (1-opts.SplitRatio)*100)
		reporting.OutputResults(w, run.Holdout)
	}
}

// writeOutputs writes trades.csv, report.xlsx and report.json, plus
// best.json and holdout_trades.csv when present. It returns the paths
// written.
func writeOutputs(run *BacktestRun, dir string) ([]string, error) {
	var written []string

	tradesPath := filepath.Join(dir, "trades.csv")
	if err := reporting.WriteTradesCSV(run.Results, tradesPath); err != nil {
		return written, fmt.Errorf("trades csv: %w", err)
	}
	written = append(written, tradesPath)

	workbookPath := filepath.Join(dir, "report.xlsx")
	if err := reporting.WriteWorkbook(run.Results, run.Optimization, workbookPath); err != nil {
		return written, fmt.Errorf("workbook: %w", err)
	}
	written = append(written, workbookPath)

	reportPath := filepath.Join(dir, "report.json")
	if err := reporting.WriteReportJSON(run.Results, run.Optimization, reportPath); err != nil {
		return written, fmt.Errorf("report json: %w", err)
	}
	written = append(written, reportPath)

	if run.Optimization != nil {
		bestPath := filepath.Join(dir, "best.json")
		if err := reporting.WriteBestParamsJSON(run.Optimization.BestParams, bestPath); err != nil {
			return written, fmt.Errorf("best params: %w", err)
		}
		written = append(written, bestPath)
	}

	if run.Holdout != nil {
		holdoutPath := filepath.Join(dir, "holdout_trades.csv")
		if err := reporting.WriteTradesCSV(run.Holdout, holdoutPath); err != nil {
			return written, fmt.Errorf("holdout csv: %w", err)
		}
		written = append(written, holdoutPath)
	}
	return written, nil
}
