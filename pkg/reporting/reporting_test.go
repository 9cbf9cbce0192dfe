package reporting

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleResults() *backtest.BacktestResults {
	return &backtest.BacktestResults{
		Summary: backtest.Summary{
			Metrics:       backtest.Metrics{TotalProfit: 12.5, MaxDrawdown: 0.1, SharpeRatio: 0.8},
			TotalTrades:   2,
			WinningTrades: 2,
			WinRate:       100,
			ProfitFactor:  math.Inf(1),
			GrossProfit:   12.5,
		},
		Symbol:     "BTCUSDT",
		Params:     strategy.Params{ProfitThreshold: 0.03, TrailingStop: 0.02},
		Entries:    2,
		Exits:      2,
		StartIndex: 200,
		Bars:       400,
		StartTime:  start,
		EndTime:    start.Add(399 * time.Hour),
		Trades: []strategy.Trade{
			{Symbol: "BTCUSDT", EntryPrice: 100, ExitPrice: 105, Quantity: 2, Profit: 10, ReturnPct: 0.05,
				EntryTime: start.Add(210 * time.Hour), ExitTime: start.Add(220 * time.Hour), ExitReason: "trailing stop"},
			{Symbol: "BTCUSDT", EntryPrice: 100, ExitPrice: 102.5, Quantity: 1, Profit: 2.5, ReturnPct: 0.025,
				EntryTime: start.Add(300 * time.Hour), ExitTime: start.Add(310 * time.Hour), ExitReason: "take profit"},
		},
		OpenPosition: &strategy.Position{State: strategy.StateLong, EntryPrice: 101, Quantity: 1.5, EntryTime: start.Add(390 * time.Hour)},
	}
}

func sampleOptimization() *backtest.OptimizationResult {
	return &backtest.OptimizationResult{
		BestParams:    strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.03},
		BestObjective: 30,
		Seed:          42,
		Duration:      1500 * time.Millisecond,
		Trials: []backtest.Trial{
			{Iteration: 0, Phase: "init", Params: strategy.Params{ProfitThreshold: 0.02, TrailingStop: 0.01}, Objective: 5},
			{Iteration: 1, Phase: "init", Params: strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.03}, Objective: 30},
			{Iteration: 2, Phase: "bayes", Params: strategy.Params{ProfitThreshold: 0.04, TrailingStop: 0.02}, Objective: 20},
		},
	}
}

func TestOutputResults(t *testing.T) {
	var buf bytes.Buffer
	OutputResults(&buf, sampleResults())
	out := buf.String()

	assert.Contains(t, out, "BACKTEST RESULTS")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "$12.50")
	assert.Contains(t, out, "∞")
	assert.Contains(t, out, "trailing stop")
	assert.Contains(t, out, "Open Position")
}

func TestOutputResultsWithoutTrades(t *testing.T) {
	results := sampleResults()
	results.Trades = nil
	results.OpenPosition = nil

	var buf bytes.Buffer
	OutputResults(&buf, results)
	assert.Contains(t, buf.String(), "No closed trades.")
	assert.NotContains(t, buf.String(), "Open Position")

	buf.Reset()
	OutputResults(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestOutputOptimizationRanksTrials(t *testing.T) {
	var buf bytes.Buffer
	OutputOptimization(&buf, sampleOptimization(), 2)
	out := buf.String()

	assert.Contains(t, out, "TOP TRIALS")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "20.00")
	assert.NotContains(t, out, "0.0100")
	assert.Less(t, strings.Index(out, "30.00"), strings.LastIndex(out, "20.00"))
}

func TestRankTrials(t *testing.T) {
	trials := sampleOptimization().Trials
	ranked := RankTrials(trials)
	require.Len(t, ranked, 3)
	assert.Equal(t, []int{1, 2, 0}, []int{ranked[0].Iteration, ranked[1].Iteration, ranked[2].Iteration})
	assert.Equal(t, 0, trials[0].Iteration)
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.csv")
	require.NoError(t, WriteTradesCSV(sampleResults(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(TradesHeader, ","), lines[0])
	assert.Equal(t, "1,BTCUSDT,2024-03-09T18:00:00Z,100,2024-03-10T04:00:00Z,105,2,10.0000,5.0000,trailing stop", lines[1])
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteWorkbook(sampleResults(), sampleOptimization(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{SummarySheet, TradesSheet, TrialsSheet}, fx.GetSheetList())

	v, err := fx.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", v)

	v, err = fx.GetCellValue(TradesSheet, "J3")
	require.NoError(t, err)
	assert.Equal(t, "take profit", v)

	rows, err := fx.GetRows(TrialsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "bayes", rows[3][1])
}

func TestWriteWorkbookWithoutOptimization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.xlsx")
	require.NoError(t, WriteTradesCSV(sampleResults(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()
	assert.Equal(t, []string{SummarySheet, TradesSheet}, fx.GetSheetList())

	assert.Error(t, WriteWorkbook(nil, nil, path))
}

func TestWriteReportJSONHandlesInfinity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteReportJSON(sampleResults(), sampleOptimization(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	summary := doc["summary"].(map[string]interface{})
	assert.Nil(t, summary["profit_factor"])
	assert.Equal(t, 0.8, summary["sharpe_ratio"])
	assert.Len(t, doc["trades"], 2)
	assert.Equal(t, 101.0, doc["open_position"].(map[string]interface{})["entry_price"])

	opt :=doc["optimization"].(map[string]interface{})
	assert.Equal(t, 30.0, opt["best_objective"])
	assert.Equal(t, "1.5s", opt["duration"])
	assert.Len(t, opt["trials"], 3)

	assert.Error(t, WriteReportJSON(nil, nil, path))
}

func TestWriteBestParamsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.json")
	require.NoError(t, WriteBestParamsJSON(strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.03}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var p strategy.Params
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, 0.05, p.ProfitThreshold)
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1h"), DefaultOutputDir(" btcusdt ", "1H"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
}
