package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/data"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

func waveBars(n int, end time.Time) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	start := end.Add(-time.Duration(n) * time.Hour)
	for i := range bars {
		price := 100 + 0.05*float64(i) + 4*math.Sin(float64(i)/6) + math.Sin(float64(i)*1.3)
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

type fakeHistory struct {
	bars  []types.OHLCV
	calls int
}

func (f *fakeHistory) GetHistory(_ context.Context, _, _ string, _ int, _ time.Time) ([]types.OHLCV, error) {
	f.calls++
	return f.bars, nil
}

func TestResolveSetupDefaults(t *testing.T) {
	opts := &BacktestOptions{}
	setup, err := resolveSetup(opts)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", opts.Symbol)
	assert.Equal(t, "1h", opts.Interval)
	assert.Equal(t, DefaultCategory, opts.Category)
	assert.Equal(t, DefaultRisk, setup.Strategy.RiskPercentage)
	assert.Equal(t, 0.03, setup.Params.ProfitThreshold)
	assert.Equal(t, 0.02, setup.Params.TrailingStop)
}

func TestResolveSetupOverrides(t *testing.T) {
	on := true
	opts := &BacktestOptions{
		Symbol:          "ethusdt",
		ProfitThreshold: 0.06,
		TrailingStop:    0.01,
		Risk:            0.02,
		MLGate:          &on,
		TakeProfit:      &on,
		Optimize:        true,
		Seed:            9,
		Iterations:      4,
		InitPoints:      2,
	}
	setup, err := resolveSetup(opts)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", opts.Symbol)
	assert.Equal(t, 0.06, setup.Params.ProfitThreshold)
	assert.Equal(t, 0.01, setup.Params.TrailingStop)
	assert.Equal(t, 0.02, setup.Strategy.RiskPercentage)
	assert.True(t, setup.Strategy.UseMLGate)
	assert.True(t, setup.Strategy.UseTakeProfit)
	assert.Equal(t, int64(9), setup.Optimizer.Seed)
	assert.Equal(t, 4, setup.Optimizer.Iterations)
	assert.Equal(t, 2, setup.Optimizer.InitPoints)
}

func TestResolveSetupFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"symbols": ["ETHUSDT"],
		"interval": "4h",
		"params": {"profit_threshold": 0.05, "trailing_stop": 0.04},
		"strategy": {"risk_percentage": 0.015}
	}`), 0o644))

	opts := &BacktestOptions{ConfigFile: path}
	setup, err := resolveSetup(opts)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", opts.Symbol)
	assert.Equal(t, "4h", opts.Interval)
	assert.Equal(t, 0.015, setup.Strategy.RiskPercentage)
	assert.Equal(t, 0.05, setup.Params.ProfitThreshold)
}

func TestResolveSetupRejects(t *testing.T) {
	_, err := resolveSetup(&BacktestOptions{SplitRatio: 1.5})
	assert.ErrorIs(t, err, boterrors.ErrConfiguration)

	_, err = resolveSetup(&BacktestOptions{TrailingStop: 1.5})
	assert.Error(t, err)

	_, err = resolveSetup(&BacktestOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorIs(t, err, boterrors.ErrConfiguration)
}

func TestLoadBarsFromDataRoot(t *testing.T) {
	root := t.TempDir()
	bars := waveBars(300, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	path := data.NewDefaultFileLocator().DataFilePath(root, DefaultExchange, DefaultCategory, "BTCUSDT", "1h")
	require.NoError(t, data.WriteCSV(path, bars))

	opts := &BacktestOptions{DataRoot: root, Exchange: DefaultExchange, Symbol: "BTCUSDT", Interval: "1h"}
	loaded, err := loadBars(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Len(t, loaded, 300)

	opts.Period = 24 * time.Hour
	loaded, err = loadBars(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Len(t, loaded, 25)
}

func TestLoadBarsFetchesWhenNoFile(t *testing.T) {
	src := &fakeHistory{bars: waveBars(50, time.Now().UTC().Add(-2*time.Hour))}
	opts := &BacktestOptions{DataRoot: t.TempDir(), Exchange: DefaultExchange, Symbol: "BTCUSDT", Interval: "1h", Candles: 50}

	loaded, err := loadBars(context.Background(), opts, src)
	require.NoError(t, err)
	assert.Len(t, loaded, 50)
	assert.Equal(t, 1, src.calls)

	_, err = loadBars(context.Background(), opts, nil)
	assert.Error(t, err)
}

func TestRunBacktestSingle(t *testing.T) {
	opts := &BacktestOptions{}
	setup, err := resolveSetup(opts)
	require.NoError(t, err)

	run, err := runBacktest(context.Background(), setup, opts, waveBars(400, time.Now()), nil)
	require.NoError(t, err)
	require.NotNil(t, run.Results)
	assert.Nil(t, run.Optimization)
	assert.Nil(t, run.Holdout)
	assert.Equal(t, 200, run.Results.StartIndex)
	assert.Equal(t, 400, run.Results.Bars)
	assert.Equal(t, setup.Params, run.Results.Params)
}

func TestRunBacktestOptimizeWithHoldout(t *testing.T) {
	opts := &BacktestOptions{Optimize: true, InitPoints: 3, Iterations: 2, Seed: 7, SplitRatio: 0.6}
	setup, err := resolveSetup(opts)
	require.NoError(t, err)

	bars := waveBars(600, time.Now())
	run, err := runBacktest(context.Background(), setup, opts, bars, nil)
	require.NoError(t, err)

	require.NotNil(t, run.Optimization)
	assert.Len(t, run.Optimization.Trials, 5)
	assert.Equal(t, 360, run.Results.Bars)
	require.NotNil(t, run.Holdout)
	assert.Equal(t, 440, run.Holdout.Bars)
	assert.Equal(t, bars[360].Timestamp, run.Holdout.StartTime.Add(200*time.Hour))
	assert.Equal(t, run.Optimization.BestParams, run.Holdout.Params)

	var buf bytes.Buffer
	printRun(&buf, run, opts)
	assert.Contains(t, buf.String(), "OPTIMIZATION")
	assert.Contains(t, buf.String(), "HOLDOUT (40% of bars)")

	dir := t.TempDir()
	files, err := writeOutputs(run, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "trades.csv"),
		filepath.Join(dir, "report.xlsx"),
		filepath.Join(dir, "report.json"),
		filepath.Join(dir, "best.json"),
		filepath.Join(dir, "holdout_trades.csv"),
	}, files)
	for _, f := range files {
		assert.FileExists(t, f)
	}
}
