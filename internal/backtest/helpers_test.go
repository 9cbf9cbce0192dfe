package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
	"github.com/stretchr/testify/require"
)

func testConfig() strategy.Config {
	cfg := strategy.DefaultConfig()
	cfg.RiskPercentage = 0.01
	cfg.QuantityPrecision = 4
	return cfg
}

func generateFlatData(count int, price float64) []types.OHLCV {
	data := make([]types.OHLCV, count)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range data {
		data[i] = types.OHLCV{
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func generateWaveData(count int) []types.OHLCV {
	data := generateFlatData(count, 100)
	for i := range data {
		price := 100 + 0.05*float64(i) + 4*math.Sin(float64(i)/6) + math.Sin(float64(i)*1.3)
		data[i].Open = price
		data[i].High = price + 0.5
		data[i].Low = price - 0.5
		data[i].Close = price
	}
	return data
}

// scriptedSeries builds bars plus a frame in which nothing triggers by
// default: RSI 50, MACD above signal, trend averages far below the close,
// negligible ATR. Individual bars are then scripted.
type scriptedSeries struct {
	closes []float64
	rsi    []float64
	macd   []float64
}

func newScriptedSeries(n int, price float64) *scriptedSeries {
	s := &scriptedSeries{
		closes: make([]float64, n),
		rsi:    make([]float64, n),
		macd:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.closes[i] = price
		s.rsi[i] = 50
		s.macd[i] = 1
	}
	return s
}

func (s *scriptedSeries) build(t *testing.T) ([]types.OHLCV, *indicators.Frame) {
	t.Helper()
	n := len(s.closes)
	bars := generateFlatData(n, 1)
	cols := map[indicators.Column][]float64{
		indicators.ColRSI:       append([]float64(nil), s.rsi...),
		indicators.ColMACD:      append([]float64(nil), s.macd...),
		indicators.ColSignal:    make([]float64, n),
		indicators.ColSMA50:     make([]float64, n),
		indicators.ColEMA200:    make([]float64, n),
		indicators.ColATR:       make([]float64, n),
		indicators.ColVolumeSMA: make([]float64, n),
	}
	for i, c := range s.closes {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = c, c, c, c
		cols[indicators.ColSMA50][i] = c * 0.5
		cols[indicators.ColEMA200][i] = c * 0.5
		cols[indicators.ColATR][i] = 0.01
		cols[indicators.ColVolumeSMA][i] = 1000
	}
	frame, err := indicators.NewFrame(n, cols)
	require.NoError(t, err)
	return bars, frame
}

// swingScenario scripts one trade path per entry: a 3% and 4% dip, a jump
// to +4% and +12%, then an RSI exit at +3%. With take profit enabled the
// best outcome (+12 per unit) needs trailing_stop > 0.04 and
// profit_threshold > 0.04.
func swingScenario(t *testing.T, entries ...int) ([]types.OHLCV, *indicators.Frame) {
	t.Helper()
	s := newScriptedSeries(400, 100)
	for _, e := range entries {
		s.rsi[e] = 25
		path := []float64{97, 96, 104, 112, 112, 112, 112, 103}
		for k, p := range path {
			s.closes[e+1+k] = p
		}
		s.rsi[e+len(path)] = 75
	}
	return s.build(t)
}
