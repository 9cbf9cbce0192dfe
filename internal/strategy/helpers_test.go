package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
	"github.com/stretchr/testify/require"
)

// barValues describes one bar and its indicator readings
type barValues struct {
	close     float64
	volume    float64
	rsi       float64
	macd      float64
	signal    float64
	sma50     float64
	ema200    float64
	atr       float64
	volumeSMA float64
}

func neutralBar(close float64) barValues {
	return barValues{
		close:     close,
		volume:    1000,
		rsi:       50,
		macd:      1,
		signal:    0,
		sma50:     close * 0.9,
		ema200:    close * 0.8,
		atr:       0.5,
		volumeSMA: 1000,
	}
}

func entryBar(close float64) barValues {
	b := neutralBar(close)
	b.rsi = 25
	return b
}

func buildInput(t *testing.T, values []barValues) ([]types.OHLCV, *indicators.Frame) {
	t.Helper()
	n := len(values)
	bars := make([]types.OHLCV, n)
	cols := map[indicators.Column][]float64{}
	for _, col := range indicators.AllColumns {
		cols[col] = make([]float64, n)
		for i := range cols[col] {
			cols[col][i] = math.NaN()
		}
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		bars[i] = types.OHLCV{
			Open: v.close, High: v.close, Low: v.close, Close: v.close,
			Volume: v.volume, Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
		cols[indicators.ColRSI][i] = v.rsi
		cols[indicators.ColMACD][i] = v.macd
		cols[indicators.ColSignal][i] = v.signal
		cols[indicators.ColSMA50][i] = v.sma50
		cols[indicators.ColEMA200][i] = v.ema200
		cols[indicators.ColATR][i] = v.atr
		cols[indicators.ColVolumeSMA][i] = v.volumeSMA
	}
	frame, err := indicators.NewFrame(n, cols)
	require.NoError(t, err)
	return bars, frame
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RiskPercentage = 0.01
	cfg.QuantityPrecision = 4
	return cfg
}
