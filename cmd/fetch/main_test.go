package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/data"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

type fakeHistory struct {
	bars  []types.OHLCV
	fails int
	calls int
	total int
}

func (f *fakeHistory) GetHistory(_ context.Context, _, _ string, total int, _ time.Time) ([]types.OHLCV, error) {
	f.calls++
	f.total = total
	if f.calls <= f.fails {
		return nil, boterrors.NewNetworkError("bybit", "GetCandles", errors.New("timeout"))
	}
	return f.bars, nil
}

func hourlyBars(start time.Time, n int) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	for i := range bars {
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	return bars
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRunWritesClosedCandles(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeHistory{bars: hourlyBars(start, 6), fails: 1}
	root := t.TempDir()

	var out bytes.Buffer
	path, err := run(context.Background(), fetchOptions{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Category: "spot",
		Candles:  4,
		DataRoot: root,
		End:      start.Add(5*time.Hour + 30*time.Minute),
	}, src, exchange.RetryPolicy{MaxAttempts: 3, Sleep: noSleep}, &out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "bybit", "spot", "BTCUSDT", "60", "candles.csv"), path)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 5, src.total)
	assert.Contains(t, out.String(), "Wrote 4 candles")

	bars, err := data.NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, start.Add(time.Hour), bars[0].Timestamp)
	assert.Equal(t, start.Add(4*time.Hour), bars[3].Timestamp)
}

func TestRunRejectsBadInput(t *testing.T) {
	retry := exchange.RetryPolicy{MaxAttempts: 1, Sleep: noSleep}
	ctx := context.Background()
	var out bytes.Buffer

	_, err := run(ctx, fetchOptions{Symbol: "BTCUSDT", Interval: "1h", Candles: 0}, &fakeHistory{}, retry, &out)
	assert.Error(t, err)

	_, err = run(ctx, fetchOptions{Symbol: "BTCUSDT", Interval: "7m", Candles: 10}, &fakeHistory{}, retry, &out)
	assert.Error(t, err)

	_, err = run(ctx, fetchOptions{Symbol: "BTCUSDT", Interval: "1h", Candles: 10, Output: filepath.Join(t.TempDir(), "x.csv")},
		&fakeHistory{}, retry, &out)
	assert.ErrorIs(t, err, data.ErrInvalidCandle)
}
