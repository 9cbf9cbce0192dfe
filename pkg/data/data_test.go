package data

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleBars(n int) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = types.OHLCV{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1.5,
			Low:       price - 0.25,
			Close:     price + 0.5,
			Volume:    1000.125,
		}
	}
	return bars
}

func TestCSVRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bybit", "spot", "BTCUSDT", "60", "candles.csv")
	bars := sampleBars(5)
	require.NoError(t, WriteCSV(path, bars))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "timestamp,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2024-01-01 00:00:00,100,101.5,99.75,100.5,1000.125", lines[1])

	loaded, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	assert.Equal(t, bars, loaded)
}

func TestReadAcceptsUnixMillisAndRFC3339(t *testing.T) {
	input := "timestamp,open,high,low,close,volume\n" +
		"1704067200000,1,2,0.5,1.5,10\n" +
		"2024-01-01T01:00:00Z,1,2,0.5,1.5,10\n"
	bars, err := NewCSVProvider().Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, t0.Add(time.Hour), bars[1].Timestamp)
}

func TestReadIsStrict(t *testing.T) {
	header := "timestamp,open,high,low,close,volume\n"
	tests := []struct {
		name string
		rows string
		line string
	}{
		{"too few columns", "2024-01-01 00:00:00,1,2,0.5\n", "line 2"},
		{"bad timestamp", "yesterday,1,2,0.5,1.5,10\n", "line 2"},
		{"bad number", "2024-01-01 00:00:00,1,x,0.5,1.5,10\n", "line 2"},
		{"zero price", "2024-01-01 00:00:00,0,2,0.5,1.5,10\n", "line 2"},
		{"high below close", "2024-01-01 00:00:00,1,1.2,0.5,1.5,10\n", "line 2"},
		{"low above open", "2024-01-01 00:00:00,1,2,1.1,1.5,10\n", "line 2"},
		{"negative volume", "2024-01-01 00:00:00,1,2,0.5,1.5,-1\n", "line 2"},
		{"duplicate timestamp", "2024-01-01 00:00:00,1,2,0.5,1.5,10\n2024-01-01 00:00:00,1,2,0.5,1.5,10\n", "line 3"},
		{"descending", "2024-01-01 01:00:00,1,2,0.5,1.5,10\n2024-01-01 00:00:00,1,2,0.5,1.5,10\n", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVProvider().Read(strings.NewReader(header + tt.rows))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCandle)
			assert.Contains(t, err.Error(), tt.line)
		})
	}

	_, err := NewCSVProvider().Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidCandle)
	_, err = NewCSVProvider().Read(strings.NewReader(header))
	assert.ErrorIs(t, err, ErrInvalidCandle)
}

func TestLoadDataMissingFile(t *testing.T) {
	_, err := NewCSVProvider().LoadData(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCustomFormat(t *testing.T) {
	format := CSVColumnMapping{
		TimestampCol: 5, OpenCol: 0, HighCol: 1, LowCol: 2, CloseCol: 3, VolumeCol: 4,
		MinColumns: 6, DateFormat: "2006/01/02",
	}
	input := "o,h,l,c,v,date\n1,2,0.5,1.5,10,2024/01/01\n"
	bars, err := NewCSVProviderWithFormat(format).Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestValidateData(t *testing.T) {
	assert.NoError(t, ValidateData(sampleBars(3)))
	assert.ErrorIs(t, ValidateData(nil), ErrInvalidCandle)

	bad := sampleBars(3)
	bad[1].Low = bad[1].High + 1
	assert.ErrorIs(t, ValidateData(bad), ErrInvalidCandle)

	dup := sampleBars(3)
	dup[2].Timestamp = dup[1].Timestamp
	assert.ErrorIs(t, ValidateData(dup), ErrInvalidCandle)
}

func TestFilters(t *testing.T) {
	f := NewDefaultDataFilter()
	bars := sampleBars(10)

	last := f.FilterByPeriod(bars, 3*time.Hour)
	require.Len(t, last, 4)
	assert.Equal(t, bars[6].Timestamp, last[0].Timestamp)
	assert.Len(t, f.FilterByPeriod(bars, 0), 10)

	ranged := f.FilterByDateRange(bars, bars[2].Timestamp, bars[4].Timestamp)
	assert.Len(t, ranged, 3)
	assert.Len(t, f.FilterByDateRange(bars, bars[8].Timestamp, time.Time{}), 2)
	assert.Len(t, f.FilterByDateRange(bars, time.Time{}, bars[0].Timestamp), 1)

	shuffled := []types.OHLCV{bars[2], bars[0], bars[1], bars[0]}
	assert.Error(t, f.ValidateTimeSequence(shuffled))
	normalized := f.Normalize(shuffled)
	require.Len(t, normalized, 3)
	assert.NoError(t, f.ValidateTimeSequence(normalized))
	assert.Equal(t, bars[:3], normalized)
}

func TestFileLocator(t *testing.T) {
	root := t.TempDir()
	loc := NewDefaultFileLocator()

	assert.Equal(t, "60", loc.ConvertIntervalToMinutes("1h"))
	assert.Equal(t, "240", loc.ConvertIntervalToMinutes("4H"))
	assert.Equal(t, "1440", loc.ConvertIntervalToMinutes("1d"))
	assert.Equal(t, "15", loc.ConvertIntervalToMinutes("15"))

	assert.Empty(t, loc.FindDataFile(root, "bybit", "btcusdt", "1h"))

	path := loc.DataFilePath(root, "Bybit", "linear", "btcusdt", "1h")
	assert.Equal(t, filepath.Join(root, "bybit", "linear", "BTCUSDT", "60", "candles.csv"), path)
	require.NoError(t, WriteCSV(path, sampleBars(2)))
	assert.Equal(t, path, loc.FindDataFile(root, "bybit", "BTCUSDT", "60"))
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "timestamp,open,high,low,close,volume\n", buf.String())
}

func TestParseTrailingPeriod(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"2W", 14 * 24 * time.Hour, true},
		{"36h", 36 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"7", 7 * 24 * time.Hour, true},
		{"", 0, false},
		{"d", 0, false},
		{"-3d", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTrailingPeriod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSplitByRatio(t *testing.T) {
	bars := sampleBars(10)
	train, test := SplitByRatio(bars, 0.7)
	assert.Len(t, train, 7)
	assert.Len(t, test, 3)

	train, test = SplitByRatio(bars, 1)
	assert.Len(t, train, 10)
	assert.Nil(t, test)
}
