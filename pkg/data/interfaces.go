// Package data loads, validates and stores candle histories as CSV.
package data

import (
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// DataProvider reads a complete history from source
type DataProvider interface {
	LoadData(source string) ([]types.OHLCV, error)
	GetName() string
}

// DataFilter narrows or checks a loaded history
type DataFilter interface {
	FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV
	FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV
	ValidateTimeSequence(data []types.OHLCV) error
}

// FileLocator maps a market to its file in the data tree
type FileLocator interface {
	DataFilePath(dataRoot, exchange, category, symbol, interval string) string
	FindDataFile(dataRoot, exchange, symbol, interval string) string
}

var (
	_ DataProvider = (*CSVProvider)(nil)
	_ DataFilter   = (*DefaultDataFilter)(nil)
	_ FileLocator  = (*DefaultFileLocator)(nil)
)

// CSVColumnMapping gives the zero-based column of each field. Integer
// timestamps are always read as Unix milliseconds; DateFormat covers the
// rest.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// CSVHeader is the first row of every file written by Write
var CSVHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// DefaultCSVFormat matches CSVHeader
var DefaultCSVFormat = CSVColumnMapping{
	OpenCol:    1,
	HighCol:    2,
	LowCol:     3,
	CloseCol:   4,
	VolumeCol:  5,
	MinColumns: len(CSVHeader),
	DateFormat: "2006-01-02 15:04:05",
}
