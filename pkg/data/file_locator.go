package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CandlesFile is the file name inside every interval folder
const CandlesFile = "candles.csv"

// minutes per interval unit suffix
var intervalUnits = map[byte]int{'m': 1, 'h': 60, 'd': 24 * 60, 'w': 7 * 24 * 60}

// searched in order when the category is not given
var bybitCategories = []string{"spot", "linear", "inverse"}

// DefaultFileLocator resolves <root>/<exchange>/<category>/<SYMBOL>/<minutes>/candles.csv
type DefaultFileLocator struct{}

func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// ConvertIntervalToMinutes names the folder of an interval: "1h" is "60",
// bare numbers pass through and unknown forms are returned unchanged
func (f *DefaultFileLocator) ConvertIntervalToMinutes(interval string) string {
	iv := strings.ToLower(strings.TrimSpace(interval))
	if _, err := strconv.Atoi(iv); err == nil || len(iv) < 2 {
		return iv
	}
	unit, ok := intervalUnits[iv[len(iv)-1]]
	if !ok {
		return iv
	}
	n, err := strconv.Atoi(iv[:len(iv)-1])
	if err != nil || n <= 0 {
		return iv
	}
	return strconv.Itoa(n * unit)
}

// DataFilePath builds the path without checking that it exists
func (f *DefaultFileLocator) DataFilePath(dataRoot, exchange, category, symbol, interval string) string {
	return filepath.Join(
		dataRoot,
		strings.ToLower(exchange),
		strings.ToLower(category),
		strings.ToUpper(symbol),
		f.ConvertIntervalToMinutes(interval),
		CandlesFile,
	)
}

// FindDataFile tries each category of exchange and returns the first file
// present, or ""
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	categories := bybitCategories
	if !strings.EqualFold(exchange, "bybit") {
		categories = []string{"spot", "futures", "linear", "inverse"}
	}
	for _, category := range categories {
		path := f.DataFilePath(dataRoot, exchange, category, symbol, interval)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
