package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// ErrInvalidCandle is wrapped by every validation failure
var ErrInvalidCandle = errors.New("invalid candle")

// CSVProvider implements DataProvider for CSV files. Loading is strict: a
// malformed row fails the whole load instead of being skipped.
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{
		format: DefaultCSVFormat,
	}
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{
		format: format,
	}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical data from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer file.Close()

	bars, err := p.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return bars, nil
}

// Read parses CSV from r. The first row is a header.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidCandle)
		}
		return nil, err
	}

	var data []types.OHLCV
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", line, err)
		}

		bar, err := p.parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(data); n > 0 && !bar.Timestamp.After(data[n-1].Timestamp) {
			return nil, fmt.Errorf("line %d: %w: timestamp %s is not after %s", line, ErrInvalidCandle,
				bar.Timestamp.Format(time.RFC3339), data[n-1].Timestamp.Format(time.RFC3339))
		}
		data = append(data, bar)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidCandle)
	}
	return data, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.OHLCV, error) {
	format := p.format
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidCandle, format.MinColumns, len(record))
	}

	timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	values := make([]float64, 5)
	for i, col := range []int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("%w: column %d value %q: %v", ErrInvalidCandle, col, record[col], err)
		}
		values[i] = v
	}

	bar := types.OHLCV{
		Timestamp: timestamp,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	return bar, ValidateCandle(bar)
}

func parseTimestamp(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, l := range []string{layout, time.RFC3339} {
		if l == "" {
			continue
		}
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidCandle, s)
}

// ValidateCandle checks one bar: positive prices, high and low enclosing
// open and close, non-negative volume
func ValidateCandle(c types.OHLCV) error {
	switch {
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return fmt.Errorf("%w: prices must be positive", ErrInvalidCandle)
	case c.High < c.Low:
		return fmt.Errorf("%w: high (%.4f) cannot be less than low (%.4f)", ErrInvalidCandle, c.High, c.Low)
	case c.High < c.Open || c.High < c.Close:
		return fmt.Errorf("%w: high (%.4f) must be >= open (%.4f) and close (%.4f)", ErrInvalidCandle, c.High, c.Open, c.Close)
	case c.Low > c.Open || c.Low > c.Close:
		return fmt.Errorf("%w: low (%.4f) must be <= open (%.4f) and close (%.4f)", ErrInvalidCandle, c.Low, c.Open, c.Close)
	case c.Volume < 0:
		return fmt.Errorf("%w: volume must not be negative", ErrInvalidCandle)
	}
	return nil
}

// ValidateData validates every candle and the time sequence
func ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no data provided", ErrInvalidCandle)
	}
	for i, candle := range data {
		if err := ValidateCandle(candle); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return NewDefaultDataFilter().ValidateTimeSequence(data)
}
