package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Header is the column order of the transaction file
var Header = []string{"time", "action", "symbol", "price", "change_pct", "quantity", "remaining_balance"}

// CSVLedger appends entries to a CSV file. The header is written once,
// when the file is created or empty.
type CSVLedger struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVLedger opens path for appending, creating its directory
func NewCSVLedger(path string) (*CSVLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat ledger file: %w", err)
	}

	l := &CSVLedger{file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := l.write(Header); err != nil {
			file.Close()
			return nil, err
		}
	}
	return l, nil
}

// Append writes e and flushes
func (l *CSVLedger) Append(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(Record(e))
}

// Close closes the file
func (l *CSVLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *CSVLedger) write(record []string) error {
	if err := l.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write ledger record: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Record formats e in Header order
func Record(e Entry) []string {
	return []string{
		e.Time.UTC().Format(time.RFC3339),
		string(e.Action),
		e.Symbol,
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		strconv.FormatFloat(e.PctChange, 'f', 4, 64),
		strconv.FormatFloat(e.Quantity, 'f', -1, 64),
		strconv.FormatFloat(e.RemainingBalance, 'f', 2, 64),
	}
}
