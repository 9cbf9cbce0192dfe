package types

import "time"

// OHLCV is a single price bar. Sequences of bars are ordered by strictly
// increasing Timestamp and are never mutated once loaded.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Ticker is the latest traded price for a symbol
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is the free and locked amount of a single asset
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Closes extracts the close column of a bar sequence
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume column of a bar sequence
func Volumes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
