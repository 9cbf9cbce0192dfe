package indicators

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Column names an indicator series inside a Frame
type Column string

const (
	ColRSI           Column = "RSI"
	ColEMA12         Column = "EMA12"
	ColEMA26         Column = "EMA26"
	ColMACD          Column = "MACD"
	ColSignal        Column = "Signal"
	ColSMA50         Column = "SMA50"
	ColEMA200        Column = "EMA200"
	ColATR           Column = "ATR"
	ColBollingerHigh Column = "BollingerHigh"
	ColBollingerMid  Column = "BollingerMid"
	ColBollingerLow  Column = "BollingerLow"
	ColVolumeSMA     Column = "VolumeSMA"
)

// AllColumns lists every column produced by Compute, in report order
var AllColumns = []Column{
	ColRSI, ColEMA12, ColEMA26, ColMACD, ColSignal, ColSMA50, ColEMA200,
	ColATR, ColBollingerHigh, ColBollingerMid, ColBollingerLow, ColVolumeSMA,
}

// Config holds the periods used by Compute
type Config struct {
	RSIPeriod       int     `json:"rsi_period"`
	MACDFast        int     `json:"macd_fast"`
	MACDSlow        int     `json:"macd_slow"`
	MACDSignal      int     `json:"macd_signal"`
	SMAPeriod       int     `json:"sma_period"`
	TrendEMAPeriod  int     `json:"trend_ema_period"`
	ATRPeriod       int     `json:"atr_period"`
	BollingerPeriod int     `json:"bollinger_period"`
	BollingerStdDev float64 `json:"bollinger_std_dev"`
	VolumePeriod    int     `json:"volume_period"`
}

// DefaultConfig returns the reference periods (RSI 14, MACD 12/26/9,
// SMA 50, EMA 200, ATR 14, Bollinger 20x2, volume 30)
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		SMAPeriod:       50,
		TrendEMAPeriod:  200,
		ATRPeriod:       14,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		VolumePeriod:    30,
	}
}

// Validate checks that every period is usable
func (c Config) Validate() error {
	periods := map[string]int{
		"rsi_period":       c.RSIPeriod,
		"macd_fast":        c.MACDFast,
		"macd_slow":        c.MACDSlow,
		"macd_signal":      c.MACDSignal,
		"sma_period":       c.SMAPeriod,
		"trend_ema_period": c.TrendEMAPeriod,
		"atr_period":       c.ATRPeriod,
		"bollinger_period": c.BollingerPeriod,
		"volume_period":    c.VolumePeriod,
	}
	for name, p := range periods {
		if p <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, p)
		}
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd_fast (%d) must be below macd_slow (%d)", c.MACDFast, c.MACDSlow)
	}
	if c.BollingerStdDev <= 0 {
		return fmt.Errorf("bollinger_std_dev must be positive")
	}
	return nil
}

// Frame is a set of indicator series aligned bar for bar with the price
// history it was computed from. Undefined values are NaN.
type Frame struct {
	n    int
	cols map[Column][]float64
}

// NewFrame builds a frame from pre-computed columns. Every column must have
// length n.
func NewFrame(n int, cols map[Column][]float64) (*Frame, error) {
	f := &Frame{n: n, cols: make(map[Column][]float64, len(cols))}
	for name, values := range cols {
		if len(values) != n {
			return nil, fmt.Errorf("column %s has %d values, want %d", name, len(values), n)
		}
		f.cols[name] = append([]float64(nil), values...)
	}
	return f, nil
}

// Compute derives every indicator column from bars. It never fails: short
// input yields a frame whose leading entries are undefined.
func Compute(bars []types.OHLCV, cfg Config) *Frame {
	closes := types.Closes(bars)

	macd := NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal).Series(closes)
	bands := NewBollingerBands(cfg.BollingerPeriod, cfg.BollingerStdDev).Series(closes)

	// The recursive EMA is numerically defined from the first bar, but a
	// long trend average is not meaningful before its span has elapsed.
	trend := NewEMA(cfg.TrendEMAPeriod).Series(closes)
	maskBefore(trend, cfg.TrendEMAPeriod-1)

	return &Frame{
		n: len(bars),
		cols: map[Column][]float64{
			ColRSI:           NewRSI(cfg.RSIPeriod).Series(closes),
			ColEMA12:         macd.Fast,
			ColEMA26:         macd.Slow,
			ColMACD:          macd.MACD,
			ColSignal:        macd.Signal,
			ColSMA50:         NewSMA(cfg.SMAPeriod).Series(closes),
			ColEMA200:        trend,
			ColATR:           NewATR(cfg.ATRPeriod).Series(bars),
			ColBollingerHigh: bands.Upper,
			ColBollingerMid:  bands.Middle,
			ColBollingerLow:  bands.Lower,
			ColVolumeSMA:     NewSMA(cfg.VolumePeriod).Series(types.Volumes(bars)),
		},
	}
}

// Len returns the number of bars covered by the frame
func (f *Frame) Len() int {
	return f.n
}

// Value returns the column value at bar i, NaN when undefined or unknown
func (f *Frame) Value(col Column, i int) float64 {
	values, ok := f.cols[col]
	if !ok || i < 0 || i >= f.n {
		return math.NaN()
	}
	return values[i]
}

// Defined reports whether the column holds a usable value at bar i
func (f *Frame) Defined(col Column, i int) bool {
	return !isUndefined(f.Value(col, i))
}

// Column returns a copy of a full series
func (f *Frame) Column(col Column) []float64 {
	values, ok := f.cols[col]
	if !ok {
		return nanSeries(f.n)
	}
	return append([]float64(nil), values...)
}

// WarmupFor returns the first bar index at which every listed column is
// defined from then on. It returns Len() when that never happens.
func (f *Frame) WarmupFor(cols ...Column) int {
	start := 0
	for _, col := range cols {
		values, ok := f.cols[col]
		if !ok {
			return f.n
		}
		last := -1
		for i := f.n - 1; i >= 0; i-- {
			if isUndefined(values[i]) {
				last = i
				break
			}
		}
		if last+1 > start {
			start = last + 1
		}
	}
	return start
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func maskBefore(values []float64, idx int) {
	for i := 0; i < idx && i < len(values); i++ {
		values[i] = math.NaN()
	}
}

func isUndefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
