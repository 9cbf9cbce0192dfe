// Package ml provides the classifier contract used to gate entries, plus a
// small deterministic logistic model that satisfies it.
package ml

import (
	"fmt"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Signal is the classifier's opinion on the next bar
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// MinSamples is the smallest training set Fit accepts
const MinSamples = 30

// ErrInsufficientData is returned by Fit when training is not possible.
// Callers should treat it as "no gate" rather than failing the run.
var ErrInsufficientData = boterrors.NewInsufficientDataError("ml", "fit", "not enough usable training rows", nil)

// Sample is one training row: the features at a bar and whether the
// following close was higher
type Sample struct {
	Features []float64
	Up       bool
}

// Classifier trains a Model from labelled samples
type Classifier interface {
	Fit(samples []Sample) (Model, error)
}

// Model is a trained classifier. Predict must be a pure function of the
// model and the feature vector.
type Model interface {
	Predict(features []float64) Signal
}

// FeatureCount is the length of vectors produced by Features
const FeatureCount = 3

// Features returns the feature vector at bar i, or false when any input is
// undefined: RSI/100, MACD histogram relative to close, one-bar return.
func Features(bars []types.OHLCV, frame *indicators.Frame, i int) ([]float64, bool) {
	if i < 1 || i >= len(bars) || i >= frame.Len() {
		return nil, false
	}
	if !frame.Defined(indicators.ColRSI, i) || !frame.Defined(indicators.ColMACD, i) || !frame.Defined(indicators.ColSignal, i) {
		return nil, false
	}
	closePrice, prev := bars[i].Close, bars[i-1].Close
	if closePrice <= 0 || prev <= 0 {
		return nil, false
	}

	return []float64{
		frame.Value(indicators.ColRSI, i) / 100,
		(frame.Value(indicators.ColMACD, i) - frame.Value(indicators.ColSignal, i)) / closePrice,
		closePrice/prev - 1,
	}, true
}

// BuildSamples produces training rows from bars strictly before cutoff. The
// label of row i uses close[i+1], so the last usable row is cutoff-2 and
// nothing at or after cutoff is ever read.
func BuildSamples(bars []types.OHLCV, frame *indicators.Frame, cutoff int) []Sample {
	if cutoff > len(bars) {
		cutoff = len(bars)
	}
	samples := make([]Sample, 0, cutoff)
	for i := 1; i+1 < cutoff; i++ {
		features, ok := Features(bars, frame, i)
		if !ok {
			continue
		}
		samples = append(samples, Sample{
			Features: features,
			Up:       bars[i+1].Close > bars[i].Close,
		})
	}
	return samples
}

func validateSamples(samples []Sample) error {
	if len(samples) < MinSamples {
		return fmt.Errorf("%w: %d rows, need %d", ErrInsufficientData, len(samples), MinSamples)
	}
	ups := 0
	for _, s := range samples {
		if len(s.Features) != FeatureCount {
			return fmt.Errorf("sample has %d features, want %d", len(s.Features), FeatureCount)
		}
		if s.Up {
			ups++
		}
	}
	if ups == 0 || ups == len(samples) {
		return fmt.Errorf("%w: target has a single class", ErrInsufficientData)
	}
	return nil
}
