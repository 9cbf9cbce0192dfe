package ml

import (
	"errors"
	"math"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateWaveData(count int) []types.OHLCV {
	data := make([]types.OHLCV, count)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range data {
		price := 100 + 5*math.Sin(float64(i)/4) + 0.05*float64(i)
		data[i] = types.OHLCV{
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func separableSamples(count int) []Sample {
	samples := make([]Sample, count)
	for i := range samples {
		r := 0.01 * float64(1+i%5)
		if i%2 == 1 {
			r = -r
		}
		samples[i] = Sample{Features: []float64{0.5, 0, r}, Up: r > 0}
	}
	return samples
}

func TestFeatures(t *testing.T) {
	bars := generateWaveData(60)
	frame := indicators.Compute(bars, indicators.DefaultConfig())

	_, ok := Features(bars, frame, 0)
	assert.False(t, ok)
	_, ok = Features(bars, frame, 5) // RSI undefined
	assert.False(t, ok)

	features, ok := Features(bars, frame, 30)
	require.True(t, ok)
	require.Len(t, features, FeatureCount)
	assert.InDelta(t, frame.Value(indicators.ColRSI, 30)/100, features[0], 1e-12)
	assert.InDelta(t, bars[30].Close/bars[29].Close-1, features[2], 1e-12)
}

func TestBuildSamples_NoLookAhead(t *testing.T) {
	bars := generateWaveData(150)
	cutoff := 100

	before := BuildSamples(bars, indicators.Compute(bars, indicators.DefaultConfig()), cutoff)

	// Rewrite everything from the cutoff on; indicators are causal so the
	// prefix of the frame is unchanged.
	altered := append([]types.OHLCV(nil), bars...)
	for i := cutoff; i < len(altered); i++ {
		altered[i].Close *= 3
		altered[i].High *= 3
		altered[i].Low *= 3
	}
	after := BuildSamples(altered, indicators.Compute(altered, indicators.DefaultConfig()), cutoff)

	assert.Equal(t, before, after)
	assert.Len(t, before, cutoff-2-indicators.DefaultConfig().RSIPeriod+1)
}

func TestLogisticClassifier_InsufficientData(t *testing.T) {
	clf := NewLogisticClassifier()

	_, err := clf.Fit(separableSamples(10))
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.True(t, errors.Is(err, boterrors.ErrInsufficientData))

	degenerate := separableSamples(40)
	for i := range degenerate {
		degenerate[i].Up = true
	}
	_, err = clf.Fit(degenerate)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestLogisticClassifier_LearnsDirection(t *testing.T) {
	model, err := NewLogisticClassifier().Fit(separableSamples(60))
	require.NoError(t, err)

	assert.Equal(t, SignalBuy, model.Predict([]float64{0.5, 0, 0.05}))
	assert.Equal(t, SignalSell, model.Predict([]float64{0.5, 0, -0.05}))
	assert.Equal(t, SignalHold, model.Predict([]float64{0.5, 0, 0}))
}

func TestLogisticClassifier_Deterministic(t *testing.T) {
	bars := generateWaveData(200)
	frame := indicators.Compute(bars, indicators.DefaultConfig())
	samples := BuildSamples(bars, frame, 200)

	a, err := NewLogisticClassifier().Fit(samples)
	require.NoError(t, err)
	b, err := NewLogisticClassifier().Fit(samples)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLogisticModel_WrongFeatureCount(t *testing.T) {
	model, err := NewLogisticClassifier().Fit(separableSamples(40))
	require.NoError(t, err)

	assert.Equal(t, SignalHold, model.Predict([]float64{1}))
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "BUY", SignalBuy.String())
	assert.Equal(t, "SELL", SignalSell.String())
	assert.Equal(t, "HOLD", SignalHold.String())
}
