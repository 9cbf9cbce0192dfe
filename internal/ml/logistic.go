package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LogisticClassifier fits a logistic regression on standardized features
// with plain batch gradient descent. Weights start at zero so training is
// fully deterministic.
type LogisticClassifier struct {
	LearningRate  float64
	Epochs        int
	L2            float64
	BuyThreshold  float64
	SellThreshold float64
}

// NewLogisticClassifier returns a classifier with the default settings
func NewLogisticClassifier() *LogisticClassifier {
	return &LogisticClassifier{
		LearningRate:  0.1,
		Epochs:        500,
		L2:            0.001,
		BuyThreshold:  0.55,
		SellThreshold: 0.45,
	}
}

// LogisticModel is a trained LogisticClassifier
type LogisticModel struct {
	Weights       []float64
	Bias          float64
	Mean          []float64
	Scale         []float64
	BuyThreshold  float64
	SellThreshold float64
}

// Fit trains on samples. It returns ErrInsufficientData for short or
// single-class inputs.
func (c *LogisticClassifier) Fit(samples []Sample) (Model, error) {
	if err := validateSamples(samples); err != nil {
		return nil, err
	}

	mean, scale := standardization(samples)
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = standardize(s.Features, mean, scale)
		if s.Up {
			y[i] = 1
		}
	}

	weights := make([]float64, FeatureCount)
	bias := 0.0
	n := float64(len(samples))
	grad := make([]float64, FeatureCount)

	for epoch := 0; epoch < c.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i, row := range x {
			diff := sigmoid(dot(weights, row)+bias) - y[i]
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range weights {
			weights[j] -= c.LearningRate * (grad[j]/n + c.L2*weights[j])
		}
		bias -= c.LearningRate * gradBias / n
	}

	return &LogisticModel{
		Weights:       weights,
		Bias:          bias,
		Mean:          mean,
		Scale:         scale,
		BuyThreshold:  c.BuyThreshold,
		SellThreshold: c.SellThreshold,
	}, nil
}

// Probability returns the modelled chance that the next close is higher
func (m *LogisticModel) Probability(features []float64) float64 {
	if len(features) != len(m.Weights) {
		return 0.5
	}
	return sigmoid(dot(m.Weights, standardize(features, m.Mean, m.Scale)) + m.Bias)
}

// Predict maps the probability onto BUY / SELL / HOLD
func (m *LogisticModel) Predict(features []float64) Signal {
	p := m.Probability(features)
	switch {
	case p >= m.BuyThreshold:
		return SignalBuy
	case p <= m.SellThreshold:
		return SignalSell
	default:
		return SignalHold
	}
}

func standardization(samples []Sample) (mean, scale []float64) {
	mean = make([]float64, FeatureCount)
	scale = make([]float64, FeatureCount)
	column := make([]float64, len(samples))
	for j := 0; j < FeatureCount; j++ {
		for i, s := range samples {
			column[i] = s.Features[j]
		}
		m, sd := stat.PopMeanStdDev(column, nil)
		mean[j] = m
		if sd < 1e-12 {
			sd = 1
		}
		scale[j] = sd
	}
	return mean, scale
}

func standardize(features, mean, scale []float64) []float64 {
	out := make([]float64, len(features))
	for j, v := range features {
		out[j] = (v - mean[j]) / scale[j]
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
