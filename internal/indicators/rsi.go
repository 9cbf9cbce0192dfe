package indicators

import "math"

// RSI calculates the Relative Strength Index using Wilder smoothing
type RSI struct {
	period int
}

// NewRSI creates a new RSI instance with the given period
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Series returns one RSI value per price. The first period values are NaN.
//
// The first average gain/loss is the plain mean of the first period changes,
// after that avg = (prev*(period-1) + current) / period. A window with no
// movement at all yields 50 so a flat market reads as neutral.
func (r *RSI) Series(prices []float64) []float64 {
	out := nanSeries(len(prices))
	if r.period <= 0 || len(prices) <= r.period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= r.period; i++ {
		gain, loss := splitChange(prices[i] - prices[i-1])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(r.period)
	avgGain /= p
	avgLoss /= p
	out[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < len(prices); i++ {
		gain, loss := splitChange(prices[i] - prices[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// Period returns the lookback period
func (r *RSI) Period() int {
	return r.period
}

func splitChange(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, math.Abs(change)
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgGain+avgLoss == 0 {
		return 50
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
