package indicators

// EMA represents the Exponential Moving Average technical indicator
type EMA struct {
	period int
	alpha  float64
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1), // Standard EMA alpha calculation
	}
}

// Series returns the recursive EMA of values, seeded by the first value.
// NaN inputs propagate until the first defined value, which then seeds.
func (e *EMA) Series(values []float64) []float64 {
	out := nanSeries(len(values))
	seeded := false
	var last float64
	for i, v := range values {
		if isUndefined(v) {
			continue
		}
		if !seeded {
			last = v
			seeded = true
		} else {
			// EMA = (Value * Alpha) + (Previous EMA * (1 - Alpha))
			last = v*e.alpha + last*(1-e.alpha)
		}
		out[i] = last
	}
	return out
}

// Period returns the span of the average
func (e *EMA) Period() int {
	return e.period
}
