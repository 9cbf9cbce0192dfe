package indicators

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Series returns the rolling mean over period values. The first period-1
// entries are NaN.
func (s *SMA) Series(values []float64) []float64 {
	out := nanSeries(len(values))
	if s.period <= 0 || len(values) < s.period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= s.period {
			sum -= values[i-s.period]
		}
		if i >= s.period-1 {
			out[i] = sum / float64(s.period)
		}
	}
	return out
}

// Period returns the window length
func (s *SMA) Period() int {
	return s.period
}
