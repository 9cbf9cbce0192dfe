package indicators

// MACD represents the Moving Average Convergence Divergence indicator
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// MACDSeries holds the aligned outputs of a MACD computation
type MACDSeries struct {
	Fast   []float64
	Slow   []float64
	MACD   []float64
	Signal []float64
}

// NewMACD creates a new MACD indicator
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
	}
}

// Series computes MACD = EMA(fast) - EMA(slow) and Signal = EMA(MACD, signal).
// Because every EMA is seeded at the first value, all outputs are defined
// from index 0.
func (m *MACD) Series(prices []float64) MACDSeries {
	fast := NewEMA(m.fastPeriod).Series(prices)
	slow := NewEMA(m.slowPeriod).Series(prices)

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}

	return MACDSeries{
		Fast:   fast,
		Slow:   slow,
		MACD:   line,
		Signal: NewEMA(m.signalPeriod).Series(line),
	}
}
