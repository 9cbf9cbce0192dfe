package indicators

import (
	"gonum.org/v1/gonum/stat"
)

// BollingerBands represents the Bollinger Bands technical indicator
type BollingerBands struct {
	period int
	stdDev float64
}

// BandSeries holds the aligned band outputs
type BandSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// NewBollingerBands creates a new Bollinger Bands indicator
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{
		period: period,
		stdDev: stdDev,
	}
}

// Series returns mean ± k·std over a rolling window, using the sample
// standard deviation. Entries before period-1 are NaN.
func (bb *BollingerBands) Series(prices []float64) BandSeries {
	n := len(prices)
	bands := BandSeries{
		Upper:  nanSeries(n),
		Middle: nanSeries(n),
		Lower:  nanSeries(n),
	}
	if bb.period < 2 || n < bb.period {
		return bands
	}

	for i := bb.period - 1; i < n; i++ {
		window := prices[i-bb.period+1 : i+1]
		mean, std := stat.MeanStdDev(window, nil)
		bands.Middle[i] = mean
		bands.Upper[i] = mean + bb.stdDev*std
		bands.Lower[i] = mean - bb.stdDev*std
	}
	return bands
}
