package indicators

import (
	"math"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// ATR represents the Average True Range technical indicator.
// It is the simple rolling mean of the true range over period bars.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Series returns one ATR value per bar, NaN before period-1
func (a *ATR) Series(bars []types.OHLCV) []float64 {
	tr := make([]float64, len(bars))
	for i, bar := range bars {
		if i == 0 {
			tr[i] = bar.High - bar.Low // first candle has no previous close
			continue
		}
		tr[i] = TrueRange(bar, bars[i-1].Close)
	}
	return NewSMA(a.period).Series(tr)
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(bar types.OHLCV, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low,
		math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
