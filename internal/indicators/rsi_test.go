package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSI_FlatSeriesIsNeutral(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}

	values := NewRSI(14).Series(prices)

	assert.Len(t, values, 30)
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(values[i]), "index %d should be undefined", i)
	}
	for i := 14; i < 30; i++ {
		assert.Equal(t, 50.0, values[i])
	}
}

func TestRSI_RisingSeriesSaturates(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	values := NewRSI(14).Series(prices)
	assert.Equal(t, 100.0, values[19])
}

func TestRSI_WilderSmoothing(t *testing.T) {
	// changes: +1, -1, +1 with period 2
	values := NewRSI(2).Series([]float64{1, 2, 1, 2})

	assert.True(t, math.IsNaN(values[1]))
	assert.InDelta(t, 50.0, values[2], 1e-12)
	// avgGain = (0.5*1 + 1)/2 = 0.75, avgLoss = 0.25, RS = 3
	assert.InDelta(t, 75.0, values[3], 1e-12)
}

func TestRSI_ShortInput(t *testing.T) {
	values := NewRSI(14).Series([]float64{1, 2, 3})
	assert.Len(t, values, 3)
	for _, v := range values {
		assert.True(t, math.IsNaN(v))
	}
}
