package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPositionSizer_ZeroATRFallsBackToAllocation(t *testing.T) {
	sizer := PositionSizer{Budget: 1000, Fraction: 0.25, RiskPercentage: 0.01, Precision: 6}

	assert.Equal(t, 2.5, sizer.RawQuantity(100, 0))
	assert.Equal(t, 0.0, sizer.RawQuantity(0, 1))
	assert.Equal(t, 0.0, PositionSizer{Budget: 0, Fraction: 0.25}.Quantity(100, 1))
}

func TestPositionSizer_RoundingProperty(t *testing.T) {
	prices := []float64{0.0123, 1.7, 33.333, 101.01, 2718.28, 43210.5, 99999.99}
	atrs := []float64{0, 0.001, 0.5, 7.3, 250}

	for precision := 2; precision <= 6; precision++ {
		sizer := PositionSizer{Budget: 1000, Fraction: 0.25, RiskPercentage: 0.02, Precision: precision}
		for _, price := range prices {
			for _, atr := range atrs {
				raw := sizer.RawQuantity(price, atr)
				qty := sizer.Quantity(price, atr)
				want := decimal.NewFromFloat(raw).Round(int32(precision)).InexactFloat64()
				assert.Equal(t, want, qty, "price=%v atr=%v precision=%d", price, atr, precision)
				if qty != 0 {
					assert.Greater(t, qty, 0.0)
				}
			}
		}
	}
}

func TestRoundQuantity(t *testing.T) {
	assert.Equal(t, 0.124, RoundQuantity(0.1235, 3))
	assert.Equal(t, 2.0, RoundQuantity(1.5, 0))
	assert.Equal(t, "0.120", FormatQuantity(0.12, 3))
}
