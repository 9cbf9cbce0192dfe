package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// PositionSizer sizes entries under the allocation and risk caps:
//
//	qty = min(budget*fraction/price, budget*riskPercentage/ATR)
//
// rounded to the instrument's quantity precision.
type PositionSizer struct {
	Budget         float64
	Fraction       float64
	RiskPercentage float64
	Precision      int
}

// NewPositionSizer builds a sizer from the strategy config
func NewPositionSizer(cfg Config) PositionSizer {
	return PositionSizer{
		Budget:         cfg.Budget,
		Fraction:       cfg.AllocationFraction,
		RiskPercentage: cfg.RiskPercentage,
		Precision:      cfg.QuantityPrecision,
	}
}

// RawQuantity returns the unrounded size. A zero or undefined stop
// distance falls back to the allocation cap alone.
func (s PositionSizer) RawQuantity(price, atr float64) float64 {
	if price <= 0 || s.Budget <= 0 {
		return 0
	}
	qty := s.Budget * s.Fraction / price
	if atr > 0 && !math.IsNaN(atr) && !math.IsInf(atr, 0) {
		qty = math.Min(qty, s.Budget*s.RiskPercentage/atr)
	}
	return qty
}

// Quantity returns the rounded size; zero means the entry cannot be sized
func (s PositionSizer) Quantity(price, atr float64) float64 {
	raw := s.RawQuantity(price, atr)
	if raw <= 0 {
		return 0
	}
	return RoundQuantity(raw, s.Precision)
}

// RoundQuantity rounds half away from zero to precision decimals
func RoundQuantity(qty float64, precision int) float64 {
	return decimal.NewFromFloat(qty).Round(int32(precision)).InexactFloat64()
}

// FormatQuantity renders a quantity with exactly precision decimals
func FormatQuantity(qty float64, precision int) string {
	return decimal.NewFromFloat(qty).StringFixed(int32(precision))
}
