package strategy

import (
	"fmt"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
)

// Params is one point of the optimizer search space
type Params struct {
	ProfitThreshold float64 `json:"profit_threshold"`
	TrailingStop    float64 `json:"trailing_stop"`
}

// DefaultParams returns the thresholds used when no optimization ran
func DefaultParams() Params {
	return Params{ProfitThreshold: 0.03, TrailingStop: 0.02}
}

func (p Params) String() string {
	return fmt.Sprintf("profit_threshold=%.4f trailing_stop=%.4f", p.ProfitThreshold, p.TrailingStop)
}

// Config describes the swing strategy. RiskPercentage has no default and
// must be set explicitly.
type Config struct {
	Budget             float64 `json:"budget"`
	AllocationFraction float64 `json:"allocation_fraction"`
	RiskPercentage     float64 `json:"risk_percentage"`
	QuantityPrecision  int     `json:"quantity_precision"`

	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	WarmupBars    int     `json:"warmup_bars"`

	UseMLGate          bool    `json:"use_ml_gate"`
	UseTakeProfit      bool    `json:"use_take_profit"`
	UseVolumeFilter    bool    `json:"use_volume_filter"`
	VolumeMultiplier   float64 `json:"volume_multiplier"`
	UseSentimentFilter bool    `json:"use_sentiment_filter"`
	MinSentiment       float64 `json:"min_sentiment"`

	Indicators indicators.Config `json:"indicators"`
}

// DefaultConfig returns the reference policy: 1000 budget, 25% allocation,
// RSI 30/70, 200 warm-up bars. RiskPercentage is left unset.
func DefaultConfig() Config {
	return Config{
		Budget:             1000,
		AllocationFraction: 0.25,
		QuantityPrecision:  6,
		RSIOversold:        30,
		RSIOverbought:      70,
		WarmupBars:         200,
		VolumeMultiplier:   1.2,
		Indicators:         indicators.DefaultConfig(),
	}
}

// Validate returns a CONFIG error describing the first invalid field
func (c Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return boterrors.NewConfigurationError("strategy", "Validate", fmt.Sprintf(format, args...))
	}

	switch {
	case c.Budget <= 0:
		return fail("budget must be positive, got %v", c.Budget)
	case c.AllocationFraction <= 0 || c.AllocationFraction > 1:
		return fail("allocation_fraction must be in (0, 1], got %v", c.AllocationFraction)
	case c.RiskPercentage <= 0:
		return fail("risk_percentage is required and must be positive")
	case c.RiskPercentage > 1:
		return fail("risk_percentage must be a fraction, got %v", c.RiskPercentage)
	case c.QuantityPrecision < 0 || c.QuantityPrecision > 16:
		return fail("quantity_precision must be in [0, 16], got %d", c.QuantityPrecision)
	case c.RSIOversold <= 0 || c.RSIOverbought >= 100 || c.RSIOversold >= c.RSIOverbought:
		return fail("rsi thresholds must satisfy 0 < oversold < overbought < 100")
	case c.WarmupBars < 0:
		return fail("warmup_bars must not be negative")
	case c.UseVolumeFilter && c.VolumeMultiplier <= 0:
		return fail("volume_multiplier must be positive when the volume filter is on")
	}
	if err := c.Indicators.Validate(); err != nil {
		return fail("indicators: %v", err)
	}
	return nil
}

// Validate checks that both thresholds are usable fractions
func (p Params) Validate() error {
	if p.ProfitThreshold <= 0 || p.ProfitThreshold >= 1 {
		return boterrors.NewInvalidParameterError("strategy", "Params.Validate",
			fmt.Sprintf("profit_threshold %v outside (0, 1)", p.ProfitThreshold))
	}
	if p.TrailingStop <= 0 || p.TrailingStop >= 1 {
		return boterrors.NewInvalidParameterError("strategy", "Params.Validate",
			fmt.Sprintf("trailing_stop %v outside (0, 1)", p.TrailingStop))
	}
	return nil
}
