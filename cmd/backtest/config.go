package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	"github.com/ducminhle1904/crypto-swing-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// Constants for default configuration values
const (
	DefaultDataRoot   = "data"
	DefaultExchange   = "bybit"
	DefaultCategory   = "spot"
	DefaultRisk       = 0.01 // fraction of budget risked per ATR
	DefaultSplitRatio = 0.0  // no holdout
	DefaultTopTrials  = 10
)

// BacktestOptions holds the command line settings
type BacktestOptions struct {
	ConfigFile string
	DataFile   string
	DataRoot   string
	Exchange   string
	Category   string
	Symbol     string
	Interval   string
	Period     time.Duration

	Fetch   bool
	Candles int
	Testnet bool

	Optimize   bool
	SplitRatio float64
	Seed       int64
	Iterations int
	InitPoints int
	Workers    int

	ProfitThreshold float64
	TrailingStop    float64
	Risk            float64
	MLGate          *bool
	TakeProfit      *bool

	OutputDir   string
	ConsoleOnly bool
	TopTrials   int
	LogLevel    string
}

// Setup is the resolved strategy and search configuration
type Setup struct {
	Strategy  strategy.Config
	Params    strategy.Params
	Optimizer backtest.OptimizerConfig
	Bounds    backtest.Bounds
}

// resolveSetup loads the optional agent config and applies flag overrides
func resolveSetup(opts *BacktestOptions) (*Setup, error) {
	var cfg *config.AgentConfig
	if strings.TrimSpace(opts.ConfigFile) != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if opts.Symbol == "" && len(cfg.Symbols) > 0 {
			opts.Symbol = cfg.Symbols[0]
		}
		if opts.Interval == "" {
			opts.Interval = cfg.Interval
		}
		if opts.Category == "" {
			opts.Category = cfg.Exchange.Category
		}
	} else {
		cfg = config.Default()
	}

	if opts.Symbol == "" {
		opts.Symbol = "BTCUSDT"
	}
	opts.Symbol = strings.ToUpper(strings.TrimSpace(opts.Symbol))
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}

	setup := &Setup{
		Strategy:  cfg.Strategy,
		Params:    cfg.Params,
		Optimizer: cfg.Optimizer.OptimizerConfig,
		Bounds:    cfg.Optimizer.Bounds,
	}

	switch {
	case opts.Risk > 0:
		setup.Strategy.RiskPercentage = opts.Risk
	case setup.Strategy.RiskPercentage == 0:
		setup.Strategy.RiskPercentage = DefaultRisk
	}
	if opts.MLGate != nil {
		setup.Strategy.UseMLGate = *opts.MLGate
	}
	if opts.TakeProfit != nil {
		setup.Strategy.UseTakeProfit = *opts.TakeProfit
	}
	if opts.ProfitThreshold > 0 {
		setup.Params.ProfitThreshold = opts.ProfitThreshold
	}
	if opts.TrailingStop > 0 {
		setup.Params.TrailingStop = opts.TrailingStop
	}
	if opts.Seed != 0 {
		setup.Optimizer.Seed = opts.Seed
	}
	if opts.Iterations > 0 {
		setup.Optimizer.Iterations = opts.Iterations
	}
	if opts.InitPoints > 0 {
		setup.Optimizer.InitPoints = opts.InitPoints
	}
	if opts.Workers > 0 {
		setup.Optimizer.Workers = opts.Workers
	}

	if err := setup.Strategy.Validate(); err != nil {
		return nil, err
	}
	if err := setup.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Optimize {
		if err := setup.Optimizer.Validate(); err != nil {
			return nil, err
		}
		if err := setup.Bounds.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.SplitRatio < 0 || opts.SplitRatio >= 1 {
		return nil, boterrors.NewConfigurationError("backtest", "resolveSetup",
			fmt.Sprintf("split ratio %v must be in [0, 1)", opts.SplitRatio))
	}
	return setup, nil
}
