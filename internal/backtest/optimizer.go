package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Range is a closed interval of a search dimension
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) at(u float64) float64 {
	return r.Min + u*(r.Max-r.Min)
}

func (r Range) unit(v float64) float64 {
	return (v - r.Min) / (r.Max - r.Min)
}

// Bounds is the search domain of the optimizer
type Bounds struct {
	ProfitThreshold Range `json:"profit_threshold"`
	TrailingStop    Range `json:"trailing_stop"`
}

// DefaultBounds searches both thresholds over [0.01, 0.1]
func DefaultBounds() Bounds {
	return Bounds{
		ProfitThreshold: Range{Min: 0.01, Max: 0.1},
		TrailingStop:    Range{Min: 0.01, Max: 0.1},
	}
}

// Validate checks that both ranges are non-empty fractions
func (b Bounds) Validate() error {
	for name, r := range map[string]Range{"profit_threshold": b.ProfitThreshold, "trailing_stop": b.TrailingStop} {
		if !(r.Min > 0 && r.Max < 1 && r.Min < r.Max) {
			return boterrors.NewInvalidParameterError("optimizer", "Bounds.Validate",
				fmt.Sprintf("%s range [%v, %v] must satisfy 0 < min < max < 1", name, r.Min, r.Max))
		}
	}
	return nil
}

// Check returns an INVALID_PARAMETER error when p lies outside the bounds
func (b Bounds) Check(p strategy.Params) error {
	if !b.ProfitThreshold.Contains(p.ProfitThreshold) || !b.TrailingStop.Contains(p.TrailingStop) {
		return boterrors.NewInvalidParameterError("optimizer", "Bounds.Check",
			fmt.Sprintf("candidate %s outside bounds", p))
	}
	return nil
}

func (b Bounds) denormalize(u []float64) strategy.Params {
	return strategy.Params{
		ProfitThreshold: b.ProfitThreshold.at(u[0]),
		TrailingStop:    b.TrailingStop.at(u[1]),
	}
}

func (b Bounds) normalize(p strategy.Params) []float64 {
	return []float64{b.ProfitThreshold.unit(p.ProfitThreshold), b.TrailingStop.unit(p.TrailingStop)}
}

// OptimizerConfig controls the search budget
type OptimizerConfig struct {
	InitPoints  int     `json:"init_points"`
	Iterations  int     `json:"iterations"`
	Seed        int64   `json:"seed"`
	Workers     int     `json:"workers"`
	Candidates  int     `json:"candidates"`
	Xi          float64 `json:"xi"`
	LengthScale float64 `json:"length_scale"`
	Noise       float64 `json:"noise"`
}

// DefaultOptimizerConfig is 10 random points then 30 guided ones, seed 42
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		InitPoints:  10,
		Iterations:  30,
		Seed:        42,
		Workers:     0,
		Candidates:  1000,
		Xi:          0.01,
		LengthScale: 0.2,
		Noise:       1e-6,
	}
}

// Validate checks the search budget
func (c OptimizerConfig) Validate() error {
	switch {
	case c.InitPoints < 1:
		return boterrors.NewConfigurationError("optimizer", "Validate", "init_points must be at least 1")
	case c.Iterations < 0:
		return boterrors.NewConfigurationError("optimizer", "Validate", "iterations must not be negative")
	case c.Candidates < 1:
		return boterrors.NewConfigurationError("optimizer", "Validate", "candidates must be at least 1")
	case c.LengthScale <= 0 || c.Noise <= 0:
		return boterrors.NewConfigurationError("optimizer", "Validate", "length_scale and noise must be positive")
	}
	return nil
}

// Phases of a trial
const (
	PhaseRandom = "random"
	PhaseGuided = "guided"
)

// Trial is one evaluated candidate
type Trial struct {
	Iteration int              `json:"iteration"`
	Phase     string           `json:"phase"`
	Params    strategy.Params  `json:"params"`
	Objective float64          `json:"objective"`
	Results   *BacktestResults `json:"-"`
}

// OptimizationResult holds the best sampled point and the full history
type OptimizationResult struct {
	BestParams    strategy.Params  `json:"best_params"`
	BestObjective float64          `json:"best_objective"`
	BestResults   *BacktestResults `json:"-"`
	Trials        []Trial          `json:"trials"`
	Seed          int64            `json:"seed"`
	Duration      time.Duration    `json:"duration"`
}

// ParameterOptimizer searches (profit_threshold, trailing_stop) with a
// Gaussian-process surrogate and expected improvement, using the total
// profit of a backtest as the objective.
type ParameterOptimizer struct {
	engine *BacktestEngine
	cfg    OptimizerConfig
	logger *zap.Logger
}

// NewParameterOptimizer creates an optimizer over engine
func NewParameterOptimizer(engine *BacktestEngine, cfg OptimizerConfig, logger *zap.Logger) *ParameterOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParameterOptimizer{engine: engine, cfg: cfg, logger: logger}
}

// Optimize prepares bars once and searches bounds
func (o *ParameterOptimizer) Optimize(ctx context.Context, bars []types.OHLCV, bounds Bounds) (*OptimizationResult, error) {
	ds, err := o.engine.Prepare(bars)
	if err != nil {
		return nil, err
	}
	return o.OptimizeDataset(ctx, ds, bounds)
}

// OptimizeDataset searches bounds over an already prepared dataset
func (o *ParameterOptimizer) OptimizeDataset(ctx context.Context, ds *Dataset, bounds Bounds) (*OptimizationResult, error) {
	return o.search(ctx, bounds, func(_ context.Context, params strategy.Params) (*BacktestResults, error) {
		return o.engine.Evaluate(ds, params), nil
	})
}

func (o *ParameterOptimizer) search(ctx context.Context, bounds Bounds, evaluate EvaluateFunc) (*OptimizationResult, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	total := o.cfg.InitPoints + o.cfg.Iterations
	progress := NewProgressTracker(total)
	trials := make([]Trial, 0, total)

	// Random exploration: every point comes from the seed stream up front so
	// parallel evaluation cannot change which points are sampled.
	rng := rand.New(rand.NewSource(o.cfg.Seed))
	initial := make([]strategy.Params, o.cfg.InitPoints)
	for i := range initial {
		p := bounds.denormalize([]float64{rng.Float64(), rng.Float64()})
		if err := bounds.Check(p); err != nil {
			return nil, err
		}
		initial[i] = p
	}

	evaluated, err := EvaluateAll(ctx, o.cfg.Workers, initial, evaluate)
	if err != nil {
		return nil, err
	}
	for i, res := range evaluated {
		if res.Error != nil {
			return nil, fmt.Errorf("evaluate %s: %w", res.Params, res.Error)
		}
		trials = append(trials, newTrial(i, PhaseRandom, res.Params, res.Results))
		progress.Increment()
	}

	gp := newGaussianProcess(o.cfg.LengthScale, o.cfg.Noise)
	for k := 0; k < o.cfg.Iterations; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := o.nextCandidate(gp, bounds, trials, rand.New(rand.NewSource(o.cfg.Seed+int64(k)+1)))
		if err := bounds.Check(p); err != nil {
			return nil, err
		}

		results, err := evaluate(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", p, err)
		}
		trials = append(trials, newTrial(o.cfg.InitPoints+k, PhaseGuided, p, results))
		progress.Increment()

		done, all, pct, _ := progress.GetProgress()
		o.logger.Debug("optimizer trial",
			zap.Int("done", done), zap.Int("total", all), zap.Float64("percent", pct),
			zap.Float64("profit_threshold", p.ProfitThreshold),
			zap.Float64("trailing_stop", p.TrailingStop),
			zap.Float64("objective", trials[len(trials)-1].Objective))
	}

	best := trials[0]
	for _, t := range trials[1:] {
		if t.Objective > best.Objective {
			best = t
		}
	}

	result := &OptimizationResult{
		BestParams:    best.Params,
		BestObjective: best.Objective,
		BestResults:   best.Results,
		Trials:        trials,
		Seed:          o.cfg.Seed,
		Duration:      time.Since(started),
	}
	o.logger.Info("optimization finished",
		zap.Int("trials", len(trials)),
		zap.Float64("best_profit_threshold", best.Params.ProfitThreshold),
		zap.Float64("best_trailing_stop", best.Params.TrailingStop),
		zap.Float64("best_objective", best.Objective),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// nextCandidate maximizes expected improvement over random points of the
// unit square. Without a usable surrogate the first random point is taken.
func (o *ParameterOptimizer) nextCandidate(gp *gaussianProcess, bounds Bounds, trials []Trial, rng *rand.Rand) strategy.Params {
	x := make([][]float64, len(trials))
	y := make([]float64, len(trials))
	bestY := trials[0].Objective
	for i, t := range trials {
		x[i] = bounds.normalize(t.Params)
		y[i] = t.Objective
		if t.Objective > bestY {
			bestY = t.Objective
		}
	}

	surrogate := gp.Fit(x, y) == nil

	var bestU []float64
	bestEI := -1.0
	for c := 0; c < o.cfg.Candidates; c++ {
		u := []float64{rng.Float64(), rng.Float64()}
		if !surrogate {
			return bounds.denormalize(u)
		}
		mean, std := gp.Predict(u)
		if ei := expectedImprovement(mean, std, bestY, o.cfg.Xi); ei > bestEI {
			bestEI = ei
			bestU = u
		}
	}
	return bounds.denormalize(bestU)
}

func newTrial(iteration int, phase string, params strategy.Params, results *BacktestResults) Trial {
	objective := 0.0
	if results != nil {
		objective = results.TotalProfit
	}
	return Trial{
		Iteration: iteration,
		Phase:     phase,
		Params:    params,
		Objective: objective,
		Results:   results,
	}
}
