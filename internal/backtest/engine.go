package backtest

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/internal/ml"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// BacktestEngine replays a price history through the swing strategy. It
// performs no I/O and reads no clock, so equal inputs give equal results.
type BacktestEngine struct {
	cfg        strategy.Config
	symbol     string
	classifier ml.Classifier
	logger     *zap.Logger
}

// EngineOption configures a BacktestEngine
type EngineOption func(*BacktestEngine)

// WithClassifier sets the classifier fitted when the ML gate is enabled
func WithClassifier(c ml.Classifier) EngineOption {
	return func(b *BacktestEngine) {
		b.classifier = c
	}
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(b *BacktestEngine) {
		b.logger = logger
	}
}

// WithSymbol labels trades and results
func WithSymbol(symbol string) EngineOption {
	return func(b *BacktestEngine) {
		b.symbol = symbol
	}
}

// NewBacktestEngine creates an engine. The logistic classifier is used
// for the ML gate unless another one is supplied.
func NewBacktestEngine(cfg strategy.Config, opts ...EngineOption) *BacktestEngine {
	b := &BacktestEngine{
		cfg:        cfg,
		symbol:     "BACKTEST",
		classifier: ml.NewLogisticClassifier(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the strategy configuration used by the engine
func (b *BacktestEngine) Config() strategy.Config {
	return b.cfg
}

// Dataset is a price history prepared for repeated evaluation: the frame
// is computed and the classifier fitted once. It is read-only afterwards
// and safe to share between concurrent evaluations.
type Dataset struct {
	Bars  []types.OHLCV
	Frame *indicators.Frame
	Start int

	GateActive bool
	signals    []ml.Signal
}

// BacktestResults is the outcome of one evaluation
type BacktestResults struct {
	Summary
	Symbol       string
	Params       strategy.Params
	Trades       []strategy.Trade
	Entries      int
	Exits        int
	StartIndex   int
	Bars         int
	MLGateActive bool
	StartTime    time.Time
	EndTime      time.Time

	// OpenPosition is the position still held at the last bar. It is not
	// closed and does not contribute to the metrics.
	OpenPosition *strategy.Position
}

// Prepare validates bars, computes the indicator frame and, when the ML
// gate is enabled, fits the classifier on the bars before the decision
// window.
func (b *BacktestEngine) Prepare(bars []types.OHLCV) (*Dataset, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	return b.prepare(bars, indicators.Compute(bars, b.cfg.Indicators))
}

// PrepareWithFrame is Prepare with a pre-computed frame
func (b *BacktestEngine) PrepareWithFrame(bars []types.OHLCV, frame *indicators.Frame) (*Dataset, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	if frame == nil || frame.Len() != len(bars) {
		return nil, fmt.Errorf("frame does not cover %d bars", len(bars))
	}
	return b.prepare(bars, frame)
}

func (b *BacktestEngine) prepare(bars []types.OHLCV, frame *indicators.Frame) (*Dataset, error) {
	ds := &Dataset{
		Bars:    bars,
		Frame:   frame,
		Start:   b.decisionStart(frame),
		signals: make([]ml.Signal, len(bars)),
	}

	if !b.cfg.UseMLGate || b.classifier == nil || ds.Start >= len(bars) {
		return ds, nil
	}

	model, err := b.classifier.Fit(ml.BuildSamples(bars, frame, ds.Start))
	if err != nil {
		if errors.Is(err, boterrors.ErrInsufficientData) {
			b.logger.Info("ml gate disabled, falling back to indicator signals",
				zap.String("symbol", b.symbol), zap.Error(err))
			return ds, nil
		}
		return nil, err
	}

	ds.GateActive = true
	for i := ds.Start; i < len(bars); i++ {
		if features, ok := ml.Features(bars, frame, i); ok {
			ds.signals[i] = model.Predict(features)
		}
	}
	return ds, nil
}

// decisionStart is the configured warm-up, pushed later when a referenced
// indicator is still undefined
func (b *BacktestEngine) decisionStart(frame *indicators.Frame) int {
	cols := strategy.EntryColumns
	if b.cfg.UseVolumeFilter {
		cols = append(append([]indicators.Column(nil), cols...), indicators.ColVolumeSMA)
	}
	start := frame.WarmupFor(cols...)
	if b.cfg.WarmupBars > start {
		start = b.cfg.WarmupBars
	}
	return start
}

// Evaluate runs the strategy over ds with params. Each call uses a fresh
// PositionManager and PerformanceTracker. Fills happen at the bar close.
func (b *BacktestEngine) Evaluate(ds *Dataset, params strategy.Params) *BacktestResults {
	pm := strategy.NewPositionManager(b.symbol, b.cfg, params, strategy.WithLogger(b.logger))
	tracker := NewPerformanceTracker()

	for i := ds.Start; i < len(ds.Bars); i++ {
		d := pm.Evaluate(strategy.Input{
			Index:      i,
			Bars:       ds.Bars,
			Frame:      ds.Frame,
			Signal:     ds.signals[i],
			GateActive: ds.GateActive,
		})
		if d.Action == strategy.ActionHold {
			continue
		}

		trade, err := pm.Commit(d)
		if err != nil {
			b.logger.Warn("decision rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		if trade != nil {
			tracker.OnTrade(*trade)
		}
	}

	entries, exits := pm.Transitions()
	results := &BacktestResults{
		Summary:      tracker.Summary(),
		Symbol:       b.symbol,
		Params:       params,
		Trades:       tracker.Trades(),
		Entries:      entries,
		Exits:        exits,
		StartIndex:   ds.Start,
		Bars:         len(ds.Bars),
		MLGateActive: ds.GateActive,
	}
	if len(ds.Bars) > 0 {
		results.StartTime = ds.Bars[0].Timestamp
		results.EndTime = ds.Bars[len(ds.Bars)-1].Timestamp
	}
	if pos := pm.Position(); pos.IsOpen() {
		results.OpenPosition = &pos
	}
	return results
}

// Run prepares bars and evaluates params once
func (b *BacktestEngine) Run(bars []types.OHLCV, params strategy.Params) (*BacktestResults, error) {
	ds, err := b.Prepare(bars)
	if err != nil {
		return nil, err
	}
	return b.Evaluate(ds, params), nil
}

// ValidateBars checks that timestamps strictly increase and prices are
// positive
func ValidateBars(bars []types.OHLCV) error {
	for i, bar := range bars {
		if bar.Close <= 0 || bar.High < bar.Low {
			return fmt.Errorf("bar %d has invalid prices (close=%v high=%v low=%v)", i, bar.Close, bar.High, bar.Low)
		}
		if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d timestamp %s is not after %s", i, bar.Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}
