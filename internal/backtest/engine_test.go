package backtest

import (
	"testing"

	"github.com/ducminhle1904/crypto-swing-bot/internal/ml"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Fit(samples []ml.Sample) (ml.Model, error) {
	args := m.Called(samples)
	model, _ := args.Get(0).(ml.Model)
	return model, args.Error(1)
}

type constantModel ml.Signal

func (c constantModel) Predict([]float64) ml.Signal {
	return ml.Signal(c)
}

func TestBacktestEngine_ScenarioFlatMarket(t *testing.T) {
	engine := NewBacktestEngine(testConfig())

	results, err := engine.Run(generateFlatData(250, 100), strategy.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 0, results.TotalTrades)
	assert.Equal(t, 0, results.Entries)
	assert.Equal(t, 0.0, results.TotalProfit)
	assert.Equal(t, 0.0, results.SharpeRatio)
	assert.Equal(t, 200, results.StartIndex)
	assert.Nil(t, results.OpenPosition)
}

func TestBacktestEngine_ScenarioSingleSwing(t *testing.T) {
	s := newScriptedSeries(250, 100)
	s.rsi[210] = 25
	s.closes[230] = 110
	s.rsi[230] = 75
	bars, frame := s.build(t)

	engine := NewBacktestEngine(testConfig())
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	results := engine.Evaluate(ds, strategy.DefaultParams())

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, 210, trade.EntryIndex)
	assert.Equal(t, 230, trade.ExitIndex)
	assert.Equal(t, strategy.ReasonRSIOverbought, trade.ExitReason)
	assert.InDelta(t, 0.10*trade.EntryPrice*trade.Quantity, results.TotalProfit, 1e-9)
	assert.Equal(t, 2.5, trade.Quantity)
	assert.Equal(t, 0.0, results.SharpeRatio, "one trade")
	assert.Equal(t, 0.0, results.MaxDrawdown)
}

func TestBacktestEngine_WarmupGating(t *testing.T) {
	engine := NewBacktestEngine(testConfig())

	// every bar of this short history would be an entry signal
	s := newScriptedSeries(150, 100)
	for i := range s.rsi {
		s.rsi[i] = 20
	}
	bars, frame := s.build(t)
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)

	results := engine.Evaluate(ds, strategy.DefaultParams())
	assert.Equal(t, 0, results.Entries)
	assert.Empty(t, results.Trades)

	real, err := engine.Run(generateWaveData(199), strategy.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, real.Entries)
	assert.Equal(t, 200, real.StartIndex)
}

func TestBacktestEngine_Deterministic(t *testing.T) {
	engine := NewBacktestEngine(testConfig())
	bars, frame := swingScenario(t, 210, 260, 310)
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)

	params := strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.035}
	first := engine.Evaluate(ds, params)
	second := engine.Evaluate(ds, params)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Trades, second.Trades)

	wave := generateWaveData(600)
	a, err := engine.Run(wave, params)
	require.NoError(t, err)
	b, err := engine.Run(wave, params)
	require.NoError(t, err)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestBacktestEngine_SinglePositionInvariant(t *testing.T) {
	s := newScriptedSeries(400, 100)
	// repeated oversold readings while long must not add entries
	for _, i := range []int{210, 212, 214, 300, 301} {
		s.rsi[i] = 25
	}
	s.rsi[220] = 75
	bars, frame := s.build(t)

	engine := NewBacktestEngine(testConfig())
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	results := engine.Evaluate(ds, strategy.DefaultParams())

	assert.Equal(t, 2, results.Entries)
	assert.Equal(t, 1, results.Exits)
	assert.LessOrEqual(t, results.Entries-results.Exits, 1)
	require.NotNil(t, results.OpenPosition)
	assert.Equal(t, 300, results.OpenPosition.EntryIndex)

	for k := 1; k < len(results.Trades); k++ {
		assert.Less(t, results.Trades[k-1].ExitIndex, results.Trades[k].EntryIndex)
	}
}

func TestBacktestEngine_OpenPositionIsDropped(t *testing.T) {
	s := newScriptedSeries(250, 100)
	s.rsi[240] = 25
	s.closes[249] = 150
	bars, frame := s.build(t)

	engine := NewBacktestEngine(testConfig())
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	results := engine.Evaluate(ds, strategy.DefaultParams())

	assert.Equal(t, 0.0, results.TotalProfit)
	assert.Empty(t, results.Trades)
	require.NotNil(t, results.OpenPosition)
	assert.Equal(t, 100.0, results.OpenPosition.EntryPrice)
}

func TestBacktestEngine_TakeProfitChangesOutcome(t *testing.T) {
	bars, frame := swingScenario(t, 210)
	params := strategy.Params{ProfitThreshold: 0.05, TrailingStop: 0.05}

	plain := NewBacktestEngine(testConfig())
	ds, err := plain.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	assert.InDelta(t, 3*2.5, plain.Evaluate(ds, params).TotalProfit, 1e-9)

	cfg := testConfig()
	cfg.UseTakeProfit = true
	withTP := NewBacktestEngine(cfg)
	ds, err = withTP.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	res := withTP.Evaluate(ds, params)
	assert.InDelta(t, 12*2.5, res.TotalProfit, 1e-9)
	assert.Equal(t, strategy.ReasonTakeProfit, res.Trades[0].ExitReason)
}

func TestBacktestEngine_MLGateFallsBackOnInsufficientData(t *testing.T) {
	cfg := testConfig()
	cfg.UseMLGate = true
	engine := NewBacktestEngine(cfg)

	// a flat history has a single-class target
	ds, err := engine.Prepare(generateFlatData(250, 100))
	require.NoError(t, err)
	assert.False(t, ds.GateActive)

	bars, frame := swingScenario(t, 210)
	ds, err = engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)
	assert.False(t, ds.GateActive, "scripted prefix has no up moves")
	assert.Equal(t, 1, engine.Evaluate(ds, strategy.DefaultParams()).Entries)
}

func TestBacktestEngine_MLGateBlocksEntries(t *testing.T) {
	cfg := testConfig()
	cfg.UseMLGate = true
	model := constantModel(ml.SignalHold)

	clf := &mockClassifier{}
	clf.On("Fit", mock.Anything).Return(model, nil).Once()

	engine := NewBacktestEngine(cfg, WithClassifier(clf))
	bars, frame := swingScenario(t, 210)
	ds, err := engine.PrepareWithFrame(bars, frame)
	require.NoError(t, err)

	assert.True(t, ds.GateActive)
	results := engine.Evaluate(ds, strategy.DefaultParams())
	assert.Equal(t, 0, results.Entries)
	assert.True(t, results.MLGateActive)
	clf.AssertExpectations(t)
}

func TestBacktestEngine_MLGateTrainsOnPrefixOnly(t *testing.T) {
	cfg := testConfig()
	cfg.UseMLGate = true
	wave := generateWaveData(400)

	clf := &mockClassifier{}
	clf.On("Fit", mock.MatchedBy(func(samples []ml.Sample) bool {
		// rows stop one bar before the decision window
		return len(samples) > 0 && len(samples) <= 198
	})).Return(constantModel(ml.SignalBuy), nil).Once()

	engine := NewBacktestEngine(cfg, WithClassifier(clf))
	ds, err := engine.Prepare(wave)
	require.NoError(t, err)
	assert.True(t, ds.GateActive)
	clf.AssertExpectations(t)
}

func TestBacktestEngine_RejectsUnorderedBars(t *testing.T) {
	bars := generateFlatData(10, 100)
	bars[5].Timestamp = bars[4].Timestamp

	_, err := NewBacktestEngine(testConfig()).Run(bars, strategy.DefaultParams())
	assert.Error(t, err)

	_, err = NewBacktestEngine(testConfig()).PrepareWithFrame(generateFlatData(10, 100), nil)
	assert.Error(t, err)

	results, err := NewBacktestEngine(testConfig()).Run([]types.OHLCV{}, strategy.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, results.TotalTrades)
}
