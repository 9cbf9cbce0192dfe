// Package agent runs the swing strategy against live market data. Each
// cycle evaluates the last closed bar of every symbol and commits a
// decision only when its order was filled.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-swing-bot/internal/ml"
	"github.com/ducminhle1904/crypto-swing-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-swing-bot/internal/state"
	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Notifier delivers a message without blocking the caller
type Notifier interface {
	Notify(subject, body string)
}

// StateSaver persists snapshots after every filled order
type StateSaver interface {
	Save(snap state.Snapshot) error
}

// Config holds the loop settings
type Config struct {
	Symbols      []string
	Interval     string
	BarDuration  time.Duration // used to drop the still-forming bar, 0 keeps all
	CandleLimit  int
	PollInterval time.Duration
	CycleTimeout time.Duration
	LimitOffset  float64

	Strategy strategy.Config
	Params   strategy.Params
	Retry    exchange.RetryPolicy

	OptimizeOnStart bool
	OptimizeCandles int
	Optimizer       backtest.OptimizerConfig
	Bounds          backtest.Bounds
}

// OptimizationSummary is the outcome of a startup optimization
type OptimizationSummary struct {
	BestParams    strategy.Params `json:"best_params"`
	BestObjective float64         `json:"best_objective"`
	Trials        int             `json:"trials"`
	Seed          int64           `json:"seed"`
	Duration      string          `json:"duration"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// SymbolStatus is the published state of one symbol
type SymbolStatus struct {
	Symbol         string               `json:"symbol"`
	Params         strategy.Params      `json:"params"`
	State          string               `json:"state"`
	EntryPrice     float64              `json:"entry_price,omitempty"`
	Quantity       float64              `json:"quantity,omitempty"`
	LastPrice      float64              `json:"last_price"`
	LastBarTime    time.Time            `json:"last_bar_time"`
	LastDecision   string               `json:"last_decision"`
	LastReason     string               `json:"last_reason"`
	MLGateActive   bool                 `json:"ml_gate_active"`
	Trades         int                  `json:"trades"`
	RealizedProfit float64              `json:"realized_profit"`
	Optimization   *OptimizationSummary `json:"optimization,omitempty"`
}

// FrameFunc computes the indicator frame of a history
type FrameFunc func(bars []types.OHLCV, cfg indicators.Config) *indicators.Frame

type symbolState struct {
	pm     *strategy.PositionManager
	status SymbolStatus
}

// Agent is the live scheduler. Create it with New.
type Agent struct {
	cfg        Config
	market     exchange.MarketDataSource
	executor   exchange.OrderExecutor
	ledger     ledger.Ledger
	notifier   Notifier
	classifier ml.Classifier
	frames     FrameFunc
	health     *monitoring.HealthChecker
	store      StateSaver
	clock      clock.Clock
	logger     *zap.Logger

	mu      sync.RWMutex
	symbols map[string]*symbolState
	balance float64
}

// Option configures an Agent
type Option func(*Agent)

// WithLedger records filled orders
func WithLedger(l ledger.Ledger) Option {
	return func(a *Agent) { a.ledger = l }
}

// WithNotifier sends trade and failure messages
func WithNotifier(n Notifier) Option {
	return func(a *Agent) { a.notifier = n }
}

// WithClassifier replaces the logistic classifier used by the ML gate
func WithClassifier(c ml.Classifier) Option {
	return func(a *Agent) { a.classifier = c }
}

// WithFrameFunc replaces indicators.Compute
func WithFrameFunc(f FrameFunc) Option {
	return func(a *Agent) { a.frames = f }
}

// WithHealth reports cycles and errors to h
func WithHealth(h *monitoring.HealthChecker) Option {
	return func(a *Agent) { a.health = h }
}

// WithStateStore saves a snapshot after every fill and optimization
func WithStateStore(s StateSaver) Option {
	return func(a *Agent) { a.store = s }
}

// WithClock injects the clock used for waiting and timestamps
func WithClock(c clock.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates a FLAT agent for every configured symbol
func New(cfg Config, market exchange.MarketDataSource, executor exchange.OrderExecutor, opts ...Option) (*Agent, error) {
	if market == nil || executor == nil {
		return nil, boterrors.NewConfigurationError("agent", "New", "market data source and order executor are required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, boterrors.NewConfigurationError("agent", "New", "no symbols configured")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = exchange.DefaultRetryPolicy()
	}

	a := &Agent{
		cfg:        cfg,
		market:     market,
		executor:   executor,
		classifier: ml.NewLogisticClassifier(),
		frames:     indicators.Compute,
		clock:      clock.New(),
		logger:     zap.NewNop(),
		symbols:    make(map[string]*symbolState, len(cfg.Symbols)),
		balance:    cfg.Strategy.Budget,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, symbol := range cfg.Symbols {
		pm := strategy.NewPositionManager(symbol, cfg.Strategy, cfg.Params,
			strategy.WithLogger(a.logger.With(zap.String("symbol", symbol))))
		a.symbols[symbol] = &symbolState{
			pm: pm,
			status: SymbolStatus{
				Symbol:       symbol,
				Params:       cfg.Params,
				State:        strategy.StateFlat.String(),
				LastDecision: strategy.ActionHold.String(),
			},
		}
	}
	return a, nil
}

// Run optimizes on start when configured, then runs a cycle every
// PollInterval until ctx is cancelled
func (a *Agent) Run(ctx context.Context) error {
	if a.cfg.OptimizeOnStart {
		a.OptimizeAll(ctx)
	}

	a.logger.Info("agent started",
		zap.Strings("symbols", a.cfg.Symbols),
		zap.String("interval", a.cfg.Interval),
		zap.Duration("poll_interval", a.cfg.PollInterval))

	for {
		if err := a.RunOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			a.logger.Info("agent stopped")
			return ctx.Err()
		case <-a.clock.After(a.cfg.PollInterval):
		}
	}
}

// RunOnce runs one cycle over all symbols. Per-symbol failures are logged
// and skipped; only cancellation is returned.
func (a *Agent) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := a.clock.Now()

	cycleCtx, cancel := context.WithTimeout(ctx, a.cfg.CycleTimeout)
	defer cancel()

	connected := false
	for _, symbol := range a.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.processSymbol(cycleCtx, symbol) {
			connected = true
		}
	}

	if a.health != nil {
		a.health.RecordCycle(connected)
	}
	monitoring.ObserveCycle(a.clock.Since(start).Seconds())
	return ctx.Err()
}

// processSymbol evaluates symbol and reports whether market data arrived
func (a *Agent) processSymbol(ctx context.Context, symbol string) (fetched bool) {
	logger := a.logger.With(zap.String("symbol", symbol))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in decision cycle", zap.Any("panic", r))
			fetched = false
		}
	}()

	bars, err := a.fetchClosedBars(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			a.recordFailure(logger, symbol, "data_fetch", "market data unavailable, skipping symbol", err)
		}
		return false
	}
	if err := backtest.ValidateBars(bars); err != nil {
		a.recordFailure(logger, symbol, "invalid_bars", "rejected market data", err)
		return true
	}
	if len(bars) == 0 {
		monitoring.RecordSkip(symbol, "no_bars")
		return true
	}

	sym := a.symbols[symbol]
	in, gateActive := a.prepareInput(logger, bars)

	last := bars[len(bars)-1]
	monitoring.UpdatePrice(symbol, last.Close)
	monitoring.SetMLGateActive(symbol, gateActive)
	if a.health != nil {
		a.health.RecordPrice(symbol, last.Close)
	}

	a.mu.RLock()
	decision := sym.pm.Evaluate(in)
	a.mu.RUnlock()

	a.mu.Lock()
	sym.status.LastPrice = last.Close
	sym.status.LastBarTime = last.Timestamp
	sym.status.LastDecision = decision.Action.String()
	sym.status.LastReason = decision.Reason
	sym.status.MLGateActive = gateActive
	a.mu.Unlock()

	if decision.Action == strategy.ActionHold {
		logger.Debug("holding", zap.String("reason", decision.Reason), zap.Float64("price", last.Close))
		if decision.Reason == strategy.ReasonQuantityZero || decision.Reason == strategy.ReasonNotReady {
			monitoring.RecordSkip(symbol, decision.Reason)
		}
		return true
	}

	a.execute(ctx, logger, sym, decision)
	return true
}

// prepareInput computes the frame for the last closed bar and, when the ML
// gate is enabled, fits the classifier on the bars before it
func (a *Agent) prepareInput(logger *zap.Logger, bars []types.OHLCV) (strategy.Input, bool) {
	frame := a.frames(bars, a.cfg.Strategy.Indicators)
	i := len(bars) - 1
	in := strategy.Input{Index: i, Bars: bars, Frame: frame}
	if !a.cfg.Strategy.UseMLGate || a.classifier == nil {
		return in, false
	}

	model, err := a.classifier.Fit(ml.BuildSamples(bars, frame, i))
	if err != nil {
		if errors.Is(err, boterrors.ErrInsufficientData) {
			logger.Debug("ml gate inactive, using indicator signals", zap.Error(err))
		} else {
			logger.Warn("classifier fit failed, using indicator signals", zap.Error(err))
		}
		return in, false
	}
	if features, ok := ml.Features(bars, frame, i); ok {
		in.Signal = model.Predict(features)
		in.GateActive = true
	}
	return in, in.GateActive
}

// fetchClosedBars returns the history without the bar that is still
// forming at the current time
func (a *Agent) fetchClosedBars(ctx context.Context, symbol string) ([]types.OHLCV, error) {
	var bars []types.OHLCV
	err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		bars, err = a.market.GetCandles(ctx, symbol, a.cfg.Interval, a.cfg.CandleLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if n := len(bars); n > 0 && a.cfg.BarDuration > 0 {
		if bars[n-1].Timestamp.Add(a.cfg.BarDuration).After(a.clock.Now()) {
			bars = bars[:n-1]
		}
	}
	return bars, nil
}

func (a *Agent) recordFailure(logger *zap.Logger, symbol, reason, msg string, err error) {
	logger.Warn(msg, zap.Error(err), zap.String("category", string(boterrors.CategoryOf(err))))
	monitoring.RecordSkip(symbol, reason)
	monitoring.RecordError(string(boterrors.CategoryOf(err)))
	if a.health != nil {
		a.health.RecordError(err)
	}
}

// execute submits the order for d and commits it once filled
func (a *Agent) execute(ctx context.Context, logger *zap.Logger, sym *symbolState, d strategy.Decision) {
	side := exchange.OrderBuy
	if d.Action == strategy.ActionSell {
		side = exchange.OrderSell
	}
	req := exchange.OrderRequest{
		Symbol:     d.Symbol,
		Side:       side,
		Quantity:   d.Quantity,
		LimitPrice: exchange.LimitPrice(side, d.Price, a.cfg.LimitOffset),
		ClientID:   uuid.NewString(),
	}

	var result *exchange.OrderResult
	err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = a.executor.SubmitOrder(ctx, req)
		return err
	})
	if err != nil {
		logger.Error("order failed, decision rolled back",
			zap.String("action", d.Action.String()),
			zap.Float64("quantity", d.Quantity),
			zap.Float64("limit_price", req.LimitPrice),
			zap.Error(err))
		monitoring.RecordError(string(boterrors.CategoryOf(err)))
		if a.health != nil {
			a.health.RecordError(err)
		}
		a.notify(fmt.Sprintf("%s %s failed", d.Action, d.Symbol),
			fmt.Sprintf("Order for %.6f %s at %.4f was not filled: %v", d.Quantity, d.Symbol, req.LimitPrice, err))
		return
	}

	filled := d
	if result.Price > 0 {
		filled.Price = result.Price
	}
	// a partial sell realizes the filled part; the rest stays LONG
	if result.Quantity > 0 {
		filled.Quantity = result.Quantity
	}

	a.mu.Lock()
	entryPrice := sym.pm.Position().EntryPrice
	trade, err := sym.pm.Commit(filled)
	if err != nil {
		a.mu.Unlock()
		logger.Error("filled order could not be committed", zap.String("order_id", result.OrderID), zap.Error(err))
		return
	}

	notional := filled.Price * filled.Quantity
	entry := ledger.Entry{
		Time:     a.clock.Now(),
		Symbol:   d.Symbol,
		Price:    filled.Price,
		Quantity: filled.Quantity,
	}
	if d.Action == strategy.ActionBuy {
		a.balance -= notional
		entry.Action = ledger.ActionBuy
	} else {
		a.balance += notional
		entry.Action = ledger.ActionSell
		if entryPrice > 0 {
			entry.PctChange = (filled.Price - entryPrice) / entryPrice * 100
		}
	}
	entry.RemainingBalance = a.balance

	pos := sym.pm.Position()
	sym.status.State = pos.State.String()
	sym.status.EntryPrice = pos.EntryPrice
	sym.status.Quantity = pos.Quantity
	if trade != nil {
		sym.status.Trades++
		sym.status.RealizedProfit += trade.Profit
	}
	a.mu.Unlock()

	logger.Info("order filled",
		zap.String("action", d.Action.String()),
		zap.String("reason", d.Reason),
		zap.String("order_id", result.OrderID),
		zap.Float64("price", filled.Price),
		zap.Float64("quantity", filled.Quantity),
		zap.Float64("remaining_balance", entry.RemainingBalance))

	monitoring.RecordTrade(d.Symbol, d.Action.String(), notional)
	monitoring.SetPositionOpen(d.Symbol, pos.IsOpen())
	if trade != nil {
		monitoring.AddRealizedProfit(d.Symbol, trade.Profit)
	}

	if a.ledger != nil {
		if err := a.ledger.Append(ctx, entry); err != nil {
			logger.Warn("ledger append failed", zap.Error(err))
		}
	}
	a.saveState(logger)
	a.notify(fmt.Sprintf("%s %s", d.Action, d.Symbol), tradeMessage(entry, d.Reason, trade))
}

func tradeMessage(e ledger.Entry, reason string, trade *strategy.Trade) string {
	msg := fmt.Sprintf("%s %.6f %s at %.4f (%s)\nRemaining balance: %.2f",
		e.Action, e.Quantity, e.Symbol, e.Price, reason, e.RemainingBalance)
	if trade != nil {
		msg += fmt.Sprintf("\nProfit: %.2f (%.2f%%)", trade.Profit, e.PctChange)
	}
	return msg
}

func (a *Agent) notify(subject, body string) {
	if a.notifier != nil {
		a.notifier.Notify(subject, body)
	}
}

// OptimizeAll runs the parameter search for every symbol and replaces the
// active params with the best sampled pair. Failures keep the current
// params.
func (a *Agent) OptimizeAll(ctx context.Context) {
	for _, symbol := range a.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.Optimize(ctx, symbol); err != nil {
			a.logger.Warn("startup optimization failed, keeping params",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// Optimize searches params for symbol on its recent history
func (a *Agent) Optimize(ctx context.Context, symbol string) (*backtest.OptimizationResult, error) {
	sym, ok := a.symbols[symbol]
	if !ok {
		return nil, boterrors.NewInvalidParameterError("agent", "Optimize", fmt.Sprintf("unknown symbol %s", symbol))
	}

	limit := a.cfg.OptimizeCandles
	if limit <= 0 {
		limit = a.cfg.CandleLimit
	}
	var bars []types.OHLCV
	err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		bars, err = a.market.GetCandles(ctx, symbol, a.cfg.Interval, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger := a.logger.With(zap.String("symbol", symbol))
	engine := backtest.NewBacktestEngine(a.cfg.Strategy,
		backtest.WithSymbol(symbol),
		backtest.WithClassifier(a.classifier),
		backtest.WithEngineLogger(logger))
	optimizer := backtest.NewParameterOptimizer(engine, a.optimizerConfig(), logger)

	result, err := optimizer.Optimize(ctx, bars, a.bounds())
	if err != nil {
		return nil, err
	}

	summary := &OptimizationSummary{
		BestParams:    result.BestParams,
		BestObjective: result.BestObjective,
		Trials:        len(result.Trials),
		Seed:          result.Seed,
		Duration:      result.Duration.Round(time.Millisecond).String(),
		FinishedAt:    a.clock.Now(),
	}

	a.mu.Lock()
	sym.pm.SetParams(result.BestParams)
	sym.status.Params = result.BestParams
	sym.status.Optimization = summary
	a.mu.Unlock()

	monitoring.SetOptimizerBest(symbol, result.BestObjective)
	a.saveState(logger)
	logger.Info("optimization finished",
		zap.String("best_params", result.BestParams.String()),
		zap.Float64("best_objective", result.BestObjective),
		zap.Int("trials", len(result.Trials)))
	a.notify(fmt.Sprintf("Optimization %s", symbol),
		fmt.Sprintf("Best %s, profit %.2f over %d trials", result.BestParams, result.BestObjective, len(result.Trials)))
	return result, nil
}

func (a *Agent) optimizerConfig() backtest.OptimizerConfig {
	if a.cfg.Optimizer == (backtest.OptimizerConfig{}) {
		return backtest.DefaultOptimizerConfig()
	}
	return a.cfg.Optimizer
}

func (a *Agent) bounds() backtest.Bounds {
	if a.cfg.Bounds == (backtest.Bounds{}) {
		return backtest.DefaultBounds()
	}
	return a.cfg.Bounds
}

// Restore sets an open position for symbol, e.g. holdings found at startup
func (a *Agent) Restore(symbol string, pos strategy.Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	sym, ok := a.symbols[symbol]
	if !ok {
		return boterrors.NewInvalidParameterError("agent", "Restore", fmt.Sprintf("unknown symbol %s", symbol))
	}
	if pos.IsOpen() && (pos.EntryPrice <= 0 || pos.Quantity <= 0) {
		return errors.New("restored position needs positive entry price and quantity")
	}
	sym.pm.Restore(pos)
	sym.status.State = pos.State.String()
	sym.status.EntryPrice = pos.EntryPrice
	sym.status.Quantity = pos.Quantity
	monitoring.SetPositionOpen(symbol, pos.IsOpen())
	return nil
}

// Statuses returns the state of every symbol sorted by symbol
func (a *Agent) Statuses() []SymbolStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SymbolStatus, 0, len(a.symbols))
	for _, s := range a.symbols {
		st := s.status
		if st.Optimization != nil {
			opt := *st.Optimization
			st.Optimization = &opt
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Status returns the state of symbol
func (a *Agent) Status(symbol string) (SymbolStatus, bool) {
	for _, st := range a.Statuses() {
		if st.Symbol == symbol {
			return st, true
		}
	}
	return SymbolStatus{}, false
}

// Balance is the budget minus spent plus proceeds
func (a *Agent) Balance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Snapshot captures the balance and the position and params of every
// symbol
func (a *Agent) Snapshot() state.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := state.Snapshot{
		Balance: a.balance,
		Symbols: make(map[string]state.SymbolState, len(a.symbols)),
	}
	for symbol, s := range a.symbols {
		pos := s.pm.Position()
		snap.Symbols[symbol] = state.SymbolState{
			Open:       pos.IsOpen(),
			EntryPrice: pos.EntryPrice,
			Quantity:   pos.Quantity,
			EntryTime:  pos.EntryTime,
			Params:     s.pm.Params(),
		}
	}
	return snap
}

// RestoreSnapshot applies a saved snapshot. Symbols no longer configured
// are skipped and invalid params keep the configured ones.
func (a *Agent) RestoreSnapshot(snap *state.Snapshot) error {
	if snap == nil {
		return nil
	}
	for symbol, st := range snap.Symbols {
		if _, ok := a.symbols[symbol]; !ok {
			a.logger.Warn("saved state for unconfigured symbol skipped", zap.String("symbol", symbol))
			continue
		}
		if err := a.Restore(symbol, st.Position()); err != nil {
			return err
		}
		if err := st.Params.Validate(); err != nil {
			a.logger.Warn("saved params rejected", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		a.mu.Lock()
		a.symbols[symbol].pm.SetParams(st.Params)
		a.symbols[symbol].status.Params = st.Params
		a.mu.Unlock()
	}

	a.mu.Lock()
	a.balance = snap.Balance
	a.mu.Unlock()
	a.logger.Info("state restored",
		zap.Float64("balance", snap.Balance),
		zap.Int("symbols", len(snap.Symbols)))
	return nil
}

func (a *Agent) saveState(logger *zap.Logger) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(a.Snapshot()); err != nil {
		logger.Warn("state save failed", zap.Error(err))
	}
}
