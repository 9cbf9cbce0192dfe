package strategy

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-swing-bot/internal/ml"
	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// Input is everything Evaluate needs to decide at bar Index. Bars and Frame
// may extend past Index; nothing beyond it is read.
type Input struct {
	Index int
	Bars  []types.OHLCV
	Frame *indicators.Frame

	// Signal is only consulted when GateActive is set, which the caller
	// does when the ML gate is enabled and a model could be fitted.
	Signal     ml.Signal
	GateActive bool

	// Sentiment is only consulted when HasSentiment is set
	Sentiment    float64
	HasSentiment bool
}

// EntryColumns are the frame columns the entry and exit rules read
var EntryColumns = []indicators.Column{
	indicators.ColRSI,
	indicators.ColMACD,
	indicators.ColSignal,
	indicators.ColSMA50,
	indicators.ColEMA200,
	indicators.ColATR,
}

// PositionManager owns the FLAT/LONG state machine of one symbol. It
// decides intent and size but never places orders itself.
type PositionManager struct {
	symbol   string
	cfg      Config
	params   Params
	sizer    PositionSizer
	position Position
	entries  int
	exits    int
	logger   *zap.Logger
}

// Option configures a PositionManager
type Option func(*PositionManager)

// WithLogger sets the logger used for skipped entries
func WithLogger(logger *zap.Logger) Option {
	return func(pm *PositionManager) {
		pm.logger = logger
	}
}

// NewPositionManager creates a FLAT manager for symbol
func NewPositionManager(symbol string, cfg Config, params Params, opts ...Option) *PositionManager {
	pm := &PositionManager{
		symbol: symbol,
		cfg:    cfg,
		params: params,
		sizer:  NewPositionSizer(cfg),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// Position returns a copy of the current position
func (pm *PositionManager) Position() Position {
	return pm.position
}

// Params returns the active thresholds
func (pm *PositionManager) Params() Params {
	return pm.params
}

// SetParams replaces the thresholds, e.g. after an optimization run
func (pm *PositionManager) SetParams(params Params) {
	pm.params = params
}

// Transitions returns the number of committed entries and exits
func (pm *PositionManager) Transitions() (entries, exits int) {
	return pm.entries, pm.exits
}

// Evaluate returns the action the rules call for at in.Index. It does not
// change any state.
func (pm *PositionManager) Evaluate(in Input) Decision {
	d := Decision{
		Action: ActionHold,
		Symbol: pm.symbol,
		Index:  in.Index,
		Reason: ReasonNoSignal,
	}
	if in.Frame == nil || in.Index < 0 || in.Index >= len(in.Bars) || in.Index >= in.Frame.Len() {
		d.Reason = ReasonNotReady
		return d
	}

	bar := in.Bars[in.Index]
	d.Price = bar.Close
	d.Timestamp = bar.Timestamp

	for _, col := range EntryColumns {
		if !in.Frame.Defined(col, in.Index) {
			d.Reason = ReasonNotReady
			return d
		}
	}
	d.ATR = in.Frame.Value(indicators.ColATR, in.Index)

	if pm.position.IsOpen() {
		if reason, ok := pm.exitReason(in, bar); ok {
			d.Action = ActionSell
			d.Quantity = pm.position.Quantity
			d.Reason = reason
		}
		return d
	}

	if !pm.entrySignal(in, bar) {
		return d
	}

	qty := pm.sizer.Quantity(bar.Close, d.ATR)
	if qty <= 0 {
		pm.logger.Warn("entry skipped, quantity rounds to zero",
			zap.String("symbol", pm.symbol),
			zap.Int("index", in.Index),
			zap.Float64("price", bar.Close),
			zap.Int("precision", pm.cfg.QuantityPrecision))
		d.Reason = ReasonQuantityZero
		return d
	}

	d.Action = ActionBuy
	d.Quantity = qty
	d.Reason = ReasonEntrySignal
	return d
}

func (pm *PositionManager) entrySignal(in Input, bar types.OHLCV) bool {
	f, i := in.Frame, in.Index
	if !(f.Value(indicators.ColRSI, i) < pm.cfg.RSIOversold) {
		return false
	}
	if !(f.Value(indicators.ColMACD, i) > f.Value(indicators.ColSignal, i)) {
		return false
	}
	if !(bar.Close > f.Value(indicators.ColSMA50, i) && bar.Close > f.Value(indicators.ColEMA200, i)) {
		return false
	}
	if pm.cfg.UseMLGate && in.GateActive && in.Signal != ml.SignalBuy {
		return false
	}
	if pm.cfg.UseVolumeFilter {
		avg := f.Value(indicators.ColVolumeSMA, i)
		if math.IsNaN(avg) || bar.Volume < pm.cfg.VolumeMultiplier*avg {
			return false
		}
	}
	if pm.cfg.UseSentimentFilter && in.HasSentiment && in.Sentiment < pm.cfg.MinSentiment {
		return false
	}
	return true
}

func (pm *PositionManager) exitReason(in Input, bar types.OHLCV) (string, bool) {
	f, i := in.Frame, in.Index
	entry := pm.position.EntryPrice

	stop := pm.params.TrailingStop
	if atr := f.Value(indicators.ColATR, i); entry > 0 && atr/entry > stop {
		stop = atr / entry
	}

	switch {
	case bar.Close <= entry*(1-stop):
		return ReasonTrailingStop, true
	case pm.cfg.UseTakeProfit && bar.Close >= entry*(1+pm.params.ProfitThreshold):
		return ReasonTakeProfit, true
	case f.Value(indicators.ColRSI, i) > pm.cfg.RSIOverbought:
		return ReasonRSIOverbought, true
	case f.Value(indicators.ColMACD, i) < f.Value(indicators.ColSignal, i):
		return ReasonMACDBearish, true
	case pm.cfg.UseMLGate && in.GateActive && in.Signal == ml.SignalSell:
		return ReasonModelSell, true
	}
	return "", false
}

// Commit applies a filled decision. Callers may set d.Price and d.Quantity
// to the actual fill before committing. A decision that was never filled
// must simply not be committed. Selling returns the realized trade; a sell
// filled for less than the held quantity keeps the position LONG with the
// remainder.
func (pm *PositionManager) Commit(d Decision) (*Trade, error) {
	switch d.Action {
	case ActionHold:
		return nil, nil
	case ActionBuy:
		if pm.position.IsOpen() {
			return nil, fmt.Errorf("%s: entry while already long", pm.symbol)
		}
		if d.Quantity <= 0 || d.Price <= 0 {
			return nil, fmt.Errorf("%s: entry needs positive price and quantity", pm.symbol)
		}
		pm.position = Position{
			State:      StateLong,
			EntryPrice: d.Price,
			Quantity:   d.Quantity,
			EntryIndex: d.Index,
			EntryTime:  d.Timestamp,
		}
		pm.entries++
		return nil, nil
	case ActionSell:
		if !pm.position.IsOpen() {
			return nil, fmt.Errorf("%s: exit while flat", pm.symbol)
		}
		held := pm.position.Quantity
		if d.Quantity > 0 && d.Quantity < held {
			// partial fill: realize the sold part and stay long on the rest
			sold := pm.position
			sold.Quantity = d.Quantity
			trade := newTrade(pm.symbol, sold, d)
			residual := RoundQuantity(held-d.Quantity, pm.cfg.QuantityPrecision)
			if residual > 0 {
				pm.position.Quantity = residual
				return &trade, nil
			}
		}
		trade := newTrade(pm.symbol, pm.position, d)
		pm.position = Position{}
		pm.exits++
		return &trade, nil
	default:
		return nil, fmt.Errorf("%s: unknown action %v", pm.symbol, d.Action)
	}
}

// Restore sets an open position, e.g. when an agent restarts with holdings
func (pm *PositionManager) Restore(pos Position) {
	pm.position = pos
}
