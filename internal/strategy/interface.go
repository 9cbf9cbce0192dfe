package strategy

import (
	"time"
)

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Decision is the intent produced by PositionManager.Evaluate. It becomes a
// state change only once the order is filled and the decision is committed.
type Decision struct {
	Action    TradeAction
	Symbol    string
	Index     int
	Price     float64
	Quantity  float64
	ATR       float64
	Reason    string
	Timestamp time.Time
}

// Exit reasons reported on Decision.Reason and Trade.ExitReason
const (
	ReasonTrailingStop   = "trailing_stop"
	ReasonTakeProfit     = "take_profit"
	ReasonRSIOverbought  = "rsi_overbought"
	ReasonMACDBearish    = "macd_bearish_cross"
	ReasonModelSell      = "ml_sell"
	ReasonEntrySignal    = "entry_signal"
	ReasonNotReady       = "indicators_not_ready"
	ReasonQuantityZero   = "quantity_rounds_to_zero"
	ReasonNoSignal       = "no_signal"
	ReasonAlreadyInTrade = "position_open"
)
