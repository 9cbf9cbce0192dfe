package strategy

import "time"

// PositionState is the state of the per-symbol state machine
type PositionState int

const (
	StateFlat PositionState = iota
	StateLong
)

func (s PositionState) String() string {
	if s == StateLong {
		return "LONG"
	}
	return "FLAT"
}

// Position is the single open (or absent) position of a symbol
type Position struct {
	State      PositionState
	EntryPrice float64
	Quantity   float64
	EntryIndex int
	EntryTime  time.Time
}

// IsOpen reports whether the position is LONG
func (p Position) IsOpen() bool {
	return p.State == StateLong
}

// Trade is a realized round trip. It is created on exit and never changed.
type Trade struct {
	Symbol     string
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	Profit     float64
	ReturnPct  float64
	EntryIndex int
	ExitIndex  int
	EntryTime  time.Time
	ExitTime   time.Time
	ExitReason string
}

func newTrade(symbol string, pos Position, d Decision) Trade {
	profit := (d.Price - pos.EntryPrice) * pos.Quantity
	returnPct := 0.0
	if cost := pos.EntryPrice * pos.Quantity; cost != 0 {
		returnPct = profit / cost
	}
	return Trade{
		Symbol:     symbol,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  d.Price,
		Quantity:   pos.Quantity,
		Profit:     profit,
		ReturnPct:  returnPct,
		EntryIndex: pos.EntryIndex,
		ExitIndex:  d.Index,
		EntryTime:  pos.EntryTime,
		ExitTime:   d.Timestamp,
		ExitReason: d.Reason,
	}
}
