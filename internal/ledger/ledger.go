// Package ledger records executed transactions.
package ledger

import (
	"context"
	"time"
)

// Action is the side of a recorded transaction
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Entry is one executed transaction. PctChange is the price change since
// entry in percent and is zero for buys.
type Entry struct {
	Time             time.Time `json:"time"`
	Action           Action    `json:"action"`
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	PctChange        float64   `json:"pct_change"`
	Quantity         float64   `json:"quantity"`
	RemainingBalance float64   `json:"remaining_balance"`
}

// Ledger appends entries. Append must be safe for concurrent use.
type Ledger interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Multi appends to every ledger and returns the first error
type Multi []Ledger

// Append implements Ledger
func (m Multi) Append(ctx context.Context, e Entry) error {
	var first error
	for _, l := range m {
		if err := l.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Ledger
func (m Multi) Close() error {
	var first error
	for _, l := range m {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
