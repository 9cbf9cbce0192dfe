package exchange

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// MarketDataSource provides closed candles in ascending time order
type MarketDataSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
}

// OrderExecutor places orders. An error means nothing was filled.
type OrderExecutor interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderBuy  OrderSide = "Buy"
	OrderSell OrderSide = "Sell"
)

// OrderRequest is a limit order. ClientID must stay the same across
// retries of one order so the venue can discard duplicates.
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	LimitPrice float64   `json:"limit_price"`
	ClientID   string    `json:"client_id"`
}

// OrderResult is the accepted order with its fill
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultLimitOffset moves the limit price 2% through the market so the
// order is marketable on both sides
const DefaultLimitOffset = 0.02

// LimitPrice returns the marketable limit price for side at price. Buys
// pay up to price*(1+offset), sells accept down to price*(1-offset).
func LimitPrice(side OrderSide, price, offset float64) float64 {
	if side == OrderBuy {
		return price * (1 + offset)
	}
	return price * (1 - offset)
}
