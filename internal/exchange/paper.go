package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
)

// PaperExecutor simulates fills at the limit price against a virtual cash
// balance. Amounts are kept as decimals so repeated fills do not drift.
type PaperExecutor struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]decimal.Decimal
	orders   []OrderResult
	clock    clock.Clock
}

// NewPaperExecutor starts with cash and no holdings
func NewPaperExecutor(cash float64, clk clock.Clock) *PaperExecutor {
	if clk == nil {
		clk = clock.New()
	}
	return &PaperExecutor{
		cash:     decimal.NewFromFloat(cash),
		holdings: make(map[string]decimal.Decimal),
		clock:    clk,
	}
}

// SubmitOrder fills req completely or rejects it
func (p *PaperExecutor) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 || req.LimitPrice <= 0 {
		return nil, rejected("quantity and limit price must be positive")
	}

	qty := decimal.NewFromFloat(req.Quantity)
	notional := qty.Mul(decimal.NewFromFloat(req.LimitPrice))

	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.holdings[req.Symbol]
	switch req.Side {
	case OrderBuy:
		if notional.GreaterThan(p.cash) {
			return nil, rejected(fmt.Sprintf("insufficient cash: need %s, have %s", notional.StringFixed(2), p.cash.StringFixed(2)))
		}
		p.cash = p.cash.Sub(notional)
		p.holdings[req.Symbol] = held.Add(qty)
	case OrderSell:
		if qty.GreaterThan(held) {
			return nil, rejected(fmt.Sprintf("insufficient %s holdings: need %s, have %s", req.Symbol, qty, held))
		}
		p.cash = p.cash.Add(notional)
		p.holdings[req.Symbol] = held.Sub(qty)
	default:
		return nil, rejected(fmt.Sprintf("unknown side %q", req.Side))
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	result := OrderResult{
		OrderID:   "paper-" + uuid.NewString(),
		ClientID:  clientID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     req.LimitPrice,
		Status:    "Filled",
		Timestamp: p.clock.Now(),
	}
	p.orders = append(p.orders, result)
	return &result, nil
}

// Restore replaces the cash and holdings, e.g. from a saved snapshot
func (p *PaperExecutor) Restore(cash float64, holdings map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = decimal.NewFromFloat(cash)
	p.holdings = make(map[string]decimal.Decimal, len(holdings))
	for symbol, qty := range holdings {
		p.holdings[symbol] = decimal.NewFromFloat(qty)
	}
}

// Cash returns the free balance
func (p *PaperExecutor) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash.InexactFloat64()
}

// Holding returns the quantity held of symbol
func (p *PaperExecutor) Holding(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings[symbol].InexactFloat64()
}

// Orders returns the filled orders in order
func (p *PaperExecutor) Orders() []OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderResult(nil), p.orders...)
}

func rejected(msg string) error {
	return boterrors.NewOrderExecutionError("paper", "SubmitOrder", errors.New(msg)).WithRetryable(false)
}
