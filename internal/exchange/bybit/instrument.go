package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/shopspring/decimal"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
)

// InstrumentInfo holds the trading filters of a symbol
type InstrumentInfo struct {
	Symbol      string
	Status      string
	MinOrderQty decimal.Decimal
	MaxOrderQty decimal.Decimal
	QtyStep     decimal.Decimal
	TickSize    decimal.Decimal
}

// QuantityPrecision is the number of decimals the quantity step allows
func (ii *InstrumentInfo) QuantityPrecision() int {
	return stepPrecision(ii.QtyStep)
}

// InstrumentManager caches instrument filters per symbol
type InstrumentManager struct {
	client         *Client
	instruments    map[string]*InstrumentInfo
	fetched        map[string]time.Time
	mutex          sync.RWMutex
	updateInterval time.Duration
	now            func() time.Time
}

// NewInstrumentManager creates a new instrument manager
func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client:         client,
		instruments:    make(map[string]*InstrumentInfo),
		fetched:        make(map[string]time.Time),
		updateInterval: time.Hour,
		now:            time.Now,
	}
}

// GetInstrumentInfo retrieves and caches instrument information
func (im *InstrumentManager) GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	im.mutex.RLock()
	info, ok := im.instruments[symbol]
	fresh := ok && im.now().Sub(im.fetched[symbol]) < im.updateInterval
	im.mutex.RUnlock()
	if fresh {
		return info, nil
	}

	resp, err := im.client.do(ctx, endpointInstruments, map[string]interface{}{
		"category": im.client.category,
		"symbol":   symbol,
	})
	if err == nil {
		info, err = parseInstrument(resp, symbol)
	}
	if err != nil {
		return nil, classify("GetInstrumentInfo", endpointInstruments, err)
	}

	im.mutex.Lock()
	im.instruments[symbol] = info
	im.fetched[symbol] = im.now()
	im.mutex.Unlock()
	return info, nil
}

// AdjustQuantity floors qty to the lot step and caps it at the maximum.
// A quantity below the minimum order size is rejected.
func (im *InstrumentManager) AdjustQuantity(ctx context.Context, symbol string, qty float64) (decimal.Decimal, error) {
	info, err := im.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.adjustQuantity(decimal.NewFromFloat(qty))
}

// AdjustPrice rounds price to the tick size, up for buys and down for
// sells so the limit stays marketable
func (im *InstrumentManager) AdjustPrice(ctx context.Context, symbol string, price float64, buy bool) (decimal.Decimal, error) {
	info, err := im.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.adjustPrice(decimal.NewFromFloat(price), buy), nil
}

func (ii *InstrumentInfo) adjustQuantity(qty decimal.Decimal) (decimal.Decimal, error) {
	if ii.QtyStep.IsPositive() {
		qty = qty.Div(ii.QtyStep).Floor().Mul(ii.QtyStep)
	}
	if ii.MaxOrderQty.IsPositive() && qty.GreaterThan(ii.MaxOrderQty) {
		qty = ii.MaxOrderQty
	}
	if !qty.IsPositive() || qty.LessThan(ii.MinOrderQty) {
		return decimal.Zero, boterrors.NewOrderExecutionError("bybit", "AdjustQuantity",
			fmt.Errorf("quantity %s of %s is below the minimum order size %s", qty, ii.Symbol, ii.MinOrderQty)).
			WithRetryable(false)
	}
	return qty, nil
}

func (ii *InstrumentInfo) adjustPrice(price decimal.Decimal, buy bool) decimal.Decimal {
	if !ii.TickSize.IsPositive() {
		return price
	}
	ticks := price.Div(ii.TickSize)
	if buy {
		ticks = ticks.Ceil()
	} else {
		ticks = ticks.Floor()
	}
	return ticks.Mul(ii.TickSize)
}

func stepPrecision(step decimal.Decimal) int {
	if !step.IsPositive() {
		return 0
	}
	if exp := -step.Exponent(); exp > 0 {
		return int(exp)
	}
	return 0
}

func parseInstrument(resp *bybit_api.ServerResponse, symbol string) (*InstrumentInfo, error) {
	var result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol        string `json:"symbol"`
			Status        string `json:"status"`
			LotSizeFilter struct {
				BasePrecision string `json:"basePrecision"`
				QtyStep       string `json:"qtyStep"`
				MinOrderQty   string `json:"minOrderQty"`
				MaxOrderQty   string `json:"maxOrderQty"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return nil, err
	}

	for _, item := range result.List {
		if item.Symbol != symbol {
			continue
		}
		// spot reports the lot step as basePrecision
		step := item.LotSizeFilter.QtyStep
		if step == "" {
			step = item.LotSizeFilter.BasePrecision
		}
		return &InstrumentInfo{
			Symbol:      item.Symbol,
			Status:      item.Status,
			MinOrderQty: parseDecimal(item.LotSizeFilter.MinOrderQty),
			MaxOrderQty: parseDecimal(item.LotSizeFilter.MaxOrderQty),
			QtyStep:     parseDecimal(step),
			TickSize:    parseDecimal(item.PriceFilter.TickSize),
		}, nil
	}
	return nil, fmt.Errorf("instrument %s not found", symbol)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
