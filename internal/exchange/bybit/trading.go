package bybit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
	"github.com/ducminhle1904/crypto-swing-bot/internal/exchange"
)

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// TimeInForce represents how long an order remains active
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
)

// PlaceOrderParams holds parameters for placing an order
type PlaceOrderParams struct {
	Symbol      string
	Side        exchange.OrderSide
	OrderType   OrderType
	Qty         string
	Price       string
	TimeInForce TimeInForce
	OrderLinkID string
}

// Order is the acknowledgement of a placed order
type Order struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceOrder places a new order
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*Order, error) {
	if params.Symbol == "" || params.Side == "" || params.Qty == "" {
		return nil, boterrors.NewOrderExecutionError("bybit", "PlaceOrder", errMissingOrderFields).WithRetryable(false)
	}
	if params.OrderType == "" {
		params.OrderType = OrderTypeLimit
	}
	if params.OrderType == OrderTypeLimit && params.TimeInForce == "" {
		params.TimeInForce = TimeInForceGTC
	}
	if params.OrderLinkID == "" {
		params.OrderLinkID = uuid.NewString()
	}

	apiParams := map[string]interface{}{
		"category":    c.category,
		"symbol":      params.Symbol,
		"side":        string(params.Side),
		"orderType":   string(params.OrderType),
		"qty":         params.Qty,
		"orderLinkId": params.OrderLinkID,
	}
	if params.Price != "" {
		apiParams["price"] = params.Price
	}
	if params.TimeInForce != "" {
		apiParams["timeInForce"] = string(params.TimeInForce)
	}

	resp, err := c.do(ctx, endpointPlaceOrder, apiParams)
	if err == nil {
		var order Order
		if err = decode(resp, &order); err == nil {
			return &order, nil
		}
	}
	return nil, classify("PlaceOrder", endpointPlaceOrder, err)
}

// SubmitOrder places req as an immediate-or-cancel limit order with the
// quantity floored to the lot step and the price rounded to the tick. An
// accepted marketable order is reported as filled at the limit price.
func (c *Client) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	qty, err := c.instruments.AdjustQuantity(ctx, req.Symbol, req.Quantity)
	if err != nil {
		return nil, asOrderError(err)
	}
	price, err := c.instruments.AdjustPrice(ctx, req.Symbol, req.LimitPrice, req.Side == exchange.OrderBuy)
	if err != nil {
		return nil, asOrderError(err)
	}

	order, err := c.PlaceOrder(ctx, PlaceOrderParams{
		Symbol:      req.Symbol,
		Side:        req.Side,
		OrderType:   OrderTypeLimit,
		Qty:         qty.String(),
		Price:       price.String(),
		TimeInForce: TimeInForceIOC,
		OrderLinkID: req.ClientID,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("order placed",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("order_id", order.OrderID),
		zap.String("environment", c.environment))

	return &exchange.OrderResult{
		OrderID:   order.OrderID,
		ClientID:  order.OrderLinkID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  qty.InexactFloat64(),
		Price:     price.InexactFloat64(),
		Status:    "Filled",
		Timestamp: time.Now().UTC(),
	}, nil
}

// asOrderError keeps instrument lookups that fail before an order is sent
// in the order category so callers roll back
func asOrderError(err error) error {
	if boterrors.CategoryOf(err) == boterrors.ErrorCategoryDataFetch {
		return boterrors.NewOrderExecutionError("bybit", "SubmitOrder", err).WithRetryable(boterrors.IsRetryable(err))
	}
	return err
}

var _ exchange.OrderExecutor = (*Client)(nil)
var _ exchange.MarketDataSource = (*Client)(nil)
