package bybit

import (
	"context"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/safety"
)

// DefaultRequestsPerSecond keeps well under Bybit's per-IP REST limits
const DefaultRequestsPerSecond = 10

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"` // Demo trading environment
	Category  string `json:"category"`

	RequestsPerSecond float64 `json:"requests_per_second"` // 0 uses DefaultRequestsPerSecond
}

type endpoint int

const (
	endpointKline endpoint = iota
	endpointTickers
	endpointInstruments
	endpointPlaceOrder
	endpointWallet
)

func (e endpoint) String() string {
	switch e {
	case endpointKline:
		return "GetMarketKline"
	case endpointTickers:
		return "GetMarketTickers"
	case endpointInstruments:
		return "GetInstrumentInfo"
	case endpointPlaceOrder:
		return "PlaceOrder"
	case endpointWallet:
		return "GetAccountWallet"
	}
	return fmt.Sprintf("endpoint(%d)", int(e))
}

// caller performs one v5 REST call. Tests replace it.
type caller func(ctx context.Context, ep endpoint, params map[string]interface{}) (*bybit_api.ServerResponse, error)

// Client wraps the Bybit v5 API client
type Client struct {
	call        caller
	category    string
	environment string
	instruments *InstrumentManager
	limiter     *safety.RateLimiter
	logger      *zap.Logger
}

// NewClient creates a new Bybit client
func NewClient(config Config, logger *zap.Logger) *Client {
	var baseURL, environment string
	switch {
	case config.Demo:
		baseURL, environment = "https://api-demo.bybit.com", "demo"
	case config.Testnet:
		baseURL, environment = bybit_api.TESTNET, "testnet"
	default:
		baseURL, environment = bybit_api.MAINNET, "mainnet"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	c := newClient(config.Category, environment, logger, func(ctx context.Context, ep endpoint, params map[string]interface{}) (*bybit_api.ServerResponse, error) {
		svc := httpClient.NewUtaBybitServiceWithParams(params)
		switch ep {
		case endpointKline:
			return svc.GetMarketKline(ctx)
		case endpointTickers:
			return svc.GetMarketTickers(ctx)
		case endpointInstruments:
			return svc.GetInstrumentInfo(ctx)
		case endpointPlaceOrder:
			return svc.PlaceOrder(ctx)
		case endpointWallet:
			return svc.GetAccountWallet(ctx)
		}
		return nil, fmt.Errorf("unsupported endpoint %s", ep)
	})

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	c.limiter = safety.NewRateLimiter("bybit-"+environment, int(rps), rps, nil)
	return c
}

func newClient(category, environment string, logger *zap.Logger, call caller) *Client {
	if category == "" {
		category = "spot"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		call:        call,
		category:    category,
		environment: environment,
		logger:      logger,
	}
	c.instruments = NewInstrumentManager(c)
	return c
}

// do waits for the rate limiter, then performs the call
func (c *Client) do(ctx context.Context, ep endpoint, params map[string]interface{}) (*bybit_api.ServerResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.call(ctx, ep, params)
}

// Category returns the product category orders and klines use
func (c *Client) Category() string {
	return c.category
}

// GetEnvironment returns "demo", "testnet" or "mainnet"
func (c *Client) GetEnvironment() string {
	return c.environment
}

// Instruments returns the instrument cache used for quantity precision
func (c *Client) Instruments() *InstrumentManager {
	return c.instruments
}
