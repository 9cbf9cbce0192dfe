package monitoring

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const maxRecentErrors = 20

// HealthChecker tracks the liveness of the decision loop
type HealthChecker struct {
	mu         sync.RWMutex
	clock      clock.Clock
	started    time.Time
	staleAfter time.Duration
	lastCycle  time.Time
	lastPrices map[string]float64
	connected  bool
	errors     []string
}

// HealthStatus is the JSON body of the health endpoint
type HealthStatus struct {
	Status      string             `json:"status"`
	Timestamp   time.Time          `json:"timestamp"`
	LastCycle   time.Time          `json:"last_cycle"`
	LastPrices  map[string]float64 `json:"last_prices"`
	IsConnected bool               `json:"is_connected"`
	Uptime      string             `json:"uptime"`
	Errors      []string           `json:"errors,omitempty"`
}

// NewHealthChecker reports degraded once no cycle completed for staleAfter
func NewHealthChecker(clk clock.Clock, staleAfter time.Duration) *HealthChecker {
	if clk == nil {
		clk = clock.New()
	}
	return &HealthChecker{
		clock:      clk,
		started:    clk.Now(),
		staleAfter: staleAfter,
		lastPrices: make(map[string]float64),
		errors:     make([]string, 0),
	}
}

// RecordCycle marks a completed cycle; connected reports whether market
// data could be fetched
func (h *HealthChecker) RecordCycle(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = h.clock.Now()
	h.connected = connected
	if connected {
		h.errors = h.errors[:0]
	}
}

// RecordPrice stores the last evaluated close of symbol
func (h *HealthChecker) RecordPrice(symbol string, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrices[symbol] = price
}

// RecordError keeps the most recent error messages
func (h *HealthChecker) RecordError(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err.Error())
	if len(h.errors) > maxRecentErrors {
		h.errors = h.errors[len(h.errors)-maxRecentErrors:]
	}
}

// Status is healthy while cycles are recent and data is flowing, degraded
// otherwise, and unhealthy when the last cycle ran into errors without any
// data
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.clock.Now()
	status := "healthy"
	if h.lastCycle.IsZero() || !h.connected || (h.staleAfter > 0 && now.Sub(h.lastCycle) > h.staleAfter) {
		status = "degraded"
	}
	if !h.connected && len(h.errors) > 0 {
		status = "unhealthy"
	}

	prices := make(map[string]float64, len(h.lastPrices))
	for k, v := range h.lastPrices {
		prices[k] = v
	}
	return HealthStatus{
		Status:      status,
		Timestamp:   now,
		LastCycle:   h.lastCycle,
		LastPrices:  prices,
		IsConnected: h.connected,
		Uptime:      now.Sub(h.started).String(),
		Errors:      append([]string(nil), h.errors...),
	}
}
