// Package safety holds guards for calls to the exchange
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RateLimiter is a token bucket. Tokens refill continuously at rate per
// second up to capacity.
type RateLimiter struct {
	name     string
	capacity float64
	rate     float64
	clock    clock.Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	waited     time.Duration
}

// NewRateLimiter starts with a full bucket. A nil clock uses the wall
// clock.
func NewRateLimiter(name string, capacity int, rate float64, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		name:       name,
		capacity:   float64(capacity),
		rate:       rate,
		clock:      clk,
		tokens:     float64(capacity),
		lastRefill: clk.Now(),
	}
}

// Allow takes a token if one is available
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.take() == 0
}

// Wait blocks until a token is taken or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		wait := rl.take()
		if wait > 0 {
			rl.waited += wait
		}
		rl.mu.Unlock()
		if wait == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rl.clock.After(wait):
		}
	}
}

// take consumes a token, or returns how long until one is available.
// Callers hold mu.
func (rl *RateLimiter) take() time.Duration {
	now := rl.clock.Now()
	if elapsed := now.Sub(rl.lastRefill); elapsed > 0 {
		rl.tokens += elapsed.Seconds() * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	if rl.rate <= 0 {
		return time.Second
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Stats is a point-in-time view of a limiter
type Stats struct {
	Name     string
	Capacity int
	Tokens   float64
	Rate     float64
	Waited   time.Duration
}

// Stats returns the current bucket level and the total time spent waiting
func (rl *RateLimiter) Stats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return Stats{
		Name:     rl.name,
		Capacity: int(rl.capacity),
		Tokens:   rl.tokens,
		Rate:     rl.rate,
		Waited:   rl.waited,
	}
}
