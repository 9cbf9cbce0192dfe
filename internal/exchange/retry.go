package exchange

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy retries retryable errors with capped exponential backoff
type RetryPolicy struct {
	MaxAttempts   int           `json:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`

	// Sleep defaults to ClockSleep on the wall clock
	Sleep SleepFunc `json:"-"`
}

// DefaultRetryPolicy waits 1s, 2s, 4s, 8s between five attempts, never
// more than 30s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The last error is returned with its category.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ClockSleep(nil)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts-1 || !boterrors.IsRetryable(err) {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}

	if attempts > 1 && boterrors.IsRetryable(lastErr) {
		return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

// Delay is the wait after the given zero-based attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// ClockSleep waits on clk, so a mock clock drives the backoff in tests.
// A nil clk is the wall clock.
func ClockSleep(clk clock.Clock) SleepFunc {
	if clk == nil {
		clk = clock.New()
	}
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(d):
			return nil
		}
	}
}
