package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher fans a notification out to every notifier without blocking
// the caller. Failures are logged and never returned.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Each send gets its own timeout.
func NewDispatcher(logger *zap.Logger, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout, logger: logger}
}

// Len returns the number of notifiers
func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Notify starts one send per notifier and returns immediately
func (d *Dispatcher) Notify(subject, body string) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Notify(ctx, subject, body); err != nil {
				d.logger.Warn("notification failed", zap.String("subject", subject), zap.Error(err))
			}
		}(n)
	}
}

// Wait blocks until in-flight sends finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
