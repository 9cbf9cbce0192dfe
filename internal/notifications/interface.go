package notifications

import "context"

// Notifier delivers a short message to an external channel
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, subject, body string) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}
