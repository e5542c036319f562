// Package notify delivers alt alerts to staff: connected websocket
// clients, and optionally a NATS subject or a Redis pub/sub channel.
package notify

import (
	"context"
	"errors"

	"github.com/ernie/altcheck/internal/domain"
)

// ErrDropped is returned when an alert could not be queued for delivery
var ErrDropped = errors.New("alert dropped")

// Notifier delivers one alert
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a plain function to Notifier
type Func func(ctx context.Context, alert domain.Alert) error

func (f Func) Notify(ctx context.Context, alert domain.Alert) error {
	return f(ctx, alert)
}
