package application

import (
	"context"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// StatusTracker suppresses repeated statuses at the subscriber boundary.
type StatusTracker struct {
	known domain.Status
	seen  bool
}

// Observe reports whether status differs from the previously observed one.
// The first observation always counts as a transition.
func (t *StatusTracker) Observe(status domain.Status) bool {
	if t.seen && t.known == status {
		return false
	}
	t.known = status
	t.seen = true
	return true
}

// Known returns the last observed status.
func (t *StatusTracker) Known() (domain.Status, bool) {
	return t.known, t.seen
}

// Transitions relays only snapshots whose status changed.
func Transitions(ctx context.Context, in <-chan domain.Order) <-chan domain.Order {
	out := make(chan domain.Order)
	go func() {
		defer close(out)
		var tracker StatusTracker
		for order := range in {
			if !tracker.Observe(order.Status) {
				continue
			}
			select {
			case out <- order:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
