package application

import (
	"context"
	"strings"
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

// DefaultPollInterval is the fallback poll cadence while an order awaits payment.
const DefaultPollInterval = 10 * time.Second

// StatusNotifier forwards every pushed or polled snapshot of one order to a watcher.
// Duplicate statuses are not suppressed here; see StatusTracker.
type StatusNotifier struct {
	orders   ports.OrderReader
	feed     ports.ChangeFeed
	interval time.Duration
}

type NotifierOption func(*StatusNotifier)

// WithPollInterval overrides the fallback poll cadence. Non-positive values disable polling.
func WithPollInterval(d time.Duration) NotifierOption {
	return func(n *StatusNotifier) {
		n.interval = d
	}
}

func NewStatusNotifier(orders ports.OrderReader, feed ports.ChangeFeed, opts ...NotifierOption) *StatusNotifier {
	n := &StatusNotifier{orders: orders, feed: feed, interval: DefaultPollInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Watch subscribes before loading the initial snapshot so no update between the two is lost.
// The returned channel is closed when ctx ends or the feed closes with polling stopped.
func (n *StatusNotifier) Watch(ctx context.Context, orderID string) (<-chan domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, mapError(domain.ErrMissingOrderID)
	}
	updates, unsubscribe, err := n.feed.Subscribe(ctx, orderID)
	if err != nil {
		return nil, err
	}
	initial, err := n.orders.FindByID(ctx, orderID)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan domain.Order, 1)
	go n.run(ctx, orderID, *initial, updates, unsubscribe, out)
	return out, nil
}

func (n *StatusNotifier) run(ctx context.Context, orderID string, initial domain.Order, updates <-chan domain.Order, unsubscribe func(), out chan<- domain.Order) {
	defer close(out)
	defer unsubscribe()

	send := func(order domain.Order) bool {
		select {
		case out <- order:
			return true
		case <-ctx.Done():
			return false
		}
	}

	known := initial.Status
	if !send(initial) {
		return
	}

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if n.interval > 0 && known.AwaitingPayment() {
		ticker = time.NewTicker(n.interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-updates:
			if !ok {
				updates = nil
				break
			}
			known = order.Status
			if !send(order) {
				return
			}
		case <-tick:
			order, err := n.orders.FindByID(ctx, orderID)
			if err != nil {
				// a missed poll is recovered by the next tick or a push
				continue
			}
			known = order.Status
			if !send(*order) {
				return
			}
		}
		if tick != nil && !known.AwaitingPayment() {
			ticker.Stop()
			tick = nil
		}
		if updates == nil && tick == nil {
			return
		}
	}
}

var _ ports.WatchService = (*StatusNotifier)(nil)
