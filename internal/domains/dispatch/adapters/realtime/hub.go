// Package realtime fans order row snapshots out to in-process subscribers.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

var (
	_ ports.ChangeFeed      = (*Hub)(nil)
	_ ports.ChangePublisher = (*Hub)(nil)
)

// ErrClosed is returned when subscribing to a closed hub.
var ErrClosed = errors.New("realtime hub closed")

const defaultBuffer = 8

type subscription struct {
	ch   chan domain.Order
	once sync.Once
}

// Hub keeps subscribers per order id. Slow subscribers lose the oldest buffered
// snapshot rather than blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	closed bool
}

type Option func(*Hub)

func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{subs: map[string]map[*subscription]struct{}{}, buffer: defaultBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe registers for one order. The subscription also ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, orderID string) (<-chan domain.Order, func(), error) {
	sub := &subscription{ch: make(chan domain.Order, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if h.subs[orderID] == nil {
		h.subs[orderID] = map[*subscription]struct{}{}
	}
	h.subs[orderID][sub] = struct{}{}
	h.mu.Unlock()

	var stop func() bool
	cancel := func() {
		if stop != nil {
			stop()
		}
		h.remove(orderID, sub)
	}
	stop = context.AfterFunc(ctx, func() { h.remove(orderID, sub) })
	return sub.ch, cancel, nil
}

// Publish delivers the snapshot to every subscriber of the order without blocking.
func (h *Hub) Publish(_ context.Context, order domain.Order) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[order.ID] {
		deliver(sub.ch, order)
	}
	return nil
}

// Subscribers reports the number of live subscriptions for an order.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, subs := range h.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.subs, id)
	}
}

func (h *Hub) remove(orderID string, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[orderID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, orderID)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

func deliver(ch chan domain.Order, order domain.Order) {
	select {
	case ch <- order:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- order:
	default:
	}
}
