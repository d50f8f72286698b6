package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

var _ ports.OrderRepository = (*Repository)(nil)

// Repository is an in-memory order store. A single mutex makes each conditional write atomic.
type Repository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	items     map[string][]domain.LineItem
	publisher ports.ChangePublisher
	now       func() time.Time
}

type Option func(*Repository)

// WithPublisher pushes every written row to subscribers, mimicking a backend change feed.
func WithPublisher(p ports.ChangePublisher) Option {
	return func(r *Repository) {
		r.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		orders: map[string]*domain.Order{},
		items:  map[string][]domain.LineItem{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Save inserts or replaces an order row.
func (r *Repository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	clone := order.Clone()
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	r.mu.Lock()
	if existing, ok := r.orders[clone.ID]; ok {
		clone.CreatedAt = existing.CreatedAt
	} else if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.orders[clone.ID] = clone
	saved := clone.Clone()
	r.mu.Unlock()

	r.publish(ctx, saved)
	return saved, nil
}

// SaveItems stores the separate item rows of an order.
func (r *Repository) SaveItems(_ context.Context, orderID string, items []domain.LineItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidLineItems
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[orderID] = append([]domain.LineItem(nil), items...)
	return nil
}

func (r *Repository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *Repository) FindByPickupCode(_ context.Context, code string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match *domain.Order
	for _, order := range r.orders {
		if order.PickupCode != code {
			continue
		}
		if match == nil || order.CreatedAt.After(match.CreatedAt) {
			match = order
		}
	}
	if match == nil {
		return nil, ports.ErrNotFound
	}
	return match.Clone(), nil
}

func (r *Repository) FindByOrderNumber(_ context.Context, storeID string, number int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match *domain.Order
	for _, order := range r.orders {
		if order.OrderNumber != number {
			continue
		}
		if storeID != "" && order.StoreID != storeID {
			continue
		}
		if match == nil || order.CreatedAt.After(match.CreatedAt) {
			match = order
		}
	}
	if match == nil {
		return nil, ports.ErrNotFound
	}
	return match.Clone(), nil
}

func (r *Repository) ListItems(_ context.Context, orderID string) ([]domain.LineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.LineItem(nil), r.items[orderID]...), nil
}

func (r *Repository) Claim(ctx context.Context, orderID string, station domain.Station) (*domain.Order, error) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return nil, ports.ErrNotFound
	}
	if err := order.Claim(station, r.now().UTC()); err != nil {
		r.mu.Unlock()
		return nil, translate(err)
	}
	claimed := order.Clone()
	r.mu.Unlock()

	r.publish(ctx, claimed)
	return claimed, nil
}

func (r *Repository) ConfirmDelivery(ctx context.Context, orderID, operatorID string, at time.Time) (*domain.Order, error) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return nil, ports.ErrNotFound
	}
	if err := order.MarkServed(operatorID, at); err != nil {
		r.mu.Unlock()
		return nil, translate(err)
	}
	served := order.Clone()
	r.mu.Unlock()

	r.publish(ctx, served)
	return served, nil
}

func (r *Repository) publish(ctx context.Context, order *domain.Order) {
	if r.publisher == nil || order == nil {
		return
	}
	// the write already happened; a failed push is masked by the status poll
	_ = r.publisher.Publish(ctx, *order)
}

func translate(err error) error {
	switch {
	case errors.Is(err, domain.ErrServed):
		return ports.ErrAlreadyServed
	case errors.Is(err, domain.ErrClosed):
		return ports.ErrOrderClosed
	case errors.Is(err, domain.ErrStationAssigned):
		return ports.ErrClaimConflict
	default:
		return err
	}
}
