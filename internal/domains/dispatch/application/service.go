package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

const (
	opClaimOrder      = "claim_order"
	opConfirmDelivery = "confirm_delivery"
)

// Retrier wraps a state-changing call with bounded retries on transient lock contention.
type Retrier interface {
	Do(ctx context.Context, operation string, fn func(ctx context.Context) error) (retry.Report, error)
}

// Service orchestrates the claim/deliver protocol for scans.
type Service struct {
	orders   ports.OrderRepository
	catalog  ports.Catalog
	resolver *Resolver
	retrier  Retrier
	now      func() time.Time
}

type Option func(*Service)

// WithCatalog enables product and inventory name enrichment.
func WithCatalog(c ports.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

func WithRetrier(r Retrier) Option {
	return func(s *Service) {
		if r != nil {
			s.retrier = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the dispatch service. Without WithRetrier it retries with retry.DefaultPolicy.
func NewService(orders ports.OrderRepository, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.retrier == nil {
		s.retrier = retry.NewExecutor(retry.WithClassifier(IsTransient))
	}
	s.resolver = NewResolver(orders, s.catalog)
	return s
}

// Resolve looks up a scanned code without performing any write.
func (s *Service) Resolve(ctx context.Context, input types.ResolveInput) (*types.ResolvedOrder, error) {
	return s.resolver.Resolve(ctx, input)
}

// Scan decides between the claim phase and the delivery preview for one terminal scan.
// The conditional write result is authoritative; the local decision only selects which write to try.
func (s *Service) Scan(ctx context.Context, input types.ScanInput) (*types.ScanOutcome, error) {
	station := domain.NormalizeStation(string(input.Station))
	resolveInput := types.ResolveInput{Code: input.Code, StoreID: input.StoreID}

	resolved, err := s.resolver.Resolve(ctx, resolveInput)
	if err != nil {
		return nil, err
	}
	if resolved.Order.Status.Closed() {
		return nil, ports.ErrOrderClosed
	}
	if !resolved.Order.NeedsClaim(station) {
		return &types.ScanOutcome{Action: types.ActionPreview, Order: resolved}, nil
	}

	var claimed *domain.Order
	_, err = s.retrier.Do(ctx, opClaimOrder, func(ctx context.Context) error {
		order, err := s.orders.Claim(ctx, resolved.Order.ID, station)
		if err != nil {
			return err
		}
		claimed = order
		return nil
	})
	switch {
	case err == nil:
		resolved.Order = claimed
		return &types.ScanOutcome{Action: types.ActionAssigned, Order: resolved}, nil
	case errors.Is(err, ports.ErrClaimConflict):
		// another station won; show whatever the backend holds now
		current, rerr := s.resolver.Resolve(ctx, resolveInput)
		if rerr != nil {
			return nil, rerr
		}
		return &types.ScanOutcome{Action: types.ActionPreview, Order: current, Conflict: true}, nil
	default:
		return nil, mapError(err)
	}
}

// ConfirmDelivery marks a previewed order as served by the given operator.
func (s *Service) ConfirmDelivery(ctx context.Context, input types.ConfirmDeliveryInput) (*domain.Order, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if orderID == "" {
		return nil, mapError(domain.ErrMissingOrderID)
	}
	operatorID := strings.TrimSpace(input.OperatorID)
	if operatorID == "" {
		return nil, mapError(domain.ErrMissingOperator)
	}
	at := s.now().UTC()
	if input.ConfirmedAt != nil && !input.ConfirmedAt.IsZero() {
		at = input.ConfirmedAt.UTC()
	}

	var served *domain.Order
	_, err := s.retrier.Do(ctx, opConfirmDelivery, func(ctx context.Context) error {
		order, err := s.orders.ConfirmDelivery(ctx, orderID, operatorID, at)
		if err != nil {
			return err
		}
		served = order
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return served, nil
}

// GetOrder returns the current snapshot of an order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, mapError(domain.ErrMissingOrderID)
	}
	return s.orders.FindByID(ctx, orderID)
}

var _ ports.Service = (*Service)(nil)
