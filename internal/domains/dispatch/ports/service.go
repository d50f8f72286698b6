package ports

import (
	"context"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// Service defines the dispatch use cases exposed to adapters (inbound/driving port).
type Service interface {
	// Resolve classifies a scanned code and loads the order with enriched items.
	// On ErrAlreadyServed the resolved order is returned alongside the error.
	Resolve(ctx context.Context, input types.ResolveInput) (*types.ResolvedOrder, error)
	// Scan runs one claim-or-preview decision for a terminal scan.
	Scan(ctx context.Context, input types.ScanInput) (*types.ScanOutcome, error)
	// ConfirmDelivery performs the delivery transition for a previewed order.
	ConfirmDelivery(ctx context.Context, input types.ConfirmDeliveryInput) (*domain.Order, error)
	// GetOrder returns the current snapshot of an order.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// WatchService exposes status change fan-out.
type WatchService interface {
	Watch(ctx context.Context, orderID string) (<-chan domain.Order, error)
}
