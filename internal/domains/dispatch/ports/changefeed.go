package ports

import (
	"context"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// ChangeFeed streams full-row snapshots of one order on every backend-side update.
type ChangeFeed interface {
	// Subscribe registers for changes; the returned cancel func unregisters and closes the channel.
	Subscribe(ctx context.Context, orderID string) (<-chan domain.Order, func(), error)
}

// ChangePublisher pushes a changed row to every subscriber of that order.
type ChangePublisher interface {
	Publish(ctx context.Context, order domain.Order) error
}
