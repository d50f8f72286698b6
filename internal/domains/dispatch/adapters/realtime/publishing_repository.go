package realtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

var _ ports.OrderRepository = (*PublishingRepository)(nil)

// PublishingRepository pushes the row returned by each successful transition to a publisher.
// It stands in for a backend change feed when the store cannot notify on its own.
type PublishingRepository struct {
	ports.OrderRepository
	publisher ports.ChangePublisher
	logger    *slog.Logger
}

func NewPublishingRepository(inner ports.OrderRepository, publisher ports.ChangePublisher, logger *slog.Logger) *PublishingRepository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PublishingRepository{OrderRepository: inner, publisher: publisher, logger: logger}
}

func (r *PublishingRepository) Claim(ctx context.Context, orderID string, station domain.Station) (*domain.Order, error) {
	order, err := r.OrderRepository.Claim(ctx, orderID, station)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, order)
	return order, nil
}

func (r *PublishingRepository) ConfirmDelivery(ctx context.Context, orderID, operatorID string, at time.Time) (*domain.Order, error) {
	order, err := r.OrderRepository.ConfirmDelivery(ctx, orderID, operatorID, at)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, order)
	return order, nil
}

// publish never fails the write; watchers fall back to polling.
func (r *PublishingRepository) publish(ctx context.Context, order *domain.Order) {
	if err := r.publisher.Publish(context.WithoutCancel(ctx), *order); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish order change",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
	}
}
