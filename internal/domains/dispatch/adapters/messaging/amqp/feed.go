// Package amqp distributes order row snapshots between processes over a RabbitMQ fanout exchange.
package amqp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/platform/rabbitmq"
)

// Exchange is the fanout exchange carrying order snapshots.
const Exchange = "dispatch.order_changes"

var _ ports.ChangePublisher = (*Publisher)(nil)

// Broker is the subset of the RabbitMQ client used here.
type Broker interface {
	Publish(ctx context.Context, exchange, key, contentType string, body []byte) error
	SubscribeFanout(exchange, consumer string) (*rabbitmq.Subscription, error)
}

// Publisher sends snapshots to every dispatch process.
type Publisher struct {
	broker Broker
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) Publish(ctx context.Context, order domain.Order) error {
	body, err := encodeOrder(order)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, Exchange, "", contentTypeJSON, body)
}

// Consumer relays snapshots from the exchange into a local publisher, usually the realtime hub.
type Consumer struct {
	broker Broker
	local  ports.ChangePublisher
	name   string
	logger *slog.Logger
}

func NewConsumer(broker Broker, local ports.ChangePublisher, name string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{broker: broker, local: local, name: name, logger: logger}
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.broker.SubscribeFanout(Exchange, c.name)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-sub.Deliveries:
			if !ok {
				return errors.New("order change deliveries closed")
			}
			c.handle(ctx, d.Body)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) {
	order, err := decodeOrder(body)
	if err != nil {
		c.logger.Warn("dropping malformed order change", slog.String("error", err.Error()))
		return
	}
	if err := c.local.Publish(ctx, order); err != nil {
		c.logger.Warn("failed to relay order change", slog.String("order.id", order.ID), slog.String("error", err.Error()))
	}
}
