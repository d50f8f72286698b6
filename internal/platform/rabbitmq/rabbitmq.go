// Package rabbitmq wraps an AMQP connection with publisher confirms and fanout helpers.
package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client owns one connection with a confirming publish channel.
type Client struct {
	conn *amqp.Connection
	pub  *amqp.Channel
	acks <-chan amqp.Confirmation
	mu   sync.Mutex
}

// Dial connects to url (amqp:// or amqps://) and enables publisher confirms.
func Dial(url string) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return &Client{conn: conn, pub: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.pub != nil {
		_ = c.pub.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareFanout declares a durable fanout exchange.
func (c *Client) DeclareFanout(exchange string) error {
	return c.pub.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil)
}

// Publish sends a transient message and waits for the broker confirm. Calls are serialized.
func (c *Client) Publish(ctx context.Context, exchange, key, contentType string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pub.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Transient,
		ContentType:  contentType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return err
	}
	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription is an exclusive queue bound to a fanout exchange.
type Subscription struct {
	ch         *amqp.Channel
	Deliveries <-chan amqp.Delivery
}

func (s *Subscription) Close() error {
	return s.ch.Close()
}

// SubscribeFanout binds a server-named, auto-deleted queue so every process gets every message.
func (c *Client) SubscribeFanout(exchange, consumer string) (*Subscription, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(q.Name, consumer, true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Subscription{ch: ch, Deliveries: deliveries}, nil
}
