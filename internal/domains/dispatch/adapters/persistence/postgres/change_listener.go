package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

// ChangeChannel is the NOTIFY channel fed by the orders trigger; the payload is the order id.
const ChangeChannel = "order_changes"

const listenerPingInterval = 90 * time.Second

// ChangeListener turns LISTEN/NOTIFY events into full-row snapshots for a publisher.
type ChangeListener struct {
	dsn       string
	orders    ports.OrderReader
	publisher ports.ChangePublisher
	logger    *slog.Logger
}

func NewChangeListener(dsn string, orders ports.OrderReader, publisher ports.ChangePublisher, logger *slog.Logger) *ChangeListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChangeListener{dsn: dsn, orders: orders, publisher: publisher, logger: logger}
}

// Run listens until ctx is done. pq reconnects on its own; a nil notification marks a
// reconnect after which pushes may have been missed.
func (l *ChangeListener) Run(ctx context.Context) error {
	if strings.TrimSpace(l.dsn) == "" {
		return errors.New("postgres change listener requires a DSN")
	}
	listener := pq.NewListener(l.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("order change listener event", slog.Int("event", int(ev)), slog.String("error", err.Error()))
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChangeChannel); err != nil {
		return err
	}
	l.logger.Info("listening for order changes", slog.String("channel", ChangeChannel))

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				l.logger.Warn("order change listener reconnected, pushes may have been missed")
				continue
			}
			l.forward(ctx, strings.TrimSpace(n.Extra))
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("order change listener ping failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

func (l *ChangeListener) forward(ctx context.Context, orderID string) {
	if orderID == "" {
		return
	}
	order, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		l.logger.Warn("failed to load changed order", slog.String("order.id", orderID), slog.String("error", err.Error()))
		return
	}
	if err := l.publisher.Publish(ctx, *order); err != nil {
		l.logger.Warn("failed to publish order change", slog.String("order.id", orderID), slog.String("error", err.Error()))
	}
}
