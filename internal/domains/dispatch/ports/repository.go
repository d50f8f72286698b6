package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

var (
	// ErrNotFound signals that no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyServed signals a duplicate delivery or a stale claim on a served order.
	ErrAlreadyServed = errors.New("order already served")
	// ErrClaimConflict signals that another station holds the order.
	ErrClaimConflict = errors.New("order claimed by another station")
	// ErrOrderClosed signals a cancelled or refunded order.
	ErrOrderClosed = errors.New("order is cancelled or refunded")
	// ErrLockContention signals a transient lock-not-available condition in the backend.
	ErrLockContention = errors.New("order row is locked by a concurrent operation")
	// ErrStoreMismatch signals that the order belongs to another store than the terminal.
	ErrStoreMismatch = errors.New("order belongs to another store")
)

// IsLockContention classifies errors the retry executor may retry.
func IsLockContention(err error) bool {
	return errors.Is(err, ErrLockContention)
}

// OrderReader exposes the lookups used by code resolution and status polling.
type OrderReader interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByPickupCode(ctx context.Context, code string) (*domain.Order, error)
	// FindByOrderNumber scopes the lookup to storeID when non-empty; otherwise the most recent match wins.
	FindByOrderNumber(ctx context.Context, storeID string, number int64) (*domain.Order, error)
	// ListItems returns the separate item rows; an empty result means the caller should fall back to the embedded snapshot.
	ListItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
}

// OrderWriter exposes the only two transitions the coordinator may perform.
// Both must be evaluated atomically by the backend at write time.
type OrderWriter interface {
	// Claim sets dispatch_station and status=preparing when the order is unassigned and open.
	// It returns ErrClaimConflict, ErrAlreadyServed, ErrOrderClosed or ErrNotFound on rejection.
	Claim(ctx context.Context, orderID string, station domain.Station) (*domain.Order, error)
	// ConfirmDelivery sets status=served when the order is not served yet.
	// It returns ErrAlreadyServed, ErrOrderClosed or ErrNotFound on rejection.
	ConfirmDelivery(ctx context.Context, orderID, operatorID string, at time.Time) (*domain.Order, error)
}

// OrderRepository combines the read and write contracts.
type OrderRepository interface {
	OrderReader
	OrderWriter
}
