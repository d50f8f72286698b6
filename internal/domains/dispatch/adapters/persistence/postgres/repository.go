package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

var _ ports.OrderRepository = (*Repository)(nil)

// DefaultLockTimeout bounds how long a conditional write waits for a row lock.
const DefaultLockTimeout = 2 * time.Second

const claimSQL = `UPDATE orders
SET dispatch_station = ?, status = ?, updated_at = NOW()
WHERE id = ? AND dispatch_station IS NULL AND status NOT IN ?
RETURNING *`

const confirmDeliverySQL = `UPDATE orders
SET status = ?, served_by = ?, served_at = ?, updated_at = NOW()
WHERE id = ? AND status NOT IN ?
RETURNING *`

// Repository persists orders in PostgreSQL using GORM. Claim and delivery are single
// conditional UPDATE statements so racing terminals are ordered by the database.
type Repository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

type Option func(*Repository)

// WithLockTimeout sets the per-transaction lock_timeout. Zero disables it.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d >= 0 {
			r.lockTimeout = d
		}
	}
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle and migrations.
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{db: db, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Save inserts or updates an order row.
func (r *Repository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	record := toRecord(order)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"order_number":     record.OrderNumber,
				"pickup_code":      record.PickupCode,
				"store_id":         record.StoreID,
				"status":           record.Status,
				"dispatch_station": record.DispatchStation,
				"total_amount":     record.TotalAmount,
				"items":            gorm.Expr("EXCLUDED.items"),
				"served_by":        record.ServedBy,
				"served_at":        record.ServedAt,
				"updated_at":       gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error; err != nil {
		return nil, translateError(err)
	}
	return r.FindByID(ctx, record.ID)
}

// SaveItems replaces the separate item rows of an order.
func (r *Repository) SaveItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	records := make([]orderItemRecord, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidLineItems
		}
		records = append(records, orderItemRecord{
			OrderID:   orderID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&orderItemRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.first(ctx, r.db, "id = ?", id)
}

// FindByPickupCode prefers the most recent order when codes were reused.
func (r *Repository) FindByPickupCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.first(ctx, r.db, "pickup_code = ?", code)
}

func (r *Repository) FindByOrderNumber(ctx context.Context, storeID string, number int64) (*domain.Order, error) {
	if storeID != "" {
		return r.first(ctx, r.db, "order_number = ? AND store_id = ?", number, storeID)
	}
	return r.first(ctx, r.db, "order_number = ?", number)
}

func (r *Repository) ListItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []orderItemRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&records).Error; err != nil {
		return nil, translateError(err)
	}
	items := make([]domain.LineItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.toDomain())
	}
	return items, nil
}

// Claim assigns an unassigned open order to the station.
func (r *Repository) Claim(ctx context.Context, orderID string, station domain.Station) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if !station.Filtering() {
		return nil, domain.ErrMissingStation
	}
	var claimed *domain.Order
	err := r.writeTx(ctx, func(tx *gorm.DB) error {
		var rec orderRecord
		result := tx.Raw(claimSQL, string(station), string(domain.StatusPreparing), orderID, closedStatuses()).Scan(&rec)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.explainRejection(ctx, tx, orderID, ports.ErrClaimConflict)
		}
		claimed = rec.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ConfirmDelivery marks the order served exactly once.
func (r *Repository) ConfirmDelivery(ctx context.Context, orderID, operatorID string, at time.Time) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var served *domain.Order
	err := r.writeTx(ctx, func(tx *gorm.DB) error {
		var rec orderRecord
		result := tx.Raw(confirmDeliverySQL, string(domain.StatusServed), operatorID, at.UTC(), orderID, closedStatuses()).Scan(&rec)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.explainRejection(ctx, tx, orderID, ports.ErrAlreadyServed)
		}
		served = rec.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return served, nil
}

// explainRejection reads the row that failed a guard and names the reason.
func (r *Repository) explainRejection(ctx context.Context, tx *gorm.DB, orderID string, fallback error) error {
	current, err := r.first(ctx, tx, "id = ?", orderID)
	if err != nil {
		return err
	}
	switch {
	case current.Status == domain.StatusServed:
		return ports.ErrAlreadyServed
	case current.Status.Closed():
		return ports.ErrOrderClosed
	default:
		return fallback
	}
}

func (r *Repository) writeTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET does not accept bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	return translateError(err)
}

func (r *Repository) first(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := db.WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, translateError(err)
	}
	return record.toDomain(), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func closedStatuses() []string {
	statuses := domain.ClosedStatuses()
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}

// translateError maps lock_not_available onto the port sentinel while keeping the driver error.
func translateError(err error) error {
	if err == nil || errors.Is(err, ports.ErrLockContention) {
		return err
	}
	if retry.IsLockNotAvailable(err) {
		return fmt.Errorf("%w: %w", ports.ErrLockContention, err)
	}
	return err
}
