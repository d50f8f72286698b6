package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// orderRecord maps the order aggregate to the orders table.
type orderRecord struct {
	ID              string          `gorm:"primaryKey;column:id;type:varchar(64)"`
	OrderNumber     int64           `gorm:"column:order_number;index:idx_orders_store_number"`
	PickupCode      string          `gorm:"column:pickup_code;type:varchar(64);index"`
	StoreID         string          `gorm:"column:store_id;type:varchar(64);index:idx_orders_store_number"`
	Status          string          `gorm:"column:status;type:varchar(32);index"`
	DispatchStation *string         `gorm:"column:dispatch_station;type:varchar(64)"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2)"`
	Items           []itemSnapshot  `gorm:"column:items;serializer:json"`
	ServedBy        *string         `gorm:"column:served_by;type:varchar(64)"`
	ServedAt        *time.Time      `gorm:"column:served_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;index"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// itemSnapshot is the embedded JSON shape of the items column.
type itemSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
}

// orderItemRecord is a separate item row.
type orderItemRecord struct {
	ID        int64           `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID   string          `gorm:"column:order_id;type:varchar(64);index"`
	ProductID string          `gorm:"column:product_id;type:varchar(64)"`
	Name      string          `gorm:"column:name"`
	Quantity  int32           `gorm:"column:quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2)"`
	Notes     string          `gorm:"column:notes"`
}

func (orderItemRecord) TableName() string { return "order_items" }

func toRecord(order *domain.Order) orderRecord {
	rec := orderRecord{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		PickupCode:  order.PickupCode,
		StoreID:     order.StoreID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		ServedAt:    order.ServedAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if order.DispatchStation != "" {
		station := string(order.DispatchStation)
		rec.DispatchStation = &station
	}
	if order.ServedBy != "" {
		servedBy := order.ServedBy
		rec.ServedBy = &servedBy
	}
	rec.Items = make([]itemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		rec.Items = append(rec.Items, itemSnapshot{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}
	return rec
}

func (r orderRecord) toDomain() *domain.Order {
	order := &domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		PickupCode:  r.PickupCode,
		StoreID:     r.StoreID,
		Status:      domain.Status(r.Status),
		TotalAmount: r.TotalAmount,
		ServedAt:    r.ServedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.DispatchStation != nil {
		order.DispatchStation = domain.Station(*r.DispatchStation)
	}
	if r.ServedBy != nil {
		order.ServedBy = *r.ServedBy
	}
	if len(r.Items) > 0 {
		order.Items = make([]domain.LineItem, 0, len(r.Items))
		for _, item := range r.Items {
			order.Items = append(order.Items, domain.LineItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Notes:     item.Notes,
			})
		}
	}
	return order
}

func (r orderItemRecord) toDomain() domain.LineItem {
	return domain.LineItem{
		ProductID: r.ProductID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Notes:     r.Notes,
	}
}
