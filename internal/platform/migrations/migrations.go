package migrations

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts and installs the order change trigger.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(
		&orderRecord{},
		&orderItemRecord{},
		&productRecord{},
		&inventoryItemRecord{},
		&terminalStationRecord{},
		&retryMetricRecord{},
	); err != nil {
		return err
	}
	for _, stmt := range changeTriggerStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// changeTriggerStatements publish the order id on every insert or update; the
// dispatch change listener loads the full row.
var changeTriggerStatements = []string{
	`CREATE OR REPLACE FUNCTION notify_order_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('order_changes', NEW.id);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS orders_notify_change ON orders`,
	`CREATE TRIGGER orders_notify_change AFTER INSERT OR UPDATE ON orders
FOR EACH ROW EXECUTE FUNCTION notify_order_change()`,
}

// Order schema mirrors the dispatch Postgres adapter.
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

type itemSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
}

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

type productRecord struct {
	ID      string `gorm:"primaryKey;column:id;type:varchar(64)"`
	StoreID string `gorm:"column:store_id;type:varchar(64);index"`
	Name    string `gorm:"column:name"`
}

func (productRecord) TableName() string { return "products" }

type inventoryItemRecord struct {
	ID      string `gorm:"primaryKey;column:id;type:varchar(64)"`
	StoreID string `gorm:"column:store_id;type:varchar(64);index"`
	Name    string `gorm:"column:name"`
}

func (inventoryItemRecord) TableName() string { return "inventory_items" }

// Terminal station schema mirrors the terminals Postgres adapter.
type terminalStationRecord struct {
	TerminalID string    `gorm:"primaryKey;column:terminal_id;type:varchar(64)"`
	Station    string    `gorm:"column:station;type:varchar(64)"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (terminalStationRecord) TableName() string { return "terminal_stations" }

// Retry metric schema mirrors the dispatch retry metrics store.
type retryMetricRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	RPCName     string    `gorm:"column:rpc_name;type:varchar(64);index"`
	Attempts    int       `gorm:"column:attempts"`
	FinalStatus string    `gorm:"column:final_status;type:varchar(16)"`
	DurationMs  int64     `gorm:"column:duration_ms"`
	ErrorCode   string    `gorm:"column:error_code;type:varchar(32)"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
}

func (retryMetricRecord) TableName() string { return "retry_metrics" }
