package postgres

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

var _ ports.Catalog = (*Catalog)(nil)

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

// Catalog reads display names from the products and inventory_items tables.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) ProductNames(ctx context.Context, ids []string) (map[string]string, error) {
	var records []productRecord
	if err := c.find(ctx, &records, ids); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(records))
	for _, rec := range records {
		names[rec.ID] = rec.Name
	}
	return names, nil
}

func (c *Catalog) InventoryItemNames(ctx context.Context, ids []string) (map[string]string, error) {
	var records []inventoryItemRecord
	if err := c.find(ctx, &records, ids); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(records))
	for _, rec := range records {
		names[rec.ID] = rec.Name
	}
	return names, nil
}

func (c *Catalog) find(ctx context.Context, dest any, ids []string) error {
	if c == nil || c.db == nil {
		return errors.New("postgres catalog not configured")
	}
	if len(ids) == 0 {
		return nil
	}
	return c.db.WithContext(ctx).Select("id", "name").Where("id = ANY(?)", pq.StringArray(ids)).Find(dest).Error
}

// SaveProduct upserts a product name.
func (c *Catalog) SaveProduct(ctx context.Context, id, storeID, name string) error {
	return c.db.WithContext(ctx).Save(&productRecord{ID: id, StoreID: storeID, Name: name}).Error
}

// SaveInventoryItem upserts an inventory item name.
func (c *Catalog) SaveInventoryItem(ctx context.Context, id, storeID, name string) error {
	return c.db.WithContext(ctx).Save(&inventoryItemRecord{ID: id, StoreID: storeID, Name: name}).Error
}
