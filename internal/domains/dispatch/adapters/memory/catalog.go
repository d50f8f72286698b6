package memory

import (
	"context"
	"sync"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

var _ ports.Catalog = (*Catalog)(nil)

// Catalog keeps product and inventory item names in memory.
type Catalog struct {
	mu        sync.RWMutex
	products  map[string]string
	inventory map[string]string
}

func NewCatalog() *Catalog {
	return &Catalog{products: map[string]string{}, inventory: map[string]string{}}
}

func (c *Catalog) PutProduct(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[id] = name
}

func (c *Catalog) PutInventoryItem(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inventory[id] = name
}

func (c *Catalog) ProductNames(_ context.Context, ids []string) (map[string]string, error) {
	return c.lookup(c.products, ids), nil
}

func (c *Catalog) InventoryItemNames(_ context.Context, ids []string) (map[string]string, error) {
	return c.lookup(c.inventory, ids), nil
}

func (c *Catalog) lookup(source map[string]string, ids []string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := source[id]; ok {
			names[id] = name
		}
	}
	return names
}
