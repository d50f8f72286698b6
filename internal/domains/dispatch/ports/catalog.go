package ports

import "context"

// Catalog resolves human-readable names for item rows.
type Catalog interface {
	ProductNames(ctx context.Context, ids []string) (map[string]string, error)
	InventoryItemNames(ctx context.Context, ids []string) (map[string]string, error)
}
