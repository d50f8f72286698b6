package application

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

// Resolver turns a scanned string into an order snapshot with display names.
type Resolver struct {
	orders  ports.OrderReader
	catalog ports.Catalog
}

// NewResolver wires the resolver. catalog may be nil, in which case names come from the item snapshot.
func NewResolver(orders ports.OrderReader, catalog ports.Catalog) *Resolver {
	return &Resolver{orders: orders, catalog: catalog}
}

// Resolve classifies the code, loads the order and its items, and rejects served orders.
// A served order is returned together with ports.ErrAlreadyServed so callers can still show it.
func (r *Resolver) Resolve(ctx context.Context, input types.ResolveInput) (*types.ResolvedOrder, error) {
	code, err := domain.ClassifyCode(input.Code)
	if err != nil {
		return nil, mapError(err)
	}
	storeID := strings.TrimSpace(input.StoreID)
	order, err := r.lookup(ctx, code, storeID)
	if err != nil {
		return nil, err
	}
	if storeID != "" && order.StoreID != "" && order.StoreID != storeID {
		return nil, ports.ErrStoreMismatch
	}
	resolved, err := r.enrich(ctx, order)
	if err != nil {
		return nil, err
	}
	resolved.Code = code
	if order.Status == domain.StatusServed {
		return resolved, ports.ErrAlreadyServed
	}
	return resolved, nil
}

// lookup applies identifier before numeric before opaque. Numeric codes never fall back to pickup codes.
func (r *Resolver) lookup(ctx context.Context, code domain.ScanCode, storeID string) (*domain.Order, error) {
	switch code.Kind {
	case domain.CodeIdentifier:
		order, err := r.orders.FindByID(ctx, code.Value)
		if errors.Is(err, ports.ErrNotFound) {
			return r.orders.FindByPickupCode(ctx, code.Value)
		}
		return order, err
	case domain.CodeNumeric:
		return r.orders.FindByOrderNumber(ctx, storeID, code.Number)
	default:
		return r.orders.FindByPickupCode(ctx, code.Value)
	}
}

func (r *Resolver) enrich(ctx context.Context, order *domain.Order) (*types.ResolvedOrder, error) {
	items, err := r.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = order.Items
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, inventory, degraded := r.lookupNames(ctx, ids)

	resolved := &types.ResolvedOrder{
		Order:         order,
		Items:         make([]types.ResolvedItem, 0, len(items)),
		NamesDegraded: degraded,
	}
	for _, item := range items {
		resolved.Items = append(resolved.Items, types.ResolvedItem{
			LineItem:    item,
			DisplayName: displayName(item, products, inventory),
		})
	}
	return resolved, nil
}

// lookupNames queries both catalogs concurrently. A failing catalog degrades names but never fails the scan.
func (r *Resolver) lookupNames(ctx context.Context, ids []string) (products, inventory map[string]string, degraded bool) {
	if r.catalog == nil || len(ids) == 0 {
		return nil, nil, false
	}
	var (
		g                    errgroup.Group
		productErr, stockErr error
	)
	g.Go(func() error {
		products, productErr = r.catalog.ProductNames(ctx, ids)
		return nil
	})
	g.Go(func() error {
		inventory, stockErr = r.catalog.InventoryItemNames(ctx, ids)
		return nil
	})
	_ = g.Wait()
	return products, inventory, productErr != nil || stockErr != nil
}

func displayName(item domain.LineItem, products, inventory map[string]string) string {
	if name := strings.TrimSpace(products[item.ProductID]); name != "" {
		return name
	}
	if name := strings.TrimSpace(inventory[item.ProductID]); name != "" {
		return name
	}
	if name := strings.TrimSpace(item.Name); name != "" {
		return name
	}
	return types.UnknownProductName
}
