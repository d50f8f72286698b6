package mapper

import (
	"fmt"
	"strings"
	"time"

	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// Order is the status snapshot exposed to terminals and customer screens.
type Order struct {
	ID              string     `json:"id"`
	OrderNumber     int64      `json:"order_number"`
	PickupCode      string     `json:"pickup_code,omitempty"`
	StoreID         string     `json:"store_id,omitempty"`
	Status          string     `json:"status"`
	DispatchStation string     `json:"dispatch_station,omitempty"`
	IsPaid          bool       `json:"is_paid"`
	Total           string     `json:"total"`
	ServedBy        string     `json:"served_by,omitempty"`
	ServedAt        *time.Time `json:"served_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Item is one previewed line item with its resolved display name.
type Item struct {
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Notes     string `json:"notes,omitempty"`
}

// Preview is the resolved order shown on a terminal.
type Preview struct {
	Order         Order  `json:"order"`
	Items         []Item `json:"items"`
	CodeKind      string `json:"code_kind,omitempty"`
	NamesDegraded bool   `json:"names_degraded,omitempty"`
}

// OfflineDelivery is one confirmation captured while a terminal was offline.
type OfflineDelivery struct {
	OrderID     string    `json:"order_id" binding:"required"`
	OperatorID  string    `json:"operator_id" binding:"required"`
	ConfirmedAt time.Time `json:"confirmed_at" binding:"required"`
}

// OfflineSyncRequest is the batch body uploaded by a terminal.
type OfflineSyncRequest struct {
	Deliveries []OfflineDelivery `json:"deliveries" binding:"required"`
}

type OfflineDeliveryResult struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

type OfflineSyncResponse struct {
	TerminalID string                  `json:"terminal_id"`
	Results    []OfflineDeliveryResult `json:"results"`
}

// FromDomainOrder converts a domain order into its transport snapshot.
func FromDomainOrder(order *dispatchdomain.Order) Order {
	if order == nil {
		return Order{}
	}
	return Order{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		PickupCode:      order.PickupCode,
		StoreID:         order.StoreID,
		Status:          string(order.Status),
		DispatchStation: string(order.DispatchStation),
		IsPaid:          order.Status.Paid(),
		Total:           order.TotalAmount.StringFixed(2),
		ServedBy:        order.ServedBy,
		ServedAt:        order.ServedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// FromResolved converts a resolved order into a terminal preview.
func FromResolved(resolved *dispatchtypes.ResolvedOrder) *Preview {
	if resolved == nil {
		return nil
	}
	preview := &Preview{
		Order:         FromDomainOrder(resolved.Order),
		Items:         make([]Item, 0, len(resolved.Items)),
		NamesDegraded: resolved.NamesDegraded,
	}
	if resolved.Code.Value != "" {
		preview.CodeKind = resolved.Code.Kind.String()
	}
	for _, item := range resolved.Items {
		preview.Items = append(preview.Items, Item{
			ProductID: item.ProductID,
			Name:      item.DisplayName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Notes:     item.Notes,
		})
	}
	return preview
}

// ToOfflineSyncInput validates and converts an uploaded batch.
func ToOfflineSyncInput(terminalID string, req OfflineSyncRequest) (dispatchtypes.OfflineSyncInput, error) {
	input := dispatchtypes.OfflineSyncInput{
		TerminalID: strings.TrimSpace(terminalID),
		Deliveries: make([]dispatchtypes.OfflineDelivery, 0, len(req.Deliveries)),
	}
	for i, d := range req.Deliveries {
		if strings.TrimSpace(d.OrderID) == "" || strings.TrimSpace(d.OperatorID) == "" {
			return dispatchtypes.OfflineSyncInput{}, fmt.Errorf("deliveries[%d]: order_id and operator_id are required", i)
		}
		input.Deliveries = append(input.Deliveries, dispatchtypes.OfflineDelivery{
			OrderID:     strings.TrimSpace(d.OrderID),
			OperatorID:  strings.TrimSpace(d.OperatorID),
			ConfirmedAt: d.ConfirmedAt.UTC(),
		})
	}
	return input, nil
}

func FromOfflineSyncResult(result *dispatchtypes.OfflineSyncResult) OfflineSyncResponse {
	if result == nil {
		return OfflineSyncResponse{Results: []OfflineDeliveryResult{}}
	}
	resp := OfflineSyncResponse{
		TerminalID: result.TerminalID,
		Results:    make([]OfflineDeliveryResult, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		resp.Results = append(resp.Results, OfflineDeliveryResult{
			OrderID: r.OrderID,
			Outcome: string(r.Outcome),
			Message: r.Message,
		})
	}
	return resp
}
