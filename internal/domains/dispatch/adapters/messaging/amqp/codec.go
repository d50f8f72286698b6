package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

const contentTypeJSON = "application/json"

// orderMessage is the wire shape of one row snapshot.
type orderMessage struct {
	ID              string          `json:"id"`
	OrderNumber     int64           `json:"order_number"`
	PickupCode      string          `json:"pickup_code,omitempty"`
	StoreID         string          `json:"store_id,omitempty"`
	Status          string          `json:"status"`
	DispatchStation string          `json:"dispatch_station,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Items           []itemMessage   `json:"items,omitempty"`
	ServedBy        string          `json:"served_by,omitempty"`
	ServedAt        *time.Time      `json:"served_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type itemMessage struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
}

func encodeOrder(order domain.Order) ([]byte, error) {
	msg := orderMessage{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		PickupCode:      order.PickupCode,
		StoreID:         order.StoreID,
		Status:          string(order.Status),
		DispatchStation: string(order.DispatchStation),
		TotalAmount:     order.TotalAmount,
		ServedBy:        order.ServedBy,
		ServedAt:        order.ServedAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, itemMessage(item))
	}
	return json.Marshal(msg)
}

func decodeOrder(body []byte) (domain.Order, error) {
	var msg orderMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.Order{}, err
	}
	order := domain.Order{
		ID:              msg.ID,
		OrderNumber:     msg.OrderNumber,
		PickupCode:      msg.PickupCode,
		StoreID:         msg.StoreID,
		Status:          domain.Status(msg.Status),
		DispatchStation: domain.Station(msg.DispatchStation),
		TotalAmount:     msg.TotalAmount,
		ServedBy:        msg.ServedBy,
		ServedAt:        msg.ServedAt,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       msg.UpdatedAt,
	}
	for _, item := range msg.Items {
		order.Items = append(order.Items, domain.LineItem(item))
	}
	return order, order.Validate()
}
