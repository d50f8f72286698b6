package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order progression.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

var (
	ErrInvalidStatus    = errors.New("order status is invalid")
	ErrMissingOrderID   = errors.New("order id is required")
	ErrMissingStation   = errors.New("a specific station is required to claim an order")
	ErrMissingOperator  = errors.New("operator id is required to confirm delivery")
	ErrServed           = errors.New("order already served")
	ErrClosed           = errors.New("order is cancelled or refunded")
	ErrStationAssigned  = errors.New("order already assigned to a station")
	ErrInvalidLineItems = errors.New("line item quantity must be greater than zero")
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPaid, StatusPreparing, StatusReady, StatusServed, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// Closed reports the absorbing states reachable from any pre-served state.
func (s Status) Closed() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Paid reports whether payment has been confirmed for the order.
func (s Status) Paid() bool {
	switch s {
	case StatusPaid, StatusPreparing, StatusReady, StatusServed:
		return true
	default:
		return false
	}
}

// AwaitingPayment is true while the fallback status poll must keep running.
func (s Status) AwaitingPayment() bool {
	return s == StatusPending
}

// ClosedStatuses lists the states a claim or delivery may never leave.
func ClosedStatuses() []Status {
	return []Status{StatusServed, StatusCancelled, StatusRefunded}
}

// LineItem is one row of the immutable item snapshot captured at order creation.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	Notes     string
}

// Order is the unit of work moved through claim and delivery.
type Order struct {
	ID              string
	OrderNumber     int64
	PickupCode      string
	StoreID         string
	Status          Status
	DispatchStation Station
	TotalAmount     decimal.Decimal
	Items           []LineItem
	ServedBy        string
	ServedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return ErrMissingOrderID
	}
	if !o.Status.Valid() {
		return ErrInvalidStatus
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return ErrInvalidLineItems
		}
	}
	return nil
}

// NeedsClaim decides whether a scan from the given station is a first scan.
func (o *Order) NeedsClaim(station Station) bool {
	if !station.Filtering() {
		return false
	}
	return o.DispatchStation != station
}

// Claim assigns the order to a station and moves it into preparation.
// The guard mirrors the conditional write every backend must enforce atomically.
func (o *Order) Claim(station Station, at time.Time) error {
	if !station.Filtering() {
		return ErrMissingStation
	}
	switch {
	case o.Status == StatusServed:
		return ErrServed
	case o.Status.Closed():
		return ErrClosed
	case o.DispatchStation != "":
		return ErrStationAssigned
	}
	o.DispatchStation = station
	o.Status = StatusPreparing
	o.UpdatedAt = at
	return nil
}

// MarkServed records the terminal delivery transition.
func (o *Order) MarkServed(operatorID string, at time.Time) error {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return ErrMissingOperator
	}
	switch {
	case o.Status == StatusServed:
		return ErrServed
	case o.Status.Closed():
		return ErrClosed
	}
	served := at
	o.Status = StatusServed
	o.ServedBy = operatorID
	o.ServedAt = &served
	o.UpdatedAt = at
	return nil
}

// Clone returns a deep copy so callers never share the item slice.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Items != nil {
		clone.Items = append([]LineItem(nil), o.Items...)
	}
	if o.ServedAt != nil {
		servedAt := *o.ServedAt
		clone.ServedAt = &servedAt
	}
	return &clone
}
