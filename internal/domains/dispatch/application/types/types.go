package types

import (
	"time"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

// UnknownProductName is shown when no catalog resolves an item.
const UnknownProductName = "unknown product"

// ResolveInput carries a raw scan and the optional store scope of the terminal.
type ResolveInput struct {
	Code    string
	StoreID string
}

// ResolvedItem is a line item enriched with a display name.
type ResolvedItem struct {
	domain.LineItem
	DisplayName string
}

// ResolvedOrder is the order snapshot shown to the operator.
type ResolvedOrder struct {
	Order *domain.Order
	Items []ResolvedItem
	Code  domain.ScanCode
	// NamesDegraded is set when a catalog lookup failed and names fell back to the snapshot.
	NamesDegraded bool
}

// ScanInput is one scan from one terminal. Station is the selection read by the terminal for this scan.
type ScanInput struct {
	Code    string
	Station domain.Station
	StoreID string
}

// ScanAction is the protocol decision taken for a scan.
type ScanAction string

const (
	// ActionAssigned means the first scan claimed the order for the station.
	ActionAssigned ScanAction = "assigned"
	// ActionPreview means the order awaits an explicit delivery confirmation.
	ActionPreview ScanAction = "preview"
)

// ScanOutcome is the result of a successful scan.
type ScanOutcome struct {
	Action ScanAction
	Order  *ResolvedOrder
	// Conflict is set when a claim lost the race and the preview shows the existing assignment.
	Conflict bool
}

// ConfirmDeliveryInput identifies the order and the confirming operator.
type ConfirmDeliveryInput struct {
	OrderID    string
	OperatorID string
	// ConfirmedAt overrides the confirmation timestamp, used when replaying offline confirmations.
	ConfirmedAt *time.Time
}

// OfflineDelivery is a confirmation captured while a terminal was offline.
type OfflineDelivery struct {
	OrderID     string
	OperatorID  string
	ConfirmedAt time.Time
}

// OfflineSyncInput is a batch uploaded by one terminal.
type OfflineSyncInput struct {
	TerminalID string
	Deliveries []OfflineDelivery
}

// OfflineOutcome is the per-entry result of an offline replay.
type OfflineOutcome string

const (
	OfflineDelivered     OfflineOutcome = "delivered"
	OfflineAlreadyServed OfflineOutcome = "already_served"
	OfflineNotFound      OfflineOutcome = "not_found"
	OfflineFailed        OfflineOutcome = "failed"
)

// OfflineDeliveryResult reports one replayed confirmation.
type OfflineDeliveryResult struct {
	OrderID string
	Outcome OfflineOutcome
	Message string
}

// OfflineSyncResult aggregates a batch replay.
type OfflineSyncResult struct {
	TerminalID string
	Results    []OfflineDeliveryResult
}
