package ports

import (
	"context"
	"errors"

	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
)

// ErrSessionNotFound is returned when a terminal has no open session.
var ErrSessionNotFound = errors.New("terminal session not found")

// StationStore persists the station selection of each terminal.
// Get returns dispatchdomain.AllStations for terminals without a stored selection.
type StationStore interface {
	Get(ctx context.Context, terminalID string) (dispatchdomain.Station, error)
	Set(ctx context.Context, terminalID string, station dispatchdomain.Station) error
}

// Dispatcher is the part of the dispatch service a terminal session drives.
type Dispatcher interface {
	Scan(ctx context.Context, input dispatchtypes.ScanInput) (*dispatchtypes.ScanOutcome, error)
	ConfirmDelivery(ctx context.Context, input dispatchtypes.ConfirmDeliveryInput) (*dispatchdomain.Order, error)
}

// Service manages terminal sessions (inbound/driving port).
type Service interface {
	Open(ctx context.Context, input types.OpenSessionInput) (*types.SessionSnapshot, error)
	Get(ctx context.Context, terminalID string) (*types.SessionSnapshot, error)
	Close(ctx context.Context, terminalID string) error
	Scan(ctx context.Context, input types.ScanInput) (*types.SessionSnapshot, error)
	Confirm(ctx context.Context, input types.ConfirmInput) (*types.SessionSnapshot, error)
	Reset(ctx context.Context, terminalID string) (*types.SessionSnapshot, error)
	Station(ctx context.Context, terminalID string) (dispatchdomain.Station, error)
	SetStation(ctx context.Context, terminalID, station string) (dispatchdomain.Station, error)
}
