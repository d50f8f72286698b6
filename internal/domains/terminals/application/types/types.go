package types

import (
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
)

type OpenSessionInput struct {
	TerminalID string
	StoreID    string
}

type ScanInput struct {
	TerminalID string
	Code       string
}

type ConfirmInput struct {
	TerminalID string
	OperatorID string
}

// SessionSnapshot is a copy of a session plus the order it currently shows.
type SessionSnapshot struct {
	Session domain.Session
	Station dispatchdomain.Station
	Order   *dispatchtypes.ResolvedOrder
	// Conflict is set when the claim lost to another station and the preview shows that assignment.
	Conflict bool
}
