package dispatchserver

import (
	"time"

	dispatchmapper "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/http/mapper"
	terminalstypes "github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
)

// OpenSessionRequest is the optional body of PUT /v1/terminals/:terminalId/session.
type OpenSessionRequest struct {
	StoreID string `json:"store_id"`
}

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

type StationRequest struct {
	Station string `json:"station"`
}

type StationResponse struct {
	TerminalID string `json:"terminal_id"`
	Station    string `json:"station"`
}

// Session is the terminal-facing view of a scan session.
type Session struct {
	TerminalID string                  `json:"terminal_id"`
	StoreID    string                  `json:"store_id,omitempty"`
	State      string                  `json:"state"`
	Attempt    uint64                  `json:"attempt"`
	Station    string                  `json:"station"`
	Code       string                  `json:"code,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Failure    string                  `json:"failure,omitempty"`
	Conflict   bool                    `json:"conflict,omitempty"`
	Order      *dispatchmapper.Preview `json:"order,omitempty"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func fromSnapshot(snap *terminalstypes.SessionSnapshot) Session {
	if snap == nil {
		return Session{}
	}
	return Session{
		TerminalID: snap.Session.TerminalID,
		StoreID:    snap.Session.StoreID,
		State:      string(snap.Session.State),
		Attempt:    snap.Session.Attempt,
		Station:    string(snap.Station),
		Code:       snap.Session.Code,
		Message:    snap.Session.Message,
		Failure:    string(snap.Session.Failure),
		Conflict:   snap.Conflict,
		Order:      dispatchmapper.FromResolved(snap.Order),
		UpdatedAt:  snap.Session.UpdatedAt,
	}
}
