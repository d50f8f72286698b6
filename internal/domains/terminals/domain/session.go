package domain

import (
	"errors"
	"strings"
	"time"
)

// State is the UI-facing phase of a terminal scan session.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StatePreview  State = "preview"
	StateAssigned State = "assigned"
	StateSuccess  State = "success"
	StateError    State = "error"
)

// FailureKind tells operators why a scan ended in the error state.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureNotFound       FailureKind = "not_found"
	FailureAlreadyServed  FailureKind = "already_served"
	FailureClosed         FailureKind = "closed"
	FailureStoreMismatch  FailureKind = "store_mismatch"
	FailureInvalidCode    FailureKind = "invalid_code"
	FailureLockContention FailureKind = "lock_contention"
	FailureUnknown        FailureKind = "unknown"
)

var (
	ErrMissingTerminalID = errors.New("terminal id is required")
	// ErrBusy rejects a scan or confirmation while another one is in flight or awaiting an operator.
	ErrBusy = errors.New("terminal is busy with another scan")
	// ErrNotPreviewing rejects a confirmation outside the preview state.
	ErrNotPreviewing = errors.New("no order is awaiting delivery confirmation")
	// ErrStaleAttempt marks a response that arrived after the session moved on.
	ErrStaleAttempt = errors.New("scan attempt was superseded")
)

// AcceptsScan is the idle gate: a new scan starts only from idle or after an assignment.
func (s State) AcceptsScan() bool {
	return s == StateIdle || s == StateAssigned
}

// Settled reports the states that end a cycle and return to idle on their own.
func (s State) Settled() bool {
	return s == StateSuccess || s == StateError
}

// Session is the per-terminal scan state. Attempt increases on every scan,
// confirmation, and reset so late responses can be recognised.
type Session struct {
	TerminalID string
	StoreID    string
	State      State
	Attempt    uint64
	Code       string
	OrderID    string
	Message    string
	Failure    FailureKind
	UpdatedAt  time.Time
}

// NewSession opens an idle session for a terminal.
func NewSession(terminalID, storeID string, now time.Time) (*Session, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, ErrMissingTerminalID
	}
	return &Session{
		TerminalID: terminalID,
		StoreID:    strings.TrimSpace(storeID),
		State:      StateIdle,
		UpdatedAt:  now,
	}, nil
}

// Begin moves the session into loading for a new attempt and returns its sequence number.
func (s *Session) Begin(code string, now time.Time) (uint64, error) {
	if !s.State.AcceptsScan() {
		return 0, ErrBusy
	}
	s.Attempt++
	s.State = StateLoading
	s.Code = code
	s.OrderID = ""
	s.Message = ""
	s.Failure = FailureNone
	s.UpdatedAt = now
	return s.Attempt, nil
}

// BeginConfirm moves a previewed session into loading for the delivery write.
func (s *Session) BeginConfirm(now time.Time) (uint64, error) {
	if s.State != StatePreview {
		return 0, ErrNotPreviewing
	}
	s.Attempt++
	s.State = StateLoading
	s.Message = ""
	s.UpdatedAt = now
	return s.Attempt, nil
}

// Current reports whether attempt is still the one the session is waiting for.
func (s *Session) Current(attempt uint64) bool {
	return s.State == StateLoading && s.Attempt == attempt
}

// Settle records the outcome of the in-flight attempt.
func (s *Session) Settle(state State, orderID, message string, failure FailureKind, now time.Time) {
	s.State = state
	s.OrderID = orderID
	s.Message = message
	s.Failure = failure
	s.UpdatedAt = now
}

// Reset returns to idle and invalidates any in-flight attempt.
func (s *Session) Reset(now time.Time) {
	s.Attempt++
	s.State = StateIdle
	s.Code = ""
	s.OrderID = ""
	s.Message = ""
	s.Failure = FailureNone
	s.UpdatedAt = now
}
