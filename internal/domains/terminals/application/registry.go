package application

import (
	"context"
	"strings"
	"sync"
	"time"

	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
)

// Registry holds the open session of each terminal.
type Registry struct {
	dispatcher ports.Dispatcher
	stations   ports.StationStore
	resetDelay time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Controller
}

type Option func(*Registry)

// WithResetDelay sets how long success and error stay visible. Zero or less disables the auto reset.
func WithResetDelay(d time.Duration) Option {
	return func(r *Registry) {
		r.resetDelay = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(dispatcher ports.Dispatcher, stations ports.StationStore, opts ...Option) *Registry {
	r := &Registry{
		dispatcher: dispatcher,
		stations:   stations,
		resetDelay: DefaultResetDelay,
		now:        time.Now,
		sessions:   make(map[string]*Controller),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Open starts a fresh idle session, replacing any session the terminal already had.
func (r *Registry) Open(_ context.Context, input types.OpenSessionInput) (*types.SessionSnapshot, error) {
	session, err := domain.NewSession(input.TerminalID, input.StoreID, r.now())
	if err != nil {
		return nil, mapError(err)
	}
	ctrl := newController(*session, r.dispatcher, r.stations, r.resetDelay, r.now)

	r.mu.Lock()
	previous := r.sessions[session.TerminalID]
	r.sessions[session.TerminalID] = ctrl
	r.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	return ctrl.Snapshot(), nil
}

func (r *Registry) Get(_ context.Context, terminalID string) (*types.SessionSnapshot, error) {
	ctrl, err := r.controller(terminalID)
	if err != nil {
		return nil, err
	}
	return ctrl.Snapshot(), nil
}

// Close discards the session. Responses still in flight for it are dropped.
func (r *Registry) Close(_ context.Context, terminalID string) error {
	terminalID = strings.TrimSpace(terminalID)
	r.mu.Lock()
	ctrl, ok := r.sessions[terminalID]
	delete(r.sessions, terminalID)
	r.mu.Unlock()
	if !ok {
		return ports.ErrSessionNotFound
	}
	ctrl.close()
	return nil
}

func (r *Registry) Scan(ctx context.Context, input types.ScanInput) (*types.SessionSnapshot, error) {
	ctrl, err := r.controller(input.TerminalID)
	if err != nil {
		return nil, err
	}
	return ctrl.Scan(ctx, input.Code)
}

func (r *Registry) Confirm(ctx context.Context, input types.ConfirmInput) (*types.SessionSnapshot, error) {
	ctrl, err := r.controller(input.TerminalID)
	if err != nil {
		return nil, err
	}
	return ctrl.Confirm(ctx, input.OperatorID)
}

func (r *Registry) Reset(_ context.Context, terminalID string) (*types.SessionSnapshot, error) {
	ctrl, err := r.controller(terminalID)
	if err != nil {
		return nil, err
	}
	return ctrl.Reset(), nil
}

// Station returns the persisted selection of a terminal.
func (r *Registry) Station(ctx context.Context, terminalID string) (dispatchdomain.Station, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return "", mapError(domain.ErrMissingTerminalID)
	}
	return r.stations.Get(ctx, terminalID)
}

// SetStation persists a new selection. It takes effect on the next scan, even mid-session.
func (r *Registry) SetStation(ctx context.Context, terminalID, station string) (dispatchdomain.Station, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return "", mapError(domain.ErrMissingTerminalID)
	}
	normalized := dispatchdomain.NormalizeStation(station)
	if err := r.stations.Set(ctx, terminalID, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func (r *Registry) controller(terminalID string) (*Controller, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, mapError(domain.ErrMissingTerminalID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.sessions[terminalID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return ctrl, nil
}

var _ ports.Service = (*Registry)(nil)
