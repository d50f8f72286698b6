package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
)

// DefaultResetDelay is how long success and error states stay visible before returning to idle.
const DefaultResetDelay = 1500 * time.Millisecond

const (
	messageAssigned = "assigned to %s, scan again to deliver"
	messageConflict = "order already assigned to %s"
	messageServed   = "order delivered"
)

// Controller drives one terminal session. One attempt is in flight at a time;
// the dispatch call runs without holding the lock.
type Controller struct {
	dispatcher ports.Dispatcher
	stations   ports.StationStore
	resetDelay time.Duration
	now        func() time.Time

	mu       sync.Mutex
	session  domain.Session
	station  dispatchdomain.Station
	order    *dispatchtypes.ResolvedOrder
	conflict bool
	timer    *time.Timer
	closed   bool
}

func newController(session domain.Session, dispatcher ports.Dispatcher, stations ports.StationStore, resetDelay time.Duration, now func() time.Time) *Controller {
	return &Controller{
		dispatcher: dispatcher,
		stations:   stations,
		resetDelay: resetDelay,
		now:        now,
		session:    session,
		station:    dispatchdomain.AllStations,
	}
}

// Scan submits a decoded code. The station selection is read fresh for every scan.
func (c *Controller) Scan(ctx context.Context, code string) (*types.SessionSnapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ports.ErrSessionNotFound
	}
	attempt, err := c.session.Begin(code, c.now())
	if err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	c.stopTimerLocked()
	c.order = nil
	c.conflict = false
	terminalID, storeID := c.session.TerminalID, c.session.StoreID
	c.mu.Unlock()

	station, err := c.stations.Get(ctx, terminalID)
	if err != nil {
		return c.fail(attempt, fmt.Errorf("read station selection: %w", err))
	}
	outcome, err := c.dispatcher.Scan(ctx, dispatchtypes.ScanInput{Code: code, Station: station, StoreID: storeID})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.session.Current(attempt) {
		return c.snapshotLocked(), domain.ErrStaleAttempt
	}
	c.station = station
	if err != nil {
		c.settleErrorLocked(attempt, err)
		return c.snapshotLocked(), nil
	}
	c.order = outcome.Order
	c.conflict = outcome.Conflict
	orderID := outcome.Order.Order.ID
	switch {
	case outcome.Action == dispatchtypes.ActionAssigned:
		c.session.Settle(domain.StateAssigned, orderID, fmt.Sprintf(messageAssigned, station), domain.FailureNone, c.now())
	case outcome.Conflict:
		c.session.Settle(domain.StatePreview, orderID, fmt.Sprintf(messageConflict, outcome.Order.Order.DispatchStation), domain.FailureNone, c.now())
	default:
		c.session.Settle(domain.StatePreview, orderID, "", domain.FailureNone, c.now())
	}
	return c.snapshotLocked(), nil
}

// Confirm performs the delivery write for the previewed order.
func (c *Controller) Confirm(ctx context.Context, operatorID string) (*types.SessionSnapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ports.ErrSessionNotFound
	}
	attempt, err := c.session.BeginConfirm(c.now())
	if err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	orderID := c.session.OrderID
	c.mu.Unlock()

	served, err := c.dispatcher.ConfirmDelivery(ctx, dispatchtypes.ConfirmDeliveryInput{OrderID: orderID, OperatorID: operatorID})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.session.Current(attempt) {
		return c.snapshotLocked(), domain.ErrStaleAttempt
	}
	if err != nil {
		c.settleErrorLocked(attempt, err)
		return c.snapshotLocked(), nil
	}
	if c.order != nil {
		order := *c.order
		order.Order = served
		c.order = &order
	}
	c.session.Settle(domain.StateSuccess, orderID, messageServed, domain.FailureNone, c.now())
	c.scheduleResetLocked(c.session.Attempt)
	return c.snapshotLocked(), nil
}

// Reset abandons whatever the session shows. A late response for an earlier attempt is discarded.
func (c *Controller) Reset() *types.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.session.Reset(c.now())
	c.order = nil
	c.conflict = false
	return c.snapshotLocked()
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() *types.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
	c.session.Reset(c.now())
}

func (c *Controller) fail(attempt uint64, err error) (*types.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.session.Current(attempt) {
		return c.snapshotLocked(), domain.ErrStaleAttempt
	}
	c.settleErrorLocked(attempt, err)
	return c.snapshotLocked(), nil
}

func (c *Controller) settleErrorLocked(attempt uint64, err error) {
	failure, message := failureOf(err)
	c.session.Settle(domain.StateError, c.session.OrderID, message, failure, c.now())
	c.scheduleResetLocked(attempt)
}

func (c *Controller) scheduleResetLocked(attempt uint64) {
	c.stopTimerLocked()
	if c.resetDelay <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.resetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.session.Attempt != attempt || !c.session.State.Settled() {
			return
		}
		c.session.Reset(c.now())
		c.order = nil
		c.conflict = false
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) snapshotLocked() *types.SessionSnapshot {
	return &types.SessionSnapshot{
		Session:  c.session,
		Station:  c.station,
		Order:    c.order,
		Conflict: c.conflict,
	}
}
