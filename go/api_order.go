package dispatchserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	dispatchmapper "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/http/mapper"
	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	apierrors "github.com/Apurer/order-dispatch/internal/shared/errors"
)

const streamWriteTimeout = 5 * time.Second

// OrderAPI serves read-only order lookups and the customer status stream.
type OrderAPI struct {
	service  dispatchports.Service
	watcher  dispatchports.WatchService
	upgrader websocket.Upgrader
}

// NewOrderAPI creates the order API. allowedOrigins restricts websocket upgrades; empty allows any origin.
func NewOrderAPI(service dispatchports.Service, watcher dispatchports.WatchService, allowedOrigins []string) OrderAPI {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return OrderAPI{
		service: service,
		watcher: watcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Get /v1/orders/resolve
// Resolves a scanned code without writing anything
func (api *OrderAPI) ResolveCode(c *gin.Context) {
	resolved, err := api.service.Resolve(c.Request.Context(), dispatchtypes.ResolveInput{
		Code:    c.Query("code"),
		StoreID: c.Query("store_id"),
	})
	if errors.Is(err, dispatchports.ErrAlreadyServed) && resolved != nil {
		respondProblem(c, apierrors.ErrAlreadyServed.
			WithDetail(err.Error()).
			WithExtension("order", dispatchmapper.FromResolved(resolved)))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchmapper.FromResolved(resolved))
}

// Get /v1/orders/:orderId
func (api *OrderAPI) GetOrder(c *gin.Context) {
	order, err := api.service.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchmapper.FromDomainOrder(order))
}

// Get /v1/orders/:orderId/status/stream
// Upgrades to a websocket that emits the order snapshot on every status transition
func (api *OrderAPI) StreamOrderStatus(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snapshots, err := api.watcher.Watch(ctx, c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	conn, err := api.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the handshake failure
		return
	}
	defer conn.Close()

	// the reader only notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for order := range dispatchapp.Transitions(ctx, snapshots) {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(dispatchmapper.FromDomainOrder(&order)); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
