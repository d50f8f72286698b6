package dispatchserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the handlers of every API surface.
type ApiHandleFunctions struct {
	OrderAPI    OrderAPI
	TerminalAPI TerminalAPI
}

// NewRouter returns a gin engine with recovery, the given middleware, and every route.
// Middleware is installed before routes so it applies to all of them.
func NewRouter(handleFunctions ApiHandleFunctions, middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware...)
	return NewRouterWithGinEngine(router, handleFunctions)
}

// NewRouterWithGinEngine registers the routes on an existing engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		router.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
	return router
}

// DefaultHandleFunc answers routes without a handler.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

// CORS allows customer status screens served from other origins. An empty list allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", operatorHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{"OpenSession", http.MethodPut, "/v1/terminals/:terminalId/session", handleFunctions.TerminalAPI.OpenSession},
		{"GetSession", http.MethodGet, "/v1/terminals/:terminalId/session", handleFunctions.TerminalAPI.GetSession},
		{"CloseSession", http.MethodDelete, "/v1/terminals/:terminalId/session", handleFunctions.TerminalAPI.CloseSession},
		{"SubmitScan", http.MethodPost, "/v1/terminals/:terminalId/scans", handleFunctions.TerminalAPI.SubmitScan},
		{"ConfirmDelivery", http.MethodPost, "/v1/terminals/:terminalId/confirm", handleFunctions.TerminalAPI.ConfirmDelivery},
		{"ResetSession", http.MethodPost, "/v1/terminals/:terminalId/reset", handleFunctions.TerminalAPI.ResetSession},
		{"GetStation", http.MethodGet, "/v1/terminals/:terminalId/station", handleFunctions.TerminalAPI.GetStation},
		{"SetStation", http.MethodPut, "/v1/terminals/:terminalId/station", handleFunctions.TerminalAPI.SetStation},
		{"SyncOfflineDeliveries", http.MethodPost, "/v1/terminals/:terminalId/offline-sync", handleFunctions.TerminalAPI.SyncOfflineDeliveries},
		{"ResolveCode", http.MethodGet, "/v1/orders/resolve", handleFunctions.OrderAPI.ResolveCode},
		{"GetOrder", http.MethodGet, "/v1/orders/:orderId", handleFunctions.OrderAPI.GetOrder},
		{"StreamOrderStatus", http.MethodGet, "/v1/orders/:orderId/status/stream", handleFunctions.OrderAPI.StreamOrderStatus},
	}
}
