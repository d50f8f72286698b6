package dispatchserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	dispatchmapper "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/http/mapper"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	terminalstypes "github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
	terminalsports "github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
	apierrors "github.com/Apurer/order-dispatch/internal/shared/errors"
)

// operatorHeader carries the authenticated operator identity set by the gateway.
const operatorHeader = "X-Operator-ID"

var errMissingOperator = errors.New(operatorHeader + " header is required")

// TerminalAPI wires HTTP transport with terminal sessions and offline sync.
type TerminalAPI struct {
	sessions terminalsports.Service
	offline  dispatchports.OfflineSyncOrchestrator
}

func NewTerminalAPI(sessions terminalsports.Service, offline dispatchports.OfflineSyncOrchestrator) TerminalAPI {
	return TerminalAPI{sessions: sessions, offline: offline}
}

// Put /v1/terminals/:terminalId/session
// Opens a fresh idle session
func (api *TerminalAPI) OpenSession(c *gin.Context) {
	var payload OpenSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondValidation(c, err)
			return
		}
	}
	snap, err := api.sessions.Open(c.Request.Context(), terminalstypes.OpenSessionInput{
		TerminalID: c.Param("terminalId"),
		StoreID:    payload.StoreID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSnapshot(snap))
}

// Get /v1/terminals/:terminalId/session
func (api *TerminalAPI) GetSession(c *gin.Context) {
	snap, err := api.sessions.Get(c.Request.Context(), c.Param("terminalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSnapshot(snap))
}

// Delete /v1/terminals/:terminalId/session
func (api *TerminalAPI) CloseSession(c *gin.Context) {
	if err := api.sessions.Close(c.Request.Context(), c.Param("terminalId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Post /v1/terminals/:terminalId/scans
// Submits a decoded code; the session ends in preview, assigned or error
func (api *TerminalAPI) SubmitScan(c *gin.Context) {
	var payload ScanRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondValidation(c, err)
		return
	}
	snap, err := api.sessions.Scan(c.Request.Context(), terminalstypes.ScanInput{
		TerminalID: c.Param("terminalId"),
		Code:       payload.Code,
	})
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, fromSnapshot(snap))
}

// Post /v1/terminals/:terminalId/confirm
// Confirms delivery of the previewed order
func (api *TerminalAPI) ConfirmDelivery(c *gin.Context) {
	operatorID := strings.TrimSpace(c.GetHeader(operatorHeader))
	if operatorID == "" {
		respondValidation(c, errMissingOperator)
		return
	}
	snap, err := api.sessions.Confirm(c.Request.Context(), terminalstypes.ConfirmInput{
		TerminalID: c.Param("terminalId"),
		OperatorID: operatorID,
	})
	if err != nil {
		respondSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, fromSnapshot(snap))
}

// Post /v1/terminals/:terminalId/reset
func (api *TerminalAPI) ResetSession(c *gin.Context) {
	snap, err := api.sessions.Reset(c.Request.Context(), c.Param("terminalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSnapshot(snap))
}

// Get /v1/terminals/:terminalId/station
func (api *TerminalAPI) GetStation(c *gin.Context) {
	terminalID := c.Param("terminalId")
	station, err := api.sessions.Station(c.Request.Context(), terminalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StationResponse{TerminalID: terminalID, Station: string(station)})
}

// Put /v1/terminals/:terminalId/station
// Changes the station selection; an empty station selects ALL
func (api *TerminalAPI) SetStation(c *gin.Context) {
	var payload StationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondValidation(c, err)
		return
	}
	terminalID := c.Param("terminalId")
	station, err := api.sessions.SetStation(c.Request.Context(), terminalID, payload.Station)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StationResponse{TerminalID: terminalID, Station: string(station)})
}

// Post /v1/terminals/:terminalId/offline-sync
// Replays delivery confirmations captured while the terminal was offline
func (api *TerminalAPI) SyncOfflineDeliveries(c *gin.Context) {
	var payload dispatchmapper.OfflineSyncRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondValidation(c, err)
		return
	}
	input, err := dispatchmapper.ToOfflineSyncInput(c.Param("terminalId"), payload)
	if err != nil {
		respondValidation(c, err)
		return
	}
	if input.TerminalID == "" {
		respondProblem(c, apierrors.ErrValidation.WithDetail("terminal id is required"))
		return
	}
	result, err := api.offline.SyncDeliveries(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchmapper.FromOfflineSyncResult(result))
}

// respondSessionError attaches the session the terminal should keep showing.
func respondSessionError(c *gin.Context, snap *terminalstypes.SessionSnapshot, err error) {
	if snap == nil {
		respondError(c, err)
		return
	}
	problem, ok := terminalProblem(err)
	if !ok {
		respondError(c, err)
		return
	}
	respondProblem(c, problem.WithExtension("session", fromSnapshot(snap)))
}
