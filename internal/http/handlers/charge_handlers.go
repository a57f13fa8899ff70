package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chargepilot/internal/service"
)

// ChargeHandlers exposes remote start/stop to operators and customers.
type ChargeHandlers struct {
	engine *service.Engine
	logger *zap.Logger
}

// NewChargeHandlers returns handlers instance.
func NewChargeHandlers(engine *service.Engine, logger *zap.Logger) *ChargeHandlers {
	return &ChargeHandlers{engine: engine, logger: logger}
}

// Start handles GET /api/charge/start/{stationId}.
func (h *ChargeHandlers) Start(w http.ResponseWriter, r *http.Request) {
	stationID := pathTail(r.URL.Path, "/api/charge/start/")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station id is required")
		return
	}

	if err := h.engine.RequestStart(r.Context(), stationID); err != nil {
		h.respondCommandError(w, stationID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("RemoteStartTransaction sent to %s", stationID),
	})
}

// Stop handles GET /api/charge/stop/{stationId}.
func (h *ChargeHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	stationID := pathTail(r.URL.Path, "/api/charge/stop/")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station id is required")
		return
	}

	if err := h.engine.RequestStop(r.Context(), stationID); err != nil {
		h.respondCommandError(w, stationID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("RemoteStopTransaction sent to %s", stationID),
	})
}

func (h *ChargeHandlers) respondCommandError(w http.ResponseWriter, stationID string, err error) {
	switch {
	case errors.Is(err, service.ErrStationUnreachable):
		writeError(w, http.StatusNotFound, fmt.Sprintf("charge point %s is not connected", stationID))
	case errors.Is(err, service.ErrNoPendingSession):
		writeError(w, http.StatusConflict, "no pending session for this station")
	case errors.Is(err, service.ErrNoActiveSession):
		writeError(w, http.StatusConflict, "no active session for this station")
	default:
		h.logger.Error("remote command dispatch failed", zap.String("station_id", stationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "command dispatch failed")
	}
}

func pathTail(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
