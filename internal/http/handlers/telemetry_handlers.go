package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargepilot/internal/telemetry"
)

// TelemetryHandlers streams live energy updates to browser clients.
type TelemetryHandlers struct {
	hub      *telemetry.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewTelemetryHandlers returns handlers instance.
func NewTelemetryHandlers(hub *telemetry.Hub, logger *zap.Logger) *TelemetryHandlers {
	return &TelemetryHandlers{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream handles GET /api/telemetry/ws: every hub event is forwarded as one
// JSON message. Clients filter by stationId themselves.
func (h *TelemetryHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("telemetry websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Drain client frames so pings/pongs and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
