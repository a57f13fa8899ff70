package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargepilot/internal/ocpp"
	"chargepilot/internal/ocpp/protocol"
)

const heartbeatInterval = 60

// NewBootNotificationHandler acknowledges the boot handshake. No state is
// created; every well-formed boot is accepted.
func NewBootNotificationHandler(logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		logger.Info("boot notification received", zap.String("station_id", stationID))

		return protocol.BootNotificationResponse{
			Status:      protocol.StatusAccepted,
			CurrentTime: time.Now().UTC().Format(time.RFC3339),
			Interval:    heartbeatInterval,
		}, nil
	}
}
