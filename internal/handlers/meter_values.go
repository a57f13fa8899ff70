package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"chargepilot/internal/meter"
	"chargepilot/internal/ocpp"
	"chargepilot/internal/ocpp/protocol"
)

// MeterConsumer folds extracted readings into the active session.
type MeterConsumer interface {
	HandleMeterReport(ctx context.Context, stationID string, reading meter.Reading) error
}

// NewMeterValuesHandler extracts energy/power readings and hands them to the
// engine. The reply is always an empty CALLRESULT, whether or not a value
// could be extracted.
func NewMeterValuesHandler(consumer MeterConsumer, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.MeterValuesRequest](payload)
		if err != nil {
			logger.Warn("undecodable meter values payload",
				zap.String("station_id", stationID), zap.Error(err))
			return struct{}{}, nil
		}

		reading := meter.Extract(req)
		if err := consumer.HandleMeterReport(ctx, stationID, reading); err != nil {
			logger.Error("meter report processing failed",
				zap.String("station_id", stationID), zap.Error(err))
		}

		return struct{}{}, nil
	}
}
