package telemetry

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink forwards hub events onto a redis pub/sub channel so observers
// outside the process can follow live sessions.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisSink returns a sink publishing on the given channel.
func NewRedisSink(client *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	if channel == "" {
		channel = "telemetry:energy"
	}
	return &RedisSink{client: client, channel: channel, logger: logger}
}

// Run consumes hub events until the context is cancelled. Publish errors are
// logged and do not stop the loop.
func (s *RedisSink) Run(ctx context.Context, hub *Hub) {
	events, cancel := hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("encode telemetry event failed", zap.Error(err))
				continue
			}
			if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
				s.logger.Warn("redis publish failed",
					zap.String("station_id", event.StationID), zap.Error(err))
			}
		}
	}
}
