package telemetry

import (
	"sync"

	"go.uber.org/zap"
)

// Event carries a live energy/power update for one station. Energy is in Wh,
// Power in W; nil means the latest report carried no such value. Subscribers
// filter by StationID on their side.
type Event struct {
	StationID string   `json:"stationId"`
	EnergyWh  *float64 `json:"energy"`
	PowerW    *float64 `json:"power"`
}

// Hub fans out telemetry events to all subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      int64
	logger      *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]chan Event),
		logger:      logger,
	}
}

// Subscribe registers a new observer. The returned cancel func must be called
// to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 16)
	h.subscribers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish broadcasts the event to every subscriber. Slow subscribers are
// skipped rather than blocking the caller.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping telemetry event, subscriber buffer full",
					zap.String("station_id", event.StationID))
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
