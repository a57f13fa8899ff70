package ocpp

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc processes a call payload and returns the response body.
type HandlerFunc func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error)

// ErrUnsupportedAction is reported for calls with no registered handler.
var ErrUnsupportedAction = fmt.Errorf("ocpp: unsupported action")

// Router dispatches OCPP call actions to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches handler to action.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Route executes handler for message.
func (r *Router) Route(ctx context.Context, stationID string, msg *Message) (interface{}, error) {
	handler, ok := r.handlers[msg.Action]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnsupportedAction, msg.Action)
	}
	return handler(ctx, stationID, msg.Payload)
}
