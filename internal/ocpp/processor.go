package ocpp

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"chargepilot/internal/ocpp/protocol"
)

// ResultHandler consumes acknowledgements for previously sent commands.
type ResultHandler interface {
	HandleCallResult(ctx context.Context, stationID, uniqueID string, payload json.RawMessage)
	HandleCallError(ctx context.Context, stationID, uniqueID, code, description string)
}

// Processor ties together parsing, routing, correlation, and response
// encoding. A malformed frame never closes the connection: it is answered
// with a FormatViolation CALLERROR instead.
type Processor struct {
	parser  *Parser
	router  *Router
	results ResultHandler
	logger  *zap.Logger
}

// NewProcessor builds Processor.
func NewProcessor(parser *Parser, router *Router, results ResultHandler, logger *zap.Logger) *Processor {
	return &Processor{
		parser:  parser,
		router:  router,
		results: results,
		logger:  logger,
	}
}

// Process handles a raw inbound frame and returns the response frame bytes,
// or nil when no reply is due (acknowledgements are one-way).
func (p *Processor) Process(ctx context.Context, stationID string, raw []byte) ([]byte, error) {
	msg, err := p.parser.Parse(raw)
	if err != nil {
		p.logger.Warn("malformed ocpp frame",
			zap.String("station_id", stationID), zap.Error(err))
		return BuildCallError(RecoverUniqueID(raw), protocol.ErrorFormatViolation, "Invalid JSON payload")
	}

	switch msg.MessageType {
	case MessageTypeCall:
		return p.processCall(ctx, stationID, msg)
	case MessageTypeCallResult:
		p.results.HandleCallResult(ctx, stationID, msg.UniqueID, msg.Payload)
		return nil, nil
	case MessageTypeCallError:
		p.results.HandleCallError(ctx, stationID, msg.UniqueID, msg.ErrorCode, msg.ErrorDescription)
		return nil, nil
	}
	return nil, nil
}

func (p *Processor) processCall(ctx context.Context, stationID string, msg *Message) ([]byte, error) {
	responsePayload, err := p.router.Route(ctx, stationID, msg)
	if errors.Is(err, ErrUnsupportedAction) {
		p.logger.Warn("unsupported ocpp action",
			zap.String("station_id", stationID), zap.String("action", msg.Action))
		return BuildCallError(msg.UniqueID, protocol.ErrorNotSupported, "Action not supported")
	}
	if err != nil {
		p.logger.Warn("ocpp handler failed",
			zap.String("station_id", stationID), zap.String("action", msg.Action), zap.Error(err))
		return BuildCallError(msg.UniqueID, protocol.ErrorInternalError, err.Error())
	}

	return BuildCallResult(msg.UniqueID, responsePayload)
}
