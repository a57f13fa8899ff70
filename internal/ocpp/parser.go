package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message kinds on the wire.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// ErrMalformed reports an unparseable or ill-shaped frame.
var ErrMalformed = errors.New("ocpp: malformed frame")

// Message represents a parsed OCPP frame.
type Message struct {
	MessageType      int
	UniqueID         string
	Action           string          // CALL only
	Payload          json.RawMessage // CALL and CALLRESULT
	ErrorCode        string          // CALLERROR only
	ErrorDescription string          // CALLERROR only
	ErrorDetails     json.RawMessage // CALLERROR only
}

// Parser decodes raw JSON OCPP frames.
type Parser struct{}

// NewParser returns parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes []byte into Message struct.
func (p *Parser) Parse(data []byte) (*Message, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(array) < 3 {
		return nil, fmt.Errorf("%w: too few elements", ErrMalformed)
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, fmt.Errorf("%w: read message type: %v", ErrMalformed, err)
	}

	msg := &Message{MessageType: msgType}
	if err := json.Unmarshal(array[1], &msg.UniqueID); err != nil {
		return nil, fmt.Errorf("%w: read unique id: %v", ErrMalformed, err)
	}

	switch msgType {
	case MessageTypeCall:
		if len(array) < 4 {
			return nil, fmt.Errorf("%w: incomplete CALL frame", ErrMalformed)
		}
		if err := json.Unmarshal(array[2], &msg.Action); err != nil {
			return nil, fmt.Errorf("%w: read action: %v", ErrMalformed, err)
		}
		msg.Payload = array[3]
	case MessageTypeCallResult:
		msg.Payload = array[2]
	case MessageTypeCallError:
		if len(array) < 4 {
			return nil, fmt.Errorf("%w: incomplete CALLERROR frame", ErrMalformed)
		}
		if err := json.Unmarshal(array[2], &msg.ErrorCode); err != nil {
			return nil, fmt.Errorf("%w: read error code: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal(array[3], &msg.ErrorDescription); err != nil {
			return nil, fmt.Errorf("%w: read error description: %v", ErrMalformed, err)
		}
		if len(array) > 4 {
			msg.ErrorDetails = array[4]
		}
	default:
		return nil, fmt.Errorf("%w: unsupported message type %d", ErrMalformed, msgType)
	}

	return msg, nil
}

// RecoverUniqueID extracts the unique id from a frame that failed full parsing,
// so a CALLERROR reply can still be correlated. Returns "unknown" when the id
// cannot be read.
func RecoverUniqueID(data []byte) string {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil || len(array) < 2 {
		return "unknown"
	}
	var id string
	if err := json.Unmarshal(array[1], &id); err != nil || id == "" {
		return "unknown"
	}
	return id
}

// BuildCall builds a CALL frame.
func BuildCall(uniqueID, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCall, uniqueID, action, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallResult builds standard CALLRESULT payload.
func BuildCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCallResult, uniqueID, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallError builds CALLERROR payload.
func BuildCallError(uniqueID, code, description string) ([]byte, error) {
	frame := []interface{}{MessageTypeCallError, uniqueID, code, description, map[string]string{}}
	return json.Marshal(frame)
}

// Decode convenience helper for handlers.
func Decode[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}
