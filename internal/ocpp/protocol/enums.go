package protocol

// Inbound call actions handled by the server.
const (
	ActionBootNotification = "BootNotification"
	ActionMeterValues      = "MeterValues"
)

// Outbound command actions.
const (
	ActionRemoteStartTransaction = "RemoteStartTransaction"
	ActionRemoteStopTransaction  = "RemoteStopTransaction"
)

// CALLERROR codes.
const (
	ErrorFormatViolation = "FormatViolation"
	ErrorNotSupported    = "NotSupported"
	ErrorInternalError   = "InternalError"
)

// Command acknowledgement statuses.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
)
