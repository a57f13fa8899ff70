package protocol

// BootNotificationResponse confirms the station is reachable.
type BootNotificationResponse struct {
	Status      string `json:"status"`
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
}

// RemoteStartRequest is the payload of an outbound RemoteStartTransaction call.
// The connector index is fixed: stations in this model expose one connector.
type RemoteStartRequest struct {
	ConnectorID int `json:"connectorId"`
}

// RemoteStopRequest is the payload of an outbound RemoteStopTransaction call.
// The station-side transaction index is fixed at 1; the real session is
// resolved through the pending-command correlation, not this field.
type RemoteStopRequest struct {
	TransactionID int `json:"transactionId"`
}

// CommandAck is the payload a station sends back for a remote command.
type CommandAck struct {
	Status string `json:"status"`
}

// SampledValue is one reading inside a MeterValues report. Value may arrive
// as a number or a numeric string depending on firmware, hence interface{}.
type SampledValue struct {
	Value     interface{} `json:"value"`
	Measurand string      `json:"measurand,omitempty"`
	Unit      string      `json:"unit,omitempty"`
}

// MeterValueEntry groups sampled values taken at one instant.
type MeterValueEntry struct {
	Timestamp    string         `json:"timestamp,omitempty"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// MeterValuesRequest is the inbound metering payload.
type MeterValuesRequest struct {
	ConnectorID int               `json:"connectorId,omitempty"`
	MeterValue  []MeterValueEntry `json:"meterValue"`
}
