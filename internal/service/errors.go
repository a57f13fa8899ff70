package service

import "errors"

// Typed outcomes surfaced to callers of RequestStart/RequestStop.
var (
	// ErrStationUnreachable means the station has no live connection.
	ErrStationUnreachable = errors.New("service: station not connected")
	// ErrNoPendingSession means no Pending transaction exists for the station.
	ErrNoPendingSession = errors.New("service: no pending session")
	// ErrNoActiveSession means no Charging transaction exists for the station.
	ErrNoActiveSession = errors.New("service: no active session")
)
