package models

import "time"

// Station statuses.
const (
	StationAvailable   = "Available"
	StationCharging    = "Charging"
	StationUnavailable = "Unavailable"
)

// Station represents a charge point with a single connector.
type Station struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	ConnectorType string    `db:"connector_type" json:"connectorType"`
	PricePerKWh   float64   `db:"price_per_kwh" json:"pricePerKwh"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
