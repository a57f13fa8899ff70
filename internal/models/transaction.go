package models

import "time"

// Transaction statuses.
const (
	TxPending   = "Pending"
	TxCharging  = "Charging"
	TxCompleted = "Completed"
	TxFailed    = "Failed"
)

// Transaction represents one authorize-charge-settle lifecycle for a station visit.
// Amounts are stored in major currency units; energy in kWh.
type Transaction struct {
	ID               int64      `db:"id" json:"id"`
	StationID        string     `db:"station_id" json:"stationId"`
	PaymentIntentID  string     `db:"payment_intent_id" json:"paymentIntentId"`
	AmountAuthorized float64    `db:"amount_authorized" json:"amountAuthorized"`
	EnergyKWh        float64    `db:"energy_kwh" json:"energyKwh"`
	Status           string     `db:"status" json:"status"`
	StartedAt        *time.Time `db:"started_at" json:"startedAt,omitempty"`
	EndedAt          *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	FinalEnergyKWh   *float64   `db:"final_energy_kwh" json:"finalEnergyKwh,omitempty"`
	FinalCost        *float64   `db:"final_cost" json:"finalCost,omitempty"`
	RefundID         *string    `db:"refund_id" json:"refundId,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}
