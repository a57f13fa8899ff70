package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargepilot/internal/models"
)

const transactionColumns = `
	id, station_id, payment_intent_id, amount_authorized, energy_kwh, status,
	started_at, ended_at, final_energy_kwh, final_cost, refund_id, created_at
`

// TransactionRepository persists charging transactions.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository returns repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction in Pending state.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	const query = `
		INSERT INTO transactions (station_id, payment_intent_id, amount_authorized, energy_kwh, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		tx.StationID,
		tx.PaymentIntentID,
		tx.AmountAuthorized,
		tx.EnergyKWh,
		tx.Status,
	).Scan(&tx.ID, &tx.CreatedAt)
}

// GetByID returns transaction by identifier.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindPendingByStation returns the most recently created Pending transaction for a station.
func (r *TransactionRepository) FindPendingByStation(ctx context.Context, stationID string) (*models.Transaction, error) {
	return r.findLatestByStatus(ctx, stationID, models.TxPending)
}

// FindChargingByStation returns the most recently created Charging transaction for a station.
func (r *TransactionRepository) FindChargingByStation(ctx context.Context, stationID string) (*models.Transaction, error) {
	return r.findLatestByStatus(ctx, stationID, models.TxCharging)
}

// FindActiveByStation returns the most recent Pending or Charging transaction for a station.
func (r *TransactionRepository) FindActiveByStation(ctx context.Context, stationID string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE station_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, stationID, models.TxPending, models.TxCharging))
}

// Update persists mutable transaction fields.
func (r *TransactionRepository) Update(ctx context.Context, tx *models.Transaction) error {
	const query = `
		UPDATE transactions
		SET energy_kwh = $2,
		    status = $3,
		    started_at = $4,
		    ended_at = $5,
		    final_energy_kwh = $6,
		    final_cost = $7,
		    refund_id = $8
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.EnergyKWh,
		tx.Status,
		tx.StartedAt,
		tx.EndedAt,
		tx.FinalEnergyKWh,
		tx.FinalCost,
		tx.RefundID,
	)
	return err
}

// List returns latest transactions across all stations.
func (r *TransactionRepository) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *TransactionRepository) findLatestByStatus(ctx context.Context, stationID, status string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE station_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, stationID, status))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *TransactionRepository) scanOne(row *sql.Row) (*models.Transaction, error) {
	tx, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) scanRow(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	if err := row.Scan(
		&tx.ID,
		&tx.StationID,
		&tx.PaymentIntentID,
		&tx.AmountAuthorized,
		&tx.EnergyKWh,
		&tx.Status,
		&tx.StartedAt,
		&tx.EndedAt,
		&tx.FinalEnergyKWh,
		&tx.FinalCost,
		&tx.RefundID,
		&tx.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tx, nil
}
