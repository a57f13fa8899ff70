package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargepilot/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("repository: not found")

// StationRepository manages charging station persistence.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// Create inserts a new station.
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	const query = `
		INSERT INTO stations (id, name, connector_type, price_per_kwh, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		station.ID,
		station.Name,
		station.ConnectorType,
		station.PricePerKWh,
		station.Status,
	).Scan(&station.CreatedAt, &station.UpdatedAt)
}

// GetByID returns station by identifier.
func (r *StationRepository) GetByID(ctx context.Context, stationID string) (*models.Station, error) {
	const query = `
		SELECT id, name, connector_type, price_per_kwh, status, created_at, updated_at
		FROM stations
		WHERE id = $1
	`
	var st models.Station
	err := r.db.QueryRowContext(ctx, query, stationID).Scan(
		&st.ID,
		&st.Name,
		&st.ConnectorType,
		&st.PricePerKWh,
		&st.Status,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// List returns all stations, newest first.
func (r *StationRepository) List(ctx context.Context) ([]models.Station, error) {
	const query = `
		SELECT id, name, connector_type, price_per_kwh, status, created_at, updated_at
		FROM stations
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(
			&st.ID,
			&st.Name,
			&st.ConnectorType,
			&st.PricePerKWh,
			&st.Status,
			&st.CreatedAt,
			&st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

// UpdateStatus changes station status.
func (r *StationRepository) UpdateStatus(ctx context.Context, stationID, status string) error {
	const query = `
		UPDATE stations
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, stationID, status)
	return err
}
