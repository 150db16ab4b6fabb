package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkmarket/internal/models"
)

func (db *DB) UpsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `INSERT INTO vehicles (plate, owner_id, description, created_at)
              VALUES (?, ?, ?, ?)
              ON CONFLICT(plate) DO UPDATE SET
                  owner_id = excluded.owner_id,
                  description = excluded.description`
	_, err := db.ExecContext(ctx, query, vehicle.Plate, vehicle.OwnerID, vehicle.Description, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, plate string) (*models.Vehicle, error) {
	query := `SELECT plate, owner_id, description, created_at FROM vehicles WHERE plate = ?`
	var v models.Vehicle
	var description sql.NullString
	err := db.QueryRowContext(ctx, query, plate).Scan(&v.Plate, &v.OwnerID, &description, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	v.Description = description.String
	return &v, nil
}

// VehicleOwner is the vehicle directory lookup used by ownership checks.
func (db *DB) VehicleOwner(ctx context.Context, plate string) (int64, error) {
	v, err := db.GetVehicle(ctx, plate)
	if err != nil {
		return 0, err
	}
	return v.OwnerID, nil
}
