package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkmarket/internal/models"
)

func (db *DB) UpsertSpace(ctx context.Context, space *models.ParkingSpace) error {
	query := `INSERT INTO spaces (id, code, address, hourly_rate, slot_count, max_duration_hours, description, owner_admin_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  code = excluded.code,
                  address = excluded.address,
                  hourly_rate = excluded.hourly_rate,
                  max_duration_hours = excluded.max_duration_hours,
                  description = excluded.description,
                  owner_admin_id = excluded.owner_admin_id,
                  updated_at = excluded.updated_at`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		space.ID,
		space.Code,
		space.Address,
		space.HourlyRate,
		space.SlotCount,
		space.MaxDurationHours,
		space.Description,
		space.OwnerAdminID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert space: %w", err)
	}
	return nil
}

const spaceColumns = `id, code, address, hourly_rate, slot_count, max_duration_hours, description, owner_admin_id, created_at, updated_at`

func scanSpace(row interface{ Scan(...any) error }) (*models.ParkingSpace, error) {
	var s models.ParkingSpace
	var description sql.NullString
	err := row.Scan(
		&s.ID, &s.Code, &s.Address, &s.HourlyRate, &s.SlotCount,
		&s.MaxDurationHours, &description, &s.OwnerAdminID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Description = description.String
	return &s, nil
}

func (db *DB) GetSpace(ctx context.Context, id string) (*models.ParkingSpace, error) {
	query := `SELECT ` + spaceColumns + ` FROM spaces WHERE id = ?`
	space, err := scanSpace(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return space, nil
}

func (db *DB) GetSpaceByCode(ctx context.Context, code string) (*models.ParkingSpace, error) {
	query := `SELECT ` + spaceColumns + ` FROM spaces WHERE code = ?`
	space, err := scanSpace(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space by code: %w", err)
	}
	return space, nil
}

func (db *DB) ListSpaces(ctx context.Context) ([]*models.ParkingSpace, error) {
	query := `SELECT ` + spaceColumns + ` FROM spaces ORDER BY code`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*models.ParkingSpace
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spaces: %w", err)
	}
	return spaces, nil
}
