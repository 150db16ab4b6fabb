package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkmarket/internal/models"
)

func (db *DB) GetSlot(ctx context.Context, spaceID string, ordinal int) (*models.Slot, error) {
	query := `SELECT space_id, ordinal, available, created_at, updated_at FROM slots WHERE space_id = ? AND ordinal = ?`
	var slot models.Slot
	err := db.QueryRowContext(ctx, query, spaceID, ordinal).Scan(
		&slot.SpaceID, &slot.Ordinal, &slot.Available, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (db *DB) ListSlots(ctx context.Context, spaceID string) ([]*models.Slot, error) {
	query := `SELECT space_id, ordinal, available, created_at, updated_at FROM slots WHERE space_id = ? ORDER BY ordinal`
	rows, err := db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		var slot models.Slot
		err := rows.Scan(&slot.SpaceID, &slot.Ordinal, &slot.Available, &slot.CreatedAt, &slot.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, &slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

// AddSlot appends a slot with the next free ordinal and bumps the
// space's slot count inside one transaction, keeping the contiguous
// 1..N invariant.
func (db *DB) AddSlot(ctx context.Context, spaceID string) (*models.Slot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE id = ?`, spaceID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check space: %w", err)
	}
	if exists == 0 {
		return nil, ErrSpaceNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), 0) + 1 FROM slots WHERE space_id = ?`, spaceID).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to compute next ordinal: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO slots (space_id, ordinal, available, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		spaceID, next, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert slot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE spaces SET slot_count = slot_count + 1, updated_at = ? WHERE id = ?`,
		now, spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bump slot count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit add slot: %w", err)
	}

	return &models.Slot{SpaceID: spaceID, Ordinal: next, Available: true, CreatedAt: now, UpdatedAt: now}, nil
}

// EnsureSlots creates any missing slot rows up to count. Used by the
// seed loader; existing slots and their availability flags are kept.
func (db *DB) EnsureSlots(ctx context.Context, spaceID string, count int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for ordinal := 1; ordinal <= count; ordinal++ {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO slots (space_id, ordinal, available, created_at, updated_at) VALUES (?, ?, 1, ?, ?)
             ON CONFLICT(space_id, ordinal) DO NOTHING`,
			spaceID, ordinal, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to ensure slot %d: %w", ordinal, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE spaces SET slot_count = (SELECT COUNT(*) FROM slots WHERE space_id = ?), updated_at = ? WHERE id = ?`,
		spaceID, now, spaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to sync slot count: %w", err)
	}

	return tx.Commit()
}

func (db *DB) SetSlotAvailability(ctx context.Context, spaceID string, ordinal int, available bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE slots SET available = ?, updated_at = ? WHERE space_id = ? AND ordinal = ?`,
		available, time.Now(), spaceID, ordinal,
	)
	if err != nil {
		return fmt.Errorf("failed to set slot availability: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// ForceRemoveSlot deletes the slot row directly, skipping the
// renumbering and the slot-count adjustment. Operator recovery only:
// it knowingly breaks the contiguous-ordinal invariant.
func (db *DB) ForceRemoveSlot(ctx context.Context, spaceID string, ordinal int) error {
	result, err := db.ExecContext(ctx, `DELETE FROM slots WHERE space_id = ? AND ordinal = ?`, spaceID, ordinal)
	if err != nil {
		return fmt.Errorf("failed to force remove slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}

	db.logger.Warn().
		Str("space_id", spaceID).
		Int("ordinal", ordinal).
		Msg("slot force-removed without renumbering; ordinals may now have gaps")
	return nil
}
