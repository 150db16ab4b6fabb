package database

import (
	"context"
	"fmt"
	"time"

	"parkmarket/internal/models"
)

// RemoveSlotWithRenumbering removes slot `ordinal` from the space and
// closes the gap: every slot above it shifts down by one, every
// reservation referencing a shifted slot is rewritten to the new
// ordinal, and the space's slot count drops by one. All of it happens
// in a single transaction; any failure leaves the slot set untouched.
//
// Renames run in ascending ordinal order after the target row is
// deleted, so each rename's destination ordinal is already vacant and
// the (space_id, ordinal) primary key is never violated mid-flight.
func (db *DB) RemoveSlotWithRenumbering(ctx context.Context, spaceID string, ordinal int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots WHERE space_id = ? AND ordinal = ?`, spaceID, ordinal).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	if exists == 0 {
		return ErrSlotNotFound
	}

	// Незавершённые брони блокируют удаление
	var blocking int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE space_id = ? AND slot_ordinal = ? AND status = ?`,
		spaceID, ordinal, models.StatusProcessing,
	).Scan(&blocking)
	if err != nil {
		return fmt.Errorf("failed to check processing reservations: %w", err)
	}
	if blocking > 0 {
		return ErrActiveReservations
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT ordinal FROM slots WHERE space_id = ? AND ordinal > ? ORDER BY ordinal ASC`,
		spaceID, ordinal,
	)
	if err != nil {
		return fmt.Errorf("failed to load higher ordinals: %w", err)
	}
	var higher []int
	for rows.Next() {
		var o int
		if err := rows.Scan(&o); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan ordinal: %w", err)
		}
		higher = append(higher, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate ordinals: %w", err)
	}
	rows.Close()

	now := time.Now()

	// Vacate the target ordinal first; every subsequent rename then
	// moves into a hole.
	if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE space_id = ? AND ordinal = ?`, spaceID, ordinal); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	for _, old := range higher {
		// Reservation references first: historical rows (complete,
		// cancelled) are rewritten too, they name the same physical spot.
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET slot_ordinal = ?, updated_at = ? WHERE space_id = ? AND slot_ordinal = ?`,
			old-1, now, spaceID, old,
		); err != nil {
			return fmt.Errorf("failed to rewrite reservations for ordinal %d: %w", old, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE slots SET ordinal = ?, updated_at = ? WHERE space_id = ? AND ordinal = ?`,
			old-1, now, spaceID, old,
		)
		if err != nil {
			return fmt.Errorf("failed to renumber slot %d: %w", old, err)
		}
		affected, _ := result.RowsAffected()
		if affected != 1 {
			// Row vanished between load and rename: data corruption, not
			// a recoverable condition. Roll back everything.
			return fmt.Errorf("renumber slot %d->%d: expected 1 row, got %d: %w",
				old, old-1, affected, ErrConcurrentModification)
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE spaces SET slot_count = slot_count - 1, updated_at = ? WHERE id = ?`,
		now, spaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement slot count: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected != 1 {
		return fmt.Errorf("decrement slot count: space %s missing: %w", spaceID, ErrSpaceNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit renumbering: %w", err)
	}

	db.logger.Info().
		Str("space_id", spaceID).
		Int("ordinal", ordinal).
		Int("shifted", len(higher)).
		Msg("slot removed with renumbering")
	return nil
}
