package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkmarket/internal/models"
)

const reservationColumns = `id, space_id, slot_ordinal, vehicle_id, start_at, end_at, status, fee, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var startStr, endStr string
	err := row.Scan(
		&r.ID, &r.SpaceID, &r.SlotOrdinal, &r.VehicleID, &startStr, &endStr,
		&r.Status, &r.Fee, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if r.StartAt, err = time.ParseInLocation(models.TimeLayout, startStr, time.Local); err != nil {
		return nil, fmt.Errorf("failed to parse reservation start %s: %w", startStr, err)
	}
	if r.EndAt, err = time.ParseInLocation(models.TimeLayout, endStr, time.Local); err != nil {
		return nil, fmt.Errorf("failed to parse reservation end %s: %w", endStr, err)
	}
	return &r, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// activeOverlapCount counts processing/paid reservations on the slot
// whose intervals intersect [start, end). Half-open semantics: rows
// touching the boundary do not count.
func activeOverlapCount(ctx context.Context, q querier, spaceID string, ordinal int, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM reservations
              WHERE space_id = ? AND slot_ordinal = ?
              AND status IN (?, ?)
              AND start_at < ? AND end_at > ?`
	var count int
	err := q.QueryRowContext(ctx, query, spaceID, ordinal,
		models.StatusProcessing, models.StatusPaid,
		end.Format(models.TimeLayout), start.Format(models.TimeLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping reservations: %w", err)
	}
	return count, nil
}

// IsSlotAvailable reports whether no active reservation on the slot
// overlaps [start, end). A missing slot reads as unavailable rather
// than an error; existence is validated one layer up.
func (db *DB) IsSlotAvailable(ctx context.Context, spaceID string, ordinal int, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, ErrInvalidInterval
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots WHERE space_id = ? AND ordinal = ?`, spaceID, ordinal).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slot existence: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	count, err := activeOverlapCount(ctx, db, spaceID, ordinal, start, end)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// CreateReservationWithLock re-checks availability and inserts inside a
// single transaction, so two racing creates for overlapping intervals
// cannot both pass the check.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	if !r.EndAt.After(r.StartAt) {
		return ErrInvalidInterval
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots WHERE space_id = ? AND ordinal = ?`, r.SpaceID, r.SlotOrdinal).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if exists == 0 {
		return ErrSlotNotFound
	}

	count, err := activeOverlapCount(ctx, tx, r.SpaceID, r.SlotOrdinal, r.StartAt, r.EndAt)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrNotAvailable
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (space_id, slot_ordinal, vehicle_id, start_at, end_at, status, fee, created_at, updated_at, version)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SpaceID,
		r.SlotOrdinal,
		r.VehicleID,
		r.StartAt.Format(models.TimeLayout),
		r.EndAt.Format(models.TimeLayout),
		r.Status,
		r.Fee,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	return tx.Commit()
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE reservations SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// CompleteReservation transitions the reservation to complete and frees
// its slot for walk-in use in the same transaction.
func (db *DB) CompleteReservation(ctx context.Context, id, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		models.StatusComplete, now, id, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to complete reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE slots SET available = 1, updated_at = ?
         WHERE (space_id, ordinal) IN (SELECT space_id, slot_ordinal FROM reservations WHERE id = ?)`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to free slot on completion: %w", err)
	}

	return tx.Commit()
}

// SlotReservations returns active reservations on a slot intersecting
// [from, to), ordered by start time. Feeds the availability calendar.
func (db *DB) SlotReservations(ctx context.Context, spaceID string, ordinal int, from, to time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE space_id = ? AND slot_ordinal = ?
              AND status IN (?, ?)
              AND start_at < ? AND end_at > ?
              ORDER BY start_at`
	rows, err := db.QueryContext(ctx, query, spaceID, ordinal,
		models.StatusProcessing, models.StatusPaid,
		to.Format(models.TimeLayout), from.Format(models.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get slot reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}

// UserReservations lists reservations for all vehicles owned by the user.
func (db *DB) UserReservations(ctx context.Context, ownerID int64) ([]*models.Reservation, error) {
	query := `SELECT r.id, r.space_id, r.slot_ordinal, r.vehicle_id, r.start_at, r.end_at, r.status, r.fee, r.created_at, r.updated_at, r.version
              FROM reservations r
              JOIN vehicles v ON v.plate = r.vehicle_id
              WHERE v.owner_id = ?
              ORDER BY r.start_at DESC`
	rows, err := db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}

// StaleProcessing returns processing reservations created before the
// cutoff. The expiry sweeper cancels them one by one with versioned
// updates so a concurrent payment wins the race.
func (db *DB) StaleProcessing(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = ? AND created_at <= ? ORDER BY created_at`
	rows, err := db.QueryContext(ctx, query, models.StatusProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}
