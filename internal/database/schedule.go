package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parkmarket/internal/models"
)

func (db *DB) UpsertScheduleWindow(ctx context.Context, w *models.ScheduleWindow) error {
	if w.Open < 0 || w.Close > 24*60 || w.Close <= w.Open {
		return fmt.Errorf("invalid schedule window %d..%d for weekday %d", w.Open, w.Close, w.Weekday)
	}
	query := `INSERT INTO space_schedule (space_id, weekday, open_minute, close_minute)
              VALUES (?, ?, ?, ?)
              ON CONFLICT(space_id, weekday) DO UPDATE SET
                  open_minute = excluded.open_minute,
                  close_minute = excluded.close_minute`
	_, err := db.ExecContext(ctx, query, w.SpaceID, w.Weekday, w.Open, w.Close)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule window: %w", err)
	}
	return nil
}

// OperatingWindow returns the open/close minutes for a weekday. A space
// with no row for the weekday is treated as open around the clock; the
// third result reports whether an explicit window exists.
func (db *DB) OperatingWindow(ctx context.Context, spaceID string, weekday int) (int, int, bool, error) {
	query := `SELECT open_minute, close_minute FROM space_schedule WHERE space_id = ? AND weekday = ?`
	var open, close int
	err := db.QueryRowContext(ctx, query, spaceID, weekday).Scan(&open, &close)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 24 * 60, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to get operating window: %w", err)
	}
	return open, close, true, nil
}

func (db *DB) SpaceSchedule(ctx context.Context, spaceID string) ([]*models.ScheduleWindow, error) {
	query := `SELECT space_id, weekday, open_minute, close_minute FROM space_schedule WHERE space_id = ? ORDER BY weekday`
	rows, err := db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space schedule: %w", err)
	}
	defer rows.Close()

	var windows []*models.ScheduleWindow
	for rows.Next() {
		var w models.ScheduleWindow
		if err := rows.Scan(&w.SpaceID, &w.Weekday, &w.Open, &w.Close); err != nil {
			return nil, fmt.Errorf("failed to scan schedule window: %w", err)
		}
		windows = append(windows, &w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule windows: %w", err)
	}
	return windows, nil
}
