package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite handle with the schema of the parking marketplace.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection keeps :memory:
	// databases coherent and serializes the transactional paths.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	var dbLogger zerolog.Logger
	if logger != nil {
		dbLogger = logger.With().Str("component", "database").Logger()
	}

	dbLogger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: dbLogger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS spaces (
            id TEXT PRIMARY KEY,
            code TEXT UNIQUE NOT NULL,
            address TEXT NOT NULL,
            hourly_rate REAL NOT NULL CHECK (hourly_rate >= 0),
            slot_count INTEGER NOT NULL DEFAULT 0,
            max_duration_hours INTEGER,
            description TEXT,
            owner_admin_id INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Идентичность слота — структурированная пара (space_id, ordinal)
		`CREATE TABLE IF NOT EXISTS slots (
            space_id TEXT NOT NULL,
            ordinal INTEGER NOT NULL CHECK (ordinal >= 1),
            available BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (space_id, ordinal)
        )`,

		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            space_id TEXT NOT NULL,
            slot_ordinal INTEGER NOT NULL,
            vehicle_id TEXT NOT NULL,
            start_at DATETIME NOT NULL,
            end_at DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'processing',
            fee REAL NOT NULL CHECK (fee >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,

		`CREATE TABLE IF NOT EXISTS vehicles (
            plate TEXT PRIMARY KEY,
            owner_id INTEGER NOT NULL,
            description TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS space_schedule (
            space_id TEXT NOT NULL,
            weekday INTEGER NOT NULL CHECK (weekday BETWEEN 0 AND 6),
            open_minute INTEGER NOT NULL,
            close_minute INTEGER NOT NULL,
            PRIMARY KEY (space_id, weekday)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(space_id, slot_ordinal)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_vehicle ON reservations(vehicle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_owner ON vehicles(owner_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
