// Package storage persists the absorption table and the export log in SQLite
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrcode/fpu-scheduler/internal/absorption"
	"github.com/mrcode/fpu-scheduler/internal/models"
)

// SQLiteStore implements absorption.Store on a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

var _ absorption.Store = (*SQLiteStore)(nil)

// ExportLog is one row of the export history
type ExportLog struct {
	BatchID    string
	CreatedAt  time.Time
	Sink       string // "nightscout", "mqtt"
	Entries    int
	TotalGrams float64
	Error      string // Empty on success
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases and write ordering consistent
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS absorption_blocks (
        max_fpu REAL PRIMARY KEY,
        absorption_time REAL NOT NULL CHECK (absorption_time > 0)
    );

    CREATE TABLE IF NOT EXISTS exports (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        batch_id TEXT NOT NULL,
        created_at TEXT NOT NULL,
        sink TEXT NOT NULL,
        entries INTEGER NOT NULL,
        total_grams REAL NOT NULL,
        error TEXT NOT NULL DEFAULT ''
    );

    CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// LoadBlocks returns the stored blocks in ascending order, or
// absorption.ErrNoStoredScheme when the table has never been saved.
func (s *SQLiteStore) LoadBlocks() ([]models.AbsorptionBlock, error) {
	rows, err := s.db.Query(`SELECT max_fpu, absorption_time FROM absorption_blocks ORDER BY max_fpu`)
	if err != nil {
		return nil, fmt.Errorf("failed to query absorption blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.AbsorptionBlock
	for rows.Next() {
		var b models.AbsorptionBlock
		if err := rows.Scan(&b.MaxFpu, &b.AbsorptionTimeHours); err != nil {
			return nil, fmt.Errorf("failed to scan absorption block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read absorption blocks: %w", err)
	}

	if len(blocks) == 0 {
		return nil, absorption.ErrNoStoredScheme
	}
	return blocks, nil
}

// SaveBlocks replaces the stored table in one transaction
func (s *SQLiteStore) SaveBlocks(blocks []models.AbsorptionBlock) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	if _, err := tx.Exec(`DELETE FROM absorption_blocks`); err != nil {
		return fmt.Errorf("failed to clear absorption blocks: %w", err)
	}

	for _, b := range blocks {
		_, err := tx.Exec(`INSERT INTO absorption_blocks (max_fpu, absorption_time) VALUES (?, ?)`,
			b.MaxFpu, b.AbsorptionTimeHours)
		if err != nil {
			return fmt.Errorf("failed to insert absorption block %v: %w", b.MaxFpu, err)
		}
	}

	return tx.Commit()
}

// RecordExport appends an entry to the export log
func (s *SQLiteStore) RecordExport(entry ExportLog) error {
	_, err := s.db.Exec(`
        INSERT INTO exports (batch_id, created_at, sink, entries, total_grams, error)
        VALUES (?, ?, ?, ?, ?, ?)
    `, entry.BatchID, entry.CreatedAt.UTC().Format(time.RFC3339Nano), entry.Sink,
		entry.Entries, entry.TotalGrams, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// ListExports returns the most recent exports, newest first
func (s *SQLiteStore) ListExports(limit int) ([]ExportLog, error) {
	rows, err := s.db.Query(`
        SELECT batch_id, created_at, sink, entries, total_grams, error
        FROM exports
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var logs []ExportLog
	for rows.Next() {
		var entry ExportLog
		var createdAtStr string
		if err := rows.Scan(&entry.BatchID, &createdAtStr, &entry.Sink,
			&entry.Entries, &entry.TotalGrams, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
