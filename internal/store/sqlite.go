package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kyupark/socburn/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    device          TEXT NOT NULL,
    mode            TEXT NOT NULL,
    status          TEXT NOT NULL,
    workers         INTEGER NOT NULL,
    pinned          INTEGER NOT NULL,
    cpu_clock       INTEGER NOT NULL,
    ram_clock       INTEGER NOT NULL,
    pulse_cpu_clock INTEGER NOT NULL,
    pulse_ram_clock INTEGER NOT NULL,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME
)`

const createSamplesTable = `
CREATE TABLE IF NOT EXISTS samples (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT NOT NULL,
    seq      INTEGER NOT NULL,
    metric   TEXT NOT NULL,
    value    REAL NOT NULL,
    taken_at DATETIME NOT NULL
)`

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRunsTable, createSamplesTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
			id, device, mode, status, workers, pinned,
			cpu_clock, ram_clock, pulse_cpu_clock, pulse_ram_clock,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Device, r.Mode, r.Status, r.Workers, r.Pinned,
		r.CPUClock, r.RAMClock, r.PulseCPUClock, r.PulseRAMClock,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r := &model.Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, device, mode, status, workers, pinned,
			cpu_clock, ram_clock, pulse_cpu_clock, pulse_ram_clock,
			started_at, finished_at
		FROM runs WHERE id = ?`, id,
	).Scan(
		&r.ID, &r.Device, &r.Mode, &r.Status, &r.Workers, &r.Pinned,
		&r.CPUClock, &r.RAMClock, &r.PulseCPUClock, &r.PulseRAMClock,
		&r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// FinishRun marks a run terminal with the given status and stamps finished_at.
func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSample appends one telemetry reading.
func (s *SQLiteStore) InsertSample(ctx context.Context, sample *model.Sample) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO samples (run_id, seq, metric, value, taken_at) VALUES (?, ?, ?, ?, ?)",
		sample.RunID, sample.Seq, sample.Metric, sample.Value, sample.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// GetSamples returns every sample recorded for a run in capture order.
func (s *SQLiteStore) GetSamples(ctx context.Context, runID string) ([]model.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, seq, metric, value, taken_at FROM samples WHERE run_id = ? ORDER BY seq, id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		var sm model.Sample
		if err := rows.Scan(&sm.ID, &sm.RunID, &sm.Seq, &sm.Metric, &sm.Value, &sm.TakenAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}
