// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history keeps a record of past runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

const (
	driverName = "sqlite"
	dirPerm    = 0o755
	// maxOpenConns allows one connection for the primary query and one for nested lookups.
	maxOpenConns = 2
	// pragmas are applied by the driver to every new connection.
	pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
)

var (
	// ErrOpenStore is returned when the history database cannot be opened.
	ErrOpenStore = errors.New("failed to open history store")
	// ErrRunNotFound is returned when no run has the given ID.
	ErrRunNotFound = errors.New("run not found")
)

// Run is the stored summary of one batch run.
type Run struct {
	ID           string
	Source       string
	Mode         string
	StartedAt    time.Time
	Duration     time.Duration
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	NotAttempted int // Planned commands of levels that never started
	DryRun       bool
	Aborted      bool
	Interrupted  bool
	ExitCode     int
}

// CommandRecord is the stored outcome of one command of a run.
type CommandRecord struct {
	Name     string
	Command  string
	Status   string
	ExitCode int
	Attempts int
	Duration time.Duration
	Error    string
}

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating parent directories as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, errors.Join(ErrOpenStore, err)
	}

	return open(ctx, fmt.Sprintf("file:%s?%s", path, pragmas))
}

// OpenMemory opens a private in-memory store.
func OpenMemory(ctx context.Context) (*Store, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", uuid.NewString(), pragmas))
}

func open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, errors.Join(ErrOpenStore, err)
	}

	db.SetMaxOpenConns(maxOpenConns)

	s := &Store{db: db}

	if err := s.initSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, errors.Join(ErrOpenStore, fmt.Errorf("initialize schema: %w", err))
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		not_attempted INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL,
		aborted INTEGER NOT NULL,
		interrupted INTEGER NOT NULL,
		exit_code INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_commands (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		command TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)

	return err //nolint:wrapcheck
}

// SaveRun stores the summary of a run and returns its generated ID.
func (s *Store) SaveRun(ctx context.Context, source string, sum *runbatch.Summary) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, mode, started_at, duration_ns, total, succeeded, failed, skipped,
			not_attempted, dry_run, aborted, interrupted, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, source, sum.Mode(), sum.StartTime().UnixNano(), int64(sum.TotalDuration()),
		sum.Total(), sum.Succeeded(), sum.Failed(), sum.Skipped(), len(sum.NotAttempted()),
		sum.DryRun(), sum.Aborted(), sum.Interrupted(), sum.ExitCode())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, r := range sum.Results() {
		var errStr sql.NullString
		if r.Error != nil {
			errStr = sql.NullString{String: r.Error.Error(), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_commands (run_id, position, name, command, status, exit_code, attempts, duration_ns, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, r.Name, r.Command, r.Status.String(), r.ExitCode, r.Attempts, int64(r.Duration), errStr)
		if err != nil {
			return "", fmt.Errorf("insert command %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	return id, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, mode, started_at, duration_ns, total, succeeded, failed, skipped,
			not_attempted, dry_run, aborted, interrupted, exit_code
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	defer rows.Close() //nolint:errcheck

	var runs []Run

	for rows.Next() {
		var (
			r                 Run
			started, duration int64
		)

		if err := rows.Scan(&r.ID, &r.Source, &r.Mode, &started, &duration, &r.Total, &r.Succeeded, &r.Failed,
			&r.Skipped, &r.NotAttempted, &r.DryRun, &r.Aborted, &r.Interrupted, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		r.Duration = time.Duration(duration)
		runs = append(runs, r)
	}

	return runs, rows.Err() //nolint:wrapcheck
}

// Commands returns the stored commands of a run in plan order.
func (s *Store) Commands(ctx context.Context, runID string) ([]CommandRecord, error) {
	var exists int

	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, command, status, exit_code, attempts, duration_ns, error
		FROM run_commands
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}

	defer rows.Close() //nolint:errcheck

	var out []CommandRecord

	for rows.Next() {
		var (
			c        CommandRecord
			duration int64
			errStr   sql.NullString
		)

		if err := rows.Scan(&c.Name, &c.Command, &c.Status, &c.ExitCode, &c.Attempts, &duration, &errStr); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}

		c.Duration = time.Duration(duration)
		c.Error = errStr.String
		out = append(out, c)
	}

	return out, rows.Err() //nolint:wrapcheck
}
