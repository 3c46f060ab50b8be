// Package ledger keeps a local SQLite history of conversion runs.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/1323216010/exam/internal/domain"
)

// Run modes.
const (
	ModePages  = "pages"
	ModeSingle = "single"
)

// timeLayout sorts lexicographically for UTC times.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one finished conversion
type RunRecord struct {
	ID         string
	SourcePath string
	OutputPath string
	Mode       string
	Summary    domain.Summary
	StartedAt  time.Time
	Duration   time.Duration
}

// Store manages the run ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.IOError("creating ledger directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, domain.IOError("opening ledger", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, domain.IOError("creating ledger schema", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			mode TEXT NOT NULL,
			total_pages INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			failed_pages TEXT NOT NULL,
			characters INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Record stores rec, assigning an ID when it has none.
func (s *Store) Record(ctx context.Context, rec RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = NewRunID()
	}

	failed := rec.Summary.FailedPages
	if failed == nil {
		failed = []int{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return "", fmt.Errorf("encoding failed pages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_path, output_path, mode, total_pages, succeeded, failed, failed_pages, characters, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourcePath, rec.OutputPath, rec.Mode,
		rec.Summary.TotalPages, rec.Summary.Succeeded, rec.Summary.Failed, string(failedJSON), rec.Summary.Characters,
		rec.StartedAt.UTC().Format(timeLayout), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return "", domain.IOError("recording run", err)
	}
	return rec.ID, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, output_path, mode, total_pages, succeeded, failed, failed_pages, characters, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, domain.IOError("querying runs", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			failedJSON string
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &rec.OutputPath, &rec.Mode,
			&rec.Summary.TotalPages, &rec.Summary.Succeeded, &rec.Summary.Failed, &failedJSON, &rec.Summary.Characters,
			&startedAt, &durationMS); err != nil {
			return nil, domain.IOError("scanning run", err)
		}
		if err := json.Unmarshal([]byte(failedJSON), &rec.Summary.FailedPages); err != nil {
			return nil, fmt.Errorf("decoding failed pages for %s: %w", rec.ID, err)
		}
		if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing start time for %s: %w", rec.ID, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
