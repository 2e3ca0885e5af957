// Package store keeps the SQLite run journal: every run, module and
// attempt is recorded for audit and for the report command. Journaling
// is best-effort; callers log store errors and keep going.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"chipwright/internal/verify"
)

// Store is the run journal. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the journal database at path, creating the schema
// when missing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL,
		top_module TEXT,
		failed TEXT,
		skipped TEXT,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS modules (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		state TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		diagnostic TEXT,
		design TEXT,
		bench TEXT,
		PRIMARY KEY (run_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_modules_run ON modules(run_id);

	CREATE TABLE IF NOT EXISTS attempts (
		run_id TEXT NOT NULL,
		module TEXT NOT NULL,
		idx INTEGER NOT NULL,
		status TEXT NOT NULL,
		category TEXT,
		evidence TEXT,
		diagnostic TEXT,
		design TEXT,
		bench TEXT,
		duration_ms INTEGER,
		PRIMARY KEY (run_id, module, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id, module);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun opens a run record. The run stays in status "running" until
// FinishRun.
func (s *Store) BeginRun(runID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO runs (id, prompt, status) VALUES (?, ?, 'running')`,
		runID, prompt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt to the journal.
func (s *Store) RecordAttempt(runID, module string, a verify.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO attempts
		 (run_id, module, idx, status, category, evidence, diagnostic, design, bench, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, module, a.Index,
		string(a.Outcome.Status), string(a.Category), a.Evidence,
		a.Outcome.Diagnostic, a.Design, a.Bench,
		a.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// RecordModule writes one module's terminal result.
func (s *Store) RecordModule(runID string, position int, res verify.ModuleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO modules
		 (run_id, name, position, state, attempts, diagnostic, design, bench)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Node.Name, position,
		string(res.State), len(res.Attempts), res.Diagnostic,
		res.Design, res.Bench)
	if err != nil {
		return fmt.Errorf("failed to record module: %w", err)
	}
	return nil
}

// FinishRun seals a run with its terminal status.
func (s *Store) FinishRun(runID, status string, failed, skipped []string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, failed = ?, skipped = ?, duration_ms = ? WHERE id = ?`,
		status, joinNames(failed), joinNames(skipped), duration.Milliseconds(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// SetTopModule records the plan's top module once the plan is built.
func (s *Store) SetTopModule(runID, top string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`UPDATE runs SET top_module = ? WHERE id = ?`, top, runID); err != nil {
		return fmt.Errorf("failed to set top module: %w", err)
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
