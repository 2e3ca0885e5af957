package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID        string
	Prompt    string
	Status    string
	TopModule string
	Duration  time.Duration
	CreatedAt string
}

// ModuleRecord is one module's journaled terminal state.
type ModuleRecord struct {
	Name       string
	Position   int
	State      string
	Attempts   int
	Diagnostic string
	Design     string
	Bench      string
}

// AttemptRecord is one journaled attempt.
type AttemptRecord struct {
	Module     string
	Index      int
	Status     string
	Category   string
	Evidence   string
	Diagnostic string
	Design     string
	Bench      string
	Duration   time.Duration
}

// RunRecord is a full run read back for reporting.
type RunRecord struct {
	RunSummary
	Failed   []string
	Skipped  []string
	Modules  []ModuleRecord
	Attempts []AttemptRecord
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, prompt, status, COALESCE(top_module, ''), COALESCE(duration_ms, 0), created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var ms int64
		if err := rows.Scan(&r.ID, &r.Prompt, &r.Status, &r.TopModule, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun reads one run back in full, modules and attempts included.
// The id may be a unique prefix of the stored run id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec RunRecord
	var ms int64
	var failed, skipped string
	err := s.db.QueryRow(
		`SELECT id, prompt, status, COALESCE(top_module, ''), COALESCE(failed, ''),
		        COALESCE(skipped, ''), COALESCE(duration_ms, 0), created_at
		 FROM runs WHERE id = ? OR id LIKE ? ORDER BY created_at DESC LIMIT 1`,
		id, id+"%").Scan(
		&rec.ID, &rec.Prompt, &rec.Status, &rec.TopModule,
		&failed, &skipped, &ms, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	rec.Duration = time.Duration(ms) * time.Millisecond
	rec.Failed = splitNames(failed)
	rec.Skipped = splitNames(skipped)

	if rec.Modules, err = s.runModules(rec.ID); err != nil {
		return nil, err
	}
	if rec.Attempts, err = s.runAttempts(rec.ID); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) runModules(runID string) ([]ModuleRecord, error) {
	rows, err := s.db.Query(
		`SELECT name, position, state, attempts, COALESCE(diagnostic, ''),
		        COALESCE(design, ''), COALESCE(bench, '')
		 FROM modules WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	defer rows.Close()

	var out []ModuleRecord
	for rows.Next() {
		var m ModuleRecord
		if err := rows.Scan(&m.Name, &m.Position, &m.State, &m.Attempts, &m.Diagnostic, &m.Design, &m.Bench); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) runAttempts(runID string) ([]AttemptRecord, error) {
	rows, err := s.db.Query(
		`SELECT module, idx, status, COALESCE(category, ''), COALESCE(evidence, ''),
		        COALESCE(diagnostic, ''), COALESCE(design, ''), COALESCE(bench, ''),
		        COALESCE(duration_ms, 0)
		 FROM attempts WHERE run_id = ? ORDER BY module, idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var ms int64
		if err := rows.Scan(&a.Module, &a.Index, &a.Status, &a.Category, &a.Evidence,
			&a.Diagnostic, &a.Design, &a.Bench, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}
