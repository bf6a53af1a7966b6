package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"relabel/internal/config"
)

// ErrRunNotFound is returned when a run identifier has no persisted row.
var ErrRunNotFound = errors.New("run not found")

// Store manages run and snapshot persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the run database under the log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRun records a fresh run in running state.
func (s *Store) NewRun(ctx context.Context, id string) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id must not be empty")
	}
	now := time.Now().UTC()
	run := &Run{
		ID:        id,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, status, current_step, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.CurrentStep, run.ErrorMessage, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// UpdateRun persists the run's status, current step, and error message.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run must not be nil")
	}
	run.UpdatedAt = time.Now().UTC()
	err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, current_step = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), run.CurrentStep, run.ErrorMessage, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, current_step, error_message, created_at, updated_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, current_step, error_message, created_at, updated_at
		 FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MostRecentResumable returns the newest failed run, or ErrRunNotFound when
// every recorded run completed.
func (s *Store) MostRecentResumable(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, current_step, error_message, created_at, updated_at
		 FROM runs WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(StatusFailed))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no failed runs to resume", ErrRunNotFound)
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var run Run
	var status string
	if err := scanner.Scan(&run.ID, &status, &run.CurrentStep, &run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("run %s has unknown status %q", run.ID, status)
	}
	run.Status = parsed
	return &run, nil
}

// SaveSnapshot persists (or replaces) the state captured after a completed
// step. seq is the step's position in the pipeline ordering.
func (s *Store) SaveSnapshot(ctx context.Context, runID, step string, seq int, payload []byte) error {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(step) == "" {
		return errors.New("run id and step must not be empty")
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO snapshots (run_id, step, seq, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, step) DO UPDATE SET seq = excluded.seq,
			payload = excluded.payload, created_at = excluded.created_at`,
		runID, step, seq, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", runID, step, err)
	}
	return nil
}

// LatestSnapshot returns the snapshot with the highest step sequence for a
// run, or sql.ErrNoRows via ErrRunNotFound semantics when none exist.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, step, seq, payload, created_at FROM snapshots
		 WHERE run_id = ? ORDER BY seq DESC LIMIT 1`, runID)

	var snap Snapshot
	var payload string
	err := row.Scan(&snap.RunID, &snap.Step, &snap.Seq, &payload, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no snapshots for run %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.Payload = []byte(payload)
	return &snap, nil
}
