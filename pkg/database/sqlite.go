package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ishanwen-byte/evomorph/internal/types"
)

// SQLiteLedger persists run history in a SQLite database file
type SQLiteLedger struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteLedger creates a ledger backed by the database at path. Call Init
// before use.
func NewSQLiteLedger(path string) *SQLiteLedger {
	return &SQLiteLedger{path: path}
}

func (l *SQLiteLedger) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return errors.New("sqlite path is required")
	}
	if l.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	l.db = db
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			algorithm TEXT NOT NULL,
			prefix TEXT NOT NULL,
			seed INTEGER NOT NULL,
			world TEXT NOT NULL,
			robot TEXT NOT NULL,
			started_at TEXT NOT NULL,
			summary BLOB
		);
		CREATE TABLE IF NOT EXISTS improvements (
			run_id TEXT NOT NULL,
			evaluation INTEGER NOT NULL,
			fitness REAL NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, evaluation)
		);
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			evaluations INTEGER NOT NULL,
			batch_size INTEGER NOT NULL,
			batch_best REAL NOT NULL,
			batch_mean REAL NOT NULL,
			best_fitness REAL NOT NULL,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}

func (l *SQLiteLedger) getDB() (*sql.DB, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.db == nil {
		return nil, ErrNotInitialized
	}
	return l.db, nil
}

func (l *SQLiteLedger) StartRun(ctx context.Context, run types.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	db, err := l.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, algorithm, prefix, seed, world, robot, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Algorithm, run.Prefix, run.Seed, run.World, run.Robot, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

func (l *SQLiteLedger) requireRun(ctx context.Context, db *sql.DB, runID string) error {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}

func (l *SQLiteLedger) RecordImprovement(ctx context.Context, runID string, improvement types.Improvement) error {
	db, err := l.getDB()
	if err != nil {
		return err
	}
	if err := l.requireRun(ctx, db, runID); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO improvements (run_id, evaluation, fitness, path, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, improvement.Evaluation, improvement.Fitness, improvement.Path, formatTime(improvement.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to insert improvement: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) RecordGeneration(ctx context.Context, runID string, generation types.GenerationRecord) error {
	db, err := l.getDB()
	if err != nil {
		return err
	}
	if err := l.requireRun(ctx, db, runID); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (run_id, generation, evaluations, batch_size, batch_best, batch_mean, best_fitness, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, generation.Generation, generation.Evaluations, generation.BatchSize,
		generation.BatchBest, generation.BatchMean, generation.BestFitness, int64(generation.Duration))
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) FinishRun(ctx context.Context, runID string, summary types.RunSummary) error {
	db, err := l.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	res, err := db.ExecContext(ctx, `UPDATE runs SET summary = ? WHERE id = ?`, payload, runID)
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (l *SQLiteLedger) GetRun(ctx context.Context, runID string) (types.RunRecord, bool, error) {
	db, err := l.getDB()
	if err != nil {
		return types.RunRecord{}, false, err
	}

	var run types.RunRecord
	var startedAt string
	err = db.QueryRowContext(ctx, `
		SELECT id, algorithm, prefix, seed, world, robot, started_at FROM runs WHERE id = ?
	`, runID).Scan(&run.ID, &run.Algorithm, &run.Prefix, &run.Seed, &run.World, &run.Robot, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RunRecord{}, false, nil
		}
		return types.RunRecord{}, false, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return types.RunRecord{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, true, nil
}

func (l *SQLiteLedger) Improvements(ctx context.Context, runID string) ([]types.Improvement, error) {
	db, err := l.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT evaluation, fitness, path, recorded_at FROM improvements
		WHERE run_id = ? ORDER BY evaluation
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query improvements: %w", err)
	}
	defer rows.Close()

	var improvements []types.Improvement
	for rows.Next() {
		var imp types.Improvement
		var recordedAt string
		if err := rows.Scan(&imp.Evaluation, &imp.Fitness, &imp.Path, &recordedAt); err != nil {
			return nil, err
		}
		if imp.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		improvements = append(improvements, imp)
	}
	return improvements, rows.Err()
}

func (l *SQLiteLedger) Generations(ctx context.Context, runID string) ([]types.GenerationRecord, error) {
	db, err := l.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation, evaluations, batch_size, batch_best, batch_mean, best_fitness, duration_ns
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var generations []types.GenerationRecord
	for rows.Next() {
		var g types.GenerationRecord
		var duration int64
		if err := rows.Scan(&g.Generation, &g.Evaluations, &g.BatchSize, &g.BatchBest, &g.BatchMean, &g.BestFitness, &duration); err != nil {
			return nil, err
		}
		g.Duration = time.Duration(duration)
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

func (l *SQLiteLedger) Summary(ctx context.Context, runID string) (types.RunSummary, bool, error) {
	db, err := l.getDB()
	if err != nil {
		return types.RunSummary{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RunSummary{}, false, nil
		}
		return types.RunSummary{}, false, err
	}
	if payload == nil {
		return types.RunSummary{}, false, nil
	}

	var summary types.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return types.RunSummary{}, false, fmt.Errorf("decode summary %s: %w", runID, err)
	}
	return summary, true, nil
}

func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
