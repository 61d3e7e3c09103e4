package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
)

var (
	// ErrRunNotFound is returned when recording against a run that was never started
	ErrRunNotFound = errors.New("run not found")

	// ErrNotInitialized is returned when a ledger is used before Init
	ErrNotInitialized = errors.New("ledger is not initialized")
)

// Ledger stores the history of search runs: when they started, every
// improvement of the best robot, every evaluated generation and the final
// summary.
type Ledger interface {
	Init(ctx context.Context) error
	StartRun(ctx context.Context, run types.RunRecord) error
	RecordImprovement(ctx context.Context, runID string, improvement types.Improvement) error
	RecordGeneration(ctx context.Context, runID string, generation types.GenerationRecord) error
	FinishRun(ctx context.Context, runID string, summary types.RunSummary) error

	GetRun(ctx context.Context, runID string) (types.RunRecord, bool, error)
	Improvements(ctx context.Context, runID string) ([]types.Improvement, error)
	Generations(ctx context.Context, runID string) ([]types.GenerationRecord, error)
	Summary(ctx context.Context, runID string) (types.RunSummary, bool, error)

	Close() error
}

// Open creates and initializes the ledger selected by cfg
func Open(ctx context.Context, cfg types.LedgerConfig, logger *logrus.Logger) (Ledger, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var ledger Ledger
	switch cfg.Backend {
	case "", constants.LedgerMemory:
		ledger = NewMemoryLedger()
	case constants.LedgerSQLite:
		ledger = NewSQLiteLedger(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}

	if err := ledger.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s ledger: %w", cfg.Backend, err)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"path":    cfg.Path,
	}).Debug("Opened run ledger")

	return ledger, nil
}
