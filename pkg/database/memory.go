package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/ishanwen-byte/evomorph/internal/types"
)

// MemoryLedger keeps run history in process memory
type MemoryLedger struct {
	mu sync.RWMutex

	runs         map[string]types.RunRecord
	improvements map[string][]types.Improvement
	generations  map[string][]types.GenerationRecord
	summaries    map[string]types.RunSummary
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		runs:         make(map[string]types.RunRecord),
		improvements: make(map[string][]types.Improvement),
		generations:  make(map[string][]types.GenerationRecord),
		summaries:    make(map[string]types.RunSummary),
	}
}

func (l *MemoryLedger) Init(context.Context) error {
	return nil
}

func (l *MemoryLedger) StartRun(_ context.Context, run types.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.runs[run.ID]; ok {
		return fmt.Errorf("run %s already started", run.ID)
	}
	l.runs[run.ID] = run
	return nil
}

func (l *MemoryLedger) RecordImprovement(_ context.Context, runID string, improvement types.Improvement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	l.improvements[runID] = append(l.improvements[runID], improvement)
	return nil
}

func (l *MemoryLedger) RecordGeneration(_ context.Context, runID string, generation types.GenerationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	l.generations[runID] = append(l.generations[runID], generation)
	return nil
}

func (l *MemoryLedger) FinishRun(_ context.Context, runID string, summary types.RunSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	l.summaries[runID] = summary
	return nil
}

func (l *MemoryLedger) GetRun(_ context.Context, runID string) (types.RunRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	run, ok := l.runs[runID]
	return run, ok, nil
}

func (l *MemoryLedger) Improvements(_ context.Context, runID string) ([]types.Improvement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]types.Improvement(nil), l.improvements[runID]...), nil
}

func (l *MemoryLedger) Generations(_ context.Context, runID string) ([]types.GenerationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]types.GenerationRecord(nil), l.generations[runID]...), nil
}

func (l *MemoryLedger) Summary(_ context.Context, runID string) (types.RunSummary, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary, ok := l.summaries[runID]
	return summary, ok, nil
}

func (l *MemoryLedger) Close() error {
	return nil
}
