package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/ishanwen-byte/evomorph/internal/types"
)

// Runner fans evaluation batches out over a bounded set of workers
type Runner struct {
	evaluator *Evaluator
	workers   int
	logger    *logrus.Logger
}

// NewRunner creates a batch runner with the given worker count
func NewRunner(evaluator *Evaluator, workers int, logger *logrus.Logger) (*Runner, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", workers)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{evaluator: evaluator, workers: workers, logger: logger}, nil
}

// Workers returns the pool size used for every batch
func (r *Runner) Workers() int {
	return r.workers
}

// Evaluate runs a single task outside of any batch
func (r *Runner) Evaluate(ctx context.Context, task Task) (types.EvaluationResult, error) {
	return r.evaluator.Evaluate(ctx, task)
}

// RunBatch evaluates every task and returns results aligned with tasks.
// The pool lives only for this call. The first fault cancels the tasks that
// have not started yet and is returned; no partial results are returned.
func (r *Runner) RunBatch(ctx context.Context, tasks []Task) ([]types.EvaluationResult, error) {
	startTime := time.Now()
	results := make([]types.EvaluationResult, len(tasks))

	p := pool.New().
		WithMaxGoroutines(r.workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, task := range tasks {
		i, task := i, task
		p.Go(func(ctx context.Context) error {
			result, err := r.evaluator.Evaluate(ctx, task)
			if err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		r.logger.WithFields(logrus.Fields{
			"tasks":   len(tasks),
			"workers": r.workers,
		}).WithError(err).Error("Batch aborted")
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"tasks":   len(tasks),
		"workers": r.workers,
		"elapsed": time.Since(startTime),
	}).Debug("Batch completed")

	return results, nil
}
