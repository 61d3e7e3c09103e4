package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
)

// ErrPersistence marks a best robot that could not be written to disk
var ErrPersistence = errors.New("persistence fault")

// BestTracker holds the best-ever individual of a run and persists every
// strict improvement as {prefix}_robot_{evaluation:05d}.json.
type BestTracker struct {
	prefix string
	logger *logrus.Logger

	best            robot.Robot
	fitness         float64
	lastImprovement int
	improvements    []types.Improvement
}

// NewBestTracker creates an empty tracker writing robot files under prefix
func NewBestTracker(prefix string, logger *logrus.Logger) *BestTracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &BestTracker{prefix: prefix, logger: logger}
}

// RobotPath returns the file an improvement at evaluation is written to
func RobotPath(prefix string, evaluation int) string {
	return fmt.Sprintf(constants.RobotFileFormat, prefix, evaluation)
}

// RecordIfBetter replaces the best individual when fitness strictly exceeds
// the current best, or unconditionally when nothing has been recorded yet.
// The candidate is saved before the tracker state changes; a failed save is
// returned wrapped in ErrPersistence.
func (t *BestTracker) RecordIfBetter(candidate robot.Robot, fitness float64, evaluation int) (bool, error) {
	if t.best != nil && !(fitness > t.fitness) {
		return false, nil
	}

	path := RobotPath(t.prefix, evaluation)
	if err := candidate.Save(path); err != nil {
		return false, fmt.Errorf("%w: failed to save robot %s: %v", ErrPersistence, path, err)
	}

	t.best = candidate
	t.fitness = fitness
	t.lastImprovement = evaluation
	t.improvements = append(t.improvements, types.Improvement{
		Evaluation: evaluation,
		Fitness:    fitness,
		Path:       path,
		RecordedAt: time.Now(),
	})

	t.logger.WithFields(logrus.Fields{
		"evaluation": evaluation,
		"fitness":    fitness,
		"path":       path,
	}).Infof("New best score at evaluation %d: %v", evaluation, fitness)

	return true, nil
}

// Best returns the best individual, or nil before the first record
func (t *BestTracker) Best() robot.Robot {
	return t.best
}

// Fitness returns the best fitness recorded so far
func (t *BestTracker) Fitness() float64 {
	return t.fitness
}

// LastImprovement returns the evaluation count of the latest improvement
func (t *BestTracker) LastImprovement() int {
	return t.lastImprovement
}

// Improvements returns every recorded improvement in order
func (t *BestTracker) Improvements() []types.Improvement {
	return append([]types.Improvement(nil), t.improvements...)
}

func (t *BestTracker) last() types.Improvement {
	return t.improvements[len(t.improvements)-1]
}
