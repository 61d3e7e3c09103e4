package database

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/search"
)

// Recorder forwards search progress of one run into a ledger. Ledger
// failures are logged and counted but never stop the search.
type Recorder struct {
	ctx    context.Context
	ledger Ledger
	runID  string
	logger *logrus.Logger

	failures int
}

// NewRecorder creates an observer writing to ledger under runID
func NewRecorder(ctx context.Context, ledger Ledger, runID string, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Recorder{ctx: ctx, ledger: ledger, runID: runID, logger: logger}
}

func (r *Recorder) OnImprovement(improvement types.Improvement) {
	if err := r.ledger.RecordImprovement(r.ctx, r.runID, improvement); err != nil {
		r.failures++
		r.logger.WithError(err).WithField("evaluation", improvement.Evaluation).Warn("Failed to record improvement")
	}
}

func (r *Recorder) OnGeneration(report *search.GenerationReport) {
	if err := r.ledger.RecordGeneration(r.ctx, r.runID, report.Record()); err != nil {
		r.failures++
		r.logger.WithError(err).WithField("generation", report.Generation).Warn("Failed to record generation")
	}
}

// Failures returns how many ledger writes failed
func (r *Recorder) Failures() int {
	return r.failures
}
