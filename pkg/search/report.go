package search

import (
	"encoding/json"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/selection"
)

// GenerationReport describes one evaluated batch of a run
type GenerationReport struct {
	Algorithm   string        `json:"algorithm"`
	Generation  int           `json:"generation"`
	Evaluations int           `json:"evaluations"`
	Fitness     []float64     `json:"fitness"`
	BestFitness float64       `json:"best_fitness"`
	Improved    bool          `json:"improved"`
	Duration    time.Duration `json:"duration"`

	// Population is the evaluated batch, aligned with Fitness
	Population []robot.Robot `json:"-"`
}

// Observer receives run progress. Implementations must not block for long;
// they run on the search goroutine.
type Observer interface {
	OnImprovement(improvement types.Improvement)
	OnGeneration(report *GenerationReport)
}

// BatchBest returns the highest fitness of the batch
func (r *GenerationReport) BatchBest() float64 {
	if len(r.Fitness) == 0 {
		return 0
	}
	return r.Fitness[selection.Best(r.Fitness)]
}

// BatchMean returns the mean fitness of the batch
func (r *GenerationReport) BatchMean() float64 {
	if len(r.Fitness) == 0 {
		return 0
	}
	return stat.Mean(r.Fitness, nil)
}

// Record converts the report into its ledger form
func (r *GenerationReport) Record() types.GenerationRecord {
	return types.GenerationRecord{
		Generation:  r.Generation,
		Evaluations: r.Evaluations,
		BatchSize:   len(r.Fitness),
		BatchBest:   r.BatchBest(),
		BatchMean:   r.BatchMean(),
		BestFitness: r.BestFitness,
		Duration:    r.Duration,
	}
}

// Stats returns the report as loggable key/value pairs
func (r *GenerationReport) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"algorithm":    r.Algorithm,
		"generation":   r.Generation,
		"evaluations":  r.Evaluations,
		"batch_size":   len(r.Fitness),
		"batch_best":   r.BatchBest(),
		"batch_mean":   r.BatchMean(),
		"best_fitness": r.BestFitness,
		"duration_ms":  r.Duration.Milliseconds(),
	}
	if r.Improved {
		stats["improved"] = true
	}
	return stats
}

// ToJSON converts the report to JSON
func (r *GenerationReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
