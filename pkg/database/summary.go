package database

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/search"
)

// SummaryPath returns the summary file written for a run prefix
func SummaryPath(prefix string) string {
	return prefix + constants.SummaryFileSuffix
}

// NewSummary builds the end-of-run summary from a search result
func NewSummary(runID string, result *search.Result) types.RunSummary {
	return types.RunSummary{
		Version:         constants.SummaryVersion,
		RunID:           runID,
		Algorithm:       result.Algorithm,
		Evaluations:     result.Evaluations,
		Generations:     result.Generations,
		BestFitness:     result.BestFitness,
		LastImprovement: result.LastImprovement,
		Improvements:    len(result.Improvements),
		Timing:          result.Statistics.Summary(),
		Duration:        result.Duration,
		FinishedAt:      time.Now(),
	}
}

// WriteSummary saves a run summary as indented JSON
func WriteSummary(path string, summary types.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// LoadSummary reads a summary written by WriteSummary
func LoadSummary(path string) (types.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("failed to read summary file: %w", err)
	}

	var summary types.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return types.RunSummary{}, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if summary.Version != constants.SummaryVersion {
		return types.RunSummary{}, fmt.Errorf("unsupported summary version %q", summary.Version)
	}
	return summary, nil
}
