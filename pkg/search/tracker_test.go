package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotPath(t *testing.T) {
	assert.Equal(t, "log/run_GA_01021504_robot_00040.json", RobotPath("log/run_GA_01021504", 40))
	assert.Equal(t, "x_robot_123456.json", RobotPath("x", 123456))
}

func TestBestTrackerFirstRecordIsUnconditional(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	tracker := NewBestTracker(prefix, quietLogger())
	assert.Nil(t, tracker.Best())

	candidate := &genome{cells: []int{1}}
	improved, err := tracker.RecordIfBetter(candidate, -1e9, 10)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.Same(t, candidate, tracker.Best())
	assert.Equal(t, 10, tracker.LastImprovement())
	assert.FileExists(t, RobotPath(prefix, 10))
}

func TestBestTrackerRequiresStrictImprovement(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	tracker := NewBestTracker(prefix, quietLogger())

	first := &genome{cells: []int{5}}
	_, err := tracker.RecordIfBetter(first, 5, 1)
	require.NoError(t, err)

	improved, err := tracker.RecordIfBetter(&genome{cells: []int{5}}, 5, 6)
	require.NoError(t, err)
	assert.False(t, improved, "ties never replace the best")
	assert.NoFileExists(t, RobotPath(prefix, 6))

	improved, err = tracker.RecordIfBetter(&genome{cells: []int{4}}, 4, 11)
	require.NoError(t, err)
	assert.False(t, improved)

	better := &genome{cells: []int{6}}
	improved, err = tracker.RecordIfBetter(better, 6, 16)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.Same(t, better, tracker.Best())
	assert.Equal(t, 6.0, tracker.Fitness())

	improvements := tracker.Improvements()
	require.Len(t, improvements, 2)
	assert.Equal(t, 1, improvements[0].Evaluation)
	assert.Equal(t, 16, improvements[1].Evaluation)
	assert.Equal(t, RobotPath(prefix, 16), improvements[1].Path)
}

func TestBestTrackerPersistenceFault(t *testing.T) {
	tracker := NewBestTracker(filepath.Join(t.TempDir(), "run"), quietLogger())

	improved, err := tracker.RecordIfBetter(&genome{cells: []int{1}, failSave: true}, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, improved)
	assert.Nil(t, tracker.Best(), "state is untouched when the save fails")
}

func TestBestTrackerMissingDirectory(t *testing.T) {
	tracker := NewBestTracker(filepath.Join(t.TempDir(), "missing", "run"), quietLogger())

	_, err := tracker.RecordIfBetter(&genome{cells: []int{1}}, 1, 1)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestRunStatisticsSummary(t *testing.T) {
	stats := &RunStatistics{}
	assert.Equal(t, 0, stats.Summary().Count)

	stats.Add(time.Second, 3*time.Second)
	stats.Add(2 * time.Second)

	summary := stats.Summary()
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 2.0, summary.Mean, 1e-9)
	assert.InDelta(t, 1.0, summary.Min, 1e-9)
	assert.InDelta(t, 3.0, summary.Max, 1e-9)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 2 * time.Second}, stats.Durations())
}

func TestGenerationReport(t *testing.T) {
	report := &GenerationReport{
		Algorithm:   "GA",
		Generation:  2,
		Evaluations: 12,
		Fitness:     []float64{1, 4, 4, 3},
		BestFitness: 5,
		Duration:    1500 * time.Millisecond,
	}

	assert.Equal(t, 4.0, report.BatchBest())
	assert.Equal(t, 3.0, report.BatchMean())

	record := report.Record()
	assert.Equal(t, 4, record.BatchSize)
	assert.Equal(t, 5.0, record.BestFitness)

	stats := report.Stats()
	assert.Equal(t, int64(1500), stats["duration_ms"])
	assert.NotContains(t, stats, "improved")

	data, err := report.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"generation": 2`)
	assert.NotContains(t, string(data), "Population")
}
