package search

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ishanwen-byte/evomorph/internal/types"
)

// RunStatistics collects the duration of every evaluation of a run
type RunStatistics struct {
	durations []time.Duration
}

// Add appends evaluation durations
func (s *RunStatistics) Add(durations ...time.Duration) {
	s.durations = append(s.durations, durations...)
}

// Len returns the number of recorded evaluations
func (s *RunStatistics) Len() int {
	return len(s.durations)
}

// Durations returns a copy of the recorded durations
func (s *RunStatistics) Durations() []time.Duration {
	return append([]time.Duration(nil), s.durations...)
}

// Seconds returns the recorded durations in seconds
func (s *RunStatistics) Seconds() []float64 {
	out := make([]float64, len(s.durations))
	for i, d := range s.durations {
		out[i] = d.Seconds()
	}
	return out
}

// Summary returns mean, min and max in seconds. It is zero when empty.
func (s *RunStatistics) Summary() types.TimingSummary {
	if len(s.durations) == 0 {
		return types.TimingSummary{}
	}
	secs := s.Seconds()
	return types.TimingSummary{
		Count: len(secs),
		Mean:  stat.Mean(secs, nil),
		Min:   floats.Min(secs),
		Max:   floats.Max(secs),
	}
}
