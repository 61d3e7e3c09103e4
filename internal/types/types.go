package types

import (
	"time"
)

// EvaluationResult is the outcome of one simulated evaluation
type EvaluationResult struct {
	Fitness  float64       `json:"fitness"`
	Duration time.Duration `json:"duration"`
}

// Improvement records a strict improvement of the best-ever individual
type Improvement struct {
	Evaluation int       `json:"evaluation"`
	Fitness    float64   `json:"fitness"`
	Path       string    `json:"path"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GenerationRecord summarizes one evaluated batch
type GenerationRecord struct {
	Generation  int           `json:"generation"`
	Evaluations int           `json:"evaluations"`
	BatchSize   int           `json:"batch_size"`
	BatchBest   float64       `json:"batch_best"`
	BatchMean   float64       `json:"batch_mean"`
	BestFitness float64       `json:"best_fitness"`
	Duration    time.Duration `json:"duration"`
}

// RunRecord identifies a search run
type RunRecord struct {
	ID        string    `json:"id"`
	Algorithm string    `json:"algorithm"`
	Prefix    string    `json:"prefix"`
	Seed      int64     `json:"seed"`
	World     string    `json:"world"`
	Robot     string    `json:"robot"`
	StartedAt time.Time `json:"started_at"`
}

// TimingSummary aggregates per-evaluation durations in seconds
type TimingSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// RunSummary is written at the end of a run
type RunSummary struct {
	Version         string        `json:"version"`
	RunID           string        `json:"run_id"`
	Algorithm       string        `json:"algorithm"`
	Evaluations     int           `json:"evaluations"`
	Generations     int           `json:"generations"`
	BestFitness     float64       `json:"best_fitness"`
	LastImprovement int           `json:"last_improvement"`
	Improvements    int           `json:"improvements"`
	Timing          TimingSummary `json:"timing"`
	Duration        time.Duration `json:"duration"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// Config represents the main configuration
type Config struct {
	Search SearchConfig `yaml:"search" json:"search"`
	Output OutputConfig `yaml:"output" json:"output"`
	Robot  RobotConfig  `yaml:"robot" json:"robot"`
	World  WorldConfig  `yaml:"world" json:"world"`
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// SearchConfig holds the search engine parameters
type SearchConfig struct {
	Algorithm         string  `yaml:"algorithm" json:"algorithm"`
	SimSteps          int     `yaml:"sim_step" json:"sim_step"`
	Evaluations       int     `yaml:"evo_step" json:"evo_step"`
	Workers           int     `yaml:"numprocs" json:"numprocs"`
	Seed              int64   `yaml:"seed" json:"seed"`
	PopulationSize    int     `yaml:"popsize" json:"popsize"`
	MutationProb      float64 `yaml:"mutprob" json:"mutprob"`
	Lambda            int     `yaml:"lambda" json:"lambda"`
	MutationIntensity int     `yaml:"mutation_intensity" json:"mutation_intensity"`
	TournamentSize    int     `yaml:"tournament_size" json:"tournament_size"`
}

// OutputConfig controls where run artifacts are written
type OutputConfig struct {
	LogDir string `yaml:"logdir" json:"logdir"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// RobotConfig selects the robot encoding
type RobotConfig struct {
	Class  string `yaml:"class" json:"class"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// WorldConfig selects the world and its generation parameters
type WorldConfig struct {
	Class      string  `yaml:"class" json:"class"`
	File       string  `yaml:"file" json:"file"`
	Length     int     `yaml:"length" json:"length"`
	Freq       float64 `yaml:"freq" json:"freq"`
	BumpHeight int     `yaml:"bump_height" json:"bump_height"`
	BumpLength int     `yaml:"bump_length" json:"bump_length"`
}

// LedgerConfig selects the run ledger backend
type LedgerConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}
