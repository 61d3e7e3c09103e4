package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
)

// ErrInvalidConfig marks configuration faults detected before any work starts
var ErrInvalidConfig = errors.New("invalid configuration")

// Manager handles configuration loading and validation
type Manager struct {
	config *types.Config
	path   string
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: getDefaultConfig(),
	}
}

// Load loads configuration from a file
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := getDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.applyEnvOverrides(config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.path = path
	return nil
}

// LoadEnv applies environment overrides on top of the defaults without a file
func (m *Manager) LoadEnv() error {
	config := getDefaultConfig()
	if err := m.applyEnvOverrides(config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	m.config = config
	return nil
}

// Save saves configuration to a file
func (m *Manager) Save(path string) error {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *types.Config {
	return m.config
}

// SetConfig updates the configuration
func (m *Manager) SetConfig(config *types.Config) {
	m.config = config
}

// GetPath returns the configuration file path
func (m *Manager) GetPath() string {
	return m.path
}

// applyEnvOverrides applies environment variable overrides to the configuration
func (m *Manager) applyEnvOverrides(config *types.Config) error {
	if algorithm := os.Getenv("SEARCH_ALGORITHM"); algorithm != "" {
		config.Search.Algorithm = algorithm
	}

	ints := []struct {
		name   string
		target *int
	}{
		{"SIM_STEP", &config.Search.SimSteps},
		{"EVO_STEP", &config.Search.Evaluations},
		{"NUMPROCS", &config.Search.Workers},
	}
	for _, item := range ints {
		value := os.Getenv(item.name)
		if value == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return fmt.Errorf("%s must be an integer: %q", item.name, value)
		}
		*item.target = n
	}

	if seed := os.Getenv("SEED"); seed != "" {
		var n int64
		if _, err := fmt.Sscanf(seed, "%d", &n); err != nil {
			return fmt.Errorf("SEED must be an integer: %q", seed)
		}
		config.Search.Seed = n
	}

	if logDir := os.Getenv("LOGDIR"); logDir != "" {
		config.Output.LogDir = logDir
	}
	if prefix := os.Getenv("PREFIX"); prefix != "" {
		config.Output.Prefix = prefix
	}
	if backend := os.Getenv("LEDGER_BACKEND"); backend != "" {
		config.Ledger.Backend = backend
	}
	if path := os.Getenv("LEDGER_PATH"); path != "" {
		config.Ledger.Path = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = strings.ToLower(level)
	}

	return nil
}

// Validate checks a configuration, wrapping every failure in ErrInvalidConfig
func Validate(config *types.Config) error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	search := config.Search
	switch search.Algorithm {
	case constants.AlgorithmRandom, constants.AlgorithmES, constants.AlgorithmGA:
	default:
		return invalid("unknown search algorithm %q (want random, ES or GA)", search.Algorithm)
	}
	if search.SimSteps <= 0 {
		return invalid("simulation steps must be positive")
	}
	if search.Evaluations <= 0 {
		return invalid("evaluation budget must be positive")
	}
	if search.Workers <= 0 {
		return invalid("numprocs must be positive")
	}
	if search.PopulationSize <= 0 {
		return invalid("population size must be positive")
	}
	if search.TournamentSize < 1 || search.TournamentSize > search.PopulationSize {
		return invalid("tournament size must be in [1, %d]", search.PopulationSize)
	}
	if search.MutationProb < 0 || search.MutationProb > 1 {
		return invalid("mutation probability must be in [0, 1]")
	}
	if search.Lambda <= 0 {
		return invalid("lambda must be positive")
	}
	if search.MutationIntensity <= 0 {
		return invalid("mutation intensity must be positive")
	}

	if config.Robot.Class == "" {
		return invalid("robot class is required")
	}
	if config.Robot.Width < 2 || config.Robot.Height < 2 {
		return invalid("robot grid must be at least 2x2")
	}

	if config.World.File == "" {
		if config.World.Class == "" {
			return invalid("world class or world file is required")
		}
		if config.World.Length <= 0 {
			return invalid("world length must be positive")
		}
		if config.World.Freq < 0 || config.World.Freq > 1 {
			return invalid("bump frequency must be in [0, 1]")
		}
		if config.World.BumpHeight < 1 || config.World.BumpLength < 0 {
			return invalid("bump height must be positive and bump length non-negative")
		}
	}

	switch config.Ledger.Backend {
	case constants.LedgerMemory:
	case constants.LedgerSQLite:
		if config.Ledger.Path == "" {
			return invalid("sqlite ledger requires a path")
		}
	default:
		return invalid("unsupported ledger backend %q", config.Ledger.Backend)
	}

	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return invalid("log level: %v", err)
	}

	if config.Output.LogDir == "" {
		config.Output.LogDir = constants.DefaultLogDir
	}

	return nil
}

// Default returns a fresh default configuration
func Default() *types.Config {
	return getDefaultConfig()
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *types.Config {
	return &types.Config{
		Search: types.SearchConfig{
			Algorithm:         constants.DefaultAlgorithm,
			SimSteps:          constants.DefaultSimSteps,
			Evaluations:       constants.DefaultEvaluations,
			Workers:           constants.DefaultWorkers,
			PopulationSize:    constants.DefaultPopulationSize,
			MutationProb:      constants.DefaultMutationProb,
			Lambda:            constants.DefaultLambda,
			MutationIntensity: constants.DefaultMutationIntensity,
			TournamentSize:    constants.DefaultTournamentSize,
		},
		Output: types.OutputConfig{
			LogDir: constants.DefaultLogDir,
			Prefix: constants.DefaultPrefix,
		},
		Robot: types.RobotConfig{
			Class:  constants.DefaultRobotClass,
			Width:  constants.DefaultRobotWidth,
			Height: constants.DefaultRobotHeight,
		},
		World: types.WorldConfig{
			Class:      constants.DefaultWorldClass,
			Length:     constants.DefaultWorldLength,
			Freq:       constants.DefaultWorldFreq,
			BumpHeight: constants.DefaultWorldBumpHeight,
			BumpLength: constants.DefaultWorldBumpLength,
		},
		Ledger: types.LedgerConfig{
			Backend: constants.DefaultLedger,
			Path:    constants.DefaultLedgerPath,
		},
		Log: types.LogConfig{
			Level: constants.DefaultLogLevel,
		},
	}
}

// CreateDefaultConfig creates a default configuration file
func CreateDefaultConfig(path string) error {
	manager := NewManager()
	return manager.Save(path)
}
