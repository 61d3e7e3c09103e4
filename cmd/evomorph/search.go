package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/config"
	"github.com/ishanwen-byte/evomorph/pkg/database"
	"github.com/ishanwen-byte/evomorph/pkg/evaluator"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/search"
	"github.com/ishanwen-byte/evomorph/pkg/world"
)

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	var (
		simSteps, evaluations     int
		algorithm, logDir, prefix string
	)
	fs.IntVar(&simSteps, "s", constants.DefaultSimSteps, "number of simulation steps")
	fs.IntVar(&simSteps, "sim_step", constants.DefaultSimSteps, "number of simulation steps")
	fs.IntVar(&evaluations, "e", constants.DefaultEvaluations, "number of evaluations")
	fs.IntVar(&evaluations, "evo_step", constants.DefaultEvaluations, "number of evaluations")
	fs.StringVar(&algorithm, "A", constants.DefaultAlgorithm, "search algorithm: random|ES|GA")
	fs.StringVar(&algorithm, "search_algorithm", constants.DefaultAlgorithm, "search algorithm: random|ES|GA")
	fs.StringVar(&logDir, "d", constants.DefaultLogDir, "directory to save log files")
	fs.StringVar(&logDir, "logdir", constants.DefaultLogDir, "directory to save log files")
	fs.StringVar(&prefix, "p", constants.DefaultPrefix, "prefix string for log files")
	fs.StringVar(&prefix, "prefix", constants.DefaultPrefix, "prefix string for log files")
	numprocs := fs.Int("numprocs", constants.DefaultWorkers, "number of parallel evaluations")
	seed := fs.Int64("seed", 0, "random seed (0 picks one from the clock)")
	ledgerKind := fs.String("ledger", constants.DefaultLedger, "run ledger backend: memory|sqlite")
	dbPath := fs.String("db-path", constants.DefaultLedgerPath, "sqlite ledger path")
	verbose := fs.Bool("v", false, "debug logging")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "s", "sim_step":
			cfg.Search.SimSteps = simSteps
		case "e", "evo_step":
			cfg.Search.Evaluations = evaluations
		case "A", "search_algorithm":
			cfg.Search.Algorithm = algorithm
		case "d", "logdir":
			cfg.Output.LogDir = logDir
		case "p", "prefix":
			cfg.Output.Prefix = prefix
		case "numprocs":
			cfg.Search.Workers = *numprocs
		case "seed":
			cfg.Search.Seed = *seed
		case "ledger":
			cfg.Ledger.Backend = *ledgerKind
		case "db-path":
			cfg.Ledger.Path = *dbPath
		case "v":
			if *verbose {
				cfg.Log.Level = logrus.DebugLevel.String()
			}
		}
	})

	switch len(positional) {
	case 0:
	case 2:
		cfg.Robot.Class = positional[1]
		fallthrough
	case 1:
		if target := positional[0]; strings.HasSuffix(target, ".json") {
			cfg.World.File = target
		} else {
			cfg.World.Class = target
			cfg.World.File = ""
		}
	default:
		return fmt.Errorf("expected at most 2 arguments (world and robot), got %d", len(positional))
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	_, err = searchRun(ctx, cfg, logger, stdout)
	return err
}

// parseInterleaved parses args allowing flags before, between and after the
// positional arguments, which it returns in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// loadConfig reads path if given, then the default file if present,
// otherwise the defaults with environment overrides.
func loadConfig(path string) (*types.Config, error) {
	manager := config.NewManager()
	if path == "" {
		if _, err := os.Stat(constants.DefaultConfigFile); err == nil {
			path = constants.DefaultConfigFile
		}
	}
	if path != "" {
		if err := manager.Load(path); err != nil {
			return nil, err
		}
		return manager.GetConfig(), nil
	}
	if err := manager.LoadEnv(); err != nil {
		return nil, err
	}
	return manager.GetConfig(), nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}

// searchRun executes one search described by a validated configuration and
// returns the run summary.
func searchRun(ctx context.Context, cfg *types.Config, logger *logrus.Logger, stdout io.Writer) (types.RunSummary, error) {
	seed := cfg.Search.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if err := os.MkdirAll(cfg.Output.LogDir, 0755); err != nil {
		return types.RunSummary{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	prefix := filepath.Join(cfg.Output.LogDir, fmt.Sprintf("%s_%s_%s",
		cfg.Output.Prefix, cfg.Search.Algorithm, time.Now().Format(constants.RunTimestampLayout)))

	w, worldFile, err := prepareWorld(cfg.World, rng, prefix, stdout)
	if err != nil {
		return types.RunSummary{}, err
	}
	if setter, ok := w.(world.LoggerSetter); ok {
		setter.SetLogger(logger)
	}

	kind, err := robot.Lookup(cfg.Robot.Class)
	if err != nil {
		return types.RunSummary{}, err
	}

	runner, err := evaluator.NewRunner(evaluator.New(logger), cfg.Search.Workers, logger)
	if err != nil {
		return types.RunSummary{}, err
	}
	engine, err := search.NewEngine(search.OptionsFromConfig(cfg, prefix), kind, w, runner, rng, logger)
	if err != nil {
		return types.RunSummary{}, err
	}

	ledger, err := database.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return types.RunSummary{}, err
	}
	defer ledger.Close()

	record := types.RunRecord{
		ID:        uuid.New().String(),
		Algorithm: cfg.Search.Algorithm,
		Prefix:    prefix,
		Seed:      seed,
		World:     worldFile,
		Robot:     kind.Class,
		StartedAt: time.Now(),
	}
	if err := ledger.StartRun(ctx, record); err != nil {
		return types.RunSummary{}, fmt.Errorf("failed to record run start: %w", err)
	}
	engine.AddObserver(database.NewRecorder(ctx, ledger, record.ID, logger))

	logger.WithFields(logrus.Fields{
		"run_id": record.ID,
		"prefix": prefix,
		"seed":   seed,
		"world":  worldFile,
		"robot":  kind.Class,
	}).Info("Run started")

	result, err := engine.Run(ctx, cfg.Search.Algorithm)
	if err != nil {
		return types.RunSummary{}, err
	}

	summary := database.NewSummary(record.ID, result)
	if err := ledger.FinishRun(ctx, record.ID, summary); err != nil {
		logger.WithError(err).Warn("Failed to record run summary")
	}
	if err := database.WriteSummary(database.SummaryPath(prefix), summary); err != nil {
		return summary, err
	}

	fmt.Fprintf(stdout, "Simulation times: avg: %v, max: %v, min: %v\n",
		summary.Timing.Mean, summary.Timing.Max, summary.Timing.Min)
	return summary, nil
}

// prepareWorld loads a saved world or generates a new one and saves it next
// to the run's robot files. It returns the world and the file it lives in.
func prepareWorld(cfg types.WorldConfig, rng *rand.Rand, prefix string, stdout io.Writer) (world.World, string, error) {
	if cfg.File != "" {
		fmt.Fprintf(stdout, "Loading world from file %s.\n", cfg.File)
		w, err := world.LoadFile(cfg.File)
		if err != nil {
			return nil, "", err
		}
		return w, cfg.File, nil
	}

	fmt.Fprintf(stdout, "Creating new world from class %s.\n", cfg.Class)
	kind, err := world.Lookup(cfg.Class)
	if err != nil {
		return nil, "", err
	}
	w, err := kind.Random(rng, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate world: %w", err)
	}

	path := prefix + constants.WorldFileSuffix
	if err := w.Save(path); err != nil {
		return nil, "", fmt.Errorf("failed to save world: %w", err)
	}
	return w, path, nil
}
