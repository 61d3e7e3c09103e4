package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/evaluator"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/world"
)

// ErrUnknownAlgorithm is returned when Run is asked for an unregistered algorithm
var ErrUnknownAlgorithm = errors.New("unknown search algorithm")

// Options parameterizes a search run
type Options struct {
	// SimSteps is the number of simulation ticks per evaluation
	SimSteps int
	// Evaluations is the total evaluation budget
	Evaluations int
	// Workers is the batch size of random search and the worker pool size
	Workers int
	// Prefix is prepended to every persisted robot file
	Prefix string

	PopulationSize    int
	MutationProb      float64
	Lambda            int
	MutationIntensity int
	TournamentSize    int

	Constraints robot.Constraints
}

// OptionsFromConfig maps a loaded configuration onto engine options
func OptionsFromConfig(cfg *types.Config, prefix string) Options {
	return Options{
		SimSteps:          cfg.Search.SimSteps,
		Evaluations:       cfg.Search.Evaluations,
		Workers:           cfg.Search.Workers,
		Prefix:            prefix,
		PopulationSize:    cfg.Search.PopulationSize,
		MutationProb:      cfg.Search.MutationProb,
		Lambda:            cfg.Search.Lambda,
		MutationIntensity: cfg.Search.MutationIntensity,
		TournamentSize:    cfg.Search.TournamentSize,
		Constraints: robot.Constraints{
			Width:  cfg.Robot.Width,
			Height: cfg.Robot.Height,
		},
	}
}

func (o Options) validate(algorithm string) error {
	if o.SimSteps < 0 {
		return fmt.Errorf("simulation steps must not be negative")
	}
	if o.Evaluations <= 0 {
		return fmt.Errorf("evaluation budget must be positive")
	}
	switch algorithm {
	case constants.AlgorithmRandom:
		if o.Workers <= 0 {
			return fmt.Errorf("random search needs a positive batch size")
		}
	case constants.AlgorithmES:
		if o.Lambda <= 0 || o.MutationIntensity <= 0 {
			return fmt.Errorf("ES needs positive lambda and mutation intensity")
		}
	case constants.AlgorithmGA:
		if o.PopulationSize <= 0 {
			return fmt.Errorf("GA needs a positive population size")
		}
		if o.TournamentSize < 1 || o.TournamentSize > o.PopulationSize {
			return fmt.Errorf("tournament size %d outside [1, %d]", o.TournamentSize, o.PopulationSize)
		}
		if o.MutationProb < 0 || o.MutationProb > 1 {
			return fmt.Errorf("mutation probability %v outside [0, 1]", o.MutationProb)
		}
	}
	return nil
}

// algorithm drives one search loop over a session
type algorithm func(ctx context.Context, s *session) error

var algorithms = map[string]algorithm{
	constants.AlgorithmRandom: randomSearch,
	constants.AlgorithmES:     evolutionStrategy,
	constants.AlgorithmGA:     geneticAlgorithm,
}

// Algorithms lists the available algorithm names in sorted order
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of a completed run
type Result struct {
	Algorithm       string
	Best            robot.Robot
	BestFitness     float64
	LastImprovement int
	Evaluations     int
	Generations     int
	Improvements    []types.Improvement
	Statistics      *RunStatistics
	Duration        time.Duration
}

// Engine runs the search algorithms against one world
type Engine struct {
	opts      Options
	kind      robot.Kind
	world     world.World
	runner    *evaluator.Runner
	rng       *rand.Rand
	logger    *logrus.Logger
	observers []Observer
}

// NewEngine creates a search engine. The world is never evaluated directly;
// every task receives its own clone.
func NewEngine(opts Options, kind robot.Kind, w world.World, runner *evaluator.Runner, rng *rand.Rand, logger *logrus.Logger) (*Engine, error) {
	if kind.Random == nil {
		return nil, fmt.Errorf("robot kind %q cannot generate random robots", kind.Class)
	}
	if w == nil {
		return nil, fmt.Errorf("world is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		opts:   opts,
		kind:   kind,
		world:  w,
		runner: runner,
		rng:    rng,
		logger: logger,
	}, nil
}

// AddObserver registers an observer for improvements and generations
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// Run executes the named algorithm until the evaluation budget is spent.
// Evaluation and persistence faults abort the run.
func (e *Engine) Run(ctx context.Context, name string) (*Result, error) {
	run, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownAlgorithm, name, Algorithms())
	}
	if err := e.opts.validate(name); err != nil {
		return nil, fmt.Errorf("invalid options for %s: %w", name, err)
	}

	startTime := time.Now()
	s := &session{
		Engine:    e,
		algorithm: name,
		tracker:   NewBestTracker(e.opts.Prefix, e.logger),
		stats:     &RunStatistics{},
	}

	e.logger.WithFields(logrus.Fields{
		"algorithm":   name,
		"evaluations": e.opts.Evaluations,
		"sim_steps":   e.opts.SimSteps,
		"workers":     e.runner.Workers(),
	}).Info("Starting search")

	if err := run(ctx, s); err != nil {
		return nil, fmt.Errorf("%s search failed after %d evaluations: %w", name, s.evaluations, err)
	}

	result := &Result{
		Algorithm:       name,
		Best:            s.tracker.Best(),
		BestFitness:     s.tracker.Fitness(),
		LastImprovement: s.tracker.LastImprovement(),
		Evaluations:     s.evaluations,
		Generations:     s.generation,
		Improvements:    s.tracker.Improvements(),
		Statistics:      s.stats,
		Duration:        time.Since(startTime),
	}

	e.logger.WithFields(logrus.Fields{
		"algorithm":        name,
		"evaluations":      result.Evaluations,
		"best_fitness":     result.BestFitness,
		"last_improvement": result.LastImprovement,
		"duration":         result.Duration,
	}).Info("Search completed")

	return result, nil
}

// session is the mutable state of a single run
type session struct {
	*Engine
	algorithm   string
	tracker     *BestTracker
	stats       *RunStatistics
	evaluations int
	generation  int
}

func (s *session) randomRobot() (robot.Robot, error) {
	r, err := s.kind.Random(s.rng, s.opts.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random robot: %w", err)
	}
	return r, nil
}

func (s *session) task(r robot.Robot) evaluator.Task {
	return evaluator.Task{Robot: r, World: s.world.Clone(), Steps: s.opts.SimSteps}
}

// evaluateOne scores a single robot outside of any batch
func (s *session) evaluateOne(ctx context.Context, r robot.Robot) (float64, error) {
	result, err := s.runner.Evaluate(ctx, s.task(r))
	if err != nil {
		return 0, err
	}
	s.stats.Add(result.Duration)
	return result.Fitness, nil
}

// evaluateBatch scores robots as one parallel batch, returning aligned fitness
func (s *session) evaluateBatch(ctx context.Context, robots []robot.Robot) ([]float64, error) {
	tasks := make([]evaluator.Task, len(robots))
	for i, r := range robots {
		tasks[i] = s.task(r)
	}

	results, err := s.runner.RunBatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate generation %d: %w", s.generation, err)
	}

	fitness := make([]float64, len(results))
	for i, result := range results {
		fitness[i] = result.Fitness
		s.stats.Add(result.Duration)
	}
	return fitness, nil
}

// record offers a candidate to the tracker at the current evaluation count
func (s *session) record(candidate robot.Robot, fitness float64) (bool, error) {
	improved, err := s.tracker.RecordIfBetter(candidate, fitness, s.evaluations)
	if err != nil {
		return false, err
	}
	if improved {
		for _, o := range s.observers {
			o.OnImprovement(s.tracker.last())
		}
	}
	return improved, nil
}

// finishGeneration reports an evaluated batch and advances the generation counter
func (s *session) finishGeneration(population []robot.Robot, fitness []float64, improved bool, startTime time.Time) {
	report := &GenerationReport{
		Algorithm:   s.algorithm,
		Generation:  s.generation,
		Evaluations: s.evaluations,
		Fitness:     fitness,
		BestFitness: s.tracker.Fitness(),
		Improved:    improved,
		Duration:    time.Since(startTime),
		Population:  population,
	}

	s.logger.WithFields(logrus.Fields(report.Stats())).Debug("Generation completed")
	for _, o := range s.observers {
		o.OnGeneration(report)
	}
	s.generation++
}
