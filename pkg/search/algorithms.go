package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/selection"
)

// randomSearch samples Workers fresh robots per batch with no inheritance.
// The first batch always sets the initial best.
func randomSearch(ctx context.Context, s *session) error {
	for s.evaluations < s.opts.Evaluations {
		startTime := time.Now()

		batch := make([]robot.Robot, s.opts.Workers)
		for i := range batch {
			r, err := s.randomRobot()
			if err != nil {
				return err
			}
			batch[i] = r
		}

		fitness, err := s.evaluateBatch(ctx, batch)
		if err != nil {
			return err
		}
		s.evaluations += len(batch)

		best := selection.Best(fitness)
		improved, err := s.record(batch[best], fitness[best])
		if err != nil {
			return err
		}
		s.finishGeneration(batch, fitness, improved, startTime)
	}
	return nil
}

// evolutionStrategy is a (1+lambda) ES. The incumbent is evaluated once and
// only replaced by an offspring that strictly beats its recorded fitness.
func evolutionStrategy(ctx context.Context, s *session) error {
	startTime := time.Now()

	seed, err := s.randomRobot()
	if err != nil {
		return err
	}
	fitness, err := s.evaluateOne(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to evaluate seed robot: %w", err)
	}
	s.evaluations = 1
	if _, err := s.record(seed, fitness); err != nil {
		return err
	}
	s.finishGeneration([]robot.Robot{seed}, []float64{fitness}, true, startTime)

	for s.evaluations < s.opts.Evaluations {
		startTime := time.Now()

		incumbent := s.tracker.Best()
		offspring := make([]robot.Robot, s.opts.Lambda)
		for i := range offspring {
			child := incumbent.Copy()
			if err := child.Mutate(s.rng, s.opts.MutationIntensity); err != nil {
				return fmt.Errorf("failed to mutate offspring %d: %w", i, err)
			}
			offspring[i] = child
		}

		scores, err := s.evaluateBatch(ctx, offspring)
		if err != nil {
			return err
		}
		s.evaluations += len(offspring)

		best := selection.Best(scores)
		improved, err := s.record(offspring[best], scores[best])
		if err != nil {
			return err
		}
		s.finishGeneration(offspring, scores, improved, startTime)
	}
	return nil
}

// geneticAlgorithm is fully generational: each generation is replaced by
// PopulationSize offspring of tournament-selected parents. Only the
// best-ever individual survives outside the population, in the tracker.
func geneticAlgorithm(ctx context.Context, s *session) error {
	startTime := time.Now()

	population := make([]robot.Robot, s.opts.PopulationSize)
	for i := range population {
		r, err := s.randomRobot()
		if err != nil {
			return err
		}
		population[i] = r
	}

	fitness, err := s.evaluateBatch(ctx, population)
	if err != nil {
		return err
	}
	s.evaluations = len(population)

	best := selection.Best(fitness)
	improved, err := s.record(population[best], fitness[best])
	if err != nil {
		return err
	}
	s.finishGeneration(population, fitness, improved, startTime)

	for s.evaluations < s.opts.Evaluations {
		startTime := time.Now()

		next, err := s.breed(population, fitness)
		if err != nil {
			return err
		}
		population = next

		fitness, err = s.evaluateBatch(ctx, population)
		if err != nil {
			return err
		}
		s.evaluations += len(population)

		best := selection.Best(fitness)
		improved, err := s.record(population[best], fitness[best])
		if err != nil {
			return err
		}
		s.finishGeneration(population, fitness, improved, startTime)
	}
	return nil
}

// breed builds a replacement population of the same size. Each offspring is
// the crossover of two independent tournament winners, mutated once with
// probability MutationProb.
func (s *session) breed(population []robot.Robot, fitness []float64) ([]robot.Robot, error) {
	next := make([]robot.Robot, len(population))
	for i := range next {
		a, err := selection.Tournament(s.rng, fitness, s.opts.TournamentSize)
		if err != nil {
			return nil, err
		}
		b, err := selection.Tournament(s.rng, fitness, s.opts.TournamentSize)
		if err != nil {
			return nil, err
		}

		child, err := population[a].Crossover(s.rng, population[b])
		if err != nil {
			return nil, fmt.Errorf("failed to cross parents %d and %d: %w", a, b, err)
		}
		if s.rng.Float64() < s.opts.MutationProb {
			if err := child.Mutate(s.rng, constants.GAMutationSize); err != nil {
				return nil, fmt.Errorf("failed to mutate offspring %d: %w", i, err)
			}
		}
		next[i] = child
	}
	return next, nil
}
