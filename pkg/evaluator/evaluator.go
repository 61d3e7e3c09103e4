package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/world"
)

// ErrEvaluationFault marks a world that failed to restart, bind, reset, step or score a robot
var ErrEvaluationFault = errors.New("evaluation fault")

// Task is a single (robot, world, steps) evaluation request. The world must
// not be shared with any other task running at the same time.
type Task struct {
	Robot robot.Robot
	World world.World
	Steps int
}

// Evaluator runs one robot through a fixed-length simulation
type Evaluator struct {
	logger *logrus.Logger
}

// New creates a new Evaluator instance
func New(logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{logger: logger}
}

// Evaluate restarts the task's world, binds the robot, simulates task.Steps
// ticks and returns the score with the wall-clock duration, teardown
// included. The simulation handle is released on every path.
func (e *Evaluator) Evaluate(ctx context.Context, task Task) (result types.EvaluationResult, err error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if task.Robot == nil || task.World == nil {
		return result, fmt.Errorf("%w: task needs both a robot and a world", ErrEvaluationFault)
	}
	if task.Steps < 0 {
		return result, fmt.Errorf("%w: negative step count %d", ErrEvaluationFault, task.Steps)
	}

	w := task.World
	released := false
	release := func() {
		if !released {
			released = true
			w.Release()
		}
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: world panicked: %v", ErrEvaluationFault, r)
		}
	}()

	if err := w.Restart(); err != nil {
		return result, fault("restart", err)
	}
	if err := w.Bind(task.Robot); err != nil {
		return result, fault("bind", err)
	}
	if err := reset(w); err != nil {
		return result, fault("reset", err)
	}

	for i := 0; i < task.Steps; i++ {
		if err := w.Step(); err != nil {
			return result, fault(fmt.Sprintf("step %d", i), err)
		}
	}

	score, err := w.Score()
	if err != nil {
		return result, fault("score", err)
	}
	if math.IsNaN(score) {
		return result, fault("score", errors.New("world reported NaN fitness"))
	}

	release()
	result.Fitness = score
	result.Duration = time.Since(startTime)

	e.logger.WithFields(logrus.Fields{
		"fitness":  score,
		"steps":    task.Steps,
		"duration": result.Duration,
	}).Debug("Evaluation completed")

	return result, nil
}

// reset initializes the simulation with the world's diagnostics silenced
func reset(w world.World) error {
	if q, ok := w.(world.Quieter); ok {
		restore := q.Quiet()
		defer restore()
	}
	return w.Reset()
}

func fault(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrEvaluationFault, stage, err)
}
