package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/world"
)

// genomeRobot scores as the sum of its cells under scriptedWorld
type genomeRobot struct {
	cells []int
}

func (r *genomeRobot) Class() string { return "genome" }
func (r *genomeRobot) Body() robot.Grid { return robot.Grid{append([]int(nil), r.cells...)} }
func (r *genomeRobot) Actions(int) []float64 { return nil }
func (r *genomeRobot) Copy() robot.Robot { return &genomeRobot{cells: append([]int(nil), r.cells...)} }
func (r *genomeRobot) Mutate(*rand.Rand, int) error { return nil }
func (r *genomeRobot) Save(string) error { return nil }
func (r *genomeRobot) Crossover(_ *rand.Rand, _ robot.Robot) (robot.Robot, error) {
	return r.Copy(), nil
}

// scriptedWorld records lifecycle calls and scores the bound genome sum plus
// whatever state leaked in from previous runs.
type scriptedWorld struct {
	calls        []string
	robot        robot.Robot
	steps        int
	live         bool
	failAt       string
	panicAt      string
	delay        time.Duration
	releaseDelay time.Duration
	nan          bool
	released     bool
	quieted      int
}

func (w *scriptedWorld) record(call string) error {
	w.calls = append(w.calls, call)
	if w.panicAt == call {
		panic("simulator crashed")
	}
	if w.failAt == call {
		return fmt.Errorf("%s failed", call)
	}
	return nil
}

func (w *scriptedWorld) Class() string { return "scripted" }

func (w *scriptedWorld) Restart() error {
	w.robot = nil
	w.steps = 0
	w.live = false
	return w.record("restart")
}

func (w *scriptedWorld) Bind(r robot.Robot) error {
	if w.robot != nil {
		return errors.New("robot already bound")
	}
	w.robot = r
	return w.record("bind")
}

func (w *scriptedWorld) Reset() error {
	w.live = true
	return w.record("reset")
}

func (w *scriptedWorld) Step() error {
	if !w.live {
		return world.ErrNotReset
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.steps++
	if w.failAt == "step" && w.steps == 3 {
		return errors.New("step exploded")
	}
	return nil
}

func (w *scriptedWorld) Score() (float64, error) {
	if err := w.record("score"); err != nil {
		return 0, err
	}
	if w.nan {
		return math.NaN(), nil
	}
	sum := 0
	for _, cell := range w.robot.Body()[0] {
		sum += cell
	}
	return float64(sum) + float64(w.steps)/1000, nil
}

func (w *scriptedWorld) Release() {
	time.Sleep(w.releaseDelay)
	w.released = true
	w.live = false
	w.calls = append(w.calls, "release")
}

func (w *scriptedWorld) Clone() world.World { return &scriptedWorld{failAt: w.failAt, delay: w.delay} }
func (w *scriptedWorld) Save(string) error { return nil }
func (w *scriptedWorld) Quiet() (restore func()) {
	w.quieted++
	return func() {}
}

func TestEvaluateLifecycleOrder(t *testing.T) {
	w := &scriptedWorld{}
	e := New(nil)

	result, err := e.Evaluate(context.Background(), Task{
		Robot: &genomeRobot{cells: []int{1, 2, 3}},
		World: w,
		Steps: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"restart", "bind", "reset", "score", "release"}, w.calls)
	assert.Equal(t, 10, w.steps)
	assert.InDelta(t, 6.01, result.Fitness, 1e-9)
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
	assert.Equal(t, 1, w.quieted, "reset must run with diagnostics silenced")
}

func TestEvaluateReusesWorldSafely(t *testing.T) {
	w := &scriptedWorld{}
	e := New(nil)
	task := Task{Robot: &genomeRobot{cells: []int{4, 4}}, World: w, Steps: 5}

	first, err := e.Evaluate(context.Background(), task)
	require.NoError(t, err)

	// Leave a robot bound as if a previous caller crashed halfway.
	w.robot = &genomeRobot{cells: []int{100}}

	second, err := e.Evaluate(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, first.Fitness, second.Fitness)
}

func TestEvaluateFaults(t *testing.T) {
	for _, stage := range []string{"restart", "bind", "reset", "step", "score"} {
		t.Run(stage, func(t *testing.T) {
			w := &scriptedWorld{failAt: stage}
			_, err := New(nil).Evaluate(context.Background(), Task{
				Robot: &genomeRobot{cells: []int{1}},
				World: w,
				Steps: 10,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEvaluationFault)
			assert.True(t, w.released, "simulation handle must be released on faults")
		})
	}
}

func TestEvaluateRejectsNaNScore(t *testing.T) {
	w := &scriptedWorld{nan: true}
	_, err := New(nil).Evaluate(context.Background(), Task{
		Robot: &genomeRobot{cells: []int{1}},
		World: w,
		Steps: 2,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationFault)
	assert.Contains(t, err.Error(), "NaN")
	assert.True(t, w.released)
}

func TestEvaluateDurationIncludesRelease(t *testing.T) {
	w := &scriptedWorld{releaseDelay: 20 * time.Millisecond}
	result, err := New(nil).Evaluate(context.Background(), Task{
		Robot: &genomeRobot{cells: []int{1}},
		World: w,
		Steps: 1,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Duration, w.releaseDelay)
	assert.Equal(t, 1, countOf(w.calls, "release"), "release runs exactly once")
}

func countOf(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestEvaluatePanicBecomesFault(t *testing.T) {
	w := &scriptedWorld{panicAt: "reset"}
	_, err := New(nil).Evaluate(context.Background(), Task{
		Robot: &genomeRobot{cells: []int{1}},
		World: w,
		Steps: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationFault)
	assert.Contains(t, err.Error(), "simulator crashed")
	assert.True(t, w.released)
}

func TestEvaluateRejectsIncompleteTask(t *testing.T) {
	_, err := New(nil).Evaluate(context.Background(), Task{World: &scriptedWorld{}})
	assert.ErrorIs(t, err, ErrEvaluationFault)

	_, err = New(nil).Evaluate(context.Background(), Task{Robot: &genomeRobot{}, World: &scriptedWorld{}, Steps: -1})
	assert.ErrorIs(t, err, ErrEvaluationFault)
}

func TestEvaluateHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &scriptedWorld{}
	_, err := New(nil).Evaluate(ctx, Task{Robot: &genomeRobot{cells: []int{1}}, World: w, Steps: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.calls)
}

func batchTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Robot: &genomeRobot{cells: []int{i, i}},
			World: &scriptedWorld{delay: time.Duration((n-i)%4) * time.Millisecond},
			Steps: 4,
		}
	}
	return tasks
}

func TestRunBatchPreservesOrder(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			runner, err := NewRunner(New(nil), workers, nil)
			require.NoError(t, err)

			tasks := batchTasks(24)
			results, err := runner.RunBatch(context.Background(), tasks)
			require.NoError(t, err)
			require.Len(t, results, len(tasks))

			for i, result := range results {
				assert.InDelta(t, float64(2*i)+0.004, result.Fitness, 1e-9, "slot %d", i)
			}
		})
	}
}

func TestRunBatchAbortsOnFault(t *testing.T) {
	runner, err := NewRunner(New(nil), 3, nil)
	require.NoError(t, err)

	tasks := batchTasks(9)
	tasks[4].World = &scriptedWorld{failAt: "bind"}

	results, err := runner.RunBatch(context.Background(), tasks)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrEvaluationFault)
	assert.Contains(t, err.Error(), "task 4")
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	const workers = 3
	var running, peak int64
	var mu sync.Mutex

	runner, err := NewRunner(New(nil), workers, nil)
	require.NoError(t, err)

	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = Task{
			Robot: &genomeRobot{cells: []int{1}},
			World: &countingWorld{scriptedWorld: &scriptedWorld{}, running: &running, peak: &peak, mu: &mu},
			Steps: 1,
		}
	}

	_, err = runner.RunBatch(context.Background(), tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(workers))
	assert.Positive(t, atomic.LoadInt64(&peak))
}

func TestRunBatchEmpty(t *testing.T) {
	runner, err := NewRunner(New(nil), 2, nil)
	require.NoError(t, err)

	results, err := runner.RunBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(nil, 2, nil)
	assert.Error(t, err)

	_, err = NewRunner(New(nil), 0, nil)
	assert.Error(t, err)
}

// countingWorld tracks how many evaluations are inside Reset..Release at once
type countingWorld struct {
	*scriptedWorld
	running *int64
	peak    *int64
	mu      *sync.Mutex
}

func (w *countingWorld) Reset() error {
	now := atomic.AddInt64(w.running, 1)
	w.mu.Lock()
	if now > *w.peak {
		atomic.StoreInt64(w.peak, now)
	}
	w.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	return w.scriptedWorld.Reset()
}

func (w *countingWorld) Release() {
	atomic.AddInt64(w.running, -1)
	w.scriptedWorld.Release()
}

func BenchmarkRunBatch(b *testing.B) {
	runner, err := NewRunner(New(nil), 4, nil)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := runner.RunBatch(context.Background(), batchTasks(16)); err != nil {
			b.Fatal(err)
		}
	}
}
