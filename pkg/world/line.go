package world

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
)

// LineClass is the registry tag of the bumpy line world
const LineClass = "line"

// Solid marks a floor voxel
const Solid = 5

// Surrogate dynamics. Actuator strokes push the body forward, vertical
// strokes build up a hop that lets it climb floor steps.
const (
	damping     = 0.8
	driveGain   = 0.6
	airborneH   = 0.5
	softDrag    = 0.02
	liftGain    = 1.5
	liftDecay   = 0.7
	climbMargin = 0.5
)

func init() {
	Register(Kind{
		Class: LineClass,
		Random: func(rng *rand.Rand, params types.WorldConfig) (World, error) {
			return RandomLine(rng, params)
		},
		Decode: func(data []byte) (World, error) {
			return DecodeLine(data)
		},
	})
}

// LineWorld is a flat line with a few rectangular bumps. The goal of the
// robot is to travel as far right as possible.
type LineWorld struct {
	floor   robot.Grid
	heights []int

	robot robot.Robot
	body  robot.Grid
	sim   *simulation

	logger *logrus.Logger
}

type simulation struct {
	t     int
	x     float64
	vx    float64
	hop   float64
	prev  []float64
	kinds []int
	grip  []bool

	mass     float64
	soft     float64
	width    int
	centroid float64
}

type lineFile struct {
	Class string     `json:"class"`
	Floor robot.Grid `json:"floor"`
}

// NewLine builds a world from floor rows ordered top to bottom
func NewLine(floor robot.Grid) (*LineWorld, error) {
	if len(floor) == 0 || len(floor[0]) == 0 {
		return nil, fmt.Errorf("floor must not be empty")
	}
	width := len(floor[0])
	heights := make([]int, width)
	for _, row := range floor {
		if len(row) != width {
			return nil, fmt.Errorf("floor rows must all have %d columns", width)
		}
		for j, cell := range row {
			if cell == Solid {
				heights[j]++
			}
		}
	}
	// The base row is ground level.
	for j := range heights {
		if heights[j] > 0 {
			heights[j]--
		}
	}

	return &LineWorld{
		floor:   floor.Copy(),
		heights: heights,
		logger:  logrus.New(),
	}, nil
}

// RandomLine generates a floor of params.Length columns. Past column 5 each
// column starts a bump with probability params.Freq.
func RandomLine(rng *rand.Rand, params types.WorldConfig) (*LineWorld, error) {
	if params.Length <= 0 || params.BumpHeight < 1 || params.BumpLength < 0 {
		return nil, fmt.Errorf("invalid line world parameters: %+v", params)
	}

	rows := params.BumpHeight + 1
	floor := make(robot.Grid, rows)
	for i := range floor {
		floor[i] = make([]int, params.Length)
	}
	for j := range floor[rows-1] {
		floor[rows-1][j] = Solid
	}

	for i := 0; i < params.Length; i++ {
		if i > 5 && rng.Float64() < params.Freq {
			end := i + rng.Intn(params.BumpLength+1)
			if end > params.Length {
				end = params.Length
			}
			height := 2 + rng.Intn(params.BumpHeight)
			for r := rows - height; r < rows; r++ {
				for c := i; c < end; c++ {
					floor[r][c] = Solid
				}
			}
		}
	}

	return NewLine(floor)
}

// DecodeLine parses the JSON produced by Save
func DecodeLine(data []byte) (*LineWorld, error) {
	var file lineFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse line world: %w", err)
	}
	if file.Class != LineClass {
		return nil, fmt.Errorf("invalid world file: class %q is not %q", file.Class, LineClass)
	}
	return NewLine(file.Floor)
}

func (w *LineWorld) Class() string {
	return LineClass
}

// Heights returns the bump height of every floor column above ground level
func (w *LineWorld) Heights() []int {
	return append([]int(nil), w.heights...)
}

func (w *LineWorld) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Quiet discards the world's log output until restore is called
func (w *LineWorld) Quiet() func() {
	previous := w.logger.Out
	w.logger.SetOutput(io.Discard)
	return func() {
		w.logger.SetOutput(previous)
	}
}

func (w *LineWorld) Restart() error {
	w.robot = nil
	w.body = nil
	w.sim = nil
	return nil
}

func (w *LineWorld) Bind(r robot.Robot) error {
	if r == nil {
		return fmt.Errorf("cannot bind nil robot")
	}
	if w.robot != nil {
		return fmt.Errorf("world already holds a robot; restart it first")
	}

	body := r.Body()
	if len(body) == 0 || len(body[0]) == 0 {
		return fmt.Errorf("robot has an empty body")
	}
	w.robot = r
	w.body = body
	return nil
}

func (w *LineWorld) Reset() error {
	if w.robot == nil {
		return fmt.Errorf("cannot reset world: %w", ErrNoRobot)
	}

	sim := &simulation{width: len(w.body[0])}
	bottom := w.bottomRows()
	columns := 0.0
	for i, row := range w.body {
		for j, cell := range row {
			switch cell {
			case robot.Empty:
				continue
			case robot.HorizontalActuator, robot.VerticalActuator:
				sim.kinds = append(sim.kinds, cell)
				sim.grip = append(sim.grip, bottom[j] == i)
			case robot.Soft:
				sim.soft++
			}
			sim.mass++
			columns += float64(j)
		}
	}
	if sim.mass == 0 {
		return fmt.Errorf("robot has no voxels")
	}
	sim.centroid = columns / sim.mass
	sim.prev = w.robot.Actions(0)
	if len(sim.prev) != len(sim.kinds) {
		return fmt.Errorf("robot reports %d actions for %d actuators", len(sim.prev), len(sim.kinds))
	}

	w.logger.WithFields(logrus.Fields{
		"voxels":    sim.mass,
		"actuators": len(sim.kinds),
		"columns":   len(w.heights),
	}).Debug("Initialized line world simulation")

	w.sim = sim
	return nil
}

// bottomRows maps each body column to its lowest occupied row, or -1
func (w *LineWorld) bottomRows() []int {
	bottom := make([]int, len(w.body[0]))
	for j := range bottom {
		bottom[j] = -1
		for i := len(w.body) - 1; i >= 0; i-- {
			if w.body[i][j] != robot.Empty {
				bottom[j] = i
				break
			}
		}
	}
	return bottom
}

func (w *LineWorld) Step() error {
	if w.sim == nil {
		return fmt.Errorf("cannot step world: %w", ErrNotReset)
	}
	s := w.sim
	s.t++

	actions := w.robot.Actions(s.t)
	if len(actions) != len(s.kinds) {
		return fmt.Errorf("robot reports %d actions for %d actuators", len(actions), len(s.kinds))
	}

	drive, lift := 0.0, 0.0
	for i, a := range actions {
		stroke := a - s.prev[i]
		s.prev[i] = a
		if stroke <= 0 {
			continue
		}
		switch s.kinds[i] {
		case robot.HorizontalActuator:
			if s.grip[i] {
				drive += stroke
			} else {
				drive += stroke * airborneH
			}
		case robot.VerticalActuator:
			lift += stroke
		}
	}

	s.vx = s.vx*damping + (driveGain*drive-softDrag*s.soft)/s.mass
	if s.vx < 0 {
		s.vx = 0
	}
	s.hop = s.hop*liftDecay + liftGain*lift/s.mass

	next := s.x + s.vx
	climb := w.heightAt(s.front(next)) - w.heightAt(s.front(s.x))
	if float64(climb) > s.hop+climbMargin {
		s.vx = 0
		return nil
	}
	s.x = next
	return nil
}

// front is the rightmost floor column under a body whose left edge is at x
func (s *simulation) front(x float64) int {
	return int(x) + s.width - 1
}

func (w *LineWorld) heightAt(column int) int {
	if column < 0 || column >= len(w.heights) {
		return 0
	}
	return w.heights[column]
}

// Score is the mean horizontal position of the robot's voxels
func (w *LineWorld) Score() (float64, error) {
	if w.sim == nil {
		return 0, fmt.Errorf("cannot score world: %w", ErrNotReset)
	}
	return w.sim.x + w.sim.centroid, nil
}

func (w *LineWorld) Release() {
	w.sim = nil
}

func (w *LineWorld) Clone() World {
	logger := logrus.New()
	logger.SetLevel(w.logger.GetLevel())
	logger.SetOutput(w.logger.Out)
	logger.SetFormatter(w.logger.Formatter)

	return &LineWorld{
		floor:   w.floor.Copy(),
		heights: append([]int(nil), w.heights...),
		logger:  logger,
	}
}

// Save writes compact JSON: {"class":"line","floor":[[...],...]}
func (w *LineWorld) Save(path string) error {
	data, err := json.Marshal(lineFile{Class: LineClass, Floor: w.floor})
	if err != nil {
		return fmt.Errorf("failed to marshal world: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write world file: %w", err)
	}
	return nil
}
