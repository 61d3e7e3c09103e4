package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ishanwen-byte/evomorph/internal/constants"
)

// Voxel materials
const (
	Empty = iota
	Rigid
	Soft
	HorizontalActuator
	VerticalActuator

	numMaterials = 5
)

// VoxelClass is the registry tag of the sinusoidally actuated voxel robot
const VoxelClass = "voxel"

func init() {
	Register(Kind{
		Class: VoxelClass,
		Random: func(rng *rand.Rand, c Constraints) (Robot, error) {
			return RandomVoxel(rng, c)
		},
		Decode: func(data []byte) (Robot, error) {
			return DecodeVoxel(data)
		},
	})
}

// VoxelRobot drives every actuator with a phase-shifted sine wave
type VoxelRobot struct {
	shape Grid
}

type voxelFile struct {
	Class string `json:"class"`
	Shape Grid   `json:"shape"`
}

// NewVoxel wraps an existing structure without validating it
func NewVoxel(shape Grid) *VoxelRobot {
	return &VoxelRobot{shape: shape.Copy()}
}

// RandomVoxel samples uniformly random structures until one is valid
func RandomVoxel(rng *rand.Rand, c Constraints) (*VoxelRobot, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid robot constraints %dx%d", c.Width, c.Height)
	}

	r := &VoxelRobot{}
	for attempt := 0; attempt < constants.MaxAttempts; attempt++ {
		shape := make(Grid, c.Height)
		for i := range shape {
			shape[i] = make([]int, c.Width)
			for j := range shape[i] {
				shape[i][j] = rng.Intn(numMaterials)
			}
		}
		r.shape = shape
		if r.Valid() {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: no valid random robot after %d tries", ErrInvalidIndividual, constants.MaxAttempts)
}

// DecodeVoxel parses the JSON produced by Save
func DecodeVoxel(data []byte) (*VoxelRobot, error) {
	var file voxelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse voxel robot: %w", err)
	}
	if file.Class != VoxelClass {
		return nil, fmt.Errorf("invalid robot file: class %q is not %q", file.Class, VoxelClass)
	}
	if len(file.Shape) == 0 || len(file.Shape[0]) == 0 {
		return nil, fmt.Errorf("invalid robot file: empty shape")
	}
	width := len(file.Shape[0])
	for i, row := range file.Shape {
		if len(row) != width {
			return nil, fmt.Errorf("invalid robot file: row %d has %d columns, want %d", i, len(row), width)
		}
		for j, cell := range row {
			if cell < Empty || cell >= numMaterials {
				return nil, fmt.Errorf("invalid robot file: unknown material %d at (%d, %d)", cell, i, j)
			}
		}
	}
	return &VoxelRobot{shape: file.Shape}, nil
}

func (r *VoxelRobot) Class() string {
	return VoxelClass
}

func (r *VoxelRobot) Body() Grid {
	return r.shape.Copy()
}

// Valid reports whether the body is one 4-connected piece with at least one actuator
func (r *VoxelRobot) Valid() bool {
	return r.countActuators() > 0 && IsConnected(r.shape)
}

func (r *VoxelRobot) countActuators() int {
	count := 0
	for _, row := range r.shape {
		for _, cell := range row {
			if cell == HorizontalActuator || cell == VerticalActuator {
				count++
			}
		}
	}
	return count
}

// Actions returns sin(t/3 + 0.1*i) + 1 for the i-th actuator in row-major order
func (r *VoxelRobot) Actions(t int) []float64 {
	n := r.countActuators()
	actions := make([]float64, n)
	for i := range actions {
		actions[i] = math.Sin(float64(t)/3+float64(i)*0.1) + 1
	}
	return actions
}

func (r *VoxelRobot) Copy() Robot {
	return &VoxelRobot{shape: r.shape.Copy()}
}

// Mutate rewrites size random cells, retrying each one until the body stays valid
func (r *VoxelRobot) Mutate(rng *rand.Rand, size int) error {
	height, width := len(r.shape), len(r.shape[0])

	for n := 0; n < size; n++ {
		mutated := false
		for attempt := 0; attempt < constants.MaxAttempts; attempt++ {
			i, j := rng.Intn(height), rng.Intn(width)
			old := r.shape[i][j]
			r.shape[i][j] = rng.Intn(numMaterials)
			if r.Valid() {
				mutated = true
				break
			}
			r.shape[i][j] = old
		}
		if !mutated {
			return fmt.Errorf("%w: no valid mutation after %d tries", ErrInvalidIndividual, constants.MaxAttempts)
		}
	}
	return nil
}

// Crossover splits both parents after a random row. The first valid child is
// returned; if none appears within the attempt budget a copy of r is returned.
func (r *VoxelRobot) Crossover(rng *rand.Rand, mate Robot) (Robot, error) {
	other := mate.Body()
	if len(other) != len(r.shape) || len(other[0]) != len(r.shape[0]) {
		return nil, fmt.Errorf("cannot cross %dx%d robot with %dx%d robot",
			len(r.shape), len(r.shape[0]), len(other), len(other[0]))
	}

	height := len(r.shape)
	if height < 2 {
		return r.Copy(), nil
	}
	for attempt := 0; attempt < constants.MaxAttempts; attempt++ {
		cut := rng.Intn(height - 1)

		child1 := &VoxelRobot{shape: make(Grid, height)}
		child2 := &VoxelRobot{shape: make(Grid, height)}
		for i := 0; i < height; i++ {
			if i > cut {
				child1.shape[i] = append([]int(nil), r.shape[i]...)
				child2.shape[i] = append([]int(nil), other[i]...)
			} else {
				child1.shape[i] = append([]int(nil), other[i]...)
				child2.shape[i] = append([]int(nil), r.shape[i]...)
			}
		}

		if child1.Valid() {
			return child1, nil
		}
		if child2.Valid() {
			return child2, nil
		}
	}
	return r.Copy(), nil
}

// Save writes compact JSON: {"class":"voxel","shape":[[...],...]}
func (r *VoxelRobot) Save(path string) error {
	data, err := json.Marshal(voxelFile{Class: VoxelClass, Shape: r.shape})
	if err != nil {
		return fmt.Errorf("failed to marshal robot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write robot file: %w", err)
	}
	return nil
}

// IsConnected reports whether the non-empty cells form exactly one 4-connected component
func IsConnected(shape Grid) bool {
	g := simple.NewUndirectedGraph()
	width := 0
	if len(shape) > 0 {
		width = len(shape[0])
	}
	id := func(i, j int) int64 { return int64(i*width + j) }

	for i, row := range shape {
		for j, cell := range row {
			if cell == Empty {
				continue
			}
			if g.Node(id(i, j)) == nil {
				g.AddNode(simple.Node(id(i, j)))
			}
			// Link to the up and left neighbours, which were already visited.
			if i > 0 && shape[i-1][j] != Empty {
				g.SetEdge(g.NewEdge(simple.Node(id(i-1, j)), simple.Node(id(i, j))))
			}
			if j > 0 && row[j-1] != Empty {
				g.SetEdge(g.NewEdge(simple.Node(id(i, j-1)), simple.Node(id(i, j))))
			}
		}
	}

	if g.Nodes().Len() == 0 {
		return false
	}
	return len(topo.ConnectedComponents(g)) == 1
}
