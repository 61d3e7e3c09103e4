package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
)

var (
	// ErrInvalidIndividual is returned when no valid robot could be produced within the attempt budget
	ErrInvalidIndividual = errors.New("invalid individual")

	// ErrUnknownClass is returned for class tags that have no registered kind
	ErrUnknownClass = errors.New("unknown robot class")
)

// Grid is a row-major voxel body plan
type Grid [][]int

// Copy returns a deep copy of the grid
func (g Grid) Copy() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Equal reports whether two grids have identical contents
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if len(g[i]) != len(other[i]) {
			return false
		}
		for j := range g[i] {
			if g[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Robot is the genome evolved by the search engine
type Robot interface {
	// Class is the registry tag written into serialized files
	Class() string
	// Body returns the voxel structure bound into a world
	Body() Grid
	// Actions returns actuator targets for simulation time t
	Actions(t int) []float64
	// Copy returns an independent robot with the same genome
	Copy() Robot
	// Mutate applies size elementary perturbations in place
	Mutate(rng *rand.Rand, size int) error
	// Crossover recombines the receiver with mate into a new robot
	Crossover(rng *rand.Rand, mate Robot) (Robot, error)
	// Save serializes the robot to path
	Save(path string) error
}

// Constraints bound randomly generated robots
type Constraints struct {
	Width  int
	Height int
}

// Kind creates robots of one encoding
type Kind struct {
	Class  string
	Random func(rng *rand.Rand, c Constraints) (Robot, error)
	Decode func(data []byte) (Robot, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Kind)
)

// Register makes a robot kind available by its class tag
func Register(kind Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if kind.Class == "" || kind.Random == nil || kind.Decode == nil {
		panic("robot: incomplete kind registration")
	}
	registry[kind.Class] = kind
}

// Lookup returns the kind registered under class
func Lookup(class string) (Kind, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kind, ok := registry[class]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return kind, nil
}

// Classes lists the registered class tags in sorted order
func Classes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	classes := make([]string, 0, len(registry))
	for class := range registry {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// LoadFile reads a serialized robot, resolving its kind from the embedded class tag
func LoadFile(path string) (Robot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read robot file: %w", err)
	}

	var header struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse robot file %s: %w", path, err)
	}

	kind, err := Lookup(header.Class)
	if err != nil {
		return nil, err
	}
	return kind.Decode(data)
}
