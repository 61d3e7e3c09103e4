package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/evomorph/internal/types"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
)

var (
	// ErrUnknownClass is returned for class tags that have no registered kind
	ErrUnknownClass = errors.New("unknown world class")

	// ErrNoRobot is returned when simulation is requested before a robot is bound
	ErrNoRobot = errors.New("no robot bound")

	// ErrNotReset is returned when stepping or scoring before Reset
	ErrNotReset = errors.New("simulation not initialized")
)

// World is a simulation context a robot is evaluated in
type World interface {
	Class() string
	// Restart returns the world to its pristine baseline, dropping any bound robot
	Restart() error
	// Bind places a robot into the world
	Bind(r robot.Robot) error
	// Reset (re)initializes the simulation state for the bound robot
	Reset() error
	// Step advances the simulation by one tick
	Step() error
	// Score reads the scalar fitness of the bound robot
	Score() (float64, error)
	// Release drops the simulation handle
	Release()
	// Clone returns an independent world in its baseline state
	Clone() World
	// Save serializes the baseline world to path
	Save(path string) error
}

// Quieter is implemented by worlds that can silence their diagnostic output.
// The returned function restores the previous output.
type Quieter interface {
	Quiet() (restore func())
}

// LoggerSetter is implemented by worlds that accept an external logger
type LoggerSetter interface {
	SetLogger(logger *logrus.Logger)
}

// Kind creates worlds of one type
type Kind struct {
	Class  string
	Random func(rng *rand.Rand, params types.WorldConfig) (World, error)
	Decode func(data []byte) (World, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Kind)
)

// Register makes a world kind available by its class tag
func Register(kind Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if kind.Class == "" || kind.Random == nil || kind.Decode == nil {
		panic("world: incomplete kind registration")
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

// LoadFile reads a serialized world, resolving its kind from the embedded class tag
func LoadFile(path string) (World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}

	var header struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse world file %s: %w", path, err)
	}

	kind, err := Lookup(header.Class)
	if err != nil {
		return nil, err
	}
	return kind.Decode(data)
}
