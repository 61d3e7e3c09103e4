package main

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/pkg/config"
	"github.com/ishanwen-byte/evomorph/pkg/database"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SEARCH_ALGORITHM", "SIM_STEP", "EVO_STEP", "NUMPROCS", "SEED",
		"LOGDIR", "PREFIX", "LEDGER_BACKEND", "LEDGER_PATH", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func glob(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	sort.Strings(matches)
	return matches
}

func TestSearchCommand(t *testing.T) {
	for _, algorithm := range []string{constants.AlgorithmRandom, constants.AlgorithmES, constants.AlgorithmGA} {
		t.Run(algorithm, func(t *testing.T) {
			clearEnv(t)
			logDir := t.TempDir()
			var out bytes.Buffer

			err := run(context.Background(), []string{
				"search",
				"-A", algorithm,
				"-e", "24",
				"-s", "30",
				"-d", logDir,
				"-p", "test",
				"--numprocs", "3",
				"--seed", "7",
				"--ledger", constants.LedgerSQLite,
				"--db-path", filepath.Join(t.TempDir(), "ledger.db"),
				"line", "voxel",
			}, &out)
			require.NoError(t, err)

			assert.Contains(t, out.String(), "Creating new world from class line.")
			assert.Contains(t, out.String(), "Simulation times: avg:")

			worlds := glob(t, filepath.Join(logDir, "test_"+algorithm+"_*"+constants.WorldFileSuffix))
			require.Len(t, worlds, 1)
			robots := glob(t, filepath.Join(logDir, "test_"+algorithm+"_*_robot_*.json"))
			require.NotEmpty(t, robots)
			summaries := glob(t, filepath.Join(logDir, "test_"+algorithm+"_*"+constants.SummaryFileSuffix))
			require.Len(t, summaries, 1)

			summary, err := database.LoadSummary(summaries[0])
			require.NoError(t, err)
			assert.Equal(t, algorithm, summary.Algorithm)
			assert.GreaterOrEqual(t, summary.Evaluations, 24)
			assert.Equal(t, summary.Evaluations, summary.Timing.Count)
			assert.Len(t, robots, summary.Improvements)

			// The last robot file is the best one; replaying it reproduces its score.
			var replay bytes.Buffer
			require.NoError(t, run(context.Background(), []string{"replay", "-s", "30", worlds[0], robots[len(robots)-1]}, &replay))
			assert.Contains(t, replay.String(), "Score: ")
		})
	}
}

func TestSearchLoadsSavedWorld(t *testing.T) {
	clearEnv(t)
	logDir := t.TempDir()

	var first bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-e", "4", "-s", "10", "-d", logDir, "-p", "a", "--numprocs", "2", "--seed", "3"}, &first))
	worlds := glob(t, filepath.Join(logDir, "a_random_*"+constants.WorldFileSuffix))
	require.Len(t, worlds, 1)

	var second bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-e", "4", "-s", "10", "-d", logDir, "-p", "b", "--numprocs", "2", worlds[0]}, &second))
	assert.Contains(t, second.String(), "Loading world from file "+worlds[0])
	assert.Empty(t, glob(t, filepath.Join(logDir, "b_random_*"+constants.WorldFileSuffix)), "loaded worlds are not saved again")
}

func TestSearchAcceptsFlagsAfterArguments(t *testing.T) {
	clearEnv(t)
	logDir := t.TempDir()

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"line", "voxel",
		"-A", constants.AlgorithmGA,
		"-e", "20",
		"-s", "10",
		"-d", logDir,
		"-p", "late",
		"--numprocs", "2",
		"--seed", "5",
	}, &out)
	require.NoError(t, err)

	summaries := glob(t, filepath.Join(logDir, "late_"+constants.AlgorithmGA+"_*"+constants.SummaryFileSuffix))
	require.Len(t, summaries, 1)
	summary, err := database.LoadSummary(summaries[0])
	require.NoError(t, err)
	assert.Equal(t, constants.AlgorithmGA, summary.Algorithm)
	assert.GreaterOrEqual(t, summary.Evaluations, 20)

	// Flags between the two file arguments of replay.
	worlds := glob(t, filepath.Join(logDir, "late_*"+constants.WorldFileSuffix))
	require.Len(t, worlds, 1)
	robots := glob(t, filepath.Join(logDir, "late_*_robot_*.json"))
	require.NotEmpty(t, robots)
	var replay bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"replay", worlds[0], "-s", "10", robots[0]}, &replay))
	assert.Contains(t, replay.String(), "Score: ")
}

func TestSearchRejectsUnknownAlgorithm(t *testing.T) {
	clearEnv(t)
	logDir := filepath.Join(t.TempDir(), "log")

	err := run(context.Background(), []string{"-A", "annealing", "-d", logDir}, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.NoDirExists(t, logDir, "configuration faults surface before any work")
}

func TestSearchRejectsExtraArguments(t *testing.T) {
	clearEnv(t)
	err := run(context.Background(), []string{"search", "line", "voxel", "extra"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSearchRejectsUnknownRobot(t *testing.T) {
	clearEnv(t)
	err := run(context.Background(), []string{"-e", "2", "-d", t.TempDir(), "line", "tentacle"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestReplayNeedsTwoFiles(t *testing.T) {
	err := run(context.Background(), []string{"replay", "world.json"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "evomorph.yaml")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"config", "-o", path}, &out))
	assert.Contains(t, out.String(), path)

	manager := config.NewManager()
	require.NoError(t, manager.Load(path))
	assert.Equal(t, constants.DefaultSimSteps, manager.GetConfig().Search.SimSteps)
}

func TestVersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &out))
	assert.Contains(t, out.String(), constants.Version)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "replay")
}
