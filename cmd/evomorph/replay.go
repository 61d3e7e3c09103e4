package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/pkg/evaluator"
	"github.com/ishanwen-byte/evomorph/pkg/robot"
	"github.com/ishanwen-byte/evomorph/pkg/world"
)

// runReplay simulates a saved robot in a saved world and prints its score
func runReplay(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	var simSteps int
	fs.IntVar(&simSteps, "s", constants.DefaultSimSteps, "number of simulation steps")
	fs.IntVar(&simSteps, "sim_step", constants.DefaultSimSteps, "number of simulation steps")
	verbose := fs.Bool("v", false, "debug logging")
	files, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(files) != 2 {
		return fmt.Errorf("replay needs 2 arguments: world file and robot file")
	}

	level := constants.DefaultLogLevel
	if *verbose {
		level = "debug"
	}
	logger := newLogger(level)

	w, err := world.LoadFile(files[0])
	if err != nil {
		return err
	}
	if setter, ok := w.(world.LoggerSetter); ok {
		setter.SetLogger(logger)
	}
	r, err := robot.LoadFile(files[1])
	if err != nil {
		return err
	}

	result, err := evaluator.New(logger).Evaluate(ctx, evaluator.Task{Robot: r, World: w, Steps: simSteps})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Score: %v\n", result.Fitness)
	return nil
}
