package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ishanwen-byte/evomorph/internal/constants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, context.Canceled) {
			os.Exit(constants.ExitInterrupt)
		}
		os.Exit(constants.ExitError)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return runSearch(ctx, args, stdout)
	}

	switch args[0] {
	case "search":
		return runSearch(ctx, args[1:], stdout)
	case "replay":
		return runReplay(ctx, args[1:], stdout)
	case "config":
		return runConfig(args[1:], stdout)
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", constants.Name, constants.Version)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		// Flags and positional world/robot arguments go straight to search.
		return runSearch(ctx, args, stdout)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s %s - %s

usage:
  %[1]s [search] [options] [world] [robot]
      world is a world class (e.g. line) or a saved world .json file,
      robot is a robot class (e.g. voxel)
  %[1]s replay [options] <world file> <robot file>
  %[1]s config [-o path]
  %[1]s version
`, constants.Name, constants.Version, constants.Description)
}
