package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/ishanwen-byte/evomorph/internal/constants"
	"github.com/ishanwen-byte/evomorph/pkg/config"
)

// runConfig writes the default configuration file
func runConfig(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	output := fs.String("o", constants.DefaultConfigFile, "output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.CreateDefaultConfig(*output); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote default configuration to %s\n", *output)
	return nil
}
