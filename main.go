package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ekaya-inc/ekaya-intake/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		if !errors.Is(err, cli.ErrValidationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
