package main

import (
	"context"
	"fmt"
	"os"

	"tradesim/internal/cli"
)

// Set by ldflags at build time
var (
	Version   = ""
	BuildDate = ""
)

func main() {
	if Version != "" {
		cli.Version = Version
	}
	if BuildDate != "" {
		cli.BuildDate = BuildDate
	}

	root := cli.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
