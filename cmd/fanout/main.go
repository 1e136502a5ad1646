package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "fanout",
		Short:   "fanout — concurrent dispatch engine for batched LLM requests",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newCacheCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
