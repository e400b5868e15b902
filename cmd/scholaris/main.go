package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "scholaris",
		Short:   "Scholaris — multi-LLM routing and cost governance for schools",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newUsageCmd(),
		newBudgetCmd(),
		newModelsCmd(),
		newRouteCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
