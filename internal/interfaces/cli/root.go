// Package cli wires the simulator's cobra command tree.  The CLI is a thin
// driver: it loads configuration, builds a model, runs the scheduler loop,
// and optionally serves the status API and metrics endpoints while the run is
// in flight.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags by cmd/kappaforge.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand constructs the root command with its subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kappaforge",
		Short:         "Stochastic simulator for rule-based site-graph rewriting models",
		Long:          "KappaForge executes Kappa-style rule-based models as continuous-time Markov chains\nusing the Gillespie direct method over an incrementally indexed site graph.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newModelsCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kappaforge %s (%s, built %s)\n",
				Version, GitCommit, BuildDate)
		},
	}
}
