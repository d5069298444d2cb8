// Package cli implements the magentic command line interface.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Build information, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	noColor    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "magentic",
		Short: "Run a team of AI agents coordinated by a planning manager",
		Long: `magentic runs a task against a team of model-backed agents declared in a
config file. A manager plans the task, keeps a ledger of facts and plan, and
asks one member at a time to act until the task is answered or a limit is hit.

Environment variables prefixed with MAGENTIC_ override the config file, e.g.
MAGENTIC_MODEL_NAME or MAGENTIC_MANAGER_MAX_ROUND_COUNT.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "magentic.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
