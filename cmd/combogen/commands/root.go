// Package commands implements CLI command handlers for combogen.
package commands

import (
	"github.com/spf13/cobra"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	Verbose    bool
	Quiet      bool
	ConfigPath string
}

// NewRootCommand creates the combogen command tree.
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "combogen",
		Short: "Combogen - exhaustive fixed-length combination generator",
		Long: `Combogen enumerates every fixed-length sequence over an alphabet,
in parallel, with resumable checkpoints and optional compression.

Commands:
  generate  Generate combinations into a file, memory or nowhere
  count     Show the size of a combination space without generating it
  config    Inspect the effective configuration
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./combogen.yaml)")

	rootCmd.AddCommand(NewGenerateCommand(opts))
	rootCmd.AddCommand(NewCountCommand(opts))
	rootCmd.AddCommand(NewConfigCommand(opts))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
