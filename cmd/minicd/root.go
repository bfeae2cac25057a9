package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "minicd",
	Short: "A minimal continuous-delivery agent",
	Long: `minicd listens for git post-receive notifications from self-hosted
repositories, clones the notified revision into an isolated workspace,
reads an in-repo .minicd job manifest, runs the declared jobs, and
dispatches notifications about the outcome. It also auto-installs the
post-receive hook into bare repositories under a configured root.`,
	RunE: requireSubcommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// requireSubcommand mirrors the convention used by every parent
// command in this codebase: running the bare verb without a
// subcommand is a usage error, not a silent no-op.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", cmd.CommandPath())
	}
	return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
