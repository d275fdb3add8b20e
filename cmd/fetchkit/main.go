// Package main provides the fetchkit command line tool. It drives the
// engine against real endpoints, which is handy for checking retry, cache
// and offline behaviour of a configuration.
//
// Usage:
//
//	fetchkit [command] [flags]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetchkit",
		Short: "Resilient fetch engine CLI",
		Long: `fetchkit sends requests through a resilient fetch engine: deduplication,
interceptors, retry with exponential backoff, a bounded queue, a TTL cache and
an offline fallback store.

Settings come from --config, a .env file and FETCHKIT_* variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (toml, yaml or json)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
