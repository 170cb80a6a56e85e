// Command paratest dispatches test-plan execution requests across a
// bounded pool of worker agents, each bound to an isolated git
// worktree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "paratest",
		Short: "Parallel test-plan execution core",
		Long: `paratest dispatches test-plan execution requests across a bounded pool
of worker agents, each bound to an isolated git worktree, so plans run
concurrently without corrupting a shared checkout.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
