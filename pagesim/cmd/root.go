// Package cmd provides the command-line interface of pagesim.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the pagesim command with all its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagesim",
		Short: "pagesim simulates demand-paged virtual memory.",
		Long: `pagesim replays the memory references of several workloads ` +
			`in round-robin time slices and reports the page faults, the ` +
			`pages loaded from and saved to the disk under the LRU or the ` +
			`working set replacement algorithm.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInspectCmd())

	return rootCmd
}

// Execute runs the command selected by the command-line arguments. It exits
// with status 1 after running the registered exit handlers if the command
// fails.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
}
