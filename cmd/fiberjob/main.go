package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "fiberjob",
		Short: "Priority-aware cooperative job dispatcher",
		Long: `fiberjob drives a pool of worker goroutines over priority-ordered job
batches. A job may wait on another batch's completion from inside its own
callback without blocking a worker slot.`,
		Version: version,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fiberjob version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
