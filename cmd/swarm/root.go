package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Multi-agent objective orchestration",
	Long: `swarm answers an objective with a team of specialist agents.

A coordinator agent splits the objective into a small plan of tasks with
dependencies. Each task is handled by a specialist (researcher, analyst,
coder, writer, reviewer or generalist) that sees the results of the tasks it
depends on. The results are then condensed into a single answer.

Every run records how far the objective drifted from what you asked for,
and can check the answer against an expected output format.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(versionCmd)
}
