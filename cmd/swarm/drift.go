package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/audit"
	"github.com/ShayCichocki/swarm/internal/config"
)

var driftCmd = &cobra.Command{
	Use:   "drift <original> <restated>",
	Short: "Score how far a restated objective drifted",
	Long: `Compute the word-overlap drift between two texts on a 0-100 scale,
the same score the intent audit uses for each transformation.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		score := audit.Drift(args[0], args[1])
		fmt.Printf("drift: %d%%\n", score)
		fmt.Println(driftVerdict(score, cfg.Audit.WarnThreshold, cfg.Audit.MaxDrift))
		return nil
	},
}

// driftVerdict describes a score against the configured thresholds.
func driftVerdict(score, warn, max int) string {
	switch {
	case score > max:
		return fmt.Sprintf("exceeds the %d%% intent limit", max)
	case score > warn:
		return fmt.Sprintf("above the %d%% warning threshold", warn)
	default:
		return "within limits"
	}
}
