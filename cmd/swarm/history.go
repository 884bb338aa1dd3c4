package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/config"
	"github.com/ShayCichocki/swarm/internal/state"
)

var (
	historyLimit  int
	historyJSON   bool
	historyMaxAge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past runs",
	Long: `List, show and purge runs recorded in the project history database.

Examples:
  swarm history                  # Ten most recent runs
  swarm history show 3f2a        # One run, by id or id prefix
  swarm history purge --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(db *state.DB) error {
			runs, err := db.ListRuns(historyLimit)
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(runs)
			}
			fmt.Print(renderRunList(runs))
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its tasks and audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(db *state.DB) error {
			run, err := findRun(db, args[0])
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(run)
			}
			fmt.Print(renderRun(run))
			return nil
		})
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than a given age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(db *state.DB) error {
			n, err := db.PurgeOldRuns(historyMaxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d run(s)\n", n)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list (0 for all)")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyPurgeCmd.Flags().DurationVar(&historyMaxAge, "older-than", 30*24*time.Hour, "Delete runs started before this age")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// withHistory opens the configured history database for fn.
func withHistory(fn func(db *state.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	db, err := openHistory(cfg, dir)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// findRun resolves a full id or a unique id prefix.
func findRun(db *state.DB, id string) (*state.RunRecord, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match string
	for _, r := range runs {
		if len(r.ID) >= len(id) && r.ID[:len(id)] == id {
			if match != "" {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			match = r.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("no run with id %q", id)
	}
	return db.GetRun(match)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
