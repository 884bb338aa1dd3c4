package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/signals"
)

var signalCmd = &cobra.Command{
	Use:   "signal <kill|pause|resume>",
	Short: "Control a running swarm in this project",
	Long: `Send a control signal to a swarm run in the current project.

A running swarm watches .swarm/signals:
  kill    cancels the run; tasks already started finish, nothing new starts
  pause   holds task dispatch until resumed
  resume  lets a paused run continue`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"kill", "pause", "resume"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		switch args[0] {
		case "kill":
			err = signals.SendKill(dir)
		case "pause":
			err = signals.SendPause(dir)
		case "resume":
			err = signals.SendResume(dir)
		default:
			return fmt.Errorf("unknown signal %q (want kill, pause or resume)", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s signal\n", args[0])
		return nil
	},
}
