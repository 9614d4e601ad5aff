package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"swarm/cmd/swarm/ui"
	"swarm/internal/types"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of the blackboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		load := func() (*types.ProjectProfile, error) {
			return rt.store.Load(ctx, sessionID, "watch")
		}
		model := ui.NewWatchModel(load, sessionID, watchInterval)
		_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "poll interval")
}
