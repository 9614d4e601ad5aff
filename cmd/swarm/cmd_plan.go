package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Sync and render the Markdown plan",
}

var planSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge plan edits into the blackboard, then write the plan back",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		profile, err := rt.loadProfile(ctx)
		if err != nil {
			return err
		}
		changed := rt.plan.SyncInbound(profile)
		if changed {
			if err := rt.store.Save(ctx, sessionID, profile, "cli"); err != nil {
				return err
			}
		}
		rt.plan.SyncOutbound(profile)
		if changed {
			fmt.Println("plan changes merged into the blackboard")
		} else {
			fmt.Println("plan already in sync")
		}
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Render the plan file in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		content, err := os.ReadFile(rt.plan.Path())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("no plan file; run `swarm plan sync` to generate one")
				return nil
			}
			return err
		}

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			fmt.Print(string(content))
			return nil
		}
		out, err := renderer.Render(string(content))
		if err != nil {
			fmt.Print(string(content))
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	planCmd.AddCommand(planSyncCmd)
	planCmd.AddCommand(planShowCmd)
}
