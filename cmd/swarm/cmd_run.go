package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"swarm/internal/plan"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator loop until interrupted",
	Long: `Starts the kernel tick loop for the session: every tick evaluates the
dispatch policy over the blackboard, processes the ready tasks, and
reconciles the Markdown plan. A plan-file watcher triggers an extra
inbound sync on human edits. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		stale := rt.store.CleanupStaleLocks(ctx, rt.cfg.GetLockTTL())
		if stale > 0 {
			fmt.Printf("cleaned %d stale session locks\n", stale)
		}

		watcher, err := plan.NewWatcher(rt.plan, func() {
			profile, err := rt.loadProfile(ctx)
			if err != nil {
				return
			}
			if rt.plan.SyncInbound(profile) {
				_ = rt.store.Save(ctx, sessionID, profile, "plan-watch")
			}
		})
		if err == nil {
			if err := watcher.Start(ctx); err == nil {
				defer watcher.Stop()
			}
		}

		fmt.Printf("swarm orchestrator running (session %s, tick %s)\n", sessionID, rt.cfg.GetTickInterval())
		err = rt.kernel.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick [task-id]",
	Short: "Run a single scheduling tick, or process one task",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if len(args) == 1 {
			return rt.kernel.ProcessTask(ctx, args[0])
		}
		return rt.kernel.Tick(ctx)
	},
}

var (
	deliberateContext     string
	deliberateConstraints []string
	deliberateSteps       int
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate [problem]",
	Short: "Run the structured deliberation pipeline on a problem",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		problem := strings.Join(args, " ")
		result := rt.kernel.RunDeliberation(ctx, problem, deliberateContext, deliberateConstraints, deliberateSteps)

		for _, step := range result.Steps {
			fmt.Printf("[%d] %s (%s, %dms)\n%s\n\n", step.Step, step.Name, step.Worker, step.DurationMs, step.Output)
		}
		if result.FinalAnswer != "" {
			fmt.Printf("answer (confidence %.2f):\n%s\n", result.Confidence, result.FinalAnswer)
		}
		if result.Confidence == 0 && strings.HasPrefix(result.FinalAnswer, "deliberation failed") {
			return fmt.Errorf("%s", result.FinalAnswer)
		}
		return nil
	},
}

func init() {
	deliberateCmd.Flags().StringVar(&deliberateContext, "context", "", "background context for the deliberation")
	deliberateCmd.Flags().StringSliceVar(&deliberateConstraints, "constraint", nil, "constraint the answer must honor (repeatable)")
	deliberateCmd.Flags().IntVar(&deliberateSteps, "steps", 3, "pipeline depth; below 3 skips synthesis")
}
