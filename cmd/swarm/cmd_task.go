package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"swarm/internal/types"
)

var (
	taskWorker  string
	taskDeps    []string
	taskInputs  []string
	taskOutputs []string
	taskFlags   []string
	taskBranch  string
)

var statusStyles = map[types.TaskStatus]lipgloss.Style{
	types.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	types.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	types.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	types.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and create blackboard tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Add a PENDING task to the blackboard",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		task := types.NewTask(strings.Join(args, " "))
		task.Worker = taskWorker
		task.DependsOn = taskDeps
		task.InputFiles = taskInputs
		task.OutputFiles = taskOutputs
		task.Git.Branch = taskBranch
		for _, flag := range taskFlags {
			intent := types.Intent(flag)
			valid := false
			for _, known := range types.AllIntents {
				if intent == known {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("unknown dispatch flag %q", flag)
			}
			task.Intents.Add(intent)
		}

		profile, err := rt.loadProfile(ctx)
		if err != nil {
			return err
		}
		profile.AddTask(task)
		if err := rt.store.Save(ctx, sessionID, profile, "cli"); err != nil {
			return err
		}
		fmt.Println(task.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks grouped by status",
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

		tasks := make([]*types.Task, 0, len(profile.Tasks))
		for _, t := range profile.Tasks {
			tasks = append(tasks, t)
		}
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

		for _, t := range tasks {
			status := statusStyles[t.Status].Render(string(t.Status))
			worker := t.Worker
			if worker == "" {
				worker = "-"
			}
			fmt.Printf("%-14s %s  @%-12s %s\n", status, t.ID[:8], worker, t.Description)
		}
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Print one task as JSON",
	Args:  cobra.ExactArgs(1),
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
		task := profile.GetTask(args[0])
		if task == nil {
			return fmt.Errorf("task %s not found", args[0])
		}
		out, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskWorker, "worker", "", "assigned role")
	taskAddCmd.Flags().StringSliceVar(&taskDeps, "depends-on", nil, "dependency task id (repeatable)")
	taskAddCmd.Flags().StringSliceVar(&taskInputs, "input", nil, "input file (repeatable)")
	taskAddCmd.Flags().StringSliceVar(&taskOutputs, "output", nil, "output file (repeatable)")
	taskAddCmd.Flags().StringSliceVar(&taskFlags, "flag", nil, "dispatch flag, e.g. context_needed (repeatable)")
	taskAddCmd.Flags().StringVar(&taskBranch, "branch", "", "git feature branch")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
}
