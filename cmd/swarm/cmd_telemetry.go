package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"swarm/internal/heal"
	"swarm/internal/types"
)

var telemetryRetention int

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Inspect the local telemetry ledger",
}

var telemetryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print event counts by type",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		total, err := rt.ledger.Count()
		if err != nil {
			return err
		}
		stats := rt.ledger.Stats()
		kinds := make([]string, 0, len(stats))
		for k := range stats {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		fmt.Printf("%d events\n", total)
		for _, k := range kinds {
			fmt.Printf("  %-24s %d\n", k, stats[k])
		}
		return nil
	},
}

var telemetryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete events past the retention window and compact the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		removed := rt.ledger.PruneOldEvents(telemetryRetention)
		rt.ledger.Optimize()
		fmt.Printf("pruned %d events older than %d days\n", removed, telemetryRetention)
		return nil
	},
}

var healthStatusStyles = map[heal.Status]lipgloss.Style{
	heal.StatusHealthy:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	heal.StatusDegraded: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
	heal.StatusCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run a system health check over the telemetry ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		health := rt.monitor.CheckHealth()
		fmt.Printf("System Status: %s\n", healthStatusStyles[health.Status].Render(string(health.Status)))
		for _, tool := range health.ProblematicTools {
			fmt.Printf("  problematic tool: %s\n", tool)
		}
		for _, role := range health.FailedRoles {
			fmt.Printf("  underperforming role: %s\n", role)
		}
		for _, action := range health.RecommendedActions {
			fmt.Printf("  [%d] %s %s: %s\n", action.Priority, action.Type, action.Target, action.Reason)
		}
		if health.Status == heal.StatusCritical {
			return errRestartRequested
		}
		return nil
	},
}

var localizeCmd = &cobra.Command{
	Use:   "localize [test-command]",
	Short: "Run the test suite and rank suspicious lines by Ochiai score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		command := ""
		if len(args) > 0 {
			command = args[0]
		} else if profile, err := rt.loadProfile(ctx); err == nil && profile.ToolchainConfig != nil {
			if gate, ok := profile.ToolchainConfig.Actions[types.GateTest]; ok {
				command = gate.Command
			}
		}
		if command == "" {
			command = "go test ./..."
		}

		gate, report := rt.localizer.Analyze(ctx, command)
		fmt.Println(report)
		if gate.Status == types.GateFailed {
			return fmt.Errorf("test suite failed: %s", gate.Message)
		}
		return nil
	},
}

func init() {
	telemetryPruneCmd.Flags().IntVar(&telemetryRetention, "days", 30, "retention window in days")
	telemetryCmd.AddCommand(telemetryStatsCmd)
	telemetryCmd.AddCommand(telemetryPruneCmd)
}
