// Command swarm is the orchestration CLI: it owns one session's task
// blackboard and runs the kernel loop, plan bridge, knowledge graph and
// git workers over it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swarm/internal/logging"
)

// Exit codes: 0 success, 1 failure, 100 restart requested.
const (
	exitOK      = 0
	exitFailure = 1
	exitRestart = 100
)

// errRestartRequested propagates a restart recommendation out of a
// command; main maps it to the restart exit code.
var errRestartRequested = errors.New("restart requested")

var (
	verbose    bool
	workspace  string
	configPath string
	sessionID  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "swarm - multi-agent orchestration kernel",
	Long: `swarm coordinates a team of algorithmic and LLM workers over a shared
task blackboard: HippoRAG graph retrieval, weighted-voting consensus,
sparse debate, spectrum-based fault localization, and an autonomous git
workflow, reconciled against a human-edited Markdown plan on every tick.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("initialize category logs: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace root")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".swarm/config.yaml", "config file, relative to workspace")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "session id owning the blackboard")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(deliberateCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(localizeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the swarm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("swarm 3.4.0")
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errRestartRequested) {
			fmt.Fprintln(os.Stderr, "swarm: restart requested")
			os.Exit(exitRestart)
		}
		fmt.Fprintln(os.Stderr, "swarm:", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitOK)
}
