package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"swarm/internal/graph"
	"swarm/internal/logging"
)

var graphTopK int

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and query the code knowledge graph",
}

var graphBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Parse the workspace and write the graph cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		start := time.Now()
		g, err := rt.builder.Build(ctx, workspace)
		if err != nil {
			return fmt.Errorf("graph build: %w", err)
		}
		rt.retriever.SetGraph(g)

		files, err := rt.builder.Sources(workspace)
		if err != nil {
			return fmt.Errorf("source scan: %w", err)
		}
		cachePath := filepath.Join(workspace, rt.cfg.Graph.CachePath)
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			return err
		}
		if err := graph.SaveCache(cachePath, g, graph.HashSources(workspace, files)); err != nil {
			return fmt.Errorf("graph cache: %w", err)
		}

		if rt.cfg.Graph.SnapshotPath != "" {
			snapshotGraph(g, filepath.Join(workspace, rt.cfg.Graph.SnapshotPath))
		}

		fmt.Printf("graph built: %d nodes, %d edges in %s\n",
			g.NodeCount(), g.EdgeCount(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var graphQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve the most relevant code entities for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		chunks, err := rt.retriever.RetrieveContext(strings.Join(args, " "), graphTopK)
		if err != nil {
			if errors.Is(err, graph.ErrGraphNotBuilt) {
				return fmt.Errorf("no graph loaded; run `swarm graph build` first")
			}
			return err
		}
		if len(chunks) == 0 {
			fmt.Println("no matching entities")
			return nil
		}
		for _, c := range chunks {
			fmt.Printf("%.4f  %-8s %s:%d  %s\n", c.PPRScore, c.NodeType, c.FilePath, c.StartLine, c.NodeName)
		}
		return nil
	},
}

// snapshotGraph mirrors the graph into the SQL snapshot for external
// inspection. Snapshot failures never fail the build.
func snapshotGraph(g *graph.Graph, path string) {
	store, err := graph.OpenSQLStore(path)
	if err != nil {
		logging.GraphWarn("snapshot open failed: %v", err)
		return
	}
	defer store.Close()
	if err := store.Snapshot(g); err != nil {
		logging.GraphWarn("snapshot write failed: %v", err)
	}
}

func init() {
	graphQueryCmd.Flags().IntVar(&graphTopK, "top", 5, "number of results")
	graphCmd.AddCommand(graphBuildCmd)
	graphCmd.AddCommand(graphQueryCmd)
}
