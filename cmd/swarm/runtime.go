package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"swarm/internal/blackboard"
	"swarm/internal/boot"
	"swarm/internal/config"
	"swarm/internal/consensus"
	"swarm/internal/debate"
	"swarm/internal/gitops"
	"swarm/internal/graph"
	"swarm/internal/heal"
	"swarm/internal/kernel"
	"swarm/internal/llm"
	"swarm/internal/logging"
	"swarm/internal/parse"
	"swarm/internal/plan"
	"swarm/internal/policy"
	"swarm/internal/prune"
	"swarm/internal/sbfl"
	"swarm/internal/telemetry"
	"swarm/internal/types"
	"swarm/internal/verify"
)

// policyRulesFile is the optional custom dispatch rules fragment,
// relative to the workspace.
const policyRulesFile = ".swarm/policy.mg"

// runtime is the process-wide dependency context: every component is
// constructed once here, lives for the command, and is torn down by
// Close. Nothing in the tree reaches for a package singleton.
type runtime struct {
	cfg       *config.Config
	store     *blackboard.Store
	ledger    *telemetry.Ledger
	collector *telemetry.Collector
	monitor   *heal.Monitor
	retriever *graph.Retriever
	builder   *graph.Builder
	repo      *gitops.Worker
	github    *gitops.GitHubClient
	tools     *gitops.ToolRegistry
	kernel    *kernel.Kernel
	plan      *plan.Engine
	verifier  *verify.Verifier
	localizer *sbfl.Localizer
	repoOwner string
	repoName  string
}

// buildRuntime runs startup checks, migrates the profile, and wires the
// full dependency graph. The knowledge graph is loaded from its cache
// when the source tree still matches; otherwise retrieval starts empty
// until a `graph build`.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(filepath.Join(workspace, configPath))
	if err != nil {
		return nil, err
	}

	checker := boot.NewChecker(workspace, cfg)
	ok, results := checker.Run(ctx)
	for _, res := range results {
		if !res.OK {
			logging.BootWarn("%s: %s", res.Name, res.Detail)
		}
	}
	if !ok {
		return nil, fmt.Errorf("startup checks failed")
	}

	rt := &runtime{cfg: cfg}

	store, err := blackboard.NewStore(ctx,
		filepath.Join(workspace, cfg.Blackboard.StateFile),
		cfg.Blackboard.PostgresURL,
		cfg.GetLockTimeout(), cfg.GetLockTTL())
	if err != nil {
		return nil, fmt.Errorf("open blackboard: %w", err)
	}
	rt.store = store

	ledger, err := telemetry.NewLedger(filepath.Join(workspace, cfg.Telemetry.DatabasePath))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open telemetry ledger: %w", err)
	}
	rt.ledger = ledger
	rt.collector = telemetry.NewCollector(ledger, sessionID)
	rt.monitor = heal.NewMonitor(ledger, rt.collector)

	rt.migrateProfile(ctx)

	registry := parse.NewRegistry(cfg.Graph.LiteMode || cfg.Kernel.LiteMode)
	rt.builder = graph.NewBuilder(registry, cfg.Graph.Workers)
	rt.retriever = graph.NewRetriever(nil, cfg.Graph.Damping, cfg.Graph.MaxIterations)
	rt.loadGraphCache()

	embedder := llm.NewEmbedderChain(ctx, cfg.Embedder, cfg.LLM)
	var pruneEmbedder prune.Embedder
	if embedder != nil {
		pruneEmbedder = embedder
	}
	pruner := prune.NewPruner(pruneEmbedder, cfg.Prune.KeepTail, cfg.Prune.KeepRelevant)

	router := llm.NewRouter(cfg)

	rt.repo = gitops.NewWorker(ctx, workspace, cfg.GetGitHelperTimeout())
	rt.github = gitops.NewGitHubClient(cfg.GitHub)
	rt.repoOwner, rt.repoName = repoCoordinates(cfg, rt.repo.Info())

	tools, err := gitops.NewToolRegistry(
		gitops.DefaultManifest(rt.repo.Executor(), rt.github, rt.repoOwner, rt.repoName),
		cfg.Git.StrictTools)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("tool registry: %w", err)
	}
	rt.tools = tools

	dispatcher := gitops.NewDispatcher(gitops.RoleContext{
		Repo:      rt.repo,
		GitHub:    rt.github,
		Graph:     rt.retriever.Graph(),
		Ledger:    ledger,
		Collector: rt.collector,
		RepoRoot:  workspace,
		RepoOwner: rt.repoOwner,
		RepoName:  rt.repoName,
		SessionID: sessionID,
	}, rt.monitor)

	policyEngine, err := policy.NewEngine()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("policy engine: %w", err)
	}
	if rules := filepath.Join(workspace, policyRulesFile); fileExists(rules) {
		if err := policyEngine.LoadRulesFile(rules); err != nil {
			logging.Policy("custom rules rejected: %v", err)
		}
	}

	if v, err := verify.NewVerifier(verify.DefaultSolver, verify.DefaultBudget); err == nil {
		rt.verifier = v
	} else {
		logging.Verify("solver unavailable, verification gates degrade to SKIPPED: %v", err)
	}

	runner := sbfl.NewRunner(workspace, filepath.Join(workspace, "coverage.out"), cfg.GetTestTimeout())
	rt.localizer = sbfl.NewLocalizer(runner, cfg.SBFL.TopN)

	rt.plan = plan.NewEngine(workspace, plan.DefaultPlanFile)

	k, err := kernel.New(kernel.Deps{
		Config:     cfg,
		Store:      store,
		Ledger:     ledger,
		Collector:  rt.collector,
		Monitor:    rt.monitor,
		Retriever:  rt.retriever,
		Pruner:     pruner,
		Consensus:  consensus.NewEngine(32, 1500),
		Debate:     debate.NewEngine(cfg.Debate.MaxRounds),
		Verifier:   rt.verifier,
		Localizer:  rt.localizer,
		LLM:        router,
		Repo:       rt.repo,
		Tools:      tools,
		Dispatcher: dispatcher,
		Policy:     policyEngine,
		Plan:       rt.plan,
		RepoOwner:  rt.repoOwner,
		RepoName:   rt.repoName,
		SessionID:  sessionID,
		AgentID:    "kernel",
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.kernel = k

	return rt, nil
}

// migrateProfile loads the profile once at startup and persists any
// schema migration before the first tick sees it.
func (rt *runtime) migrateProfile(ctx context.Context) {
	profile, err := rt.store.Load(ctx, sessionID, "boot")
	if err != nil {
		logging.BootWarn("profile load for migration failed: %v", err)
		return
	}
	migrated := boot.MigrateProfile(profile)

	if profile.StackFingerprint == nil {
		profile.StackFingerprint = boot.NewStackDetector(workspace).Detect()
		migrated = true
	}

	if migrated {
		if err := rt.store.Save(ctx, sessionID, profile, "boot"); err != nil {
			logging.BootWarn("profile migration save failed: %v", err)
		}
	}
}

// loadGraphCache restores the knowledge graph when the cached source
// hash still matches the tree. A stale or missing cache is not an
// error; retrieval reports ErrGraphNotBuilt until the next build.
func (rt *runtime) loadGraphCache() {
	cachePath := filepath.Join(workspace, rt.cfg.Graph.CachePath)
	files, err := rt.builder.Sources(workspace)
	if err != nil {
		logging.GraphWarn("source scan failed: %v", err)
		return
	}
	g, err := graph.LoadCache(cachePath, graph.HashSources(workspace, files))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.GraphDebug("graph cache not reusable: %v", err)
		}
		return
	}
	rt.retriever.SetGraph(g)
}

// repoCoordinates resolves the GitHub owner/repo pair, preferring the
// explicit config and falling back to parsing the remote URL.
func repoCoordinates(cfg *config.Config, info gitops.RepoInfo) (string, string) {
	if cfg.GitHub.RepoOwner != "" && cfg.GitHub.RepoName != "" {
		return cfg.GitHub.RepoOwner, cfg.GitHub.RepoName
	}
	parts := strings.Split(strings.TrimSuffix(info.RemoteURL, ".git"), "/")
	if len(parts) < 2 {
		return cfg.GitHub.RepoOwner, cfg.GitHub.RepoName
	}
	owner := parts[len(parts)-2]
	if i := strings.LastIndex(owner, ":"); i >= 0 {
		owner = owner[i+1:]
	}
	return owner, parts[len(parts)-1]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close releases the session lock and every store the runtime opened.
func (rt *runtime) Close() {
	if rt.store != nil {
		rt.store.ReleaseLock(context.Background(), sessionID, "kernel")
		rt.store.Close()
	}
	if rt.ledger != nil {
		_ = rt.ledger.Close()
	}
}

// loadProfile is the common read path for the inspection commands.
func (rt *runtime) loadProfile(ctx context.Context) (*types.ProjectProfile, error) {
	return rt.store.Load(ctx, sessionID, "cli")
}
