// Package kernel is the orchestrator: it pulls pending tasks off the
// blackboard, routes them by dispatch intent to the algorithmic
// subsystems, and falls back to the classical prompt-and-dispatch flow
// for everything else. One kernel owns one session; cross-process
// safety comes from the blackboard locks, not from anything here.
package kernel

import (
	"context"
	"fmt"

	"swarm/internal/config"
	"swarm/internal/consensus"
	"swarm/internal/debate"
	"swarm/internal/graph"
	"swarm/internal/heal"
	"swarm/internal/plan"
	"swarm/internal/policy"
	"swarm/internal/sbfl"
	"swarm/internal/telemetry"
	"swarm/internal/types"
	"swarm/internal/verify"
)

// Blackboard is the state surface the kernel needs: load a snapshot,
// save it back. The concrete store handles locking and the SQL mirror.
type Blackboard interface {
	Load(ctx context.Context, sessionID, agentID string) (*types.ProjectProfile, error)
	Save(ctx context.Context, sessionID string, profile *types.ProjectProfile, agentID string) error
}

// Generator dispatches one prompt to an external model.
type Generator interface {
	Generate(ctx context.Context, prompt, modelAlias string) (types.AgentResponse, error)
}

// ContextRetriever answers knowledge-graph queries. Nil means the graph
// was never built for this session.
type ContextRetriever interface {
	RetrieveContext(query string, topK int) ([]graph.ContextChunk, error)
}

// ProvenancePruner trims the provenance log around a query.
type ProvenancePruner interface {
	Prune(ctx context.Context, log []types.AuthorSignature, query string) []types.AuthorSignature
}

// Repo is the capability surface of the git worker the kernel consults.
type Repo interface {
	IsAvailable() bool
	HasChanges(ctx context.Context) bool
	IsGitHub() bool
	HasGitHubToken() bool
	IsGitHubReady() bool
	WorkflowInstructions() string
}

// ToolRunner executes one registered tool call.
type ToolRunner interface {
	Call(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// RoleDispatcher runs the autonomous git agent team for role-triggered
// tasks.
type RoleDispatcher interface {
	Dispatch(ctx context.Context, task *types.Task, active map[string]interface{}) []types.ExitReport
}

// Deps is the dependency context the kernel is built from. Every field
// except Config, Store and LLM is optional; a nil optional dependency
// degrades the corresponding dispatch path to a feedback note instead
// of failing the tick.
type Deps struct {
	Config *config.Config

	Store     Blackboard
	Ledger    *telemetry.Ledger
	Collector *telemetry.Collector
	Monitor   *heal.Monitor

	Retriever ContextRetriever
	Pruner    ProvenancePruner
	Consensus *consensus.Engine
	Debate    *debate.Engine
	Verifier  *verify.Verifier
	Localizer *sbfl.Localizer

	LLM        Generator
	Repo       Repo
	Tools      ToolRunner
	Dispatcher RoleDispatcher
	Policy     *policy.Engine
	Plan       *plan.Engine

	RepoOwner string
	RepoName  string
	SessionID string
	AgentID   string
}

// Kernel processes tasks for a single session.
type Kernel struct {
	deps Deps
}

// New validates the required dependencies and returns a kernel.
func New(deps Deps) (*Kernel, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("kernel: config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("kernel: blackboard store is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("kernel: llm generator is required")
	}
	if deps.SessionID == "" {
		return nil, fmt.Errorf("kernel: session id is required")
	}
	if deps.AgentID == "" {
		deps.AgentID = "kernel"
	}
	return &Kernel{deps: deps}, nil
}

// SessionID returns the session this kernel owns.
func (k *Kernel) SessionID() string { return k.deps.SessionID }
