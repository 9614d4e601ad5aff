package gitops

import (
	"context"

	"swarm/internal/graph"
	"swarm/internal/logging"
	"swarm/internal/telemetry"
	"swarm/internal/types"
)

// Role is one autonomous git agent. TriggerCheck decides cheaply from
// the task and ambient context whether the role has work; Execute does
// it and reports. Roles never mutate the task.
type Role interface {
	Name() string
	TriggerCheck(task *types.Task, rctx *RoleContext) bool
	Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error)
}

// RoleContext carries the shared dependencies and the merged ambient
// variables a role reads during one dispatch. Vars holds the active
// session context (periodic flags, PR status, task type) keyed the way
// upstream components stored them.
type RoleContext struct {
	Repo      *Worker
	GitHub    *GitHubClient
	Graph     *graph.Graph
	Ledger    *telemetry.Ledger
	Collector *telemetry.Collector

	RepoRoot  string
	RepoOwner string
	RepoName  string
	SessionID string
	Model     string

	Vars map[string]interface{}
}

// BoolVar reads a boolean ambient variable, false when absent.
func (rctx *RoleContext) BoolVar(key string) bool {
	v, _ := rctx.Vars[key].(bool)
	return v
}

// IntVar reads an integer ambient variable, tolerating the float64
// that JSON round-trips produce.
func (rctx *RoleContext) IntVar(key string) int {
	switch v := rctx.Vars[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// StringVar reads a string ambient variable, empty when absent.
func (rctx *RoleContext) StringVar(key string) string {
	v, _ := rctx.Vars[key].(string)
	return v
}

// MapVar reads a nested map ambient variable, nil when absent.
func (rctx *RoleContext) MapVar(key string) map[string]interface{} {
	v, _ := rctx.Vars[key].(map[string]interface{})
	return v
}

// saveSnapshot persists a context snapshot for later sessions. Failures
// are logged, never surfaced: losing a snapshot must not fail a role.
func (rctx *RoleContext) saveSnapshot(contextType string, data map[string]interface{}) {
	if rctx.Ledger == nil {
		return
	}
	if _, err := rctx.Ledger.SaveContext(rctx.SessionID, contextType, data); err != nil {
		logging.GitOpsWarn("save %s snapshot: %v", contextType, err)
	}
}

// recordProvenance stamps an author signature for a role action.
func (rctx *RoleContext) recordProvenance(agentID, action, artifactRef string) {
	if rctx.Collector == nil {
		return
	}
	rctx.Collector.RecordProvenance(agentID, agentID, action, rctx.Model, artifactRef)
}

// sourceExtensions marks the file types the scout and auditor scan.
var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
}
