package kernel

import (
	"context"
	"time"

	"swarm/internal/logging"
	"swarm/internal/policy"
	"swarm/internal/types"
)

// workerRoles are the roles scored for dispatch policy evaluation.
var workerRoles = []string{
	types.RoleEngineer,
	types.RoleDebugger,
	types.RoleResearcher,
	types.RoleArchitect,
	types.RoleAuditor,
}

// Run executes the tick loop until the context is cancelled. Each tick
// loads a fresh snapshot, processes the ready tasks one at a time, and
// reconciles the Markdown plan inbound. The blackboard lock is held
// only inside Load and Save, never across a dispatch.
func (k *Kernel) Run(ctx context.Context) error {
	interval := k.deps.Config.GetTickInterval()
	logging.Kernel("Orchestrator loop started (session %s, tick %s)", shortID(k.deps.SessionID), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Kernel("Orchestrator loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}

		if err := k.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.KernelWarn("Tick failed: %v", err)
		}
	}
}

// Tick runs one scheduling pass: evaluate readiness over a snapshot,
// process each ready task, then sync the plan file inbound.
func (k *Kernel) Tick(ctx context.Context) error {
	profile, err := k.deps.Store.Load(ctx, k.deps.SessionID, k.deps.AgentID)
	if err != nil {
		return err
	}

	ready := k.readyTasks(profile)
	for _, id := range ready {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := k.ProcessTask(ctx, id); err != nil {
			logging.KernelWarn("Task %s failed: %v", shortID(id), err)
		}
	}

	return k.syncPlanInbound(ctx)
}

// readyTasks selects the tasks to process this tick. With a policy
// engine the datalog dispatch program decides; otherwise any PENDING
// task whose dependencies are all COMPLETED is ready.
func (k *Kernel) readyTasks(profile *types.ProjectProfile) []string {
	tasks := make([]*types.Task, 0, len(profile.Tasks))
	for _, t := range profile.Tasks {
		tasks = append(tasks, t)
	}

	if k.deps.Policy != nil {
		decision, err := k.deps.Policy.Evaluate(tasks, k.roleScores())
		if err == nil {
			return decision.Ready
		}
		logging.KernelWarn("Policy evaluation failed, falling back: %v", err)
	}

	var ready []string
	for _, t := range tasks {
		if t.Status != types.StatusPending {
			continue
		}
		blocked := false
		for _, dep := range t.DependsOn {
			if d := profile.GetTask(dep); d == nil || d.Status != types.StatusCompleted {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, t.ID)
		}
	}
	return ready
}

// roleScores feeds current performance indexes into the dispatch
// policy. Without a ledger every role scores a full index.
func (k *Kernel) roleScores() []policy.RoleScore {
	scores := make([]policy.RoleScore, 0, len(workerRoles))
	for _, role := range workerRoles {
		index := 1.0
		if k.deps.Ledger != nil {
			index = k.deps.Ledger.PerformanceIndex(role)
		}
		scores = append(scores, policy.RoleScore{Role: role, Index: index})
	}
	return scores
}

// syncPlanInbound reconciles human edits to the plan file into the
// blackboard, saving only when something changed.
func (k *Kernel) syncPlanInbound(ctx context.Context) error {
	if k.deps.Plan == nil {
		return nil
	}

	profile, err := k.deps.Store.Load(ctx, k.deps.SessionID, k.deps.AgentID)
	if err != nil {
		return err
	}
	if k.deps.Plan.SyncInbound(profile) {
		return k.save(ctx, profile)
	}
	return nil
}
