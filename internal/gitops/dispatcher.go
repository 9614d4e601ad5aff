package gitops

import (
	"context"
	"sort"
	"strings"
	"time"

	"swarm/internal/heal"
	"swarm/internal/logging"
	"swarm/internal/types"
)

// HealthMonitor is the circuit-breaker surface the dispatcher consults
// before and after each role execution.
type HealthMonitor interface {
	CheckHealth() heal.SystemHealth
	ShouldSkipRole(role string) bool
	RecordFailure(target string, err error)
	RecordSuccess(target string)
}

// defaultOrder runs lifecycle and triage before the discovery roles so
// structural work lands ahead of new proposals. Telemetry reorders it
// once performance data accumulates.
var defaultOrder = []string{
	types.RoleProjectLifecycle,
	types.RoleIssueTriage,
	types.RoleFeatureScout,
	types.RoleCodeAuditor,
	types.RoleBranchManager,
}

// Dispatcher runs the git agent roles for one task: health gate, then
// per-role trigger check and execution in performance-index order.
type Dispatcher struct {
	roles   map[string]Role
	monitor HealthMonitor
	base    RoleContext
}

// NewDispatcher wires the five standard roles against the shared
// context and circuit-breaker monitor.
func NewDispatcher(base RoleContext, monitor HealthMonitor) *Dispatcher {
	return &Dispatcher{
		roles: map[string]Role{
			types.RoleProjectLifecycle: ProjectLifecycle{},
			types.RoleIssueTriage:      IssueTriage{},
			types.RoleFeatureScout:     FeatureScout{},
			types.RoleCodeAuditor:      CodeAuditor{},
			types.RoleBranchManager:    BranchManager{},
		},
		monitor: monitor,
		base:    base,
	}
}

// Dispatch runs every triggered role against the task and returns
// their exit reports in execution order. active carries the session's
// ambient context (periodic flags, PR status, task type) and overlays
// the dispatcher's base variables for this run only.
func (d *Dispatcher) Dispatch(ctx context.Context, task *types.Task, active map[string]interface{}) []types.ExitReport {
	rctx := d.base
	rctx.Vars = mergeVars(d.base.Vars, active)

	if d.monitor != nil {
		health := d.monitor.CheckHealth()
		if health.Status == heal.StatusCritical {
			logging.GitOpsWarn("System health CRITICAL. %d healing actions pending", len(health.RecommendedActions))
		}
	}

	var reports []types.ExitReport
	for _, name := range d.executionOrder() {
		role, ok := d.roles[name]
		if !ok {
			continue
		}

		// The skip gate comes before the trigger check: a role below
		// the performance floor does not get to volunteer for work.
		if d.monitor != nil && d.monitor.ShouldSkipRole(name) {
			logging.GitOpsWarn("skipping role %s: performance index below floor", name)
			reports = append(reports, types.ExitReport{
				TaskID:   task.ID,
				Status:   types.ReportSkipped,
				Warnings: []string{"Skipped due to low performance index"},
			})
			continue
		}
		if !role.TriggerCheck(task, &rctx) {
			continue
		}

		start := time.Now()
		report, err := role.Execute(ctx, task, &rctx)
		elapsed := time.Since(start)

		if err != nil {
			logging.GitOpsError("role %s failed: %v", name, err)
			if d.monitor != nil {
				d.monitor.RecordFailure(name, err)
			}
			d.recordOutcome(&rctx, name, task.ID, false, elapsed)
			reports = append(reports, types.ExitReport{
				TaskID:   task.ID,
				Status:   types.ReportFailed,
				Warnings: []string{err.Error()},
			})
			continue
		}

		if d.monitor != nil {
			d.monitor.RecordSuccess(name)
		}
		d.recordOutcome(&rctx, name, task.ID, true, elapsed)
		reports = append(reports, report)
	}
	return reports
}

// executionOrder sorts the default role order by performance index,
// best first. The sort is stable, so a fresh ledger (every PI 1.0)
// preserves the default order.
func (d *Dispatcher) executionOrder() []string {
	order := make([]string, len(defaultOrder))
	copy(order, defaultOrder)
	if d.base.Ledger == nil {
		return order
	}

	index := make(map[string]float64, len(order))
	for _, role := range order {
		index[role] = d.base.Ledger.PerformanceIndex(role)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return index[order[i]] > index[order[j]]
	})
	logging.GitOpsDebug("PI-optimized order: %s", strings.Join(order, ", "))
	return order
}

// recordOutcome feeds the telemetry that drives future ordering and
// skip decisions: a tool_use event per role run plus a provenance
// event carrying the success flag.
func (d *Dispatcher) recordOutcome(rctx *RoleContext, role, taskID string, success bool, elapsed time.Duration) {
	if rctx.Collector == nil {
		return
	}
	category := ""
	action := "role_executed"
	if !success {
		category = "role_failure"
		action = "role_failed"
	}
	rctx.Collector.RecordToolUse("git_role_"+role, success, elapsed, category)
	rctx.Collector.RecordProvenance(role, role, action, rctx.Model, taskID)
}

func mergeVars(base, active map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(active))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range active {
		merged[key] = value
	}
	return merged
}
