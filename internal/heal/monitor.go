// Package heal watches telemetry for failing tools, struggling git
// roles, and chronic failure patterns, and recommends corrective
// actions. Recommendations are advisory; the dispatcher and kernel
// decide what to act on.
package heal

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"swarm/internal/logging"
	"swarm/internal/telemetry"
	"swarm/internal/types"
)

// Status is the overall system health verdict.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Thresholds for the health composition.
const (
	toolRateThreshold = 0.7 // problematic-tool cutoff over 1 day
	rolePIThreshold   = 0.5 // failed-role cutoff in CheckHealth
	roleSkipThreshold = 0.3 // hard skip in ShouldSkipRole
	chronicWindowH    = 24
	chronicTopN       = 3
)

// Action is one recommended corrective step, lowest priority number
// first.
type Action struct {
	Type     string `json:"action_type"` // skip_tool | retry_with_backoff | skip_role | create_issue
	Target   string `json:"target"`
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

// SystemHealth is one health check snapshot.
type SystemHealth struct {
	Status             Status   `json:"status"`
	ProblematicTools   []string `json:"problematic_tools"`
	FailedRoles        []string `json:"failed_roles"`
	RecommendedActions []Action `json:"recommended_actions"`
}

// gitRoles are the dispatchable roles whose performance the monitor
// tracks.
var gitRoles = []string{
	types.RoleFeatureScout,
	types.RoleCodeAuditor,
	types.RoleIssueTriage,
	types.RoleBranchManager,
	types.RoleProjectLifecycle,
}

// Monitor composes ledger analytics into health verdicts and keeps
// per-target failure counters. Counters are bookkeeping; recovery
// happens through the time-windowed analytics, not a manual reset.
type Monitor struct {
	ledger    *telemetry.Ledger
	collector *telemetry.Collector

	mu       sync.Mutex
	breakers map[string]int
}

// NewMonitor builds a monitor over the ledger. The collector is
// optional; without it failures are counted but not emitted as events.
func NewMonitor(ledger *telemetry.Ledger, collector *telemetry.Collector) *Monitor {
	return &Monitor{
		ledger:    ledger,
		collector: collector,
		breakers:  make(map[string]int),
	}
}

// CheckHealth composes the three analytics probes: tool success rates
// over the last day, per-role performance indices, and chronic failure
// patterns from recent memory snapshots.
func (m *Monitor) CheckHealth() SystemHealth {
	var problematicTools []string
	var failedRoles []string
	var actions []Action

	for _, problem := range m.ledger.ProblematicTools(toolRateThreshold, 1) {
		problematicTools = append(problematicTools, problem.Tool)

		switch m.ledger.ToolStatus(problem.Tool) {
		case telemetry.StatusTripped:
			actions = append(actions, Action{
				Type:     "skip_tool",
				Target:   problem.Tool,
				Reason:   fmt.Sprintf("Tool circuit breaker tripped (%.0f%% success)", problem.SuccessRate*100),
				Priority: 1,
			})
		case telemetry.StatusWarning:
			actions = append(actions, Action{
				Type:     "retry_with_backoff",
				Target:   problem.Tool,
				Reason:   fmt.Sprintf("Tool degraded (%.0f%% success)", problem.SuccessRate*100),
				Priority: 2,
			})
		}
	}

	for _, role := range gitRoles {
		pi := m.ledger.PerformanceIndex(role)
		if pi < rolePIThreshold {
			failedRoles = append(failedRoles, role)
			actions = append(actions, Action{
				Type:     "skip_role",
				Target:   role,
				Reason:   fmt.Sprintf("Role has low performance index (%.2f)", pi),
				Priority: 2,
			})
		}
	}

	patterns := m.ledger.FailurePatterns(chronicWindowH)
	if len(patterns) > chronicTopN {
		patterns = patterns[:chronicTopN]
	}
	for _, p := range patterns {
		actions = append(actions, Action{
			Type:     "create_issue",
			Target:   p.Target,
			Reason:   fmt.Sprintf("Chronic failure: %d failures in 24h", p.FailureCount),
			Priority: 3,
		})
	}

	var status Status
	switch {
	case len(problematicTools) >= 3 || len(failedRoles) >= 2:
		status = StatusCritical
	case len(problematicTools) > 0 || len(failedRoles) > 0:
		status = StatusDegraded
	default:
		status = StatusHealthy
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})

	logging.Health("Health check: %s (%d tool problems, %d role failures, %d actions)",
		status, len(problematicTools), len(failedRoles), len(actions))

	return SystemHealth{
		Status:             status,
		ProblematicTools:   problematicTools,
		FailedRoles:        failedRoles,
		RecommendedActions: actions,
	}
}

// ShouldSkipRole reports whether a role's performance index has fallen
// below the hard skip threshold.
func (m *Monitor) ShouldSkipRole(role string) bool {
	pi := m.ledger.PerformanceIndex(role)
	if pi < roleSkipThreshold {
		logging.HealthWarn("Role %s skipped: performance index %.2f", role, pi)
		return true
	}
	return false
}

// RecordFailure bumps the target's failure counter and appends an
// error event. It never returns an error; health plumbing must not
// take down the operation it is observing.
func (m *Monitor) RecordFailure(target string, err error) {
	m.mu.Lock()
	m.breakers[target]++
	count := m.breakers[target]
	m.mu.Unlock()

	category := "unknown"
	if err != nil {
		category = err.Error()
		if len(category) > 50 {
			category = category[:50]
		}
	}
	if m.collector != nil {
		m.collector.RecordError(category, target, map[string]interface{}{
			"failure_count": count,
		})
	}
	logging.HealthDebug("Failure recorded for %s (count=%d): %s", target, count, category)
}

// RecordSuccess decrements the target's failure counter toward zero.
func (m *Monitor) RecordSuccess(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakers[target] > 0 {
		m.breakers[target]--
	}
}

// FailureCount returns the current counter for a target.
func (m *Monitor) FailureCount(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakers[target]
}

// Summary renders a human-readable health report for the CLI.
func (m *Monitor) Summary() string {
	health := m.CheckHealth()

	lines := []string{fmt.Sprintf("System Status: %s", health.Status)}
	if len(health.ProblematicTools) > 0 {
		lines = append(lines, "Degraded tools: "+strings.Join(health.ProblematicTools, ", "))
	}
	if len(health.FailedRoles) > 0 {
		lines = append(lines, "Struggling roles: "+strings.Join(health.FailedRoles, ", "))
	}
	if len(health.RecommendedActions) > 0 {
		lines = append(lines, "Recommended actions:")
		limit := len(health.RecommendedActions)
		if limit > 5 {
			limit = 5
		}
		for _, a := range health.RecommendedActions[:limit] {
			lines = append(lines, fmt.Sprintf("  - [%s] %s: %s", a.Type, a.Target, a.Reason))
		}
	}
	return strings.Join(lines, "\n")
}
