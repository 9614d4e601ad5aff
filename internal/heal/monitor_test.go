package heal

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/telemetry"
	"swarm/internal/types"
)

func newTestLedger(t *testing.T) *telemetry.Ledger {
	t.Helper()
	l, err := telemetry.NewLedger(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func seedToolUses(l *telemetry.Ledger, tool string, successes, failures int) {
	for i := 0; i < successes+failures; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventToolUse)
		evt.ToolName = tool
		evt.Success = i < successes
		evt.DurationMs = 100
		evt.Timestamp = time.Now().UTC().Add(-time.Hour)
		l.Append(evt)
	}
}

func seedRoleOutcomes(l *telemetry.Ledger, role string, successes, failures int) {
	for i := 0; i < successes+failures; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventProvenance)
		evt.Success = i < successes
		evt.Properties = map[string]interface{}{"role": role}
		l.Append(evt)
	}
}

func TestCheckHealth_EmptyLedgerIsHealthy(t *testing.T) {
	m := NewMonitor(newTestLedger(t), nil)

	health := m.CheckHealth()
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Empty(t, health.ProblematicTools)
	assert.Empty(t, health.FailedRoles)
	assert.Empty(t, health.RecommendedActions)
}

func TestCheckHealth_TrippedToolRecommendsSkip(t *testing.T) {
	l := newTestLedger(t)
	// 8 attempts, all failed: rate 0 < 0.3 trips the breaker.
	seedToolUses(l, "run_command", 0, 8)

	health := NewMonitor(l, nil).CheckHealth()
	assert.Equal(t, StatusDegraded, health.Status)
	assert.Equal(t, []string{"run_command"}, health.ProblematicTools)
	require.NotEmpty(t, health.RecommendedActions)
	action := health.RecommendedActions[0]
	assert.Equal(t, "skip_tool", action.Type)
	assert.Equal(t, "run_command", action.Target)
	assert.Equal(t, 1, action.Priority)
	assert.Contains(t, action.Reason, "tripped")
}

func TestCheckHealth_DegradedToolRecommendsRetry(t *testing.T) {
	l := newTestLedger(t)
	// Rate 0.5: below 0.7 but above the 0.3 trip line.
	seedToolUses(l, "git_push", 5, 5)

	health := NewMonitor(l, nil).CheckHealth()
	assert.Equal(t, StatusDegraded, health.Status)
	require.NotEmpty(t, health.RecommendedActions)
	assert.Equal(t, "retry_with_backoff", health.RecommendedActions[0].Type)
	assert.Equal(t, 2, health.RecommendedActions[0].Priority)
}

func TestCheckHealth_FailingRoleRecommendsSkipRole(t *testing.T) {
	l := newTestLedger(t)
	// All failures: PI = 0.7*0 + 0.3*1 = 0.30 < 0.5.
	seedRoleOutcomes(l, types.RoleFeatureScout, 0, 4)

	health := NewMonitor(l, nil).CheckHealth()
	assert.Equal(t, StatusDegraded, health.Status)
	assert.Equal(t, []string{types.RoleFeatureScout}, health.FailedRoles)
	require.NotEmpty(t, health.RecommendedActions)
	assert.Equal(t, "skip_role", health.RecommendedActions[0].Type)
}

func TestCheckHealth_CriticalThresholds(t *testing.T) {
	t.Run("three tool problems", func(t *testing.T) {
		l := newTestLedger(t)
		seedToolUses(l, "tool_a", 0, 6)
		seedToolUses(l, "tool_b", 0, 6)
		seedToolUses(l, "tool_c", 0, 6)

		health := NewMonitor(l, nil).CheckHealth()
		assert.Equal(t, StatusCritical, health.Status)
	})

	t.Run("two role failures", func(t *testing.T) {
		l := newTestLedger(t)
		seedRoleOutcomes(l, types.RoleFeatureScout, 0, 4)
		seedRoleOutcomes(l, types.RoleCodeAuditor, 0, 4)

		health := NewMonitor(l, nil).CheckHealth()
		assert.Equal(t, StatusCritical, health.Status)
		assert.Len(t, health.FailedRoles, 2)
	})
}

func TestCheckHealth_ChronicFailuresCreateIssues(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := l.SaveContext("session-1", "task_failure", map[string]interface{}{
			"task_id": "task-9",
			"status":  "FAILED",
		})
		require.NoError(t, err)
	}

	health := NewMonitor(l, nil).CheckHealth()
	// Chronic patterns alone do not degrade the status.
	assert.Equal(t, StatusHealthy, health.Status)
	require.NotEmpty(t, health.RecommendedActions)
	action := health.RecommendedActions[0]
	assert.Equal(t, "create_issue", action.Type)
	assert.Equal(t, "task-9", action.Target)
	assert.Equal(t, 3, action.Priority)
	assert.Contains(t, action.Reason, "failures in 24h")
}

func TestCheckHealth_ActionsSortedByPriority(t *testing.T) {
	l := newTestLedger(t)
	seedToolUses(l, "run_command", 0, 8)               // priority 1
	seedRoleOutcomes(l, types.RoleBranchManager, 0, 4) // priority 2
	// Chronic pattern: priority 3.
	for i := 0; i < 2; i++ {
		_, err := l.SaveContext("session-1", "task_failure", map[string]interface{}{
			"task_id": "task-1",
			"status":  "FAILED",
		})
		require.NoError(t, err)
	}

	health := NewMonitor(l, nil).CheckHealth()
	require.GreaterOrEqual(t, len(health.RecommendedActions), 3)
	for i := 1; i < len(health.RecommendedActions); i++ {
		assert.LessOrEqual(t,
			health.RecommendedActions[i-1].Priority,
			health.RecommendedActions[i].Priority)
	}
}

func TestShouldSkipRole(t *testing.T) {
	l := newTestLedger(t)

	// Healthy role: defaults give PI 1.0.
	m := NewMonitor(l, nil)
	assert.False(t, m.ShouldSkipRole(types.RoleIssueTriage))

	// All failures and slow executions: PI = 0.3 * (1 - 8000/10000) = 0.06.
	seedRoleOutcomes(l, types.RoleIssueTriage, 0, 4)
	for i := 0; i < 3; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventToolUse)
		evt.ToolName = "git_role_" + types.RoleIssueTriage
		evt.Success = false
		evt.DurationMs = 8000
		l.Append(evt)
	}
	assert.True(t, m.ShouldSkipRole(types.RoleIssueTriage))
}

func TestShouldSkipRole_BoundaryNotSkipped(t *testing.T) {
	l := newTestLedger(t)
	// All failures, no duration data: PI lands exactly on 0.30, which
	// does not cross the strict < 0.3 line.
	seedRoleOutcomes(l, types.RoleCodeAuditor, 0, 4)

	assert.False(t, NewMonitor(l, nil).ShouldSkipRole(types.RoleCodeAuditor))
}

func TestRecordFailureAndSuccessCounters(t *testing.T) {
	m := NewMonitor(newTestLedger(t), nil)

	m.RecordFailure("git_push", errors.New("remote rejected"))
	m.RecordFailure("git_push", nil)
	assert.Equal(t, 2, m.FailureCount("git_push"))

	m.RecordSuccess("git_push")
	assert.Equal(t, 1, m.FailureCount("git_push"))

	// Never below zero, and unknown targets are zero.
	m.RecordSuccess("git_push")
	m.RecordSuccess("git_push")
	assert.Equal(t, 0, m.FailureCount("git_push"))
	assert.Equal(t, 0, m.FailureCount("never_seen"))
}

func TestRecordFailureEmitsErrorEvent(t *testing.T) {
	l := newTestLedger(t)
	m := NewMonitor(l, telemetry.NewCollector(l, "session-1"))

	before, err := l.Count()
	require.NoError(t, err)
	m.RecordFailure("git_push", errors.New(strings.Repeat("x", 200)))

	after, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestSummary(t *testing.T) {
	l := newTestLedger(t)
	seedToolUses(l, "run_command", 0, 8)

	summary := NewMonitor(l, nil).Summary()
	assert.Contains(t, summary, "System Status: DEGRADED")
	assert.Contains(t, summary, "Degraded tools: run_command")
	assert.Contains(t, summary, "[skip_tool] run_command")
}
