package gitops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/heal"
	"swarm/internal/telemetry"
	"swarm/internal/types"
)

type stubMonitor struct {
	skip      map[string]bool
	health    heal.SystemHealth
	failures  []string
	successes []string
}

func (m *stubMonitor) CheckHealth() heal.SystemHealth       { return m.health }
func (m *stubMonitor) ShouldSkipRole(role string) bool      { return m.skip[role] }
func (m *stubMonitor) RecordFailure(target string, _ error) { m.failures = append(m.failures, target) }
func (m *stubMonitor) RecordSuccess(target string)          { m.successes = append(m.successes, target) }

type stubRole struct {
	name    string
	trigger bool
	report  types.ExitReport
	err     error
	calls   int
}

func (s *stubRole) Name() string                                { return s.name }
func (s *stubRole) TriggerCheck(*types.Task, *RoleContext) bool { return s.trigger }
func (s *stubRole) Execute(context.Context, *types.Task, *RoleContext) (types.ExitReport, error) {
	s.calls++
	return s.report, s.err
}

func TestDispatch_NoTriggersYieldNoReports(t *testing.T) {
	d := NewDispatcher(RoleContext{Vars: map[string]interface{}{}}, &stubMonitor{})

	reports := d.Dispatch(context.Background(), newRoleTask(), nil)
	assert.Empty(t, reports)
}

func TestDispatch_SkipComesBeforeTrigger(t *testing.T) {
	// The skipped role would not even have triggered; it still yields a
	// SKIPPED report because the gate runs first.
	monitor := &stubMonitor{skip: map[string]bool{types.RoleCodeAuditor: true}}
	d := NewDispatcher(RoleContext{Vars: map[string]interface{}{}}, monitor)

	reports := d.Dispatch(context.Background(), newRoleTask(), nil)
	require.Len(t, reports, 1)
	assert.Equal(t, types.ReportSkipped, reports[0].Status)
	assert.Equal(t, []string{"Skipped due to low performance index"}, reports[0].Warnings)
}

func TestDispatch_LowPerformanceRoleIsNeverExecuted(t *testing.T) {
	l := newTestLedger(t)
	// All failures plus slow runs push the performance index under the
	// 0.3 skip floor: 0.7*0 + 0.3*(1 - 8000/10000) = 0.06.
	for i := 0; i < 4; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventProvenance)
		evt.Success = false
		evt.Properties = map[string]interface{}{"role": types.RoleProjectLifecycle}
		l.Append(evt)
	}
	for i := 0; i < 3; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventToolUse)
		evt.ToolName = "git_role_" + types.RoleProjectLifecycle
		evt.Success = false
		evt.DurationMs = 8000
		l.Append(evt)
	}

	d := NewDispatcher(RoleContext{Ledger: l, Vars: map[string]interface{}{}}, heal.NewMonitor(l, nil))
	lifecycle := &stubRole{name: types.RoleProjectLifecycle, trigger: true}
	d.roles[types.RoleProjectLifecycle] = lifecycle

	reports := d.Dispatch(context.Background(), newRoleTask(types.IntentProjectLifecycle), nil)

	assert.Zero(t, lifecycle.calls)
	require.Len(t, reports, 1)
	assert.Equal(t, types.ReportSkipped, reports[0].Status)
}

func TestDispatch_RoleErrorBecomesFailedReport(t *testing.T) {
	l := newTestLedger(t)
	monitor := &stubMonitor{}
	base := RoleContext{
		Ledger:    l,
		Collector: telemetry.NewCollector(l, "session-1"),
		Vars:      map[string]interface{}{},
	}
	d := NewDispatcher(base, monitor)
	d.roles[types.RoleFeatureScout] = &stubRole{
		name: types.RoleFeatureScout, trigger: true, err: errors.New("boom"),
	}

	task := newRoleTask()
	reports := d.Dispatch(context.Background(), task, nil)

	require.Len(t, reports, 1)
	assert.Equal(t, types.ReportFailed, reports[0].Status)
	assert.Equal(t, task.ID, reports[0].TaskID)
	assert.Equal(t, []string{"boom"}, reports[0].Warnings)
	assert.Equal(t, []string{types.RoleFeatureScout}, monitor.failures)

	// The failure is telemetry the next ordering decision sees.
	assert.Equal(t, 0.0, l.RoleSuccessRate(types.RoleFeatureScout))
}

func TestDispatch_SuccessRecordsOutcome(t *testing.T) {
	l := newTestLedger(t)
	monitor := &stubMonitor{}
	base := RoleContext{
		Ledger:    l,
		Collector: telemetry.NewCollector(l, "session-1"),
		Vars:      map[string]interface{}{},
	}
	d := NewDispatcher(base, monitor)
	done := types.ExitReport{Status: types.ReportCompleted, RemainingWork: "done"}
	d.roles[types.RoleFeatureScout] = &stubRole{
		name: types.RoleFeatureScout, trigger: true, report: done,
	}

	reports := d.Dispatch(context.Background(), newRoleTask(), nil)

	require.Len(t, reports, 1)
	assert.Equal(t, types.ReportCompleted, reports[0].Status)
	assert.Equal(t, []string{types.RoleFeatureScout}, monitor.successes)
	assert.Equal(t, 1.0, l.RoleSuccessRate(types.RoleFeatureScout))

	count, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count) // one tool_use, one provenance
}

func TestDispatch_ActiveContextOverlaysBaseVars(t *testing.T) {
	base := RoleContext{GitHub: &GitHubClient{}, Vars: map[string]interface{}{"periodic_audit": false}}
	d := NewDispatcher(base, &stubMonitor{})

	reports := d.Dispatch(context.Background(), newRoleTask(),
		map[string]interface{}{"periodic_audit": true})

	// The auditor saw the overlay value and ran; the base stays untouched.
	require.Len(t, reports, 1)
	assert.Equal(t, "No files to audit", reports[0].RemainingWork)
	assert.Equal(t, false, d.base.Vars["periodic_audit"])
}

func TestDispatch_CriticalHealthStillDispatches(t *testing.T) {
	monitor := &stubMonitor{health: heal.SystemHealth{
		Status:             heal.StatusCritical,
		RecommendedActions: []heal.Action{{Type: "skip_tool", Target: "git_push"}},
	}}
	d := NewDispatcher(RoleContext{Vars: map[string]interface{}{}}, monitor)
	scout := &stubRole{name: types.RoleFeatureScout, trigger: true,
		report: types.ExitReport{Status: types.ReportCompleted}}
	d.roles[types.RoleFeatureScout] = scout

	reports := d.Dispatch(context.Background(), newRoleTask(), nil)
	assert.Equal(t, 1, scout.calls)
	require.Len(t, reports, 1)
}

func TestExecutionOrder_FreshLedgerKeepsDefault(t *testing.T) {
	d := NewDispatcher(RoleContext{Ledger: newTestLedger(t)}, &stubMonitor{})

	assert.Equal(t, defaultOrder, d.executionOrder())
}

func TestExecutionOrder_LowPerformerSinksLast(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 4; i++ {
		evt := telemetry.NewEvent("session-1", "install-1", telemetry.EventProvenance)
		evt.Success = false
		evt.Properties = map[string]interface{}{"role": types.RoleProjectLifecycle}
		l.Append(evt)
	}

	d := NewDispatcher(RoleContext{Ledger: l}, &stubMonitor{})

	assert.Equal(t, []string{
		types.RoleIssueTriage,
		types.RoleFeatureScout,
		types.RoleCodeAuditor,
		types.RoleBranchManager,
		types.RoleProjectLifecycle,
	}, d.executionOrder())
}
