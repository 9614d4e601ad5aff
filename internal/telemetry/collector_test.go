package telemetry

import (
	"errors"
	"testing"
)

func TestTrackRecordsOutcome(t *testing.T) {
	l := newTestLedger(t)
	c := NewCollector(l, "session-x")

	if err := c.Track("good_tool", func() error { return nil }); err != nil {
		t.Fatalf("Track: %v", err)
	}

	wantErr := errors.New("connection refused")
	if err := c.Track("bad_tool", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Track should pass the error through, got %v", err)
	}

	if rate := l.ToolSuccessRate("good_tool", 1); rate != 1.0 {
		t.Errorf("good_tool rate = %v", rate)
	}
	if rate := l.ToolSuccessRate("bad_tool", 1); rate != 0.0 {
		t.Errorf("bad_tool rate = %v", rate)
	}
}

func TestRecordProvenanceSignature(t *testing.T) {
	l := newTestLedger(t)
	c := NewCollector(l, "session-x")

	sig := c.RecordProvenance("agent-1", "auditor", "task_completed", "gemini-3-flash-preview", "task-9")

	if sig.AgentID != "agent-1" || sig.Role != "auditor" {
		t.Errorf("signature fields: %+v", sig)
	}
	if sig.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	if sig.Signature != c.InstallID() {
		t.Error("signature should carry the install id")
	}

	// The provenance event feeds role analytics
	if rate := l.RoleSuccessRate("auditor"); rate != 1.0 {
		t.Errorf("auditor rate = %v", rate)
	}
}

func TestRoleSuccessRateCountsFailures(t *testing.T) {
	l := newTestLedger(t)
	c := NewCollector(l, "session-x")

	c.RecordProvenance("agent-1", "engineer", "task_completed", "", "t1")
	c.RecordProvenance("agent-1", "engineer", "task_failed", "", "t2")

	rate := l.RoleSuccessRate("engineer")
	if rate != 0.5 {
		t.Errorf("rate = %v, want 0.5", rate)
	}
}

func TestErrorCategorization(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("context deadline exceeded"), "timeout"},
		{errors.New("permission denied"), "permission"},
		{errors.New("file not found"), "not_found"},
		{errors.New("connection reset"), "network"},
		{errors.New("something else"), "runtime"},
	}
	for _, c := range cases {
		if got := categorize(c.err); got != c.want {
			t.Errorf("categorize(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestMemorySnapshots(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.SaveContext("session-a", ContextActive, map[string]interface{}{
		"current_task": "t-1",
	})
	if err != nil {
		t.Fatalf("SaveContext: %v", err)
	}
	_, err = l.SaveContext("session-a", ContextMemoryBank, map[string]interface{}{
		"lesson": "retry flaky tests once",
	})
	if err != nil {
		t.Fatalf("SaveContext: %v", err)
	}

	active, err := l.LoadSessionContext("session-a", ContextActive)
	if err != nil {
		t.Fatalf("LoadSessionContext: %v", err)
	}
	if active["current_task"] != "t-1" {
		t.Errorf("active context = %v", active)
	}

	latest, err := l.LoadLatestContext(ContextMemoryBank)
	if err != nil {
		t.Fatalf("LoadLatestContext: %v", err)
	}
	if latest["lesson"] != "retry flaky tests once" {
		t.Errorf("memory bank = %v", latest)
	}

	missing, err := l.LoadSessionContext("session-z", ContextActive)
	if err != nil || missing != nil {
		t.Errorf("missing session should be nil, nil; got %v, %v", missing, err)
	}
}

func TestFailurePatterns(t *testing.T) {
	l := newTestLedger(t)

	// Same task failing three times, another failing once
	for i := 0; i < 3; i++ {
		l.SaveContext("s1", ContextActive, map[string]interface{}{
			"task_id": "task-hot",
			"status":  "FAILED",
		})
	}
	l.SaveContext("s1", ContextActive, map[string]interface{}{
		"task_id": "task-cold",
		"status":  "FAILED",
	})
	l.SaveContext("s1", ContextActive, map[string]interface{}{
		"task_id": "task-fine",
		"status":  "COMPLETED",
	})

	patterns := l.FailurePatterns(24)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %v, want only the repeated failure", patterns)
	}
	if patterns[0].Target != "task-hot" || patterns[0].FailureCount != 3 {
		t.Errorf("pattern = %+v", patterns[0])
	}
}
