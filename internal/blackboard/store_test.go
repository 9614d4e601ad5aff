package blackboard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"swarm/internal/types"
)

func newFileOnlyStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(),
		filepath.Join(t.TempDir(), "profile.json"), "", time.Second, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestStore_FreshDefaultWhenEmpty(t *testing.T) {
	s := newFileOnlyStore(t)

	profile, err := s.Load(context.Background(), "sess-1", "agent-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if profile == nil {
		t.Fatal("Load returned nil profile")
	}
	if profile.SchemaVersion != types.SchemaVersion {
		t.Errorf("schema_version = %q, want %q", profile.SchemaVersion, types.SchemaVersion)
	}
	if len(profile.Tasks) != 0 {
		t.Errorf("fresh profile has %d tasks", len(profile.Tasks))
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	s := newFileOnlyStore(t)
	ctx := context.Background()

	profile, err := s.Load(ctx, "sess-1", "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	task := types.NewTask("wire up telemetry")
	profile.AddTask(task)
	profile.AppendProvenance(types.NewSignature("agent-1", types.RoleEngineer, "task_created", task.ID))

	if err := s.Save(ctx, "sess-1", profile, "agent-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := s.Load(ctx, "sess-1", "agent-1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.GetTask(task.ID) == nil {
		t.Error("task missing after reload")
	}
	if len(reloaded.ProvenanceLog) != 1 {
		t.Errorf("provenance entries = %d, want 1", len(reloaded.ProvenanceLog))
	}
}

func TestStore_SQLDisabledPaths(t *testing.T) {
	s := newFileOnlyStore(t)
	ctx := context.Background()

	if s.SQLEnabled() {
		t.Fatal("SQL enabled without a URL")
	}
	// Lock operations must be harmless no-ops without SQL.
	s.ReleaseLock(ctx, "sess-1", "agent-1")
	if n := s.CleanupStaleLocks(ctx, 10*time.Minute); n != 0 {
		t.Errorf("CleanupStaleLocks = %d, want 0", n)
	}
}

func TestVectorLiteral(t *testing.T) {
	got := vectorLiteral([]float32{1, 0.5, -2})
	if got != "[1,0.5,-2]" {
		t.Errorf("vectorLiteral = %q", got)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("empty vectorLiteral = %q", got)
	}
}
