package blackboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"swarm/internal/types"
)

func TestFileStore_MissingFileIsFresh(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "profile.json"), time.Second)

	profile, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if profile != nil {
		t.Errorf("profile = %+v, want nil for missing file", profile)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "profile.json"), time.Second)
	ctx := context.Background()

	profile := types.NewProjectProfile()
	task := types.NewTask("add login endpoint")
	profile.AddTask(task)

	if err := s.Save(ctx, profile); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil after Save")
	}
	got := loaded.GetTask(task.ID)
	if got == nil {
		t.Fatal("task lost in round trip")
	}
	if diff := cmp.Diff(task, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("task changed in round trip (-saved +loaded):\n%s", diff)
	}
	if loaded.SchemaVersion != types.SchemaVersion {
		t.Errorf("schema_version = %q", loaded.SchemaVersion)
	}
}

func TestFileStore_CorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path, time.Second)

	if _, err := s.Load(context.Background()); err == nil {
		t.Error("corrupt state file loaded without error")
	}
}

func TestFileStore_LegacyMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, LegacyStateFile)
	if err := os.WriteFile(legacy, []byte(`{"old": true}`), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(filepath.Join(dir, "profile.json"), time.Second)
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Error("legacy file still present after migration")
	}
	archives, err := filepath.Glob(filepath.Join(dir, "blackboard_state_v1_backup_*.json"))
	if err != nil || len(archives) != 1 {
		t.Errorf("archives = %v, err = %v", archives, err)
	}
}

func TestFileStore_MigrateNoLegacyIsNoop(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "profile.json"), time.Second)
	if err := s.Migrate(); err != nil {
		t.Errorf("Migrate failed on clean dir: %v", err)
	}
}

func TestFileStore_SaveNilProfile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "profile.json"), time.Second)
	if err := s.Save(context.Background(), nil); err == nil {
		t.Error("Save(nil) succeeded")
	}
}
