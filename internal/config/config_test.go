package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Blackboard.StateFile != "project_profile.json" {
		t.Errorf("state file = %q", cfg.Blackboard.StateFile)
	}
	if cfg.GetLockTTL().Minutes() != 5 {
		t.Errorf("lock TTL = %v, want 5m", cfg.GetLockTTL())
	}
	if cfg.GetLockTimeout().Seconds() != 5 {
		t.Errorf("lock timeout = %v, want 5s", cfg.GetLockTimeout())
	}
	if cfg.Telemetry.RetentionDays != 30 {
		t.Errorf("retention = %d, want 30", cfg.Telemetry.RetentionDays)
	}
	if cfg.Graph.Damping != 0.85 {
		t.Errorf("damping = %v, want 0.85", cfg.Graph.Damping)
	}
	if cfg.Prune.KeepTail != 10 || cfg.Prune.KeepRelevant != 20 {
		t.Errorf("prune defaults = %+v", cfg.Prune)
	}
	if !cfg.Git.StrictMode {
		t.Error("strict git should default to true")
	}
	if cfg.Debate.MaxRounds != 5 {
		t.Errorf("debate rounds = %d, want 5", cfg.Debate.MaxRounds)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "swarm" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	content := []byte(`
graph:
  damping: 0.9
  workers: 8
debate:
  topology: pairs
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Graph.Damping != 0.9 {
		t.Errorf("damping = %v, want 0.9", cfg.Graph.Damping)
	}
	if cfg.Graph.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Graph.Workers)
	}
	if cfg.Debate.Topology != "pairs" {
		t.Errorf("topology = %q", cfg.Debate.Topology)
	}
	// Untouched sections keep defaults
	if cfg.Graph.MaxIterations != 100 {
		t.Errorf("max iterations = %d, want default 100", cfg.Graph.MaxIterations)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/swarm")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("SWARM_LITE_MODE", "true")
	t.Setenv("SWARM_STRICT_GIT", "false")
	t.Setenv("SWARM_SBFL_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.SQLEnabled() {
		t.Error("POSTGRES_URL should enable the SQL backend")
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("github token = %q", cfg.GitHub.Token)
	}
	if !cfg.Kernel.LiteMode || !cfg.Graph.LiteMode {
		t.Error("SWARM_LITE_MODE should set lite mode everywhere")
	}
	if cfg.Git.StrictMode {
		t.Error("SWARM_STRICT_GIT=false should disable strict mode")
	}
	if !cfg.Kernel.SBFLAutomatic {
		t.Error("SWARM_SBFL_ENABLED=true should enable automatic SBFL")
	}
}

func TestStrictGitDefaultsTrueWhenUnset(t *testing.T) {
	t.Setenv("SWARM_STRICT_GIT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Git.StrictMode {
		t.Error("strict git must stay enabled when the variable is unset")
	}
}

func TestProviderKeyPriority(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Later checks win: anthropic overrides gemini
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "a-key" {
		t.Errorf("provider = %q key = %q", cfg.LLM.Provider, cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.LLM.Provider = "unknown"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown provider accepted")
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "ollama" // no key required
	if err := cfg.Validate(); err != nil {
		t.Errorf("ollama without key rejected: %v", err)
	}

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "key"
	cfg.Graph.Damping = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("out-of-range damping accepted")
	}

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "key"
	cfg.Debate.Topology = "mesh"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown topology accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".swarm", "swarm.yaml")

	cfg := DefaultConfig()
	cfg.Graph.Workers = 16
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Graph.Workers != 16 {
		t.Errorf("workers = %d after round trip", loaded.Graph.Workers)
	}
}
