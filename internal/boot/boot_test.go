package boot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/config"
	"swarm/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDetectStack(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		language string
		variant  string
		monorepo bool
	}{
		{
			name:     "nx wins over everything",
			files:    map[string]string{"nx.json": "{}", "package.json": "{}", "go.mod": "module x"},
			language: "polyglot",
			variant:  "nx",
			monorepo: true,
		},
		{
			name:     "cargo workspace",
			files:    map[string]string{"Cargo.toml": "[workspace]\nmembers = []"},
			language: "rust",
			variant:  "cargo",
			monorepo: true,
		},
		{
			name:     "poetry project",
			files:    map[string]string{"pyproject.toml": "[tool.poetry]\nname = \"x\""},
			language: "python",
			variant:  "poetry",
		},
		{
			name:     "plain pip",
			files:    map[string]string{"requirements.txt": "requests\n"},
			language: "python",
			variant:  "pip",
		},
		{
			name:     "go module",
			files:    map[string]string{"go.mod": "module example\n\ngo 1.24.0\n"},
			language: "go",
			variant:  "mod",
		},
		{
			name:     "empty workspace",
			files:    nil,
			language: "unknown",
			variant:  "generic",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			fp := NewStackDetector(dir).Detect()
			assert.Equal(t, tc.language, fp.PrimaryLanguage)
			assert.Equal(t, tc.variant, fp.ToolchainVariant)
			assert.Equal(t, tc.monorepo, fp.IsMonorepo)
		})
	}
}

func TestDetectNodeFrameworks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"react": "^18", "next": "14.0.0"},
		"devDependencies": {"vitest": "^1"},
		"workspaces": ["packages/*"]
	}`)

	fp := NewStackDetector(dir).Detect()
	assert.Equal(t, "node", fp.PrimaryLanguage)
	assert.ElementsMatch(t, []string{"react", "next"}, fp.Frameworks)
	assert.True(t, fp.IsMonorepo)
}

func TestDetectGoVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example\n\ngo 1.24.0\n")

	fp := NewStackDetector(dir).Detect()
	assert.Equal(t, "1.24.0", fp.DetectedVersion)
}

func TestBuildFilesSkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example")
	writeFile(t, dir, "web/package.json", "{}")
	writeFile(t, dir, "node_modules/dep/package.json", "{}")

	files := NewStackDetector(dir).BuildFiles()
	assert.Contains(t, files, "go.mod")
	assert.Contains(t, files, "web/package.json")
	for _, f := range files {
		assert.NotContains(t, f, "node_modules")
	}
}

func TestMigrateProfile(t *testing.T) {
	t.Run("current version untouched", func(t *testing.T) {
		profile := types.NewProjectProfile()
		before := len(profile.ProvenanceLog)
		assert.False(t, MigrateProfile(profile))
		assert.Len(t, profile.ProvenanceLog, before)
	})

	t.Run("old version migrates with provenance note", func(t *testing.T) {
		profile := types.NewProjectProfile()
		profile.SchemaVersion = "3.2.0"
		task := types.NewTask("legacy task")
		task.Git.Base = ""
		profile.AddTask(task)

		assert.True(t, MigrateProfile(profile))
		assert.Equal(t, types.SchemaVersion, profile.SchemaVersion)
		assert.Equal(t, "dev", task.Git.Base)

		require.NotEmpty(t, profile.ProvenanceLog)
		last := profile.ProvenanceLog[len(profile.ProvenanceLog)-1]
		assert.Equal(t, "schema_migrated", last.Action)
		assert.Contains(t, last.ArtifactRef, "3.2.0")
	})
}

func TestCheckerRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "test-key"

	ok, checks := NewChecker(dir, cfg).Run(context.Background())
	require.NotEmpty(t, checks)

	byName := make(map[string]CheckResult, len(checks))
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.True(t, byName["workspace"].OK)
	assert.True(t, byName["config"].OK)

	// Overall verdict depends only on critical checks; the provider
	// probe may fail without failing startup.
	if byName["git"].OK {
		assert.True(t, ok)
	}
}

func TestCheckerBadWorkspace(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "test-key"

	ok, checks := NewChecker(filepath.Join(t.TempDir(), "missing"), cfg).Run(context.Background())
	assert.False(t, ok)

	for _, c := range checks {
		if c.Name == "workspace" {
			assert.False(t, c.OK)
		}
	}
}
