package boot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// StackDetector identifies the technology stack of a workspace from its
// marker files. Detection is priority-ordered: a workspace orchestrator
// wins over any single language, and the first language marker found
// decides the primary language.
type StackDetector struct {
	root string
}

// NewStackDetector scans the given workspace root.
func NewStackDetector(root string) *StackDetector {
	return &StackDetector{root: root}
}

// Detect scans root-level marker files and returns a fingerprint.
func (d *StackDetector) Detect() *types.StackFingerprint {
	has := func(name string) bool {
		_, err := os.Stat(filepath.Join(d.root, name))
		return err == nil
	}

	// Workspace orchestrators first: an nx workspace is polyglot
	// regardless of which languages live inside it.
	if has("nx.json") {
		return &types.StackFingerprint{
			PrimaryLanguage:  "polyglot",
			ToolchainVariant: "nx",
			IsMonorepo:       true,
		}
	}

	switch {
	case has("Cargo.toml"):
		return d.analyzeRust()
	case has("pyproject.toml") || has("requirements.txt"):
		return d.analyzePython()
	case has("package.json"):
		return d.analyzeNode()
	case has("go.mod"):
		return d.analyzeGo()
	}

	return &types.StackFingerprint{PrimaryLanguage: "unknown", ToolchainVariant: "generic"}
}

func (d *StackDetector) analyzeRust() *types.StackFingerprint {
	fp := &types.StackFingerprint{PrimaryLanguage: "rust", ToolchainVariant: "cargo"}
	data, err := os.ReadFile(filepath.Join(d.root, "Cargo.toml"))
	if err == nil && strings.Contains(string(data), "[workspace]") {
		fp.IsMonorepo = true
	}
	return fp
}

func (d *StackDetector) analyzePython() *types.StackFingerprint {
	fp := &types.StackFingerprint{PrimaryLanguage: "python", ToolchainVariant: "pip"}
	data, err := os.ReadFile(filepath.Join(d.root, "pyproject.toml"))
	if err == nil && strings.Contains(string(data), "[tool.poetry]") {
		fp.ToolchainVariant = "poetry"
	}
	return fp
}

func (d *StackDetector) analyzeNode() *types.StackFingerprint {
	fp := &types.StackFingerprint{PrimaryLanguage: "node", ToolchainVariant: "npm"}

	data, err := os.ReadFile(filepath.Join(d.root, "package.json"))
	if err != nil {
		return fp
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
		Workspaces      json.RawMessage   `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		logging.BootWarn("stack detector: unreadable package.json: %v", err)
		return fp
	}

	deps := make(map[string]bool, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name := range pkg.Dependencies {
		deps[name] = true
	}
	for name := range pkg.DevDependencies {
		deps[name] = true
	}
	for _, fw := range []string{"react", "next", "express", "vue", "nest"} {
		if deps[fw] {
			fp.Frameworks = append(fp.Frameworks, fw)
		}
	}
	fp.IsMonorepo = len(pkg.Workspaces) > 0

	return fp
}

func (d *StackDetector) analyzeGo() *types.StackFingerprint {
	fp := &types.StackFingerprint{PrimaryLanguage: "go", ToolchainVariant: "mod"}
	data, err := os.ReadFile(filepath.Join(d.root, "go.mod"))
	if err != nil {
		return fp
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "go "); ok {
			fp.DetectedVersion = strings.TrimSpace(v)
			break
		}
	}
	return fp
}

// buildFileGlobs are the marker patterns collected into the build-file
// inventory, one level of nesting deep so monorepo packages show up.
var buildFileGlobs = []string{
	"go.mod", "*/go.mod",
	"Cargo.toml", "*/Cargo.toml",
	"package.json", "*/package.json",
	"pyproject.toml", "*/pyproject.toml",
	"requirements.txt",
	"Makefile", "nx.json",
}

// BuildFiles inventories the workspace's build marker files. Node module
// trees are excluded; nothing inside node_modules describes this
// project's own stack.
func (d *StackDetector) BuildFiles() []string {
	var found []string
	fsys := os.DirFS(d.root)
	for _, pattern := range buildFileGlobs {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if strings.Contains(m, "node_modules") {
				continue
			}
			found = append(found, m)
		}
	}
	return found
}
