// Package prompt builds the worker prompts dispatched to LLM providers.
// Each worker role pairs a skill document (the stable instructions for
// that role) with a <mission> block describing the task at hand. Skills
// are baked into the binary with go:embed; a workspace directory can
// override individual files for prompt iteration without a rebuild.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Skill filenames. Builders reference these; the override directory uses
// the same names.
const (
	SkillArchitect  = "architect-planning.md"
	SkillEngineer   = "software-engineering.md"
	SkillAuditor    = "security-audit.md"
	SkillDebugger   = "debugger.md"
	SkillResearcher = "researcher.md"
	SkillGitCommit  = "git-conventional-commits.md"
	SkillGitPR      = "git-pull-request.md"
	SkillGitBranch  = "git-branch-workflow.md"
	SkillGitWorker  = "git-worker-agent.md"
)

//go:embed skills
var embeddedSkills embed.FS

var overrideDir struct {
	mu  sync.RWMutex
	dir string
}

// SetSkillsDir points the loader at a directory whose markdown files
// override the embedded skills. Pass "" to restore embedded-only loading.
func SetSkillsDir(dir string) {
	overrideDir.mu.Lock()
	overrideDir.dir = dir
	overrideDir.mu.Unlock()
}

// loadSkill returns the named skill document. A missing or unreadable
// skill degrades to an inline error string so the worker prompt is still
// produced; the model sees the error instead of a silently truncated
// prompt.
func loadSkill(filename string) string {
	overrideDir.mu.RLock()
	dir := overrideDir.dir
	overrideDir.mu.RUnlock()

	if dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, filename)); err == nil {
			return string(data)
		}
	}

	data, err := embeddedSkills.ReadFile("skills/" + filename)
	if err != nil {
		return fmt.Sprintf("Error loading skill %s: %v", filename, err)
	}
	return string(data)
}
