// Package boot runs the process startup sequence: environment checks,
// workspace stack detection, and blackboard schema migration. Check
// failures map to the process exit contract (any failing critical check
// means exit code 1).
package boot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"swarm/internal/config"
	"swarm/internal/logging"
)

// CheckResult is the outcome of one startup check.
type CheckResult struct {
	Name     string
	OK       bool
	Critical bool
	Detail   string
}

// helperTimeout bounds the subprocess probes so a hung git binary
// cannot stall startup.
const helperTimeout = 5 * time.Second

// Checker runs the startup checks against one workspace.
type Checker struct {
	workspace string
	cfg       *config.Config
}

// NewChecker builds a checker for the workspace root.
func NewChecker(workspace string, cfg *config.Config) *Checker {
	return &Checker{workspace: workspace, cfg: cfg}
}

// Run executes every check and reports whether all critical checks
// passed. Non-critical failures are logged as warnings only.
func (c *Checker) Run(ctx context.Context) (bool, []CheckResult) {
	checks := []CheckResult{
		c.checkWorkspace(),
		c.checkGit(ctx),
		c.checkConfig(),
		c.checkProviders(),
	}

	ok := true
	for _, chk := range checks {
		switch {
		case chk.OK:
			logging.Boot("check %s: %s", chk.Name, chk.Detail)
		case chk.Critical:
			logging.BootError("check %s failed: %s", chk.Name, chk.Detail)
			ok = false
		default:
			logging.BootWarn("check %s: %s", chk.Name, chk.Detail)
		}
	}
	return ok, checks
}

// checkWorkspace verifies the workspace exists and is writable. The
// blackboard file backend is strict, so a read-only workspace is fatal.
func (c *Checker) checkWorkspace() CheckResult {
	res := CheckResult{Name: "workspace", Critical: true}

	info, err := os.Stat(c.workspace)
	if err != nil || !info.IsDir() {
		res.Detail = fmt.Sprintf("%s is not a directory", c.workspace)
		return res
	}

	probe := filepath.Join(c.workspace, ".swarm-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		res.Detail = fmt.Sprintf("workspace not writable: %v", err)
		return res
	}
	os.Remove(probe)

	res.OK = true
	res.Detail = c.workspace
	return res
}

// checkGit verifies the git binary works. Git is critical: the strict-git
// invariant and the whole C9 layer depend on it.
func (c *Checker) checkGit(ctx context.Context) CheckResult {
	res := CheckResult{Name: "git", Critical: true}

	if _, err := exec.LookPath("git"); err != nil {
		res.Detail = "git not installed"
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, helperTimeout)
	defer cancel()
	out, err := exec.CommandContext(runCtx, "git", "--version").Output()
	if err != nil {
		res.Detail = fmt.Sprintf("git probe failed: %v", err)
		return res
	}

	res.OK = true
	res.Detail = strings.TrimSpace(string(out))
	return res
}

// checkConfig validates the loaded configuration. An unusable config is
// critical; there is no sensible degraded mode for a bad damping factor
// or unknown provider.
func (c *Checker) checkConfig() CheckResult {
	res := CheckResult{Name: "config", Critical: true}
	if err := c.cfg.Validate(); err != nil {
		res.Detail = err.Error()
		return res
	}
	res.OK = true
	res.Detail = fmt.Sprintf("provider=%s model=%s", c.cfg.LLM.Provider, c.cfg.LLM.Model)
	return res
}

// checkProviders reports which LLM credentials are present. Never
// critical: the router degrades to the mock provider and the embedder
// chain to keyword-only mode.
func (c *Checker) checkProviders() CheckResult {
	res := CheckResult{Name: "providers"}

	var available []string
	if c.cfg.LLM.GeminiAPIKey != "" {
		available = append(available, "gemini")
	}
	if c.cfg.LLM.AnthropicAPIKey != "" {
		available = append(available, "anthropic")
	}
	if c.cfg.LLM.OpenAIAPIKey != "" {
		available = append(available, "openai")
	}
	if c.cfg.LLM.OllamaEndpoint != "" {
		available = append(available, "ollama")
	}

	res.OK = true
	if len(available) == 0 {
		res.OK = false
		res.Detail = "no LLM provider credentials found; workers will use the mock provider"
		return res
	}
	res.Detail = strings.Join(available, ", ")
	return res
}
