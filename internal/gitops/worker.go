package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swarm/internal/logging"
)

// Provider identifies where a repository's remote lives.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderLocal     Provider = "local"
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderBitbucket Provider = "bitbucket"
)

// RepoInfo is the detected shape of the working repository.
type RepoInfo struct {
	Provider      Provider
	RemoteURL     string
	DefaultBranch string
	RepoPath      string
}

// Worker owns repository detection and the per-repo git executor. It
// answers capability questions (is there a repo, a remote, a token)
// and renders the workflow instructions injected into agent prompts.
type Worker struct {
	info RepoInfo
	exec *Executor
}

// NewWorker probes root for a git repository and classifies its
// remote. Detection failures degrade to ProviderNone rather than
// erroring: a missing repo just means the git workflow stays off.
func NewWorker(ctx context.Context, root string, timeout time.Duration) *Worker {
	w := &Worker{
		info: RepoInfo{Provider: ProviderNone, DefaultBranch: "main", RepoPath: root},
		exec: NewExecutor(root, timeout),
	}

	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		logging.GitOps("Git detected: %s, remote: none", w.info.Provider)
		return w
	}
	w.info.Provider = ProviderLocal

	if url, err := w.exec.ConfigGet(ctx, "remote.origin.url"); err == nil && url != "" {
		w.info.RemoteURL = url
		switch {
		case strings.Contains(url, "github.com"):
			w.info.Provider = ProviderGitHub
		case strings.Contains(url, "gitlab.com"):
			w.info.Provider = ProviderGitLab
		case strings.Contains(url, "bitbucket.org"):
			w.info.Provider = ProviderBitbucket
		}
	}

	if branch, err := w.exec.CurrentBranch(ctx); err == nil && branch != "" {
		w.info.DefaultBranch = branch
	}

	remote := w.info.RemoteURL
	if remote == "" {
		remote = "none"
	}
	logging.GitOps("Git detected: %s, remote: %s", w.info.Provider, remote)
	return w
}

// Info returns the detected repository shape.
func (w *Worker) Info() RepoInfo { return w.info }

// Executor exposes the repo-rooted git executor for the tool layer.
func (w *Worker) Executor() *Executor { return w.exec }

// IsAvailable reports whether a git repository was found at all.
func (w *Worker) IsAvailable() bool { return w.info.Provider != ProviderNone }

// HasRemote reports whether an origin remote is configured.
func (w *Worker) HasRemote() bool { return w.info.RemoteURL != "" }

// IsGitHub reports whether the remote points at github.com.
func (w *Worker) IsGitHub() bool { return w.info.Provider == ProviderGitHub }

// IsGitLab reports whether the remote points at gitlab.com.
func (w *Worker) IsGitLab() bool { return w.info.Provider == ProviderGitLab }

// HasGitHubToken reports whether a GITHUB_TOKEN is in the environment.
func (w *Worker) HasGitHubToken() bool { return os.Getenv("GITHUB_TOKEN") != "" }

// IsGitHubReady reports whether PR creation can work: a GitHub remote
// plus a token for the API.
func (w *Worker) IsGitHubReady() bool { return w.IsGitHub() && w.HasGitHubToken() }

// HasChanges reports whether the working tree is dirty. Errors read as
// clean so a broken git never blocks the pipeline.
func (w *Worker) HasChanges(ctx context.Context) bool {
	if !w.IsAvailable() {
		return false
	}
	out, err := w.exec.StatusPorcelain(ctx)
	if err != nil {
		logging.GitOpsWarn("status check failed: %v", err)
		return false
	}
	return strings.TrimSpace(out) != ""
}

// WorkflowInstructions renders the <git_workflow> block appended to
// worker prompts, describing the tools and flags available for the
// detected provider. Empty when no repository is available.
func (w *Worker) WorkflowInstructions() string {
	if !w.IsAvailable() {
		return ""
	}

	var b strings.Builder
	b.WriteString("<git_workflow>\n")
	b.WriteString("Git repository detected. After completing file changes:\n\n")
	b.WriteString("1. Use git tools to commit your work:\n")
	b.WriteString("   - git_status: Check what changed\n")
	b.WriteString("   - git_add: Stage your changes\n")
	b.WriteString("   - git_commit: Commit with conventional format\n")
	b.WriteString("     Format: type(scope): description\n")
	b.WriteString("     Body: REQUIRED - explain Why and What\n")
	b.WriteString("     Example:\n")
	b.WriteString("       feat(auth): enable jwt token refresh\n\n")
	b.WriteString("       Why: sessions expired too aggressively\n")
	b.WriteString("       What: refresh endpoint plus middleware hook\n\n")
	b.WriteString("       Task: #123\n")

	if w.HasRemote() {
		fmt.Fprintf(&b, "   - git_push: Push to remote (%s)\n", w.info.Provider)
	}
	switch {
	case w.IsGitHub() && w.HasGitHubToken():
		b.WriteString("   - create_pull_request: Create PR for review (GitHub)\n")
	case w.IsGitHub():
		b.WriteString("   - create_pull_request: Requires GITHUB_TOKEN env var\n")
	case w.IsGitLab():
		b.WriteString("   - create_merge_request: Create MR for review (GitLab)\n")
	}

	b.WriteString("\n2. Set task flags when done:\n")
	b.WriteString("   - git_commit_ready=true when changes are ready to commit\n")
	b.WriteString("   - git_auto_push=true to push after commit\n")
	b.WriteString("   - git_create_pr=true to open a pull request\n")
	b.WriteString("\n3. Branching Strategy:\n")
	fmt.Fprintf(&b, "   - Feature/fix branches target '%s' by default\n", "dev")
	b.WriteString("   - Use 'main' only for production releases\n")
	b.WriteString("   - PR workflow: feature -> dev -> main\n")
	b.WriteString("</git_workflow>")
	return b.String()
}
