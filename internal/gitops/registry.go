package gitops

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"swarm/internal/logging"
)

// ToolHandler executes one tool call with loosely-typed arguments, the
// shape they arrive in after decoding an agent's tool-call JSON.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// ToolSpec declares one registrable tool.
type ToolSpec struct {
	Name        string
	Description string
	Handler     ToolHandler
}

// ToolRegistry holds the fixed tool set built at startup. There is no
// runtime registration: the manifest is complete before the first task
// runs, so a missing tool is a configuration error, not a race.
type ToolRegistry struct {
	tools map[string]ToolSpec
}

// NewToolRegistry registers every manifest entry. In strict mode the
// first invalid entry aborts construction; otherwise bad entries are
// logged and skipped.
func NewToolRegistry(manifest []ToolSpec, strict bool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]ToolSpec, len(manifest))}
	for _, spec := range manifest {
		if err := r.register(spec); err != nil {
			if strict {
				return nil, fmt.Errorf("tool registration failed: %w", err)
			}
			logging.GitOpsWarn("skipping tool: %v", err)
		}
	}
	return r, nil
}

func (r *ToolRegistry) register(spec ToolSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool %q has no handler", spec.Name)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %q registered twice", spec.Name)
	}
	r.tools[spec.Name] = spec
	return nil
}

// Lookup returns the named tool spec.
func (r *ToolRegistry) Lookup(name string) (ToolSpec, bool) {
	spec, ok := r.tools[name]
	return spec, ok
}

// Names lists registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches one tool invocation.
func (r *ToolRegistry) Call(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	spec, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return spec.Handler(ctx, args)
}

// DefaultManifest is the full tool set the git workflow exposes to
// agents: subshell git operations, pure formatting helpers, and the
// GitHub API surface. GitHub tools fail at call time when gh is nil or
// unauthenticated, so the manifest itself registers cleanly either way.
func DefaultManifest(exec *Executor, gh *GitHubClient, owner, repo string) []ToolSpec {
	requireGitHub := func() error {
		if !gh.HasToken() {
			return fmt.Errorf("GitHub client not available")
		}
		return nil
	}

	return []ToolSpec{
		{
			Name:        "git_status",
			Description: "Show working tree status (porcelain format)",
			Handler: func(ctx context.Context, _ map[string]interface{}) (string, error) {
				out, err := exec.StatusPorcelain(ctx)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(out) == "" {
					return "clean working tree", nil
				}
				return out, nil
			},
		},
		{
			Name:        "git_add",
			Description: "Stage files for commit; stages all changes when files is empty",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				res, err := exec.Add(ctx, argStringSlice(args, "files"))
				if err != nil {
					return "", err
				}
				return res.Output, nil
			},
		},
		{
			Name:        "git_commit",
			Description: "Commit staged changes with the given message",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				message := argString(args, "message")
				if strings.TrimSpace(message) == "" {
					return "", fmt.Errorf("git_commit requires a message")
				}
				res, err := exec.Commit(ctx, message)
				if err != nil {
					return "", err
				}
				return res.Output, nil
			},
		},
		{
			Name:        "git_push",
			Description: "Push a branch to the remote",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				res, err := exec.Push(ctx, argString(args, "remote"), argString(args, "branch"))
				if err != nil {
					return "", err
				}
				return res.Output, nil
			},
		},
		{
			Name:        "run_command",
			Description: "Run a git command line; non-git commands are rejected",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				res, err := exec.Run(ctx, argString(args, "command"))
				if err != nil {
					return "", err
				}
				return res.Output, nil
			},
		},
		{
			Name:        "format_commit_message",
			Description: "Format a conventional commit message from parts",
			Handler: func(_ context.Context, args map[string]interface{}) (string, error) {
				return FormatConventionalCommit(
					argString(args, "type"),
					argString(args, "scope"),
					argString(args, "description"),
					argString(args, "body"),
					argString(args, "footer"),
				)
			},
		},
		{
			Name:        "validate_branch_name",
			Description: "Check a branch name against the naming convention",
			Handler: func(_ context.Context, args map[string]interface{}) (string, error) {
				name := argString(args, "name")
				if ValidBranchName(name) {
					return fmt.Sprintf("✅ Valid branch name: %s", name), nil
				}
				return fmt.Sprintf("❌ Invalid branch name: %s\nExpected: <type>/<kebab-case>, e.g. feature/oauth-login, fix/null-pointer, docs/update-readme", name), nil
			},
		},
		{
			Name:        "get_pr_template",
			Description: "Return the pull request description template",
			Handler: func(_ context.Context, _ map[string]interface{}) (string, error) {
				return PRTemplate, nil
			},
		},
		{
			Name:        "create_issue",
			Description: "Create a GitHub issue",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				issue, err := gh.CreateIssue(ctx, owner, repo,
					argString(args, "title"), argString(args, "body"), argStringSlice(args, "labels"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("created issue #%d: %s", issue.Number, issue.HTMLURL), nil
			},
		},
		{
			Name:        "list_issues",
			Description: "List GitHub issues by state",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				issues, err := gh.ListIssues(ctx, owner, repo, argString(args, "state"))
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, issue := range issues {
					fmt.Fprintf(&b, "#%d [%s] %s\n", issue.Number, issue.State, issue.Title)
				}
				if b.Len() == 0 {
					return "no issues", nil
				}
				return b.String(), nil
			},
		},
		{
			Name:        "search_issues",
			Description: "Search GitHub issues",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				issues, err := gh.SearchIssues(ctx, argString(args, "query"))
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, issue := range issues {
					fmt.Fprintf(&b, "#%d [%s] %s\n", issue.Number, issue.State, issue.Title)
				}
				if b.Len() == 0 {
					return "no matches", nil
				}
				return b.String(), nil
			},
		},
		{
			Name:        "create_pull_request",
			Description: "Open a pull request from head into base",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				base := argString(args, "base")
				if base == "" {
					base = "dev"
				}
				pr, err := gh.CreatePullRequest(ctx, owner, repo,
					argString(args, "title"), argString(args, "body"), argString(args, "head"), base)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("created PR #%d: %s", pr.Number, pr.HTMLURL), nil
			},
		},
		{
			Name:        "merge_pull_request",
			Description: "Merge a pull request (squash by default)",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				result, err := gh.MergePullRequest(ctx, owner, repo,
					argInt(args, "pull_number"), argString(args, "merge_method"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("merged: %s (%s)", result.SHA, result.Message), nil
			},
		},
		{
			Name:        "get_pull_request",
			Description: "Fetch a pull request by number",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if err := requireGitHub(); err != nil {
					return "", err
				}
				pr, err := gh.GetPullRequest(ctx, owner, repo, argInt(args, "pull_number"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("#%d [%s] %s -> %s: %s", pr.Number, pr.State, pr.Head.Ref, pr.Base.Ref, pr.Title), nil
			},
		},
	}
}

// validCommitTypes are the conventional commit types agents may use.
var validCommitTypes = map[string]bool{
	"feat": true, "fix": true, "docs": true, "style": true,
	"refactor": true, "test": true, "chore": true, "perf": true,
}

var branchNamePattern = regexp.MustCompile(`^(feature|fix|hotfix|refactor|docs)/[a-z0-9-]+$`)

// ValidBranchName reports whether name follows the
// <type>/<kebab-case> convention.
func ValidBranchName(name string) bool {
	return branchNamePattern.MatchString(name)
}

// FormatConventionalCommit assembles a conventional commit message.
// Scope, body, and footer are optional; an unknown type is an error.
func FormatConventionalCommit(commitType, scope, description, body, footer string) (string, error) {
	if !validCommitTypes[commitType] {
		return "", fmt.Errorf("invalid commit type %q (want one of feat, fix, docs, style, refactor, test, chore, perf)", commitType)
	}
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("commit description is required")
	}

	header := commitType
	if scope != "" {
		header += "(" + scope + ")"
	}
	header += ": " + description

	parts := []string{header}
	if strings.TrimSpace(body) != "" {
		parts = append(parts, strings.TrimSpace(body))
	}
	if strings.TrimSpace(footer) != "" {
		parts = append(parts, strings.TrimSpace(footer))
	}
	return strings.Join(parts, "\n\n"), nil
}

// PRTemplate is the default pull request description skeleton.
const PRTemplate = `## Summary
<!-- What does this PR do? -->

## Changes
<!-- Bullet list of changes -->

## Testing
- [ ] Unit tests pass
- [ ] Manual verification done

## Related
- Closes #<issue_number>`

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func argStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}
