package kernel

import (
	"context"
	"fmt"
	"strings"

	"swarm/internal/logging"
	"swarm/internal/prompt"
	"swarm/internal/types"
)

// gitCommitTools is the tool subset the commit worker is permitted to
// execute. Anything else the model asks for is rejected.
var gitCommitTools = map[string]bool{
	"git_add":     true,
	"git_commit":  true,
	"git_push":    true,
	"run_command": true,
}

const feedbackExcerpt = 300

// gitWorkflow orchestrates the git worker steps for a commit- or
// PR-flagged task. Role-triggered tasks are delegated to the autonomous
// git team; everything else walks the branch, commit, push and PR steps
// in order. Returns true when the workflow claimed the tick.
func (k *Kernel) gitWorkflow(ctx context.Context, profile *types.ProjectProfile, task *types.Task) bool {
	if k.deps.Repo == nil || !k.deps.Repo.IsAvailable() {
		task.AppendFeedback("git: repository not available")
		return false
	}

	if k.roleTriggered(task) {
		return k.dispatchGitRoles(ctx, profile, task)
	}

	model := profile.ModelForRole(types.RoleGitWriter)

	k.branchStep(task)
	k.commitStep(ctx, profile, task, model)
	k.pushStep(ctx, profile, task, model)
	k.prStep(ctx, task, model)

	logging.Kernel("Git workflow complete for task %s", shortID(task.ID))
	return true
}

func (k *Kernel) roleTriggered(task *types.Task) bool {
	return task.HasIntent(types.IntentFeatureScout) ||
		task.HasIntent(types.IntentCodeAudit) ||
		task.HasIntent(types.IntentIssueTriage) ||
		task.HasIntent(types.IntentBranchManager) ||
		task.HasIntent(types.IntentProjectLifecycle)
}

func (k *Kernel) dispatchGitRoles(ctx context.Context, profile *types.ProjectProfile, task *types.Task) bool {
	if k.deps.Dispatcher == nil {
		task.AppendFeedback("git roles: dispatcher not available")
		return false
	}

	reports := k.deps.Dispatcher.Dispatch(ctx, task, profile.ActiveContext)
	for _, report := range reports {
		task.AppendFeedback(fmt.Sprintf("git role: %s", report.Status))
		if report.RemainingWork != "" {
			task.AppendFeedback("  remaining: " + report.RemainingWork)
		}
	}
	return true
}

// branchStep instructs branch creation once per task. The feedback log
// doubles as the dedup record: a branch name already mentioned there
// was already handled.
func (k *Kernel) branchStep(task *types.Task) {
	if task.Git.Branch == "" || feedbackMentions(task, task.Git.Branch) {
		return
	}
	instructions := prompt.GitBranch(task)
	task.AppendFeedback("branch worker: create " + task.Git.Branch)
	task.AppendFeedback("instructions: " + excerpt(instructions, 200))
	logging.Kernel("Branch worker dispatched for %s (%s)", shortID(task.ID), task.Git.Branch)
}

// commitStep renders a commit prompt, asks the model for tool calls,
// and executes the permitted subset. A clean tree clears the intent so
// the next tick can fall through to the classical flow.
func (k *Kernel) commitStep(ctx context.Context, profile *types.ProjectProfile, task *types.Task, model string) {
	if !task.HasIntent(types.IntentGitCommit) {
		return
	}
	if !k.deps.Repo.HasChanges(ctx) {
		task.AppendFeedback("commit worker skipped: clean working tree")
		task.Intents.Remove(types.IntentGitCommit)
		return
	}

	commitPrompt := prompt.GitCommit(task, model)
	response, err := k.deps.LLM.Generate(ctx, commitPrompt, model)
	if err != nil {
		task.AppendFeedback("instructions: " + excerpt(commitPrompt, 200))
		k.recordProvenance(profile, types.RoleGitWriter, types.RoleEngineer,
			"git_error", model, fmt.Sprintf("commit generation failed: %v", err))
		return
	}

	if len(response.ToolCalls) == 0 {
		task.AppendFeedback("commit worker: " + excerpt(response.ReasoningTrace, feedbackExcerpt))
		return
	}

	var results []string
	for _, call := range response.ToolCalls {
		out, err := k.executeGitTool(ctx, profile, call, model)
		if err != nil {
			results = append(results, fmt.Sprintf("failed %s: %v", call.Function, err))
			k.recordProvenance(profile, types.RoleGitWriter, types.RoleEngineer,
				"git_error", model, fmt.Sprintf("%s: %v", call.Function, err))
			continue
		}
		results = append(results, out)
	}
	task.AppendFeedback("commit worker:\n" + excerpt(strings.Join(results, "\n"), feedbackExcerpt))

	if !k.deps.Repo.HasChanges(ctx) {
		task.Intents.Remove(types.IntentGitCommit)
	}
	logging.Kernel("Commit worker dispatched for %s", shortID(task.ID))
}

// pushStep publishes the task branch when auto-push or a PR was
// requested and the tree is clean.
func (k *Kernel) pushStep(ctx context.Context, profile *types.ProjectProfile, task *types.Task, model string) {
	if !task.Git.AutoPush && !task.HasIntent(types.IntentGitPR) {
		return
	}
	if task.Git.Branch == "" {
		return
	}
	if k.deps.Repo.HasChanges(ctx) {
		task.AppendFeedback("push worker skipped: uncommitted changes")
		return
	}
	if k.deps.Tools == nil {
		task.AppendFeedback("push worker skipped: git tools not available")
		return
	}

	out, err := k.deps.Tools.Call(ctx, "git_push", map[string]interface{}{
		"remote": "origin",
		"branch": task.Git.Branch,
	})
	if err != nil {
		task.AppendFeedback(fmt.Sprintf("push failed: %v", err))
		k.recordProvenance(profile, types.RoleGitWriter, types.RoleEngineer,
			"git_error", model, err.Error())
		return
	}
	task.AppendFeedback("push worker: " + excerpt(out, feedbackExcerpt))
	logging.Kernel("Pushed %s for task %s", task.Git.Branch, shortID(task.ID))
}

// prStep renders the PR prompt when a PR was requested, or when a
// completed task with a branch can be auto-published to a ready GitHub
// remote. The model's tool calls or trace land in the feedback log; PR
// tools execute through the registry like any other.
func (k *Kernel) prStep(ctx context.Context, task *types.Task, model string) {
	shouldPR := task.HasIntent(types.IntentGitPR)
	if !shouldPR && task.Status == types.StatusCompleted && task.Git.Branch != "" && k.deps.Repo.IsGitHubReady() {
		shouldPR = true
		task.AppendFeedback("auto-PR: completed task with feature branch")
	}
	if !shouldPR || task.Git.Branch == "" {
		return
	}

	if !k.deps.Repo.IsGitHub() {
		task.AppendFeedback("PR worker: GitHub remote not detected")
		return
	}
	if !k.deps.Repo.HasGitHubToken() {
		task.AppendFeedback("PR worker: GITHUB_TOKEN not set")
		return
	}

	prPrompt := prompt.GitPR(task, k.deps.RepoOwner, k.deps.RepoName, model)
	response, err := k.deps.LLM.Generate(ctx, prPrompt, model)
	if err != nil {
		task.AppendFeedback("instructions: " + excerpt(prPrompt, 200))
		return
	}

	if len(response.ToolCalls) > 0 {
		var calls []string
		for _, call := range response.ToolCalls {
			calls = append(calls, fmt.Sprintf("%s(%v)", call.Function, call.Arguments))
		}
		task.AppendFeedback("PR worker:\n" + excerpt(strings.Join(calls, "\n"), feedbackExcerpt))
	} else {
		task.AppendFeedback("PR worker: " + excerpt(response.ReasoningTrace, 200))
	}
	logging.Kernel("PR worker dispatched for %s", shortID(task.ID))
}

// executeGitTool runs one model-requested tool call through the static
// registry. Only the commit-worker subset is allowed, and a successful
// git_commit is recorded in the provenance log.
func (k *Kernel) executeGitTool(ctx context.Context, profile *types.ProjectProfile, call types.ToolCall, model string) (string, error) {
	if !gitCommitTools[call.Function] {
		return "", fmt.Errorf("tool %q not permitted in the commit workflow", call.Function)
	}
	if k.deps.Tools == nil {
		return "", fmt.Errorf("git tools not available")
	}

	out, err := k.deps.Tools.Call(ctx, call.Function, call.Arguments)
	if err != nil {
		return "", err
	}

	if call.Function == "git_commit" {
		message, _ := call.Arguments["message"].(string)
		k.recordProvenance(profile, types.RoleGitWriter, types.RoleEngineer,
			"git_commit", model, message)
	}
	return out, nil
}

func feedbackMentions(task *types.Task, needle string) bool {
	for _, entry := range task.FeedbackLog {
		if strings.Contains(entry, needle) {
			return true
		}
	}
	return false
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
