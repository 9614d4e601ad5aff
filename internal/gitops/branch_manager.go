package gitops

import (
	"context"
	"fmt"
	"strings"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// BranchManager merges pull requests once review and CI agree, then
// retargets any PRs stacked on the merged branch.
type BranchManager struct{}

func (BranchManager) Name() string { return types.RoleBranchManager }

// TriggerCheck fires on an explicit intent, an approved-and-green PR
// in the ambient context, or a pending stacked-PR update.
func (BranchManager) TriggerCheck(task *types.Task, rctx *RoleContext) bool {
	if task != nil && task.Intents.Has(types.IntentBranchManager) {
		return true
	}
	if status := rctx.MapVar("pr_status"); status != nil {
		approved, _ := status["approved"].(bool)
		ciPassing, _ := status["ci_passing"].(bool)
		if approved && ciPassing {
			return true
		}
	}
	return rctx.BoolVar("stacked_pr_update_needed")
}

func (m BranchManager) Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error) {
	report := types.ExitReport{TaskID: task.ID, Status: types.ReportInProgress}

	if !rctx.GitHub.HasToken() {
		report.Status = types.ReportBlocked
		report.Warnings = []string{"GitHub client not available"}
		return report, nil
	}
	prNumber := rctx.IntVar("pr_number")
	if prNumber == 0 {
		report.Status = types.ReportBlocked
		report.Warnings = []string{"No PR number provided"}
		return report, nil
	}

	pr, err := rctx.GitHub.GetPullRequest(ctx, rctx.RepoOwner, rctx.RepoName, prNumber)
	if err != nil {
		return report, fmt.Errorf("get PR #%d: %w", prNumber, err)
	}

	// Review and CI state come from the ambient context that triggered
	// us; the PR object only knows about merge conflicts.
	status := rctx.MapVar("pr_status")
	approved, _ := status["approved"].(bool)
	ciPassing, _ := status["ci_passing"].(bool)

	var blocking []string
	if !approved {
		blocking = append(blocking, "needs approval")
	}
	if !ciPassing {
		blocking = append(blocking, "CI failing")
	}
	if !pr.Mergeable {
		blocking = append(blocking, "has conflicts")
	}
	if len(blocking) > 0 {
		report.Status = types.ReportBlocked
		report.PRURL = pr.HTMLURL
		report.Warnings = []string{fmt.Sprintf("PR #%d not ready: %s", prNumber, strings.Join(blocking, ", "))}
		return report, nil
	}

	method := rctx.StringVar("merge_method")
	result, err := rctx.GitHub.MergePullRequest(ctx, rctx.RepoOwner, rctx.RepoName, prNumber, method)
	if err != nil {
		return report, fmt.Errorf("merge PR #%d: %w", prNumber, err)
	}
	logging.GitOps("merged PR #%d (%s)", prNumber, result.SHA)

	updated := m.retargetDependents(ctx, rctx, pr, &report)

	rctx.saveSnapshot("pr_merged", map[string]interface{}{
		"branch":    pr.Head.Ref,
		"pr_number": prNumber,
	})
	rctx.recordProvenance(types.RoleBranchManager, "pr_merged", task.ID)
	logging.GitOpsDebug("branch %s eligible for pruning after merge", pr.Head.Ref)

	report.Status = types.ReportCompleted
	report.Branch = pr.Head.Ref
	report.PRURL = pr.HTMLURL
	report.RemainingWork = fmt.Sprintf("Merged PR #%d, updated %d dependent PRs", prNumber, updated)
	return report, nil
}

// retargetDependents moves PRs that were based on the merged branch
// onto its base, keeping stacked chains mergeable. Individual failures
// degrade to warnings.
func (BranchManager) retargetDependents(ctx context.Context, rctx *RoleContext, merged *PullRequest, report *types.ExitReport) int {
	dependents, err := rctx.GitHub.ListPullRequests(ctx, rctx.RepoOwner, rctx.RepoName, merged.Head.Ref)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("list dependent PRs: %v", err))
		return 0
	}

	updated := 0
	for _, dep := range dependents {
		if dep.Number == merged.Number {
			continue
		}
		if _, err := rctx.GitHub.UpdatePullRequestBase(ctx, rctx.RepoOwner, rctx.RepoName, dep.Number, merged.Base.Ref); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("retarget PR #%d: %v", dep.Number, err))
			continue
		}
		logging.GitOps("retargeted PR #%d onto %s", dep.Number, merged.Base.Ref)
		updated++
	}
	return updated
}
