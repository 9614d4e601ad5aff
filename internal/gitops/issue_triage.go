package gitops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"swarm/internal/graph"
	"swarm/internal/logging"
	"swarm/internal/types"
)

// TriageResult is the assessment produced for one open issue.
type TriageResult struct {
	IssueNumber  int      `json:"issue_number"`
	Priority     string   `json:"priority"`
	Impact       string   `json:"impact"`
	Effort       string   `json:"effort"`
	Labels       []string `json:"labels"`
	Milestone    string   `json:"milestone"`
	RelatedFiles []string `json:"related_files,omitempty"`
}

// IssueTriage walks open GitHub issues, estimates impact and effort
// against the knowledge graph, and queues prioritized follow-up work.
type IssueTriage struct{}

func (IssueTriage) Name() string { return types.RoleIssueTriage }

// TriggerCheck fires on an explicit triage intent or when upstream
// reported fresh issues.
func (IssueTriage) TriggerCheck(task *types.Task, rctx *RoleContext) bool {
	if task != nil && task.Intents.Has(types.IntentIssueTriage) {
		return true
	}
	return rctx.IntVar("new_issues_count") > 0
}

func (t IssueTriage) Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error) {
	report := types.ExitReport{TaskID: task.ID, Status: types.ReportInProgress}

	if !rctx.GitHub.HasToken() {
		report.Status = types.ReportBlocked
		report.Warnings = []string{"GitHub client not available"}
		return report, nil
	}

	issues, err := rctx.GitHub.ListIssues(ctx, rctx.RepoOwner, rctx.RepoName, "open")
	if err != nil {
		return report, fmt.Errorf("list issues: %w", err)
	}
	if len(issues) == 0 {
		report.Status = types.ReportCompleted
		report.RemainingWork = "No open issues to triage"
		return report, nil
	}

	results := make([]TriageResult, 0, len(issues))
	for _, issue := range issues {
		triage := triageIssue(rctx.Graph, issue)
		logging.GitOps("Triage: Issue #%d -> %s (labels: %s)",
			issue.Number, triage.Priority, strings.Join(triage.Labels, ", "))
		results = append(results, triage)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority < results[j].Priority
	})

	taskIDs := make([]string, 0, len(results))
	for _, triage := range results {
		taskIDs = append(taskIDs, fmt.Sprintf("TRIAGE-%d-%s", triage.IssueNumber, triage.Priority))
		rctx.saveSnapshot("triaged_issue", map[string]interface{}{
			"issue_number":  triage.IssueNumber,
			"priority":      triage.Priority,
			"impact":        triage.Impact,
			"effort":        triage.Effort,
			"labels":        triage.Labels,
			"milestone":     triage.Milestone,
			"related_files": triage.RelatedFiles,
		})
	}

	report.Status = types.ReportCompleted
	report.RemainingWork = fmt.Sprintf("Triaged %d issues, created %d tasks", len(issues), len(taskIDs))
	return report, nil
}

// triageIssue scores one issue: related code from the graph, then
// impact, effort, priority, labels, and a milestone bucket.
func triageIssue(g *graph.Graph, issue Issue) TriageResult {
	related := relatedFiles(g, issueKeywords(issue))
	impact := estimateImpact(issue, related)
	effort := estimateEffort(issue, related)
	priority := priorityFor(impact, effort)
	return TriageResult{
		IssueNumber:  issue.Number,
		Priority:     priority,
		Impact:       impact,
		Effort:       effort,
		Labels:       suggestLabels(issue, related),
		Milestone:    milestoneFor(priority),
		RelatedFiles: related,
	}
}

// issueKeywords picks the first few meaningful tokens of the issue
// text for graph matching.
func issueKeywords(issue Issue) []string {
	tokens := strings.Fields(strings.ToLower(issue.Title + " " + issue.Body))
	var keywords []string
	for _, token := range tokens {
		if len(token) <= 3 {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) >= 5 {
			break
		}
	}
	return keywords
}

// relatedFiles matches keywords against graph node ids, collecting up
// to five distinct files the issue likely touches.
func relatedFiles(g *graph.Graph, keywords []string) []string {
	if g == nil || len(keywords) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, id := range g.NodeIDs() {
		lower := strings.ToLower(id)
		for _, keyword := range keywords {
			if !strings.Contains(lower, keyword) {
				continue
			}
			meta := g.Meta(id)
			if meta == nil || meta.File == "" || seen[meta.File] {
				break
			}
			seen[meta.File] = true
			files = append(files, meta.File)
			break
		}
		if len(files) >= 5 {
			break
		}
	}
	return files
}

func hasLabel(issue Issue, name string) bool {
	for _, label := range issue.Labels {
		if strings.EqualFold(label.Name, name) {
			return true
		}
	}
	return false
}

func estimateImpact(issue Issue, related []string) string {
	switch {
	case hasLabel(issue, "critical"), hasLabel(issue, "security"),
		strings.Contains(strings.ToLower(issue.Title), "breaking"):
		return "high"
	case len(related) > 3:
		return "high"
	case len(related) > 1, hasLabel(issue, "enhancement"):
		return "medium"
	default:
		return "low"
	}
}

func estimateEffort(issue Issue, related []string) string {
	switch {
	case len(issue.Body) > 1000, len(related) > 3:
		return "high"
	case len(issue.Body) > 300, len(related) > 1:
		return "medium"
	default:
		return "low"
	}
}

func priorityFor(impact, effort string) string {
	switch {
	case impact == "high" && effort == "low":
		return "P0"
	case impact == "high":
		return "P1"
	case impact == "medium":
		return "P2"
	default:
		return "P3"
	}
}

func suggestLabels(issue Issue, related []string) []string {
	title := strings.ToLower(issue.Title)
	body := strings.ToLower(issue.Body)

	var labels []string
	if strings.Contains(title, "bug") || strings.Contains(title, "fix") || strings.Contains(body, "broken") {
		labels = append(labels, "bug")
	}
	if strings.Contains(title, "feature") || strings.Contains(title, "add") || strings.Contains(title, "new") {
		labels = append(labels, "enhancement")
	}
	if strings.Contains(title, "doc") || strings.Contains(body, "readme") {
		labels = append(labels, "documentation")
	}
	for _, file := range related {
		if strings.Contains(file, "test") {
			labels = append(labels, "testing")
			break
		}
	}
	return labels
}

func milestoneFor(priority string) string {
	switch priority {
	case "P0":
		return "v4.0-hotfix"
	case "P1":
		return "v4.0"
	case "P2":
		return "v4.1"
	default:
		return "Backlog"
	}
}
