package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"swarm/internal/types"
)

// Architect produces the planning prompt. Memory is the profile memory
// bank snapshot; model is the contributing model id for provenance.
func Architect(task *types.Task, memory map[string]interface{}, model string) string {
	return fmt.Sprintf(`
%s

<mission>
Analyze the following Request and produce a formal Implementation Plan.
TASK: %s
CONTEXT: %s
MODEL_ID: %s
</mission>
`, loadSkill(SkillArchitect), task.Description, formatMap(memory), modelOr(model))
}

// Engineer produces the implementation prompt. When the active context
// marks git as available, the kernel's git workflow instructions are
// injected between the skill and the mission.
func Engineer(task *types.Task, memory, context map[string]interface{}, model string) string {
	gitSection := ""
	if ctxBool(context, "git_available") {
		if workflow := ctxString(context, "git_workflow_instructions", ""); workflow != "" {
			gitSection = "\n" + workflow + "\n"
		}
	}

	return fmt.Sprintf(`
%s

%s

<mission>
TASK: %s
CONTEXT: %s
MEMORY: %s
MODEL_ID: %s
</mission>
`, loadSkill(SkillEngineer), gitSection, task.Description, formatMap(context), formatMap(memory), modelOr(model))
}

// Auditor produces the review prompt for artifacts another worker made.
func Auditor(task *types.Task, model string) string {
	return fmt.Sprintf(`
%s

<mission>
Review the artifacts produced in Task: %s
MODEL_ID: %s
</mission>
`, loadSkill(SkillAuditor), task.Description, modelOr(model))
}

// Debugger produces the failing-test diagnosis prompt. Test output comes
// from the active context under "test_output".
func Debugger(task *types.Task, memory, context map[string]interface{}, model string) string {
	testOutput := ctxString(context, "test_output", "No test output provided")

	return fmt.Sprintf(`
%s

<mission>
Diagnose and fix failing test(s):
TASK: %s
TEST OUTPUT: %s
CONTEXT: %s
MEMORY: %s
MODEL_ID: %s
</mission>
`, loadSkill(SkillDebugger), task.Description, testOutput, formatMap(context), formatMap(memory), modelOr(model))
}

// Researcher produces the findings prompt.
func Researcher(task *types.Task, memory map[string]interface{}, model string) string {
	return fmt.Sprintf(`
%s

<mission>
Research and document findings:
QUESTION: %s
CONTEXT: %s
MODEL_ID: %s
</mission>
`, loadSkill(SkillResearcher), task.Description, formatMap(memory), modelOr(model))
}

// GitCommit produces the commit prompt, including a generated
// conventional-commit message template the model may adopt verbatim.
func GitCommit(task *types.Task, model string) string {
	files := "All modified files"
	if len(task.OutputFiles) > 0 {
		files = strings.Join(task.OutputFiles, ", ")
	}

	return fmt.Sprintf(`
%s

<mission>
Stage and commit the following files:
%s

Task: %s
</mission>

<generated_template>
Use this commit message if appropriate:
%s
</generated_template>
`, loadSkill(SkillGitCommit), files, task.Description, FullCommitMessage(task, true, model))
}

// GitPR produces the pull-request prompt. Owner and repo may be empty, in
// which case the worker is told to detect them from the git remote.
func GitPR(task *types.Task, owner, repo, model string) string {
	branch := task.Git.Branch
	if branch == "" {
		branch = "feature/unknown"
	}
	base := task.Git.Base
	if base == "" {
		base = "main"
	}
	title := task.Git.Title
	if title == "" {
		title = truncate(task.Description, 60)
	}
	body := task.Git.Body
	if body == "" {
		body = fmt.Sprintf("Automated PR from Swarm task %s", shortID(task.ID))
	}
	if owner == "" {
		owner = "DETECT_FROM_REMOTE"
	}
	if repo == "" {
		repo = "DETECT_FROM_REMOTE"
	}

	bodyTemplate := fmt.Sprintf(`## Swarm Task: %s

%s

### Files Modified
%s

---
*Automated PR from Swarm Orchestrator (%s)*`,
		shortID(task.ID), body, strings.Join(task.OutputFiles, ", "), modelOrFull(model))

	return fmt.Sprintf(`
%s

<mission>
Create a pull request:
- Branch: %s
- Target: %s
- Title: %s
</mission>

<tools>
create_pull_request(
    owner=%q,
    repo=%q,
    title=%q,
    head=%q,
    base=%q,
    body=%q
)
</tools>
`, loadSkill(SkillGitPR), branch, base, title, owner, repo, title, branch, base, bodyTemplate)
}

// GitBranch produces the branch-creation prompt.
func GitBranch(task *types.Task) string {
	branch := task.Git.Branch
	if branch == "" {
		branch = fmt.Sprintf("feature/task-%s", shortID(task.ID))
	}
	base := task.Git.Base
	if base == "" {
		base = "main"
	}

	return fmt.Sprintf(`
%s

<mission>
Create and switch to branch: %s
Base: %s
</mission>
`, loadSkill(SkillGitBranch), branch, base)
}

// GitWorker produces the input contract for an autonomous git role. The
// profile and repo context snapshots arrive pre-serialized because the
// dispatcher controls how much of each the role is allowed to see.
func GitWorker(task *types.Task, profileJSON, repoContext, model string) string {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		taskJSON = []byte(fmt.Sprintf("%+v", task))
	}
	if profileJSON == "" {
		profileJSON = "{}"
	}
	if repoContext == "" {
		repoContext = "{}"
	}

	return fmt.Sprintf(`
%s

<input_contract>
Target Task:
%s

Project Profile Snapshot:
%s

Repo Context:
%s

Model ID: %s
</input_contract>
`, loadSkill(SkillGitWorker), taskJSON, profileJSON, repoContext, modelOr(model))
}

// WorkerOutput pairs a deliberation worker's name with its raw output.
// Order is preserved into the synthesis prompt.
type WorkerOutput struct {
	Worker string
	Output string
}

// Synthesizer produces the deliberation synthesis prompt combining the
// algorithmic workers' outputs into one recommendation. It has no skill
// file; the instructions are fixed.
func Synthesizer(subProblems []string, outputs []WorkerOutput, constraints []string) string {
	constraintsText := "None"
	if len(constraints) > 0 {
		lines := make([]string, len(constraints))
		for i, c := range constraints {
			lines[i] = "- " + c
		}
		constraintsText = strings.Join(lines, "\n")
	}

	var problems strings.Builder
	for i, sp := range subProblems {
		if i > 0 {
			problems.WriteByte('\n')
		}
		fmt.Fprintf(&problems, "%d. %s", i+1, sp)
	}

	var outputsText strings.Builder
	for i, wo := range outputs {
		fmt.Fprintf(&outputsText, "\n### Worker %d: %s\n%s\n", i+1, wo.Worker, wo.Output)
	}

	return fmt.Sprintf(`
You are the Synthesizer in a structured deliberation process.

Your role is to combine the outputs from multiple algorithmic workers into a coherent, actionable solution.

## Sub-Problems Analyzed:
%s

## Worker Outputs:
%s

## Constraints:
%s

## Your Task:
Synthesize these worker outputs into a single, coherent recommendation. Include:
1. **Solution Summary**: What should be done?
2. **Supporting Evidence**: Which worker outputs support this?
3. **Confidence Score** (0.0-1.0): How confident are you in this synthesis?
4. **Next Actions**: Concrete steps to implement this.

Provide your synthesis in a clear, structured format.
`, problems.String(), outputsText.String(), constraintsText)
}

// modelOr returns the model id, or "Unknown" for provenance fields.
func modelOr(model string) string {
	if model == "" {
		return "Unknown"
	}
	return model
}

func modelOrFull(model string) string {
	if model == "" {
		return "Unknown Model"
	}
	return model
}

// formatMap renders a memory or context snapshot as compact JSON. Nil and
// unserializable maps render as the empty object so prompts stay valid.
func formatMap(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// shortID returns the first 8 characters of a task id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate clips s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func ctxString(ctx map[string]interface{}, key, fallback string) string {
	if v, ok := ctx[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func ctxBool(ctx map[string]interface{}, key string) bool {
	v, ok := ctx[key].(bool)
	return ok && v
}
