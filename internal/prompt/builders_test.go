package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/types"
)

func TestArchitect_MissionStructure(t *testing.T) {
	task := types.NewTask("Build the plan bridge")
	p := Architect(task, map[string]interface{}{"stack": "go"}, "")

	assert.Contains(t, p, "# Skill: Architect Planning")
	assert.Contains(t, p, "<mission>")
	assert.Contains(t, p, "TASK: Build the plan bridge")
	assert.Contains(t, p, `CONTEXT: {"stack":"go"}`)
	assert.Contains(t, p, "MODEL_ID: Unknown")
	assert.Contains(t, p, "</mission>")
}

func TestArchitect_NamesContributingModel(t *testing.T) {
	p := Architect(types.NewTask("x"), nil, "gemini-2.5-pro")
	assert.Contains(t, p, "MODEL_ID: gemini-2.5-pro")
	assert.Contains(t, p, "CONTEXT: {}")
}

func TestEngineer_InjectsGitWorkflow(t *testing.T) {
	task := types.NewTask("Wire the ledger")
	ctx := map[string]interface{}{
		"git_available":             true,
		"git_workflow_instructions": "Commit after each green test run.",
	}

	p := Engineer(task, nil, ctx, "claude-sonnet-4-20250514")
	assert.Contains(t, p, "# Skill: Software Engineering")
	assert.Contains(t, p, "Commit after each green test run.")
	assert.Contains(t, p, "MODEL_ID: claude-sonnet-4-20250514")

	// The workflow sits between the skill and the mission.
	require.Less(t, strings.Index(p, "# Skill"), strings.Index(p, "Commit after each"))
	require.Less(t, strings.Index(p, "Commit after each"), strings.Index(p, "<mission>"))
}

func TestEngineer_OmitsGitSectionWhenUnavailable(t *testing.T) {
	ctx := map[string]interface{}{
		"git_available":             false,
		"git_workflow_instructions": "Commit after each green test run.",
	}
	p := Engineer(types.NewTask("x"), nil, ctx, "")
	assert.NotContains(t, p, "Commit after each green test run.")
}

func TestDebugger_TestOutputDefault(t *testing.T) {
	p := Debugger(types.NewTask("repair suite"), nil, nil, "")
	assert.Contains(t, p, "Diagnose and fix failing test(s):")
	assert.Contains(t, p, "TEST OUTPUT: No test output provided")

	withOutput := Debugger(types.NewTask("repair suite"), nil,
		map[string]interface{}{"test_output": "--- FAIL: TestLoad (0.01s)"}, "")
	assert.Contains(t, withOutput, "TEST OUTPUT: --- FAIL: TestLoad (0.01s)")
}

func TestAuditorAndResearcher_Missions(t *testing.T) {
	audit := Auditor(types.NewTask("Harden the uploader"), "")
	assert.Contains(t, audit, "# Skill: Security Audit")
	assert.Contains(t, audit, "Review the artifacts produced in Task: Harden the uploader")

	research := Researcher(types.NewTask("Which sqlite driver handles WAL?"), map[string]interface{}{"hint": "mattn"}, "")
	assert.Contains(t, research, "# Skill: Researcher")
	assert.Contains(t, research, "QUESTION: Which sqlite driver handles WAL?")
	assert.Contains(t, research, `CONTEXT: {"hint":"mattn"}`)
}

func TestGitCommit_EmbedsGeneratedTemplate(t *testing.T) {
	task := types.NewTask("Add retry backoff")
	task.OutputFiles = []string{"internal/llm/provider.go", "internal/llm/provider_test.go"}
	task.AppendFeedback("✅ Created internal/llm/provider.go")

	p := GitCommit(task, "gemini-3-flash-preview")
	assert.Contains(t, p, "# Skill: Conventional Commits")
	assert.Contains(t, p, "Stage and commit the following files:\ninternal/llm/provider.go, internal/llm/provider_test.go")
	assert.Contains(t, p, "<generated_template>")
	assert.Contains(t, p, "🤖 feat(llm): Add retry backoff")
	assert.Contains(t, p, "Model-Provenance: gemini-3-flash-preview")
	assert.Contains(t, p, "- Created internal/llm/provider.go")
}

func TestGitCommit_NoOutputFiles(t *testing.T) {
	p := GitCommit(types.NewTask("tidy"), "")
	assert.Contains(t, p, "All modified files")
}

func TestGitPR_Defaults(t *testing.T) {
	task := &types.Task{ID: "0123456789abcdef", Description: "Ship the watch view for the blackboard and telemetry panes"}

	p := GitPR(task, "", "", "")
	assert.Contains(t, p, "- Branch: feature/unknown")
	assert.Contains(t, p, "- Target: main")
	assert.Contains(t, p, "- Title: Ship the watch view for the blackboard and telemetry pane")
	assert.Contains(t, p, `owner="DETECT_FROM_REMOTE"`)
	assert.Contains(t, p, `repo="DETECT_FROM_REMOTE"`)
	assert.Contains(t, p, "## Swarm Task: 01234567")
	assert.Contains(t, p, "Automated PR from Swarm task 01234567")
	assert.Contains(t, p, "Unknown Model")
}

func TestGitPR_UsesTaskGitMeta(t *testing.T) {
	task := types.NewTask("Ship it")
	task.Git = types.GitMeta{
		Branch: "feature/watch-view",
		Base:   "dev",
		Title:  "Add watch view",
		Body:   "Adds the live blackboard watch view.",
	}
	task.OutputFiles = []string{"cmd/swarm/ui/watch.go"}

	p := GitPR(task, "acme", "swarm", "gemini-2.5-flash")
	assert.Contains(t, p, "- Branch: feature/watch-view")
	assert.Contains(t, p, "- Target: dev")
	assert.Contains(t, p, "- Title: Add watch view")
	assert.Contains(t, p, `owner="acme"`)
	assert.Contains(t, p, `repo="swarm"`)
	assert.Contains(t, p, "Adds the live blackboard watch view.")
	assert.Contains(t, p, "cmd/swarm/ui/watch.go")
	assert.Contains(t, p, "Automated PR from Swarm Orchestrator (gemini-2.5-flash)")
}

func TestGitBranch_DefaultName(t *testing.T) {
	task := &types.Task{ID: "fedcba9876543210", Description: "x"}
	p := GitBranch(task)
	assert.Contains(t, p, "# Skill: Branch Workflow")
	assert.Contains(t, p, "Create and switch to branch: feature/task-fedcba98")
	assert.Contains(t, p, "Base: main")

	task.Git = types.GitMeta{Branch: "fix/lock-timeout", Base: "dev"}
	p = GitBranch(task)
	assert.Contains(t, p, "Create and switch to branch: fix/lock-timeout")
	assert.Contains(t, p, "Base: dev")
}

func TestGitWorker_InputContract(t *testing.T) {
	task := types.NewTask("Triage stale issues")
	p := GitWorker(task, `{"schema_version":"3.4.0"}`, `{"default_branch":"dev"}`, "llama-3.2-3b")

	assert.Contains(t, p, "# Skill: Git Worker Agent")
	assert.Contains(t, p, "<input_contract>")
	assert.Contains(t, p, `"task_id":"`+task.ID+`"`)
	assert.Contains(t, p, `"description":"Triage stale issues"`)
	assert.Contains(t, p, `{"schema_version":"3.4.0"}`)
	assert.Contains(t, p, `{"default_branch":"dev"}`)
	assert.Contains(t, p, "Model ID: llama-3.2-3b")
}

func TestGitWorker_EmptySnapshotsRenderAsObjects(t *testing.T) {
	p := GitWorker(types.NewTask("x"), "", "", "")
	assert.Contains(t, p, "Project Profile Snapshot:\n{}")
	assert.Contains(t, p, "Repo Context:\n{}")
	assert.Contains(t, p, "Model ID: Unknown")
}

func TestSynthesizer_OrderedWorkerSections(t *testing.T) {
	p := Synthesizer(
		[]string{"rank suspicious files", "cluster failures"},
		[]WorkerOutput{
			{Worker: "pagerank", Output: "graph says store.go"},
			{Worker: "ochiai", Output: "spectrum says lock.go"},
		},
		[]string{"no schema changes"},
	)

	assert.Contains(t, p, "You are the Synthesizer in a structured deliberation process.")
	assert.Contains(t, p, "1. rank suspicious files\n2. cluster failures")
	assert.Contains(t, p, "### Worker 1: pagerank\ngraph says store.go")
	assert.Contains(t, p, "### Worker 2: ochiai\nspectrum says lock.go")
	assert.Contains(t, p, "- no schema changes")
	assert.Contains(t, p, "**Confidence Score** (0.0-1.0)")

	require.Less(t, strings.Index(p, "Worker 1"), strings.Index(p, "Worker 2"))
}

func TestSynthesizer_NoConstraints(t *testing.T) {
	p := Synthesizer([]string{"a"}, []WorkerOutput{{Worker: "w", Output: "o"}}, nil)
	assert.Contains(t, p, "## Constraints:\nNone")
}
