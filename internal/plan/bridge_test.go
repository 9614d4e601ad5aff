package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/types"
)

func TestParseSectionsAndStatuses(t *testing.T) {
	content := `# Project Plan

## Todo
- [ ] Refactor the parser @architect
- [ ] Fix lint errors

## In Progress
- [/] Migrate the store @engineer

## Completed
- [x] Bootstrap repo
`
	doc := Parse(content)
	require.Len(t, doc.Tasks, 4)

	assert.Equal(t, "Refactor the parser", doc.Tasks[0].Description)
	assert.Equal(t, "architect", doc.Tasks[0].Worker)
	assert.Equal(t, types.StatusPending, doc.Tasks[0].Status)

	assert.Equal(t, "engineer", doc.Tasks[1].Worker, "role defaults to engineer")
	assert.Equal(t, types.StatusInProgress, doc.Tasks[2].Status)
	assert.Equal(t, types.StatusCompleted, doc.Tasks[3].Status)
}

func TestParseMetadata(t *testing.T) {
	content := `## Todo
- [ ] Wire the cache @engineer
  - Context: a.py, b.py
  - Flags: git_commit_ready=True, context_needed=True, git_auto_push=True
`
	doc := Parse(content)
	require.Len(t, doc.Tasks, 1)

	task := doc.Tasks[0]
	assert.Equal(t, []string{"a.py", "b.py"}, task.InputFiles)
	assert.True(t, task.Intents.Has(types.IntentGitCommit))
	assert.True(t, task.Intents.Has(types.IntentContext))
	assert.True(t, task.Git.AutoPush)
}

func TestParseMalformedFlagSkipped(t *testing.T) {
	content := `## Todo
- [ ] Task with odd flags
  - Flags: git_commit_ready, git_create_pr=True
`
	doc := Parse(content)
	require.Len(t, doc.Tasks, 1)
	assert.False(t, doc.Tasks[0].Intents.Has(types.IntentGitCommit))
	assert.True(t, doc.Tasks[0].Intents.Has(types.IntentGitPR))
}

func TestParsePreservesFreeText(t *testing.T) {
	content := `# Sprint 12 Plan

These notes were written by a human. Keep them.

## Todo
Remember to check the API budget first.
- [ ] Build the thing

## In Progress

## Completed
`
	doc := Parse(content)
	assert.Contains(t, strings.Join(doc.Preamble, "\n"), "written by a human")
	require.Len(t, doc.Notes[SectionTodo], 1)
	assert.Contains(t, doc.Notes[SectionTodo][0], "API budget")

	rendered := doc.Render()
	assert.Contains(t, rendered, "These notes were written by a human.")
	assert.Contains(t, rendered, "Remember to check the API budget first.")
}

// Scenario: outbound render followed by a parse must reproduce
// descriptions, statuses, roles, files, and the whitelisted flags.
func TestOutboundRoundTrip(t *testing.T) {
	t1 := types.NewTask("A")
	t1.Worker = "engineer"
	t1.InputFiles = []string{"x.py"}
	t1.Intents.Add(types.IntentGitCommit)

	t2 := types.NewTask("B")
	t2.Status = types.StatusCompleted
	t2.Worker = ""

	doc := &Document{Tasks: []*types.Task{t1, t2}}
	rendered := doc.Render()

	assert.Contains(t, rendered, "- [ ] A @engineer")
	assert.Contains(t, rendered, "  - Context: x.py")
	assert.Contains(t, rendered, "  - Flags: git_commit_ready=True")
	assert.Contains(t, rendered, "- [x] B")

	parsed := Parse(rendered)
	require.Len(t, parsed.Tasks, 2)

	byDesc := map[string]*types.Task{}
	for _, task := range parsed.Tasks {
		byDesc[task.Description] = task
	}

	a := byDesc["A"]
	require.NotNil(t, a)
	assert.Equal(t, types.StatusPending, a.Status)
	assert.Equal(t, "engineer", a.Worker)
	assert.Equal(t, []string{"x.py"}, a.InputFiles)
	assert.True(t, a.Intents.Has(types.IntentGitCommit))

	b := byDesc["B"]
	require.NotNil(t, b)
	assert.Equal(t, types.StatusCompleted, b.Status)
}

func TestRenderWhitelistsFlags(t *testing.T) {
	task := types.NewTask("secret machinery")
	task.Intents.Add(types.IntentConsensus)
	task.Intents.Add(types.IntentDebug)
	task.Intents.Add(types.IntentGitPR)

	rendered := (&Document{Tasks: []*types.Task{task}}).Render()
	assert.Contains(t, rendered, "git_create_pr=True")
	assert.NotContains(t, rendered, "requires_consensus")
	assert.NotContains(t, rendered, "tests_failing")
}

func TestFailedTaskRendersAsOpenWork(t *testing.T) {
	task := types.NewTask("exploded")
	task.Status = types.StatusFailed

	rendered := (&Document{Tasks: []*types.Task{task}}).Render()
	// The plan shows only status, never errors: FAILED reads as todo.
	assert.Contains(t, rendered, "- [ ] exploded")
}
