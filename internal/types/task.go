// Package types provides shared type definitions used across swarm packages.
// This package exists to break import cycles between the blackboard, kernel,
// plan bridge, and git workers. Types here are foundational data structures
// with no dependencies beyond the standard library and the UUID generator.
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// statusRank orders statuses for monotonicity checks.
// Terminal states share the highest rank.
var statusRank = map[TaskStatus]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// Valid reports whether the status is one of the four lifecycle states.
func (s TaskStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether the status is COMPLETED or FAILED.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic lifecycle PENDING -> IN_PROGRESS -> {COMPLETED, FAILED}.
// A status never moves backward and terminal states never change.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// MaxFeedbackLogEntries is the loop guard threshold. A task whose feedback
// log grows past this is forced to FAILED with a loop-detected note.
const MaxFeedbackLogEntries = 20

// GitMeta parameterizes the git workflows attached to a task.
type GitMeta struct {
	Branch   string // feature branch name
	Base     string // base branch for PRs, defaults to "dev"
	Title    string // PR title
	Body     string // PR description
	AutoPush bool   // push after commit without confirmation
}

// Task is the unit of work tracked on the blackboard. Tasks are created by
// callers or the Markdown plan bridge, mutated only by the orchestrator
// kernel or the plan bridge, and never deleted.
type Task struct {
	ID          string
	Description string
	Status      TaskStatus
	Worker      string // assigned role, empty until routed
	DependsOn   []string
	InputFiles  []string
	OutputFiles []string
	Intents     IntentSet
	Git         GitMeta
	FeedbackLog []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask creates a PENDING task with a fresh UUID and UTC timestamps.
func NewTask(description string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      StatusPending,
		Git:         GitMeta{Base: "dev"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendFeedback appends a note to the feedback log and bumps UpdatedAt.
func (t *Task) AppendFeedback(note string) {
	t.FeedbackLog = append(t.FeedbackLog, note)
	t.UpdatedAt = time.Now().UTC()
}

// LoopDetected reports whether the feedback log exceeded the loop guard.
func (t *Task) LoopDetected() bool {
	return len(t.FeedbackLog) > MaxFeedbackLogEntries
}

// HasIntent reports whether the given dispatch variant is active.
func (t *Task) HasIntent(i Intent) bool {
	return t.Intents.Has(i)
}

// taskJSON is the on-disk shape of a Task. Dispatch intents serialize as
// individual boolean keys so files written by earlier schema versions
// round-trip unchanged.
type taskJSON struct {
	ID          string     `json:"task_id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Worker      string     `json:"assigned_worker,omitempty"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	InputFiles  []string   `json:"input_files,omitempty"`
	OutputFiles []string   `json:"output_files,omitempty"`

	ContextNeeded          bool `json:"context_needed,omitempty"`
	RequiresConsensus      bool `json:"requires_consensus,omitempty"`
	RequiresDebate         bool `json:"requires_debate,omitempty"`
	VerificationRequired   bool `json:"verification_required,omitempty"`
	TestsFailing           bool `json:"tests_failing,omitempty"`
	GitCommitReady         bool `json:"git_commit_ready,omitempty"`
	GitAutoPush            bool `json:"git_auto_push,omitempty"`
	GitCreatePR            bool `json:"git_create_pr,omitempty"`
	FeatureDiscovery       bool `json:"feature_discovery,omitempty"`
	CodeAudit              bool `json:"code_audit,omitempty"`
	IssueTriageNeeded      bool `json:"issue_triage_needed,omitempty"`
	BranchManagementNeeded bool `json:"branch_management_needed,omitempty"`
	ProjectBootstrap       bool `json:"project_bootstrap,omitempty"`

	GitBranchName string `json:"git_branch_name,omitempty"`
	GitBaseBranch string `json:"git_base_branch,omitempty"`
	GitPRTitle    string `json:"git_pr_title,omitempty"`
	GitPRBody     string `json:"git_pr_body,omitempty"`

	FeedbackLog []string  `json:"feedback_log,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MarshalJSON writes the task in the blackboard wire format.
func (t Task) MarshalJSON() ([]byte, error) {
	w := taskJSON{
		ID:          t.ID,
		Description: t.Description,
		Status:      t.Status,
		Worker:      t.Worker,
		DependsOn:   t.DependsOn,
		InputFiles:  t.InputFiles,
		OutputFiles: t.OutputFiles,

		ContextNeeded:          t.Intents.Has(IntentContext),
		RequiresConsensus:      t.Intents.Has(IntentConsensus),
		RequiresDebate:         t.Intents.Has(IntentDebate),
		VerificationRequired:   t.Intents.Has(IntentVerify),
		TestsFailing:           t.Intents.Has(IntentDebug),
		GitCommitReady:         t.Intents.Has(IntentGitCommit),
		GitCreatePR:            t.Intents.Has(IntentGitPR),
		FeatureDiscovery:       t.Intents.Has(IntentFeatureScout),
		CodeAudit:              t.Intents.Has(IntentCodeAudit),
		IssueTriageNeeded:      t.Intents.Has(IntentIssueTriage),
		BranchManagementNeeded: t.Intents.Has(IntentBranchManager),
		ProjectBootstrap:       t.Intents.Has(IntentProjectLifecycle),

		GitAutoPush:   t.Git.AutoPush,
		GitBranchName: t.Git.Branch,
		GitBaseBranch: t.Git.Base,
		GitPRTitle:    t.Git.Title,
		GitPRBody:     t.Git.Body,

		FeedbackLog: t.FeedbackLog,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the blackboard wire format back into a Task.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	intents := IntentSet{}
	set := func(on bool, i Intent) {
		if on {
			intents.Add(i)
		}
	}
	set(w.ContextNeeded, IntentContext)
	set(w.RequiresConsensus, IntentConsensus)
	set(w.RequiresDebate, IntentDebate)
	set(w.VerificationRequired, IntentVerify)
	set(w.TestsFailing, IntentDebug)
	set(w.GitCommitReady, IntentGitCommit)
	set(w.GitCreatePR, IntentGitPR)
	set(w.FeatureDiscovery, IntentFeatureScout)
	set(w.CodeAudit, IntentCodeAudit)
	set(w.IssueTriageNeeded, IntentIssueTriage)
	set(w.BranchManagementNeeded, IntentBranchManager)
	set(w.ProjectBootstrap, IntentProjectLifecycle)

	base := w.GitBaseBranch
	if base == "" {
		base = "dev"
	}

	*t = Task{
		ID:          w.ID,
		Description: w.Description,
		Status:      w.Status,
		Worker:      w.Worker,
		DependsOn:   w.DependsOn,
		InputFiles:  w.InputFiles,
		OutputFiles: w.OutputFiles,
		Intents:     intents,
		Git: GitMeta{
			Branch:   w.GitBranchName,
			Base:     base,
			Title:    w.GitPRTitle,
			Body:     w.GitPRBody,
			AutoPush: w.GitAutoPush,
		},
		FeedbackLog: w.FeedbackLog,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	return nil
}
