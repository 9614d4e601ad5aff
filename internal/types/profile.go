package types

import "time"

// SchemaVersion is the current blackboard schema version. Profiles loaded
// with an older version are migrated forward in place.
const SchemaVersion = "3.4.0"

// Role names used in provenance entries and worker model routing.
const (
	RoleArchitect        = "architect"
	RoleEngineer         = "engineer"
	RoleAuditor          = "auditor"
	RoleDebugger         = "debugger"
	RoleResearcher       = "researcher"
	RoleSynthesizer      = "synthesizer"
	RoleSystem           = "system"
	RoleFeatureScout     = "feature_scout"
	RoleCodeAuditor      = "code_auditor"
	RoleIssueTriage      = "issue_triage"
	RoleBranchManager    = "branch_manager"
	RoleProjectLifecycle = "project_lifecycle"
	RoleGitWriter        = "git-writer"
)

// AuthorSignature is a provenance entry attributing one mutation to one
// agent. The provenance log is append-only and ordered by timestamp.
type AuthorSignature struct {
	AgentID           string    `json:"agent_id"`
	Role              string    `json:"role"`
	ContributingModel string    `json:"contributing_model,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Action            string    `json:"action"`
	ArtifactRef       string    `json:"artifact_ref,omitempty"`
	Signature         string    `json:"signature,omitempty"`
}

// NewSignature builds a provenance entry stamped with the current UTC time.
func NewSignature(agentID, role, action, artifactRef string) AuthorSignature {
	return AuthorSignature{
		AgentID:     agentID,
		Role:        role,
		Action:      action,
		ArtifactRef: artifactRef,
		Timestamp:   time.Now().UTC(),
	}
}

// StackFingerprint is the result of stack detection over a workspace.
type StackFingerprint struct {
	PrimaryLanguage  string   `json:"primary_language"`
	ToolchainVariant string   `json:"toolchain_variant"`
	DetectedVersion  string   `json:"detected_version,omitempty"`
	IsMonorepo       bool     `json:"is_monorepo,omitempty"`
	Frameworks       []string `json:"frameworks,omitempty"`
}

// GateIntent names a validation gate: one of the toolchain actions, or
// the symbolic verification probe.
type GateIntent string

const (
	GateBuild  GateIntent = "build"
	GateTest   GateIntent = "test"
	GateLint   GateIntent = "lint"
	GateFormat GateIntent = "format"
	GateAudit  GateIntent = "audit"
	GateMutate GateIntent = "mutate"
	GateClean  GateIntent = "clean"
	GateVerify GateIntent = "verify"
)

// GateStatus is the outcome state of a validation gate.
type GateStatus string

const (
	GatePending GateStatus = "PENDING"
	GateRunning GateStatus = "RUNNING"
	GatePassed  GateStatus = "PASSED"
	GateFailed  GateStatus = "FAILED"
	GateSkipped GateStatus = "SKIPPED"
)

// GateCommand configures how one toolchain action is executed.
type GateCommand struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"` // text, junit_xml, sarif, json
	OutputPath     string `json:"output_path,omitempty"`
	Adapter        string `json:"adapter,omitempty"`
}

// GateResult records the outcome of a single validation gate. Timeouts are
// recorded as FAILED results, never raised as errors.
type GateResult struct {
	Intent      GateIntent `json:"intent"`
	Status      GateStatus `json:"status"`
	ExitCode    int        `json:"exit_code"`
	Message     string     `json:"message,omitempty"`
	ArtifactRef string     `json:"artifact_ref,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ToolchainConfig maps toolchain actions to concrete commands for the
// detected stack.
type ToolchainConfig struct {
	Version         string                     `json:"version"`
	StackID         string                     `json:"stack_id"`
	Actions         map[GateIntent]GateCommand `json:"actions,omitempty"`
	Environment     map[string]string          `json:"environment,omitempty"`
	MaxRetries      int                        `json:"max_retries,omitempty"`
	BudgetCapTokens int                        `json:"budget_cap_tokens,omitempty"`
}

// ValidationLifecycle tracks the validation loop over gates.
type ValidationLifecycle struct {
	Phase   string                    `json:"phase"` // IDLE, ANALYZING, TESTING, MUTATING, COMPLETED
	Results map[GateIntent]GateResult `json:"results,omitempty"`
}

// ProjectProfile is the single source of truth for one session's state.
// Exactly one profile corresponds to one session id. Persistence and
// locking belong to the blackboard store; everything else consumes
// immutable snapshots.
type ProjectProfile struct {
	SchemaVersion string                 `json:"schema_version"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`

	ProvenanceLog []AuthorSignature `json:"provenance_log"`

	StackFingerprint *StackFingerprint `json:"stack_fingerprint,omitempty"`
	ToolchainConfig  *ToolchainConfig  `json:"toolchain_config,omitempty"`

	Tasks      map[string]*Task     `json:"tasks"`
	Validation *ValidationLifecycle `json:"validation,omitempty"`

	ActiveContext map[string]interface{} `json:"active_context"`
	MemoryBank    map[string]interface{} `json:"memory_bank"`

	// WorkerModels maps role -> model id. The "default" key is required.
	WorkerModels map[string]string `json:"worker_models"`
}

// NewProjectProfile returns a profile with the current schema version and
// the default worker model routing.
func NewProjectProfile() *ProjectProfile {
	p := &ProjectProfile{
		SchemaVersion: SchemaVersion,
		Tasks:         make(map[string]*Task),
		ActiveContext: make(map[string]interface{}),
		MemoryBank:    make(map[string]interface{}),
		WorkerModels: map[string]string{
			"default":     "gemini-3-flash-preview",
			RoleArchitect: "gemini-3-flash-preview",
			RoleEngineer:  "gemini-3-flash-preview",
			RoleAuditor:   "gemini-3-flash-preview",
			RoleGitWriter: "llama-3.2-3b",
		},
		Validation: &ValidationLifecycle{Phase: "IDLE"},
	}
	return p
}

// EnsureDefaults fills nil maps after deserialization so callers never
// need nil checks.
func (p *ProjectProfile) EnsureDefaults() {
	if p.Tasks == nil {
		p.Tasks = make(map[string]*Task)
	}
	if p.ActiveContext == nil {
		p.ActiveContext = make(map[string]interface{})
	}
	if p.MemoryBank == nil {
		p.MemoryBank = make(map[string]interface{})
	}
	if p.WorkerModels == nil {
		p.WorkerModels = map[string]string{"default": "gemini-3-flash-preview"}
	}
	if _, ok := p.WorkerModels["default"]; !ok {
		p.WorkerModels["default"] = "gemini-3-flash-preview"
	}
	if p.Validation == nil {
		p.Validation = &ValidationLifecycle{Phase: "IDLE"}
	}
}

// GetTask returns the task with the given id, or nil.
func (p *ProjectProfile) GetTask(id string) *Task {
	if p.Tasks == nil {
		return nil
	}
	return p.Tasks[id]
}

// AddTask inserts a task keyed by its id.
func (p *ProjectProfile) AddTask(t *Task) {
	if p.Tasks == nil {
		p.Tasks = make(map[string]*Task)
	}
	p.Tasks[t.ID] = t
}

// AppendProvenance appends a signature to the provenance log.
func (p *ProjectProfile) AppendProvenance(sig AuthorSignature) {
	p.ProvenanceLog = append(p.ProvenanceLog, sig)
}

// ModelForRole resolves the model id for a role, falling back to "default".
func (p *ProjectProfile) ModelForRole(role string) string {
	if m, ok := p.WorkerModels[role]; ok && m != "" {
		return m
	}
	return p.WorkerModels["default"]
}

// UpdateValidation records a gate result and marks the loop completed.
func (p *ProjectProfile) UpdateValidation(result GateResult) {
	if p.Validation == nil {
		p.Validation = &ValidationLifecycle{}
	}
	if p.Validation.Results == nil {
		p.Validation.Results = make(map[GateIntent]GateResult)
	}
	p.Validation.Results[result.Intent] = result
	p.Validation.Phase = "COMPLETED"
}
