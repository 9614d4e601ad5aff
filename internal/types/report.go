package types

import "time"

// ReportStatus is the outcome state carried by role exit reports and
// handoffs.
type ReportStatus string

const (
	ReportPending    ReportStatus = "PENDING"
	ReportInProgress ReportStatus = "IN_PROGRESS"
	ReportCompleted  ReportStatus = "COMPLETED"
	ReportBlocked    ReportStatus = "BLOCKED"
	ReportFailed     ReportStatus = "FAILED"
	ReportSkipped    ReportStatus = "SKIPPED"
)

// ExitReport is the standardized result of one git agent role execution.
type ExitReport struct {
	TaskID        string       `json:"task_id"`
	Status        ReportStatus `json:"status"`
	FilesTouched  []string     `json:"files_touched,omitempty"`
	Branch        string       `json:"branch,omitempty"`
	PRURL         string       `json:"pr_url,omitempty"`
	RemainingWork string       `json:"remaining_work,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
}

// HandoffProtocol is the standardized message passed between git agent
// roles when one role defers work to another.
type HandoffProtocol struct {
	FromRole string                 `json:"from_role"`
	ToRole   string                 `json:"to_role"`
	TaskID   string                 `json:"task_id"`
	Status   ReportStatus           `json:"status"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Notes    string                 `json:"notes,omitempty"`
}

// DeliberationStep is one stage of a structured deliberation.
type DeliberationStep struct {
	Step       int       `json:"step"`
	Name       string    `json:"name"`
	Worker     string    `json:"worker"`
	Output     string    `json:"output"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeliberationResult is the complete outcome of a deliberation pipeline:
// the ordered steps taken, the synthesized answer, and a confidence score
// in [0, 1]. A failed pipeline carries confidence 0.
type DeliberationResult struct {
	TaskID      string             `json:"task_id"`
	Problem     string             `json:"problem"`
	Context     string             `json:"context,omitempty"`
	Constraints []string           `json:"constraints,omitempty"`
	Steps       []DeliberationStep `json:"steps"`
	FinalAnswer string             `json:"final_answer"`
	Confidence  float64            `json:"confidence"`
	CreatedAt   time.Time          `json:"created_at"`
}
