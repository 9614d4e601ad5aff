// Package telemetry provides the append-only event ledger backing dispatch
// analytics, circuit breaking, and the self-healing monitor. Events are
// stored in SQLite under .swarm/telemetry.db; writes are best-effort and
// never propagate errors to callers.
package telemetry

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType classifies a telemetry event.
type EventType string

const (
	EventToolUse     EventType = "tool_use"
	EventTaskRouting EventType = "task_routing"
	EventError       EventType = "error"
	EventProvenance  EventType = "provenance"
	EventStartup     EventType = "startup"
	EventGapDetected EventType = "gap_detected"
)

// TelemetryEvent is one ledger row.
//
// Privacy principles: no PII, no raw code content. Identifiers are hashed
// and metrics are bucketed.
type TelemetryEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	InstallID string    `json:"install_id"`

	Type     EventType `json:"type"`
	ToolName string    `json:"tool_name,omitempty"`

	// Context
	CodebaseSizeBucket string `json:"codebase_size_bucket,omitempty"`
	Language           string `json:"language,omitempty"`

	// Instruction (anonymized)
	InstructionHash   string `json:"instruction_hash,omitempty"`
	InstructionTokens int    `json:"instruction_tokens,omitempty"`

	// Outcome
	Success       bool    `json:"success"`
	DurationMs    float64 `json:"duration_ms"`
	ErrorCategory string  `json:"error_category,omitempty"`

	// Routing features
	RoutingConfidence float64 `json:"routing_confidence,omitempty"`
	AlgorithmSelected string  `json:"algorithm_selected,omitempty"`

	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NewEvent builds an event with a fresh id and UTC timestamp. IDs are
// ULIDs so the ledger's unique index stays roughly insert-ordered.
func NewEvent(sessionID, installID string, typ EventType) TelemetryEvent {
	return TelemetryEvent{
		EventID:   ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		InstallID: installID,
		Type:      typ,
		Success:   true,
	}
}
