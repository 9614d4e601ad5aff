package telemetry

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// Collector stamps events with session and install identity before they
// reach the ledger, and mints provenance signatures.
type Collector struct {
	ledger    *Ledger
	sessionID string
	installID string
}

// NewCollector wraps a ledger for the given session. The install id is
// a stable anonymized hash stored under the swarm home directory.
func NewCollector(ledger *Ledger, sessionID string) *Collector {
	return &Collector{
		ledger:    ledger,
		sessionID: sessionID,
		installID: loadOrCreateInstallID(),
	}
}

// SessionID returns the session this collector stamps onto events.
func (c *Collector) SessionID() string { return c.sessionID }

// InstallID returns the stable anonymized install hash.
func (c *Collector) InstallID() string { return c.installID }

// Ledger exposes the underlying store for analytics queries.
func (c *Collector) Ledger() *Ledger { return c.ledger }

// loadOrCreateInstallID reads ~/.swarm/install_id, creating a fresh
// 16-hex-character hash on first run.
func loadOrCreateInstallID() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	installFile := filepath.Join(home, ".swarm", "install_id")

	if data, err := os.ReadFile(installFile); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}

	sum := blake3.Sum256([]byte(uuid.NewString()))
	id := hex.EncodeToString(sum[:])[:16]

	if err := os.MkdirAll(filepath.Dir(installFile), 0755); err == nil {
		if err := os.WriteFile(installFile, []byte(id), 0644); err != nil {
			logging.TelemetryWarn("Failed to persist install id: %v", err)
		}
	}
	return id
}

// Track runs fn and records one tool_use event with its outcome and
// duration. The fn error is passed through unchanged.
func (c *Collector) Track(toolName string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	event := NewEvent(c.sessionID, c.installID, EventToolUse)
	event.ToolName = toolName
	event.DurationMs = float64(duration.Microseconds()) / 1000.0
	if err != nil {
		event.Success = false
		event.ErrorCategory = categorize(err)
	}
	c.ledger.Append(event)

	return err
}

// RecordToolUse records a tool invocation outcome directly.
func (c *Collector) RecordToolUse(toolName string, success bool, duration time.Duration, errCategory string) {
	event := NewEvent(c.sessionID, c.installID, EventToolUse)
	event.ToolName = toolName
	event.Success = success
	event.DurationMs = float64(duration.Microseconds()) / 1000.0
	event.ErrorCategory = errCategory
	c.ledger.Append(event)
}

// RecordTaskRouting records which algorithm a task was routed to.
func (c *Collector) RecordTaskRouting(taskID, algorithm string, confidence float64) {
	event := NewEvent(c.sessionID, c.installID, EventTaskRouting)
	event.AlgorithmSelected = algorithm
	event.RoutingConfidence = confidence
	event.Properties = map[string]interface{}{"task_id": taskID}
	c.ledger.Append(event)
}

// RecordError records an error event in the given category.
func (c *Collector) RecordError(category, toolName string, properties map[string]interface{}) {
	event := NewEvent(c.sessionID, c.installID, EventError)
	event.ToolName = toolName
	event.Success = false
	event.ErrorCategory = category
	event.Properties = properties
	c.ledger.Append(event)
}

// RecordStartup records process startup with check outcomes.
func (c *Collector) RecordStartup(properties map[string]interface{}) {
	event := NewEvent(c.sessionID, c.installID, EventStartup)
	event.Properties = properties
	c.ledger.Append(event)
}

// RecordGap records a capability gap for later tool synthesis review.
func (c *Collector) RecordGap(description string) {
	event := NewEvent(c.sessionID, c.installID, EventGapDetected)
	event.Properties = map[string]interface{}{"description": description}
	c.ledger.Append(event)
}

// RecordProvenance mints an AuthorSignature, logs it as a provenance
// event, and returns it for appending to the blackboard log.
func (c *Collector) RecordProvenance(agentID, role, action, contributingModel, artifactRef string) types.AuthorSignature {
	sig := types.AuthorSignature{
		AgentID:           agentID,
		Role:              role,
		ContributingModel: contributingModel,
		Action:            action,
		ArtifactRef:       artifactRef,
		Timestamp:         time.Now().UTC(),
		Signature:         c.installID,
	}

	props := signatureProperties(sig)

	event := NewEvent(c.sessionID, c.installID, EventProvenance)
	event.ToolName = "provenance_log"
	event.Success = !failingAction(action)
	event.Properties = props
	c.ledger.Append(event)

	return sig
}

// failingAction marks the provenance actions that count against a
// role's success rate.
func failingAction(action string) bool {
	switch action {
	case "task_failed", "git_error", "role_failed":
		return true
	}
	return false
}

// signatureProperties flattens a signature into the event property bag.
func signatureProperties(sig types.AuthorSignature) map[string]interface{} {
	data, err := json.Marshal(sig)
	if err != nil {
		return map[string]interface{}{"role": sig.Role, "action": sig.Action}
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return map[string]interface{}{"role": sig.Role, "action": sig.Action}
	}
	return props
}

// categorize maps an error to a coarse category name without leaking
// message content.
func categorize(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "permission"), strings.Contains(msg, "denied"):
		return "permission"
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no such"):
		return "not_found"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"):
		return "network"
	default:
		return "runtime"
	}
}
