package telemetry

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"swarm/internal/logging"
)

// Context types stored as memory snapshots.
const (
	ContextActive     = "active_context"
	ContextMemoryBank = "memory_bank"
)

// MemorySnapshot is one historical context record.
type MemorySnapshot struct {
	SnapshotID  string                 `json:"snapshot_id"`
	SessionID   string                 `json:"session_id"`
	Timestamp   string                 `json:"timestamp"`
	ContextType string                 `json:"context_type"`
	Data        map[string]interface{} `json:"data"`
}

// FailurePattern aggregates repeated failures against one target.
type FailurePattern struct {
	Target       string `json:"target"`
	FailureCount int    `json:"failure_count"`
}

// SaveContext stores a context snapshot and returns its id.
func (l *Ledger) SaveContext(sessionID, contextType string, data map[string]interface{}) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshotID := uuid.NewString()
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}

	_, err = l.db.Exec(
		"INSERT INTO memory_snapshots (snapshot_id, session_id, context_type, data) VALUES (?, ?, ?, ?)",
		snapshotID, sessionID, contextType, string(encoded),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save context snapshot: %w", err)
	}

	logging.TelemetryDebug("Saved %s snapshot %s", contextType, snapshotID)
	return snapshotID, nil
}

// LoadLatestContext returns the most recent snapshot of a given type,
// or nil when none exists.
func (l *Ledger) LoadLatestContext(contextType string) (map[string]interface{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var raw string
	err := l.db.QueryRow(
		"SELECT data FROM memory_snapshots WHERE context_type = ? ORDER BY timestamp DESC LIMIT 1",
		contextType,
	).Scan(&raw)
	if err != nil {
		return nil, nil // no snapshot yet
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("corrupt context snapshot: %w", err)
	}
	return data, nil
}

// LoadSessionContext returns the latest snapshot of a type for one session.
func (l *Ledger) LoadSessionContext(sessionID, contextType string) (map[string]interface{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var raw string
	err := l.db.QueryRow(
		"SELECT data FROM memory_snapshots WHERE session_id = ? AND context_type = ? ORDER BY timestamp DESC LIMIT 1",
		sessionID, contextType,
	).Scan(&raw)
	if err != nil {
		return nil, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("corrupt context snapshot: %w", err)
	}
	return data, nil
}

// QueryRecentSnapshots returns snapshots from the last N hours, newest
// first, for pattern analysis.
func (l *Ledger) QueryRecentSnapshots(hours, limit int) ([]MemorySnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(
		`SELECT snapshot_id, session_id, timestamp, context_type, data
		 FROM memory_snapshots
		 WHERE timestamp > datetime('now', ?)
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		fmt.Sprintf("-%d hours", hours), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []MemorySnapshot
	for rows.Next() {
		var s MemorySnapshot
		var raw string
		if err := rows.Scan(&s.SnapshotID, &s.SessionID, &s.Timestamp, &s.ContextType, &raw); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(raw), &s.Data); err != nil {
			continue
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// FailurePatterns analyzes recent snapshots for repeated failures.
// Targets with 2 or more failures are returned, most frequent first.
func (l *Ledger) FailurePatterns(windowHours int) []FailurePattern {
	snapshots, err := l.QueryRecentSnapshots(windowHours, 100)
	if err != nil {
		logging.TelemetryWarn("Failed to query snapshots for failure patterns: %v", err)
		return nil
	}

	counts := make(map[string]int)
	for _, s := range snapshots {
		failed := false
		if v, ok := s.Data["error"]; ok && v != nil && v != "" {
			failed = true
		}
		if v, ok := s.Data["status"]; ok && v == "FAILED" {
			failed = true
		}
		if !failed {
			continue
		}

		key := "unknown"
		if v, ok := s.Data["task_id"].(string); ok && v != "" {
			key = v
		} else if v, ok := s.Data["file"].(string); ok && v != "" {
			key = v
		}
		counts[key]++
	}

	var patterns []FailurePattern
	for target, n := range counts {
		if n >= 2 {
			patterns = append(patterns, FailurePattern{Target: target, FailureCount: n})
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].FailureCount != patterns[j].FailureCount {
			return patterns[i].FailureCount > patterns[j].FailureCount
		}
		return patterns[i].Target < patterns[j].Target
	})
	return patterns
}
