package telemetry

import (
	"fmt"

	"swarm/internal/logging"
)

// Circuit breaker states for tools.
const (
	StatusReady   = "READY"
	StatusWarning = "WARNING"
	StatusTripped = "TRIPPED"
)

// Circuit breaker thresholds.
const (
	WarningThreshold  = 0.7
	CriticalThreshold = 0.3
)

// Performance index weights and the normalization ceiling for speed.
const (
	successWeight = 0.7
	speedWeight   = 0.3
	maxDurationMs = 10000.0
)

// ProblemTool describes a tool whose recent success rate fell below a
// threshold.
type ProblemTool struct {
	Tool        string  `json:"tool"`
	SuccessRate float64 `json:"success_rate"`
	TotalUses   int     `json:"total_uses"`
}

// ToolSuccessRate returns successes / attempts for a tool over the last
// windowDays days. Empty data defaults optimistically to 1.0.
func (l *Ledger) ToolSuccessRate(tool string, windowDays int) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN json_extract(data, '$.success') = 1 THEN 1 ELSE 0 END) AS successes
		FROM events
		WHERE type = 'tool_use'
		  AND json_extract(data, '$.tool_name') = ?
		  AND timestamp > date('now', ?)
	`
	var total, successes int
	err := l.db.QueryRow(query, tool, fmt.Sprintf("-%d days", windowDays)).Scan(&total, &successes)
	if err != nil || total == 0 {
		return 1.0
	}
	return float64(successes) / float64(total)
}

// RoleSuccessRate returns the success rate of a git role derived from
// provenance events. Empty data defaults to 1.0.
func (l *Ledger) RoleSuccessRate(role string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN json_extract(data, '$.success') = 1 THEN 1 ELSE 0 END) AS successes
		FROM events
		WHERE type = 'provenance'
		  AND json_extract(data, '$.properties.role') = ?
	`
	var total, successes int
	err := l.db.QueryRow(query, role).Scan(&total, &successes)
	if err != nil || total == 0 {
		return 1.0
	}
	return float64(successes) / float64(total)
}

// AvgToolDuration returns the mean duration_ms for a tool, 0 when unknown.
func (l *Ledger) AvgToolDuration(tool string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT AVG(json_extract(data, '$.duration_ms'))
		FROM events
		WHERE type = 'tool_use'
		  AND json_extract(data, '$.tool_name') = ?
	`
	var avg *float64
	if err := l.db.QueryRow(query, tool).Scan(&avg); err != nil || avg == nil {
		return 0.0
	}
	return *avg
}

// PerformanceIndex computes the dispatch ordering score for a role:
//
//	PI = 0.7 * successRate + 0.3 * speedScore
//	speedScore = max(0, 1 - avgDuration/10000ms)
//
// Roles with no duration data score a full speed component.
func (l *Ledger) PerformanceIndex(role string) float64 {
	successRate := l.RoleSuccessRate(role)
	avgDuration := l.AvgToolDuration("git_role_" + role)

	speedScore := 1.0
	if avgDuration > 0 {
		ratio := avgDuration / maxDurationMs
		if ratio > 1 {
			ratio = 1
		}
		speedScore = 1.0 - ratio
	}

	return successRate*successWeight + speedScore*speedWeight
}

// ProblematicTools returns tools with more than 5 attempts in the window
// whose success rate fell below the threshold.
func (l *Ledger) ProblematicTools(threshold float64, windowDays int) []ProblemTool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT
			json_extract(data, '$.tool_name') AS name,
			COUNT(*) AS total,
			SUM(CASE WHEN json_extract(data, '$.success') = 1 THEN 1 ELSE 0 END) AS successes
		FROM events
		WHERE type = 'tool_use'
		  AND timestamp > date('now', ?)
		GROUP BY name
		HAVING total > 5
	`
	rows, err := l.db.Query(query, fmt.Sprintf("-%d days", windowDays))
	if err != nil {
		logging.TelemetryWarn("Failed to query problematic tools: %v", err)
		return nil
	}
	defer rows.Close()

	var problems []ProblemTool
	for rows.Next() {
		var name string
		var total, successes int
		if err := rows.Scan(&name, &total, &successes); err != nil {
			continue
		}
		rate := float64(successes) / float64(total)
		if rate < threshold {
			problems = append(problems, ProblemTool{
				Tool:        name,
				SuccessRate: rate,
				TotalUses:   total,
			})
		}
	}
	return problems
}

// ToolStatus returns the circuit breaker state for a tool based on its
// success rate over the last 24 hours.
func (l *Ledger) ToolStatus(tool string) string {
	rate := l.ToolSuccessRate(tool, 1)
	switch {
	case rate < CriticalThreshold:
		return StatusTripped
	case rate < WarningThreshold:
		return StatusWarning
	default:
		return StatusReady
	}
}

// PruneOldEvents deletes events older than retentionDays. Returns the
// number of rows removed.
func (l *Ledger) PruneOldEvents(retentionDays int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(
		"DELETE FROM events WHERE timestamp < date('now', ?)",
		fmt.Sprintf("-%d days", retentionDays),
	)
	if err != nil {
		logging.TelemetryWarn("Failed to prune old events: %v", err)
		return 0
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Telemetry("Pruned %d old telemetry events", n)
	}
	return int(n)
}

// Optimize compacts the store.
func (l *Ledger) Optimize() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logging.TelemetryWarn("Failed to set WAL mode: %v", err)
	}
	if _, err := l.db.Exec("VACUUM"); err != nil {
		logging.TelemetryWarn("Failed to vacuum telemetry database: %v", err)
		return
	}
	logging.TelemetryDebug("Optimized telemetry database")
}
