package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"swarm/internal/logging"
)

// Ledger is the SQLite-backed telemetry store. It holds the raw event
// table, memory snapshots, and the optional failure vector index.
type Ledger struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	vectorExt bool // sqlite-vec available
}

// NewLedger opens (or creates) the telemetry database at the given path.
func NewLedger(path string) (*Ledger, error) {
	timer := logging.StartTimer(logging.CategoryTelemetry, "NewLedger")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.TelemetryDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.TelemetryDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.TelemetryDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	l := &Ledger{db: db, dbPath: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	l.detectVecExtension()
	if l.vectorExt {
		logging.Telemetry("sqlite-vec extension detected, failure similarity search enabled")
	}

	logging.Telemetry("Ledger ready at %s", path)
	return l, nil
}

// initialize creates the required tables.
func (l *Ledger) initialize() error {
	eventsTable := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp TEXT,
		type TEXT,
		session_id TEXT,
		install_id TEXT,
		data JSON
	);
	CREATE INDEX IF NOT EXISTS idx_events_type_time ON events(type, timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`

	snapshotsTable := `
	CREATE TABLE IF NOT EXISTS memory_snapshots (
		snapshot_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		context_type TEXT NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_snapshots(session_id, context_type);
	CREATE INDEX IF NOT EXISTS idx_memory_timestamp ON memory_snapshots(timestamp DESC);
	`

	failuresTable := `
	CREATE TABLE IF NOT EXISTS failure_index (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, stmt := range []string{eventsTable, snapshotsTable, failuresTable} {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize telemetry schema: %w", err)
		}
	}
	return nil
}

// detectVecExtension probes for sqlite-vec virtual table support.
func (l *Ledger) detectVecExtension() {
	if l.db == nil {
		return
	}
	if _, err := l.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		l.vectorExt = true
		_, _ = l.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	l.vectorExt = false
}

// Append writes one event row. Re-delivery of the same event id is a
// no-op, and failures are logged but never returned to the caller.
func (l *Ledger) Append(event TelemetryEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		logging.TelemetryWarn("Failed to encode event %s: %v", event.EventID, err)
		return
	}

	_, err = l.db.Exec(
		"INSERT OR IGNORE INTO events (id, timestamp, type, session_id, install_id, data) VALUES (?, ?, ?, ?, ?, ?)",
		event.EventID,
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		string(event.Type),
		event.SessionID,
		event.InstallID,
		string(data),
	)
	if err != nil {
		logging.TelemetryWarn("Failed to record event %s: %v", event.EventID, err)
		return
	}
	logging.TelemetryDebug("Recorded %s event %s (tool=%s success=%v)",
		event.Type, event.EventID, event.ToolName, event.Success)
}

// Count returns the total number of stored events.
func (l *Ledger) Count() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats returns basic counts for health checks.
func (l *Ledger) Stats() map[string]int {
	stats := map[string]int{"total_events": -1}
	n, err := l.Count()
	if err != nil {
		return stats
	}
	stats["total_events"] = n

	l.mu.RLock()
	defer l.mu.RUnlock()
	rows, err := l.db.Query("SELECT type, COUNT(*) FROM events GROUP BY type")
	if err != nil {
		return stats
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err == nil {
			stats["type_"+typ] = count
		}
	}
	return stats
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
