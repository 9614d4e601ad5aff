package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// Store is the blackboard facade. Loads prefer SQL and fall back to
// the file, saves are strict on the file and best-effort on SQL, so
// the on-disk profile is always the authority while SQL gives other
// machines a live view of the same session.
type Store struct {
	file *FileStore
	sql  *PGStore // nil when no POSTGRES_URL is configured
}

// NewStore assembles the facade. An empty postgresURL disables the SQL
// backend; SQL connection failures disable it with a warning rather
// than failing startup, matching the non-fatal SQL policy.
func NewStore(ctx context.Context, stateFile, postgresURL string, lockTimeout, lockTTL time.Duration) (*Store, error) {
	file := NewFileStore(stateFile, lockTimeout)
	if err := file.Migrate(); err != nil {
		return nil, err
	}

	var pg *PGStore
	if postgresURL != "" {
		var err error
		pg, err = NewPGStore(ctx, postgresURL, lockTTL)
		if err != nil {
			logging.BlackboardWarn("SQL backend unavailable, file only: %v", err)
			pg = nil
		}
	}
	return &Store{file: file, sql: pg}, nil
}

// SQLEnabled reports whether the PostgreSQL backend is active.
func (s *Store) SQLEnabled() bool {
	return s.sql != nil
}

// SQL exposes the PostgreSQL backend for error-knowledge and archive
// queries. Nil when not configured.
func (s *Store) SQL() *PGStore {
	return s.sql
}

// Load returns the profile for a session: SQL first when enabled
// (claiming the row lock for the agent), file on SQL failure, and a
// fresh default profile when neither backend has one. File errors are
// fatal; SQL errors only demote to the file path.
func (s *Store) Load(ctx context.Context, sessionID, agentID string) (*types.ProjectProfile, error) {
	if s.sql != nil {
		data, err := s.sql.LoadSession(ctx, sessionID, agentID)
		if err != nil {
			logging.BlackboardWarn("SQL load failed, falling back to file: %v", err)
		} else if len(data) > 0 {
			var profile types.ProjectProfile
			if err := json.Unmarshal(data, &profile); err != nil {
				logging.BlackboardWarn("SQL profile corrupt, falling back to file: %v", err)
			} else {
				profile.EnsureDefaults()
				logging.Blackboard("Loaded state from SQL (session %.8s)", sessionID)
				return &profile, nil
			}
		}
	}

	profile, err := s.file.Load(ctx)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = types.NewProjectProfile()
	}
	return profile, nil
}

// Save persists to the file first (strict) and then to SQL
// (best-effort, claiming the session lock for the agent).
func (s *Store) Save(ctx context.Context, sessionID string, profile *types.ProjectProfile, agentID string) error {
	if err := s.file.Save(ctx, profile); err != nil {
		return err
	}

	if s.sql != nil {
		data, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to encode profile for SQL: %w", err)
		}
		if err := s.sql.SaveSession(ctx, sessionID, data, agentID); err != nil {
			logging.BlackboardWarn("SQL save failed: %v", err)
		} else {
			logging.BlackboardDebug("State saved to SQL (session %.8s)", sessionID)
		}
	}
	return nil
}

// ReleaseLock clears the SQL session lock held by the agent. No-op
// without SQL; failures are logged, shutdown must not block on them.
func (s *Store) ReleaseLock(ctx context.Context, sessionID, agentID string) {
	if s.sql == nil {
		return
	}
	if err := s.sql.ReleaseLock(ctx, sessionID, agentID); err != nil {
		logging.BlackboardWarn("Failed to release session lock: %v", err)
		return
	}
	logging.Blackboard("Released session lock for %.8s", sessionID)
}

// CleanupStaleLocks clears expired SQL locks older than timeout.
func (s *Store) CleanupStaleLocks(ctx context.Context, timeout time.Duration) int {
	if s.sql == nil {
		return 0
	}
	n, err := s.sql.CleanupStaleLocks(ctx, timeout)
	if err != nil {
		logging.BlackboardWarn("Stale lock cleanup failed: %v", err)
		return 0
	}
	if n > 0 {
		logging.Blackboard("Cleared %d stale session locks", n)
	}
	return n
}

// Close releases backend resources.
func (s *Store) Close() {
	if s.sql != nil {
		s.sql.Close()
	}
}
