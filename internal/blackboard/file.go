// Package blackboard persists the shared ProjectProfile that every
// agent reads and writes between ticks. The file backend is the
// authority; a PostgreSQL backend, when configured, adds cross-machine
// session sharing with row-level locks.
package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// Default state file names. The legacy name predates the profile
// schema and is archived, never read.
const (
	DefaultStateFile = "project_profile.json"
	LegacyStateFile  = "blackboard_state.json"
)

// ErrLockContention is returned when the advisory file lock cannot be
// acquired within the configured timeout, meaning another process is
// mid-save on the same profile.
var ErrLockContention = errors.New("blackboard lock contention")

// FileStore reads and writes the profile JSON under an advisory flock.
// The lock file sits next to the state file with a .lock suffix.
type FileStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// NewFileStore creates a file backend for the given state file path.
func NewFileStore(path string, lockTimeout time.Duration) *FileStore {
	if path == "" {
		path = DefaultStateFile
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &FileStore{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: lockTimeout,
	}
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Migrate archives a legacy state file sitting next to the configured
// one. The old format is not readable as a profile, so it is renamed
// with a timestamp suffix rather than imported.
func (s *FileStore) Migrate() error {
	legacy := filepath.Join(filepath.Dir(s.path), LegacyStateFile)
	if _, err := os.Stat(legacy); err != nil {
		return nil
	}
	stamp := time.Now().Format("20060102_150405")
	archive := filepath.Join(filepath.Dir(s.path), fmt.Sprintf("blackboard_state_v1_backup_%s.json", stamp))
	logging.BlackboardWarn("Migrating legacy state: %s -> %s", legacy, archive)
	if err := os.Rename(legacy, archive); err != nil {
		return fmt.Errorf("failed to archive legacy state file: %w", err)
	}
	return nil
}

// Load reads the profile from disk under the lock. A missing file is
// not an error: it returns (nil, nil) so the caller can start fresh.
// An unreadable or unparseable file is an error; silently dropping an
// existing profile would lose task state.
func (s *FileStore) Load(ctx context.Context) (*types.ProjectProfile, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		logging.Blackboard("No existing state file at %s, starting fresh", s.path)
		return nil, nil
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var profile types.ProjectProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	profile.EnsureDefaults()
	logging.Blackboard("Loaded state from %s (%d tasks)", s.path, len(profile.Tasks))
	return &profile, nil
}

// Save writes the profile atomically (temp file + rename) under the lock.
func (s *FileStore) Save(ctx context.Context, profile *types.ProjectProfile) error {
	if profile == nil {
		return errors.New("cannot save nil profile")
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	logging.BlackboardDebug("State saved to %s", s.path)
	return nil
}

// acquire takes the advisory lock, polling until the timeout elapses.
func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	lock := flock.New(s.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if !locked {
		if err == nil {
			err = lockCtx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLockContention, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.BlackboardWarn("Failed to release file lock: %v", err)
		}
	}, nil
}
