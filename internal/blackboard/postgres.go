package blackboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swarm/internal/logging"
)

// PGStore is the PostgreSQL session backend. Each session row carries
// the serialized profile plus an advisory lock column pair
// (locked_by, lock_expires_at) that save operations upsert.
type PGStore struct {
	pool      *pgxpool.Pool
	vectorOK  bool
	lockTTL   time.Duration
	sessionNS string
}

// SessionInfo is one row of the session listing.
type SessionInfo struct {
	SessionID string
	UpdatedAt time.Time
	LockedBy  string
}

// ErrorHint is a stored error pattern with its remedy.
type ErrorHint struct {
	Pattern        string
	Symptom        string
	Recommendation string
}

// ArchivedMemory is one semantic-search hit from the archive.
type ArchivedMemory struct {
	SourceFile string
	Content    string
	Tags       []string
	Similarity float64
}

// NewPGStore connects and ensures the session schema exists. The
// pgvector-backed archive tables are created lazily on first archive
// write since the extension needs database-level privileges.
func NewPGStore(ctx context.Context, url string, lockTTL time.Duration) (*PGStore, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres url is empty")
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := &PGStore{pool: pool, lockTTL: lockTTL}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logging.Blackboard("PostgreSQL session backend ready")
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_state (
			session_id TEXT PRIMARY KEY,
			profile_data JSONB,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			locked_by TEXT,
			lock_expires_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS error_knowledge (
			id SERIAL PRIMARY KEY,
			pattern TEXT UNIQUE,
			symptom TEXT,
			recommendation TEXT,
			last_occurred TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure session schema: %w", err)
		}
	}
	return nil
}

// LoadSession fetches the profile JSON for a session, first trying to
// claim the row lock for the agent. A rejected claim is not an error:
// the read still proceeds, writes are what the lock guards.
func (s *PGStore) LoadSession(ctx context.Context, sessionID, agentID string) ([]byte, error) {
	if agentID != "" {
		_, err := s.pool.Exec(ctx, `
			UPDATE session_state
			SET locked_by = $1, lock_expires_at = NOW() + $3::interval
			WHERE session_id = $2 AND (locked_by IS NULL OR lock_expires_at < NOW())`,
			agentID, sessionID, s.ttlInterval())
		if err != nil {
			logging.BlackboardWarn("Lock claim failed for session %s: %v", sessionID, err)
		}
	}

	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT profile_data FROM session_state WHERE session_id = $1", sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	return data, nil
}

// SaveSession upserts the profile and claims the lock for the agent
// with a fresh expiry.
func (s *PGStore) SaveSession(ctx context.Context, sessionID string, profileJSON []byte, agentID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_state (session_id, profile_data, locked_by, lock_expires_at)
		VALUES ($1, $2, $3, NOW() + $4::interval)
		ON CONFLICT (session_id) DO UPDATE SET
			profile_data = EXCLUDED.profile_data,
			updated_at = NOW(),
			locked_by = EXCLUDED.locked_by,
			lock_expires_at = EXCLUDED.lock_expires_at`,
		sessionID, profileJSON, agentID, s.ttlInterval())
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// ReleaseLock clears the lock only when held by the given agent.
func (s *PGStore) ReleaseLock(ctx context.Context, sessionID, agentID string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE session_state SET locked_by = NULL, lock_expires_at = NULL WHERE session_id = $1 AND locked_by = $2",
		sessionID, agentID)
	if err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// CleanupStaleLocks clears locks whose expiry passed more than timeout
// ago and returns how many sessions were unlocked.
func (s *PGStore) CleanupStaleLocks(ctx context.Context, timeout time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_state
		SET locked_by = NULL, lock_expires_at = NULL
		WHERE lock_expires_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(timeout.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale locks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListSessions returns all known sessions ordered by last update.
func (s *PGStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT session_id, updated_at, COALESCE(locked_by, '') FROM session_state ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.UpdatedAt, &info.LockedBy); err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// SaveErrorKnowledge upserts a known error pattern keyed by pattern text.
func (s *PGStore) SaveErrorKnowledge(ctx context.Context, pattern, symptom, recommendation string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO error_knowledge (pattern, symptom, recommendation)
		VALUES ($1, $2, $3)
		ON CONFLICT (pattern) DO UPDATE SET
			symptom = EXCLUDED.symptom,
			recommendation = EXCLUDED.recommendation,
			last_occurred = CURRENT_TIMESTAMP`,
		pattern, symptom, recommendation)
	if err != nil {
		return fmt.Errorf("failed to save error knowledge: %w", err)
	}
	return nil
}

// DiagnoseError finds stored patterns contained in the error message.
func (s *PGStore) DiagnoseError(ctx context.Context, errMsg string) ([]ErrorHint, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT pattern, symptom, recommendation FROM error_knowledge WHERE $1 ILIKE '%' || pattern || '%'",
		errMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to diagnose error: %w", err)
	}
	defer rows.Close()

	var hints []ErrorHint
	for rows.Next() {
		var h ErrorHint
		if err := rows.Scan(&h.Pattern, &h.Symptom, &h.Recommendation); err != nil {
			return nil, err
		}
		hints = append(hints, h)
	}
	return hints, rows.Err()
}

// ArchiveMemory stores pruned context with its embedding for later
// semantic recall. First call creates the pgvector table; a database
// without the extension degrades to an error the caller may ignore.
func (s *PGStore) ArchiveMemory(ctx context.Context, content string, embedding []float32, sourceFile string, tags []string) error {
	if !s.vectorOK {
		if err := s.ensureVectorSchema(ctx); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO archived_memory (source_file, content, embedding, tags) VALUES ($1, $2, $3::vector, $4)",
		sourceFile, content, vectorLiteral(embedding), tags)
	if err != nil {
		return fmt.Errorf("failed to archive memory: %w", err)
	}
	return nil
}

// SearchArchivedMemory returns the topK closest archive entries by
// cosine distance.
func (s *PGStore) SearchArchivedMemory(ctx context.Context, embedding []float32, topK int) ([]ArchivedMemory, error) {
	if !s.vectorOK {
		if err := s.ensureVectorSchema(ctx); err != nil {
			return nil, err
		}
	}
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT source_file, content, tags, 1 - (embedding <=> $1::vector) AS similarity
		FROM archived_memory
		ORDER BY embedding <=> $1::vector
		LIMIT $2`,
		vectorLiteral(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search archived memory: %w", err)
	}
	defer rows.Close()

	var hits []ArchivedMemory
	for rows.Next() {
		var m ArchivedMemory
		if err := rows.Scan(&m.SourceFile, &m.Content, &m.Tags, &m.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, m)
	}
	return hits, rows.Err()
}

func (s *PGStore) ensureVectorSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS archived_memory (
			id SERIAL PRIMARY KEY,
			source_file TEXT,
			content TEXT,
			embedding VECTOR(768),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			tags TEXT[]
		)`,
		`CREATE INDEX IF NOT EXISTS archived_memory_embedding_idx
			ON archived_memory USING ivfflat (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector unavailable: %w", err)
		}
	}
	s.vectorOK = true
	return nil
}

func (s *PGStore) ttlInterval() string {
	return fmt.Sprintf("%d seconds", int(s.lockTTL.Seconds()))
}

// vectorLiteral renders the pgvector text form '[x,y,z]'.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
