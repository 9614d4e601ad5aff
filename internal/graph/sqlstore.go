package graph

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"swarm/internal/logging"
)

// SQLStore persists graph snapshots to a SQLite database so external
// tooling can query the knowledge graph without decoding the binary
// cache. The binary cache remains the load path; this store is sink
// only, one snapshot per database.
type SQLStore struct {
	db   *sql.DB
	path string
}

// OpenSQLStore opens (or creates) the snapshot database.
func OpenSQLStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.GraphDebug("Failed to set snapshot journal_mode=WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		file TEXT,
		name TEXT,
		type TEXT,
		start_line INTEGER,
		end_line INTEGER,
		content TEXT
	);
	CREATE TABLE IF NOT EXISTS edges (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id)
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);
	CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(edge_type);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}

	return &SQLStore{db: db, path: path}, nil
}

// Snapshot replaces the stored graph with the given one in a single
// transaction. Phantom nodes (edge targets without metadata) are stored
// with empty file/name so edge rows stay referentially complete.
func (s *SQLStore) Snapshot(g *Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM edges"); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	nodeStmt, err := tx.Prepare(
		"INSERT INTO nodes (id, file, name, type, start_line, end_line, content) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, id := range g.NodeIDs() {
		m := g.Meta(id)
		if m == nil {
			if _, err := nodeStmt.Exec(id, "", "", "", 0, 0, ""); err != nil {
				return fmt.Errorf("failed to insert node %s: %w", id, err)
			}
			continue
		}
		if _, err := nodeStmt.Exec(id, m.File, m.Name, m.Type, m.StartLine, m.EndLine, m.Content); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", id, err)
		}
	}

	edgeStmt, err := tx.Prepare("INSERT INTO edges (from_id, to_id, edge_type) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges() {
		if _, err := edgeStmt.Exec(e.From, e.To, e.Type); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.From, e.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	logging.Graph("Snapshot written to %s (%d nodes, %d edges)", s.path, g.NodeCount(), g.EdgeCount())
	return nil
}

// Counts returns the stored node and edge counts, for health reporting.
func (s *SQLStore) Counts() (nodes, edges int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodes); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&edges); err != nil {
		return 0, 0, err
	}
	return nodes, edges, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
