package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"swarm/internal/logging"
)

// SimilarFailure is a past failure ranked by embedding distance.
type SimilarFailure struct {
	EventID     string  `json:"event_id"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance"`
}

// VectorSearchAvailable reports whether the sqlite-vec extension was
// detected at open time.
func (l *Ledger) VectorSearchAvailable() bool {
	return l.vectorExt
}

// IndexFailure stores a failure description with its embedding so later
// failures can be matched against it. Without the vector extension only
// the plain row is kept.
func (l *Ledger) IndexFailure(eventID, description string, embedding []float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Exec(
		"INSERT OR IGNORE INTO failure_index (event_id, description) VALUES (?, ?)",
		eventID, description,
	); err != nil {
		return fmt.Errorf("failed to index failure: %w", err)
	}

	if !l.vectorExt || len(embedding) == 0 {
		return nil
	}

	if err := l.ensureFailureVecTable(len(embedding)); err != nil {
		logging.TelemetryWarn("Failure vector table unavailable: %v", err)
		return nil
	}

	if _, err := l.db.Exec(
		"INSERT OR REPLACE INTO vec_failures (embedding, event_id) VALUES (?, ?)",
		encodeFloat32Blob(embedding), eventID,
	); err != nil {
		logging.TelemetryWarn("Failed to insert failure vector: %v", err)
	}
	return nil
}

// SimilarFailures returns up to k past failures ranked by cosine distance
// to the query embedding. Returns nil when vector search is unavailable.
func (l *Ledger) SimilarFailures(embedding []float32, k int) []SimilarFailure {
	if !l.vectorExt || len(embedding) == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(`
		SELECT vf.event_id, fi.description,
		       vec_distance_cosine(vf.embedding, ?) AS distance
		FROM vec_failures vf
		JOIN failure_index fi ON fi.event_id = vf.event_id
		ORDER BY distance ASC
		LIMIT ?`,
		encodeFloat32Blob(embedding), k,
	)
	if err != nil {
		logging.TelemetryWarn("Similar failure query failed: %v", err)
		return nil
	}
	defer rows.Close()

	var out []SimilarFailure
	for rows.Next() {
		var sf SimilarFailure
		if err := rows.Scan(&sf.EventID, &sf.Description, &sf.Distance); err != nil {
			continue
		}
		out = append(out, sf)
	}
	return out
}

// ensureFailureVecTable creates the vec0 virtual table sized to the
// embedding dimensions.
func (l *Ledger) ensureFailureVecTable(dims int) error {
	stmt := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_failures USING vec0(
			embedding float[%d],
			event_id TEXT
		)`, dims)
	_, err := l.db.Exec(stmt)
	return err
}

// encodeFloat32Blob packs a vector in the little-endian layout sqlite-vec
// expects.
func encodeFloat32Blob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}
