package graph

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"

	"swarm/internal/logging"
)

// DefaultCacheName is the cache file created next to the scanned root.
const DefaultCacheName = ".hipporag_cache"

// Cache format: 4-byte magic, 1-byte format version, then msgpack
// blocks. The schema version travels inside the envelope so older
// caches are rejected rather than misread.
var cacheMagic = [4]byte{'S', 'W', 'R', 'M'}

const (
	cacheFormatVersion = 1
	cacheSchemaVersion = "1.0"
)

// ErrCacheStale is returned when a cache file exists but cannot serve
// the current build: wrong magic, format, schema, or source tree hash.
// Callers should rebuild.
var ErrCacheStale = errors.New("graph cache stale")

type cacheEnvelope struct {
	Schema     string               `msgpack:"schema"`
	SourceHash [32]byte             `msgpack:"source_hash"`
	Nodes      []string             `msgpack:"nodes"`
	Meta       map[string]*NodeMeta `msgpack:"meta"`
	Edges      []Edge               `msgpack:"edges"`
}

// HashSources computes the blake3 digest identifying a source tree
// state: relative paths and file contents in sorted order. Unreadable
// files contribute their path only, so a vanished file still changes
// the digest.
func HashSources(root string, files []string) [32]byte {
	h := blake3.New()
	for _, rel := range files {
		h.Write([]byte(rel))
		h.Write([]byte{0})
		if content, err := os.ReadFile(filepath.Join(root, rel)); err == nil {
			h.Write(content)
		}
		h.Write([]byte{0})
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// SaveCache writes the graph to path atomically (temp file + rename).
func SaveCache(path string, g *Graph, sourceHash [32]byte) error {
	env := cacheEnvelope{
		Schema:     cacheSchemaVersion,
		SourceHash: sourceHash,
		Nodes:      g.NodeIDs(),
		Meta:       g.meta,
		Edges:      g.Edges(),
	}

	var buf bytes.Buffer
	buf.Write(cacheMagic[:])
	buf.WriteByte(cacheFormatVersion)
	if err := msgpack.NewEncoder(&buf).Encode(&env); err != nil {
		return fmt.Errorf("encode graph cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write graph cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write graph cache: %w", err)
	}
	logging.Graph("graph cache saved: %s (%d nodes, %d edges)", path, len(env.Nodes), len(env.Edges))
	return nil
}

// LoadCache reads a graph cache, validating magic, format version,
// schema version, and the expected source hash. A missing file returns
// os.ErrNotExist; any validation failure returns ErrCacheStale.
func LoadCache(path string, wantHash [32]byte) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCacheStale)
	}
	if !bytes.Equal(header[:4], cacheMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCacheStale)
	}
	if header[4] != cacheFormatVersion {
		return nil, fmt.Errorf("%w: format version %d", ErrCacheStale, header[4])
	}

	var env cacheEnvelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheStale, err)
	}
	if env.Schema != cacheSchemaVersion {
		return nil, fmt.Errorf("%w: schema %q", ErrCacheStale, env.Schema)
	}
	if env.SourceHash != wantHash {
		return nil, fmt.Errorf("%w: source tree changed", ErrCacheStale)
	}

	g := NewGraph()
	for _, id := range env.Nodes {
		g.AddNode(id)
	}
	for id, meta := range env.Meta {
		g.SetMeta(id, meta)
	}
	for _, e := range env.Edges {
		g.AddEdge(e.From, e.To, e.Type)
	}
	logging.Graph("graph cache loaded: %s (%d nodes, %d edges)", path, g.NodeCount(), g.EdgeCount())
	return g, nil
}
