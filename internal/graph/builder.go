package graph

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"swarm/internal/logging"
	"swarm/internal/parse"
)

// Directories never worth parsing. Matched against any path segment.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

const maxParseBytes = 1 << 20 // files above 1 MiB are generated or vendored

// Builder scans a codebase and assembles the knowledge graph from
// parsed AST nodes. Files are parsed concurrently; graph mutation is
// serialized behind a mutex so node ids and edges stay consistent.
type Builder struct {
	registry *parse.Registry
	workers  int
}

// NewBuilder creates a builder over the given parser registry.
// workers bounds concurrent file parsing; values < 1 default to 4.
func NewBuilder(registry *parse.Registry, workers int) *Builder {
	if workers < 1 {
		workers = 4
	}
	return &Builder{registry: registry, workers: workers}
}

// Build walks root, parses every supported source file and returns the
// assembled graph. Per-file parse failures are logged and skipped so a
// single malformed file cannot sink the whole build. The returned
// graph has cross-file API edges already attached.
func (b *Builder) Build(ctx context.Context, root string) (*Graph, error) {
	files, err := b.scan(root)
	if err != nil {
		return nil, err
	}
	logging.Graph("building graph from %d files under %s", len(files), root)

	g := NewGraph()
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for _, rel := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			content, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				logging.GraphWarn("read %s: %v", rel, err)
				return nil
			}
			nodes, err := b.registry.Parse(rel, content)
			if err != nil {
				logging.GraphDebug("parse %s: %v", rel, err)
				return nil
			}
			mu.Lock()
			for i := range nodes {
				addASTNode(g, &nodes[i])
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	apiEdges := connectAPIEdges(g)
	logging.Graph("graph built: %d nodes, %d edges (%d api)", g.NodeCount(), g.EdgeCount(), apiEdges)
	return g, nil
}

// Sources returns the files a Build over root would parse, for cache
// hashing without a full build.
func (b *Builder) Sources(root string) ([]string, error) {
	return b.scan(root)
}

// scan returns workspace-relative paths of parseable files in sorted
// order. Sorting keeps phantom-node resolution deterministic when two
// files define the same symbol.
func (b *Builder) scan(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	for _, ext := range b.registry.SupportedExtensions() {
		matches, err := doublestar.Glob(fsys, "**/*"+ext)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if skippable(m) {
				continue
			}
			if info, err := os.Stat(filepath.Join(root, m)); err != nil || info.Size() > maxParseBytes {
				continue
			}
			seen[m] = true
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func skippable(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipDirs[seg] {
			return true
		}
	}
	return false
}

// addASTNode inserts one parsed node with its metadata and relation
// edges. Call, inheritance and render targets are same-file ids; the
// target node may not exist yet (phantom) and that is fine.
func addASTNode(g *Graph, n *parse.ASTNode) {
	id := NodeID(n.File, n.Name)
	g.SetMeta(id, &NodeMeta{
		File:      n.File,
		Name:      n.Name,
		Type:      n.Type,
		StartLine: n.StartLine,
		EndLine:   n.EndLine,
		Content:   n.Content,
		Framework: n.FrameworkRole,
		Hooks:     n.Hooks(),
		APICalls:  n.APICalls,
		APIRoute:  n.APIRoute,
	})
	for _, called := range n.Calls {
		g.AddEdge(id, NodeID(n.File, called), EdgeCalls)
	}
	for _, parent := range n.Inherits {
		g.AddEdge(id, NodeID(n.File, parent), EdgeInherits)
	}
	for _, rendered := range n.Renders {
		g.AddEdge(id, NodeID(n.File, rendered), EdgeRenders)
	}
}

// connectAPIEdges links frontend fetch/axios callers to the backend
// handlers serving the same normalized route, bridging files that
// share no lexical symbols. Returns the number of edges added.
func connectAPIEdges(g *Graph) int {
	handlers := make(map[string]string)
	for _, id := range g.NodeIDs() {
		meta := g.Meta(id)
		if meta == nil || meta.APIRoute == "" {
			continue
		}
		handlers[NormalizeRoute(meta.APIRoute)] = id
	}
	if len(handlers) == 0 {
		return 0
	}

	added := 0
	for _, id := range g.NodeIDs() {
		meta := g.Meta(id)
		if meta == nil {
			continue
		}
		for _, call := range meta.APICalls {
			if handler, ok := handlers[NormalizeRoute(call)]; ok {
				g.AddEdge(id, handler, EdgeCallsAPI)
				added++
			}
		}
	}
	return added
}
