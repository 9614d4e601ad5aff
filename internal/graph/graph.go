// Package graph builds a code knowledge graph from parsed ASTNodes and
// retrieves context with Personalized PageRank. Nodes are keyed
// "<file>::<name>" with the file part relative to the build root, so
// ids stay stable across machines and cache reloads.
package graph

import (
	"errors"
	"sort"
	"strings"
)

// ErrGraphNotBuilt is returned when retrieval is attempted before a
// graph has been built or loaded.
var ErrGraphNotBuilt = errors.New("graph not built")

// Edge relation types.
const (
	EdgeCalls     = "calls"
	EdgeInherits  = "inherits"
	EdgeRenders   = "renders"
	EdgeCallsAPI  = "calls_api"
	EdgeRelatedTo = "related_to"
)

// NodeMeta carries the retrievable payload of a defined node. Nodes
// referenced only as edge targets exist in the graph without metadata
// and never surface in results.
type NodeMeta struct {
	File      string   `msgpack:"file" json:"file_path"`
	Name      string   `msgpack:"name" json:"node_name"`
	Type      string   `msgpack:"type" json:"node_type"`
	StartLine int      `msgpack:"start_line" json:"start_line"`
	EndLine   int      `msgpack:"end_line" json:"end_line"`
	Content   string   `msgpack:"content" json:"content"`
	Framework string   `msgpack:"framework,omitempty" json:"framework,omitempty"`
	Hooks     []string `msgpack:"hooks,omitempty" json:"hooks,omitempty"`
	APICalls  []string `msgpack:"api_calls,omitempty" json:"api_calls,omitempty"`
	APIRoute  string   `msgpack:"api_route,omitempty" json:"api_route,omitempty"`
}

// Edge is a typed directed relation between two node ids.
type Edge struct {
	From string `msgpack:"from" json:"from"`
	To   string `msgpack:"to" json:"to"`
	Type string `msgpack:"type" json:"type"`
}

// Graph is a directed graph over code entities. One edge per (from, to)
// pair; re-adding overwrites the relation type.
type Graph struct {
	nodes map[string]bool
	adj   map[string]map[string]string // from -> to -> edge type
	meta  map[string]*NodeMeta
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		adj:   make(map[string]map[string]string),
		meta:  make(map[string]*NodeMeta),
	}
}

// NodeID builds the canonical "<file>::<name>" id.
func NodeID(file, name string) string {
	return file + "::" + name
}

// SymbolPart returns the name component of a node id, everything after
// the first "::" so Rust's Type::method names stay intact.
func SymbolPart(id string) string {
	if idx := strings.Index(id, "::"); idx >= 0 {
		return id[idx+2:]
	}
	return ""
}

// AddNode ensures a node exists.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// SetMeta attaches retrieval metadata to a node, creating it if needed.
func (g *Graph) SetMeta(id string, meta *NodeMeta) {
	g.nodes[id] = true
	g.meta[id] = meta
}

// Meta returns the metadata for a node, nil for phantom targets.
func (g *Graph) Meta(id string) *NodeMeta {
	return g.meta[id]
}

// AddEdge inserts a typed edge, creating endpoints as needed.
func (g *Graph) AddEdge(from, to, edgeType string) {
	g.nodes[from] = true
	g.nodes[to] = true
	m, ok := g.adj[from]
	if !ok {
		m = make(map[string]string)
		g.adj[from] = m
	}
	m[to] = edgeType
}

// HasNode reports whether a node id exists.
func (g *Graph) HasNode(id string) bool {
	return g.nodes[id]
}

// NodeCount returns the number of nodes, phantoms included.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.adj {
		n += len(m)
	}
	return n
}

// OutDegree returns the number of outgoing edges of a node.
func (g *Graph) OutDegree(id string) int {
	return len(g.adj[id])
}

// NodeIDs returns all node ids sorted, for deterministic iteration.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors returns the out-neighbor ids of a node, sorted.
func (g *Graph) Neighbors(id string) []string {
	m := g.adj[id]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for to := range m {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge sorted by (from, to), for serialization.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for from, m := range g.adj {
		for to, typ := range m {
			edges = append(edges, Edge{From: from, To: to, Type: typ})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// EdgeType returns the relation between two nodes and whether one exists.
func (g *Graph) EdgeType(from, to string) (string, bool) {
	typ, ok := g.adj[from][to]
	return typ, ok
}
