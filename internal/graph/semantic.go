package graph

import "swarm/internal/logging"

// SemanticEdge pairs two node ids discovered to be semantically close,
// typically by embedding similarity.
type SemanticEdge struct {
	From string
	To   string
}

// AddSemanticEdges inserts related_to edges for pairs whose endpoints
// both already exist. Unknown endpoints are skipped rather than
// materialized: semantic similarity should connect real code, not mint
// phantom nodes. Returns the number of edges added.
func (g *Graph) AddSemanticEdges(pairs []SemanticEdge) int {
	added := 0
	for _, p := range pairs {
		if !g.HasNode(p.From) || !g.HasNode(p.To) {
			continue
		}
		if _, exists := g.EdgeType(p.From, p.To); exists {
			continue
		}
		g.AddEdge(p.From, p.To, EdgeRelatedTo)
		added++
	}
	if added > 0 {
		logging.Graph("Added %d semantic related_to edges", added)
	}
	return added
}
