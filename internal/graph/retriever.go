package graph

import (
	"sort"
	"strings"

	"swarm/internal/logging"
)

// ContextChunk is one retrieved code entity, projected from node
// metadata plus its PageRank relevance score.
type ContextChunk struct {
	FilePath  string  `json:"file_path"`
	NodeName  string  `json:"node_name"`
	NodeType  string  `json:"node_type"`
	Content   string  `json:"content"`
	PPRScore  float64 `json:"ppr_score"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
}

// Retriever answers context queries against a built graph using
// Personalized PageRank seeded from query-matched symbols.
type Retriever struct {
	graph   *Graph
	damping float64
	maxIter int
}

// NewRetriever wraps a graph for retrieval. A nil graph is accepted;
// RetrieveContext will report ErrGraphNotBuilt until SetGraph is called.
func NewRetriever(g *Graph, damping float64, maxIter int) *Retriever {
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}
	if maxIter <= 0 {
		maxIter = 100
	}
	return &Retriever{graph: g, damping: damping, maxIter: maxIter}
}

// SetGraph swaps the underlying graph, e.g. after a rebuild.
func (r *Retriever) SetGraph(g *Graph) {
	r.graph = g
}

// Graph returns the underlying graph, nil when none is loaded.
func (r *Retriever) Graph() *Graph {
	return r.graph
}

// RetrieveContext finds the topK most relevant code entities for a
// free-text query. Seeds are nodes whose symbol part contains any query
// token (case-insensitive); each seed gets uniform personalization mass.
// No seeds means no answer: an empty slice, not an error. Only nodes
// with metadata are returned, so phantom edge targets never leak into
// results.
func (r *Retriever) RetrieveContext(query string, topK int) ([]ContextChunk, error) {
	if r.graph == nil || r.graph.NodeCount() == 0 {
		return nil, ErrGraphNotBuilt
	}
	if topK <= 0 {
		topK = 5
	}

	seeds := r.findSeeds(query)
	if len(seeds) == 0 {
		logging.Graph("No seed nodes matched query %q, returning empty context", query)
		return []ContextChunk{}, nil
	}

	personalization := make(map[string]float64, len(seeds))
	weight := 1.0 / float64(len(seeds))
	for _, id := range seeds {
		personalization[id] = weight
	}

	timer := logging.StartTimer(logging.CategoryGraph, "personalized_pagerank")
	scores := personalizedPageRank(r.graph, r.damping, personalization, r.maxIter, 1e-6)
	timer.Stop()

	chunks := r.project(scores)
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	logging.Graph("Retrieved %d chunks for query %q (%d seeds)", len(chunks), query, len(seeds))
	return chunks, nil
}

// findSeeds matches query tokens against node symbol parts. Tokens
// shorter than two runes are ignored to keep one-letter words from
// seeding half the graph.
func (r *Retriever) findSeeds(query string) []string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	var seeds []string
	for _, id := range r.graph.NodeIDs() {
		symbol := strings.ToLower(SymbolPart(id))
		if symbol == "" {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(symbol, tok) {
				seeds = append(seeds, id)
				break
			}
		}
	}
	return seeds
}

// project converts scored nodes into chunks sorted by score descending,
// id ascending on ties so equal-score ordering is stable.
func (r *Retriever) project(scores map[string]float64) []ContextChunk {
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for id, s := range scores {
		if r.graph.Meta(id) == nil {
			continue
		}
		ranked = append(ranked, scored{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	chunks := make([]ContextChunk, 0, len(ranked))
	for _, s := range ranked {
		m := r.graph.Meta(s.id)
		chunks = append(chunks, ContextChunk{
			FilePath:  m.File,
			NodeName:  m.Name,
			NodeType:  m.Type,
			Content:   m.Content,
			PPRScore:  s.score,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
		})
	}
	return chunks
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
