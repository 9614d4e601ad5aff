// Package prune reduces the provenance log to a bounded, relevant
// subset before it enters a worker prompt. Dropped entries are not
// lost, the telemetry ledger keeps the full history.
package prune

import (
	"context"
	"fmt"
	"math"
	"sort"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// Defaults per the pruning contract: the last keepTail entries always
// survive, up to keepRelevant semantically similar older entries join
// them.
const (
	DefaultKeepTail     = 10
	DefaultKeepRelevant = 20
)

// Embedder is the minimal embedding capability the pruner needs. A nil
// embedder switches pruning to FIFO.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Pruner scores provenance entries against the current task and keeps
// the tail plus the most relevant remainder.
type Pruner struct {
	embedder     Embedder
	keepTail     int
	keepRelevant int
}

// NewPruner builds a pruner. Non-positive limits take the defaults.
func NewPruner(embedder Embedder, keepTail, keepRelevant int) *Pruner {
	if keepTail <= 0 {
		keepTail = DefaultKeepTail
	}
	if keepRelevant <= 0 {
		keepRelevant = DefaultKeepRelevant
	}
	return &Pruner{embedder: embedder, keepTail: keepTail, keepRelevant: keepRelevant}
}

// Prune returns the reduced log. The tail (last keepTail entries) is
// always the suffix of the result in original order; older entries are
// scored by cosine similarity of "action artifact role" text against
// the query, the top keepRelevant survive, re-sorted to their original
// positions. Without an embedder, or when embedding fails, the result
// is the plain FIFO window log[len-total:]. Never returns an error:
// pruning is advisory and the worst case is a larger prompt.
func (p *Pruner) Prune(ctx context.Context, log []types.AuthorSignature, query string) []types.AuthorSignature {
	if len(log) == 0 {
		return []types.AuthorSignature{}
	}
	total := p.keepTail + p.keepRelevant
	if len(log) <= total {
		return log
	}

	tail := log[len(log)-p.keepTail:]
	candidates := log[:len(log)-p.keepTail]

	if p.embedder == nil {
		logging.Prune("No embedding provider, using FIFO fallback")
		return log[len(log)-total:]
	}

	selected, err := p.selectRelevant(ctx, candidates, query)
	if err != nil {
		logging.PruneError("Semantic pruning failed: %v. Fallback to FIFO.", err)
		return log[len(log)-total:]
	}

	result := make([]types.AuthorSignature, 0, len(selected)+len(tail))
	result = append(result, selected...)
	result = append(result, tail...)
	logging.Prune("Pruned %d -> %d provenance entries", len(log), len(result))
	return result
}

func (p *Pruner) selectRelevant(ctx context.Context, candidates []types.AuthorSignature, query string) ([]types.AuthorSignature, error) {
	queryVecs, err := p.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(queryVecs) == 0 {
		return nil, fmt.Errorf("embedder returned no query vector")
	}
	queryVec := queryVecs[0]

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = fmt.Sprintf("%s %s %s", c.Action, c.ArtifactRef, c.Role)
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(candidates) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d candidates", len(vecs), len(candidates))
	}

	type ranked struct {
		score float64
		index int
	}
	scores := make([]ranked, len(candidates))
	for i := range candidates {
		scores[i] = ranked{score: cosine(queryVec, vecs[i]), index: i}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	keep := scores
	if len(keep) > p.keepRelevant {
		keep = keep[:p.keepRelevant]
	}
	indices := make([]int, len(keep))
	for i, k := range keep {
		indices[i] = k.index
	}
	sort.Ints(indices)

	selected := make([]types.AuthorSignature, len(indices))
	for i, idx := range indices {
		selected[i] = candidates[idx]
	}
	return selected, nil
}

// cosine returns the cosine similarity of two vectors, 0 when either
// has zero magnitude or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, ma, mb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		ma += float64(a[i]) * float64(a[i])
		mb += float64(b[i]) * float64(b[i])
	}
	if ma == 0 || mb == 0 {
		return 0
	}
	return dot / (math.Sqrt(ma) * math.Sqrt(mb))
}
