package graph

import "math"

const (
	defaultDamping   = 0.85
	defaultMaxIters  = 100
	defaultTolerance = 1e-6
)

// personalizedPageRank runs power iteration with a teleport distribution
// biased toward the personalization nodes. Returns the score vector of
// the last iteration, converged or not. Iteration walks nodes in sorted
// order so repeated runs produce bit-identical scores.
func personalizedPageRank(g *Graph, alpha float64, personalization map[string]float64, maxIter int, tol float64) map[string]float64 {
	ids := g.NodeIDs()
	n := len(ids)
	if n == 0 {
		return map[string]float64{}
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIters
	}
	if tol <= 0 {
		tol = defaultTolerance
	}

	// Teleport distribution: personalization normalized over the graph,
	// missing nodes at zero. Empty or zero-mass input falls back to
	// uniform.
	p := make(map[string]float64, n)
	var mass float64
	for _, id := range ids {
		w := personalization[id]
		if w > 0 {
			mass += w
		}
	}
	if mass > 0 {
		for _, id := range ids {
			if w := personalization[id]; w > 0 {
				p[id] = w / mass
			}
		}
	} else {
		uniform := 1.0 / float64(n)
		for _, id := range ids {
			p[id] = uniform
		}
	}

	x := make(map[string]float64, n)
	for _, id := range ids {
		x[id] = 1.0 / float64(n)
	}

	// Pre-sorted adjacency keeps float accumulation order stable.
	neighbors := make(map[string][]string, n)
	for _, id := range ids {
		neighbors[id] = g.Neighbors(id)
	}

	threshold := float64(n) * tol
	for iter := 0; iter < maxIter; iter++ {
		xlast := x
		x = make(map[string]float64, n)

		var dangling float64
		for _, id := range ids {
			if len(neighbors[id]) == 0 {
				dangling += xlast[id]
			}
		}

		for _, id := range ids {
			nbrs := neighbors[id]
			if len(nbrs) == 0 {
				continue
			}
			share := alpha * xlast[id] / float64(len(nbrs))
			for _, to := range nbrs {
				x[to] += share
			}
		}
		for _, id := range ids {
			x[id] += (1-alpha)*p[id] + alpha*dangling*p[id]
		}

		var err float64
		for _, id := range ids {
			err += math.Abs(x[id] - xlast[id])
		}
		if err < threshold {
			break
		}
	}
	return x
}
