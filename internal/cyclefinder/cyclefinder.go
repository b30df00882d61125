// Package cyclefinder implements the Bellman-Ford negative-cycle search of
// spec.md §4.4. It is grounded on arbitrage_service.py's
// __find_arbitrages_bellman_ford relaxation loop (per-pair min-weight edge
// selection, predecessor-edge tracking, cycle reconstruction by walking
// predecessors), generalised from the reference's single fixed source
// (tokens[0]) to a sweep over every source token, and using an explicit
// extra relaxation pass to detect and land inside the cycle instead of the
// reference's re-scan-every-pair-afterward approach.
package cyclefinder

import (
	"math"
	"slices"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/quote"
)

// CycleFinder runs negative-cycle detection over a QuoteGraph snapshot. It
// holds no state between calls to FindCycles.
type CycleFinder struct{}

// New returns a ready-to-use CycleFinder.
func New() *CycleFinder { return &CycleFinder{} }

// FindCycles produces at most one candidate cyclic edge sequence per source
// token that reaches a negative cycle, in source-token insertion order
// (spec.md §4.4's "Termination & determinism": iteration order over tokens
// and sources is the insertion order of the token list, so output order is a
// total function of inputs). A cycle already found from an earlier source,
// in any rotation, is not repeated.
func (c *CycleFinder) FindCycles(qg *quote.QuoteGraph) [][]graph.ExchangeEdge {
	tokens := qg.Tokens()
	var cycles [][]graph.ExchangeEdge

	for _, source := range tokens {
		if cycle := runFrom(qg, tokens, source); cycle != nil && !containsCycle(cycles, cycle) {
			cycles = append(cycles, cycle)
		}
	}
	return cycles
}

// containsCycle reports whether cycles already holds cycle, possibly starting
// from a different edge.
func containsCycle(cycles [][]graph.ExchangeEdge, cycle []graph.ExchangeEdge) bool {
	return slices.ContainsFunc(cycles, func(c []graph.ExchangeEdge) bool {
		i := slices.Index(c, cycle[0])
		return i >= 0 && slices.Equal(slices.Concat(c[i:], c[:i]), cycle)
	})
}

// runFrom runs one Bellman-Ford sweep from source and, if a negative cycle
// is reachable, reconstructs and returns it. It returns nil otherwise.
func runFrom(qg *quote.QuoteGraph, tokens []graph.Token, source graph.Token) []graph.ExchangeEdge {
	dist := make(map[graph.Token]float64, len(tokens))
	pred := make(map[graph.Token]graph.ExchangeEdge, len(tokens))
	for _, t := range tokens {
		dist[t] = math.Inf(1)
	}
	dist[source] = 0

	n := len(tokens)
	for i := 0; i < n-1; i++ {
		if updated, _ := relax(qg, tokens, dist, pred); !updated {
			break
		}
	}

	updated, relaxedVertex := relax(qg, tokens, dist, pred)
	if !updated {
		return nil
	}

	// Landing inside the cycle: following predecessors |V| times from any
	// vertex relaxed on this extra pass guarantees the result lies on the
	// cycle, since the cycle has at most |V| edges.
	v := relaxedVertex
	for i := 0; i < n; i++ {
		e, ok := pred[v]
		if !ok {
			return nil
		}
		v = e.TokenIn
	}
	start := v

	var edges []graph.ExchangeEdge
	cur := start
	for step := 0; step <= n; step++ {
		e, ok := pred[cur]
		if !ok {
			return nil
		}
		edges = append(edges, e)
		cur = e.TokenIn
		if cur == start {
			break
		}
	}

	reverse(edges)
	return edges
}

// relax performs one Bellman-Ford relaxation pass over every ordered pair of
// distinct tokens, collapsing parallel edges to their minimum neg_log_rate
// edge for that pass (spec.md §4.4 step b: "Parallel edges collapse to
// their minimum weight during relaxation only; the chosen edge identity is
// remembered"). It reports whether any distance improved, and the first
// vertex improved during this call (deterministic given tokens' fixed
// iteration order).
func relax(
	qg *quote.QuoteGraph,
	tokens []graph.Token,
	dist map[graph.Token]float64,
	pred map[graph.Token]graph.ExchangeEdge,
) (updated bool, firstUpdated graph.Token) {
	for _, u := range tokens {
		du := dist[u]
		if math.IsInf(du, 1) {
			continue
		}
		for _, v := range tokens {
			if u == v {
				continue
			}
			edges := qg.Edges(u, v)
			if len(edges) == 0 {
				continue
			}

			best := edges[0]
			for _, eq := range edges[1:] {
				if eq.Quote.NegLogRate < best.Quote.NegLogRate {
					best = eq
				}
			}

			if nd := du + best.Quote.NegLogRate; nd < dist[v] {
				dist[v] = nd
				pred[v] = best.Edge
				if !updated {
					firstUpdated = v
				}
				updated = true
			}
		}
	}
	return updated, firstUpdated
}

func reverse(edges []graph.ExchangeEdge) {
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
}
