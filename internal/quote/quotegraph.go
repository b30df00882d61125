package quote

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/fanout"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

// EdgeQuote pairs an ExchangeEdge with its Quote. QuoteGraph keeps these in
// the same insertion order ExchangeGraph used to build the parallel edge
// list, so tie-breaks ("edge insertion order", spec.md §4.4) stay
// deterministic downstream.
type EdgeQuote struct {
	Edge  graph.ExchangeEdge
	Quote Quote
}

// QuoteGraph is the per-block snapshot of ExchangeGraph, each edge
// decorated with a Quote (spec.md §4.3). It is scoped to a single
// find_arbitrages call and never outlives it.
type QuoteGraph struct {
	block uint64
	eg    *graph.ExchangeGraph
	byPair map[graph.Token]map[graph.Token][]EdgeQuote
}

// BlockNumber returns the block height this snapshot was built at.
func (g *QuoteGraph) BlockNumber() uint64 { return g.block }

// Tokens returns the token set, in ExchangeGraph insertion order.
func (g *QuoteGraph) Tokens() []graph.Token { return g.eg.Tokens() }

// Edges returns the parallel (edge, quote) pairs between two distinct
// tokens, in exchange-function insertion order.
func (g *QuoteGraph) Edges(tokenIn, tokenOut graph.Token) []EdgeQuote {
	out, ok := g.byPair[tokenIn]
	if !ok {
		return nil
	}
	return out[tokenOut]
}

// NumEdges reports the total edge count, which equals
// |tokens|*(|tokens|-1)*|venues| (spec.md §4.3 invariant), counting only the
// tokens Build was given a probe amount for.
func (g *QuoteGraph) NumEdges() int {
	n := 0
	for _, byOut := range g.byPair {
		for _, list := range byOut {
			n += len(list)
		}
	}
	return n
}

// BuildOptions tunes QuoteGraph construction. A zero value is valid and
// uses the §5 defaults (chunked fan-out, divisor 4, concurrency capped at
// fanout.DefaultConcurrency).
type BuildOptions struct {
	// MaxConcurrency bounds how many oracle sub-batches run at once. <= 0
	// uses fanout.DefaultConcurrency.
	MaxConcurrency int
	// ChunkDivisor controls sub-batch size: chunkSize = max(1, n/Divisor).
	// <= 0 uses the §5 default of 4.
	ChunkDivisor int
}

// Build constructs a QuoteGraph from an ExchangeGraph at a fixed block,
// probing each edge at probeAmounts[token_in] (spec.md §4.3 steps 1-4). The
// flat edge list is chunked and dispatched to the oracle concurrently under
// a bounded pool (spec.md §5's "quote fan-out pool"), then reassembled in
// the deterministic per-pair order ExchangeGraph defines. Failed quotes are
// kept in the graph with amount_out=0 / neg_log_rate=+Inf, never pruned.
func Build(
	ctx context.Context,
	eg *graph.ExchangeGraph,
	probeAmounts map[graph.Token]*uint256.Int,
	block uint64,
	oracle QuoteOracle,
	opts BuildOptions,
) (*QuoteGraph, error) {
	type flatEdge struct {
		tokenIn, tokenOut graph.Token
		edge              graph.ExchangeEdge
	}

	var flat []flatEdge
	for _, tokenIn := range eg.Tokens() {
		probeIn, ok := probeAmounts[tokenIn]
		if !ok {
			continue
		}
		for _, tokenOut := range eg.Tokens() {
			if tokenIn == tokenOut {
				continue
			}
			if _, ok := probeAmounts[tokenOut]; !ok {
				continue
			}
			for _, edge := range eg.Edges(tokenIn, tokenOut) {
				flat = append(flat, flatEdge{tokenIn, tokenOut, edge})
			}
		}
		_ = probeIn
	}

	descriptors := make([]graph.QuoteDescriptor, len(flat))
	for i, fe := range flat {
		probeIn := probeAmounts[fe.tokenIn]
		d, err := eg.Quote(ctx, fe.edge, probeIn, block)
		if err != nil {
			return nil, fmt.Errorf("quote: building descriptor for %+v: %w", fe.edge, err)
		}
		descriptors[i] = d
	}

	results, err := fanout.BatchOracle(ctx, oracle, descriptors, false, block, fanout.ChunkOptions{
		Concurrency: opts.MaxConcurrency,
		Divisor:     opts.ChunkDivisor,
	})
	if err != nil {
		return nil, fmt.Errorf("quote: oracle batch: %w", err)
	}

	byPair := make(map[graph.Token]map[graph.Token][]EdgeQuote, len(eg.Tokens()))
	for i, fe := range flat {
		probeIn := probeAmounts[fe.tokenIn]
		amountOut := uint256.NewInt(0)
		if results[i].Success && results[i].AmountOut != nil {
			amountOut = results[i].AmountOut
		}

		out, ok := byPair[fe.tokenIn]
		if !ok {
			out = make(map[graph.Token][]EdgeQuote)
			byPair[fe.tokenIn] = out
		}
		out[fe.tokenOut] = append(out[fe.tokenOut], EdgeQuote{
			Edge:  fe.edge,
			Quote: NewQuote(fe.tokenIn, fe.tokenOut, probeIn, amountOut),
		})
	}

	return &QuoteGraph{block: block, eg: eg, byPair: byPair}, nil
}
