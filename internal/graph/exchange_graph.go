package graph

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// ExchangeGraph is the static multigraph built once per invocation and read
// only thereafter (spec.md §4.1). For every ordered pair of distinct
// tokens it materialises one ExchangeEdge per registered exchange function,
// in the insertion order of the exchange-function list — that order is
// stable and observable through Edges.
type ExchangeGraph struct {
	tokens    []Token
	functions []ExchangeFunction
	byVenue   map[VenueID]ExchangeFunction
	// edges[tokenIn][tokenOut] holds the parallel edge list, in the
	// insertion order of functions.
	edges map[Token]map[Token][]ExchangeEdge
}

// New builds an ExchangeGraph from a token set and the exchange functions to
// apply across every ordered pair of distinct tokens. Tokens must already be
// deduplicated and canonicalised by the caller (spec.md §3: "Canonicalised
// to a single case form before use"); New does not re-canonicalise them.
func New(tokens []Token, functions []ExchangeFunction) (*ExchangeGraph, error) {
	byVenue := make(map[VenueID]ExchangeFunction, len(functions))
	for _, fn := range functions {
		if fn.Venue == "" {
			return nil, fmt.Errorf("graph: exchange function registered with empty venue id")
		}
		if _, dup := byVenue[fn.Venue]; dup {
			return nil, fmt.Errorf("graph: duplicate venue id %q", fn.Venue)
		}
		byVenue[fn.Venue] = fn
	}

	edges := make(map[Token]map[Token][]ExchangeEdge, len(tokens))
	for _, tokenIn := range tokens {
		out := make(map[Token][]ExchangeEdge, len(tokens))
		for _, tokenOut := range tokens {
			if tokenIn == tokenOut {
				continue
			}
			list := make([]ExchangeEdge, 0, len(functions))
			for _, fn := range functions {
				list = append(list, ExchangeEdge{
					TokenIn:  tokenIn,
					TokenOut: tokenOut,
					Venue:    fn.Venue,
				})
			}
			out[tokenOut] = list
		}
		edges[tokenIn] = out
	}

	return &ExchangeGraph{
		tokens:    tokens,
		functions: functions,
		byVenue:   byVenue,
		edges:     edges,
	}, nil
}

// Tokens returns the registered token set in insertion order.
func (g *ExchangeGraph) Tokens() []Token {
	return g.tokens
}

// Functions returns the registered exchange functions in insertion order.
func (g *ExchangeGraph) Functions() []ExchangeFunction {
	return g.functions
}

// NumVenues reports how many distinct venues are registered.
func (g *ExchangeGraph) NumVenues() int {
	return len(g.functions)
}

// Edges returns the parallel edge list between two distinct tokens, in
// exchange-function insertion order. Calling Edges(a, a) is undefined
// (callers must skip self-loops); calling it with an unregistered token is
// an unchecked programming error, per spec.md §4.1 — both simply yield nil.
func (g *ExchangeGraph) Edges(tokenIn, tokenOut Token) []ExchangeEdge {
	out, ok := g.edges[tokenIn]
	if !ok {
		return nil
	}
	return out[tokenOut]
}

// Function looks up the ExchangeFunction registered for a venue.
func (g *ExchangeGraph) Function(venue VenueID) (ExchangeFunction, bool) {
	fn, ok := g.byVenue[venue]
	return fn, ok
}

// Quote asks the edge's venue for a quote descriptor at the given input
// amount and block. It returns an error only if the edge references a venue
// that was never registered — an invariant violation, since ExchangeGraph
// constructs every edge from its own function list.
func (g *ExchangeGraph) Quote(ctx context.Context, edge ExchangeEdge, amountIn *uint256.Int, block uint64) (QuoteDescriptor, error) {
	fn, ok := g.byVenue[edge.Venue]
	if !ok {
		return QuoteDescriptor{}, fmt.Errorf("graph: edge references unregistered venue %q", edge.Venue)
	}
	return fn.Quote(ctx, edge.TokenIn, edge.TokenOut, amountIn, block), nil
}
