// Package naive implements the bounded-depth DFS enumerator of spec.md
// §4.5, the alternative to cyclefinder that re-quotes actual output amounts
// at every internal step instead of relying on a log-linearised model. It is
// grounded on arbitrage_service.py's __find_arbitrages: same hops==1 base
// case (close back to the start token), same recursive-descent structure
// over remaining hops, generalised to batch each token pair's parallel
// edges through the QuoteOracle contract instead of the reference's
// ContractService.multicall.
package naive

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/arbitrage"
	"github.com/longtrieuuit/defi-arbitrage/internal/fanout"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/path"
	"github.com/longtrieuuit/defi-arbitrage/internal/quote"
)

// NaiveEnumerator enumerates closed paths over an ExchangeGraph directly,
// re-quoting every hop against a QuoteOracle rather than a QuoteGraph
// snapshot.
type NaiveEnumerator struct {
	oracle quote.QuoteOracle
}

// New returns a NaiveEnumerator backed by the given oracle.
func New(oracle quote.QuoteOracle) *NaiveEnumerator {
	return &NaiveEnumerator{oracle: oracle}
}

// FindArbitrages enumerates, for every eligible starting token and every hop
// count in [2, maxHops], all closed paths whose final amount_out exceeds the
// starting amount_in (spec.md §4.5). Independent starting-token/hop-count
// searches run concurrently under a bounded pool (spec.md §5); traversal
// within one search is strictly sequential.
func (n *NaiveEnumerator) FindArbitrages(
	ctx context.Context,
	eg *graph.ExchangeGraph,
	probeAmounts map[graph.Token]*uint256.Int,
	maxHops int,
	block uint64,
) ([]*arbitrage.Arbitrage, error) {
	if maxHops < 2 {
		return nil, fmt.Errorf("naive: max_hops must be >= 2, got %d", maxHops)
	}

	tokens := eligibleTokens(eg, probeAmounts)

	type job struct {
		start graph.Token
		hops  int
	}
	var jobs []job
	for _, t := range tokens {
		for hops := 2; hops <= maxHops; hops++ {
			jobs = append(jobs, job{start: t, hops: hops})
		}
	}

	results := make([][]*arbitrage.Arbitrage, len(jobs))
	pool := fanout.NewPool(0)
	err := pool.Run(ctx, len(jobs), func(ctx context.Context, i int) error {
		j := jobs[i]
		found, err := n.search(ctx, eg, j.start, probeAmounts[j.start], j.hops, path.New(), block)
		if err != nil {
			return err
		}
		results[i] = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all []*arbitrage.Arbitrage
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (n *NaiveEnumerator) search(
	ctx context.Context,
	eg *graph.ExchangeGraph,
	startToken graph.Token,
	amountIn *uint256.Int,
	hopsRemaining int,
	p *path.Path,
	block uint64,
) ([]*arbitrage.Arbitrage, error) {
	curTokenIn := startToken
	curAmountIn := amountIn
	if !p.IsEmpty() {
		curTokenIn = p.LastTokenOut()
		hops := p.Hops()
		curAmountIn = hops[len(hops)-1].AmountOut
	}

	var out []*arbitrage.Arbitrage

	if hopsRemaining == 1 {
		edges := eg.Edges(curTokenIn, startToken)
		amounts, err := n.quoteEdges(ctx, eg, edges, curAmountIn, block)
		if err != nil {
			return nil, err
		}
		for i, edge := range edges {
			if err := p.Append(path.Hop{Edge: edge, AmountIn: curAmountIn, AmountOut: amounts[i], BlockNumber: block}); err != nil {
				return nil, fmt.Errorf("naive: %w", err)
			}
			if amounts[i].Cmp(amountIn) > 0 {
				arb, err := arbitrage.New(p, block, 0)
				if err != nil {
					return nil, err
				}
				out = append(out, arb)
			}
			p.Pop()
		}
		return out, nil
	}

	for _, next := range eg.Tokens() {
		if next == curTokenIn || p.ContainsToken(next) {
			continue
		}

		edges := eg.Edges(curTokenIn, next)
		amounts, err := n.quoteEdges(ctx, eg, edges, curAmountIn, block)
		if err != nil {
			return nil, err
		}
		for i, edge := range edges {
			if err := p.Append(path.Hop{Edge: edge, AmountIn: curAmountIn, AmountOut: amounts[i], BlockNumber: block}); err != nil {
				return nil, fmt.Errorf("naive: %w", err)
			}
			sub, err := n.search(ctx, eg, startToken, amountIn, hopsRemaining-1, p, block)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			p.Pop()
		}
	}
	return out, nil
}

// quoteEdges batches every parallel edge between one token pair through the
// oracle in a single call, never short-circuiting on individual failure
// (spec.md §4.6: a failed sub-quote yields amount_out=0, which propagates).
func (n *NaiveEnumerator) quoteEdges(
	ctx context.Context,
	eg *graph.ExchangeGraph,
	edges []graph.ExchangeEdge,
	amountIn *uint256.Int,
	block uint64,
) ([]*uint256.Int, error) {
	if len(edges) == 0 {
		return nil, nil
	}

	descriptors := make([]graph.QuoteDescriptor, len(edges))
	for i, e := range edges {
		d, err := eg.Quote(ctx, e, amountIn, block)
		if err != nil {
			return nil, err
		}
		descriptors[i] = d
	}

	results, err := n.oracle.Batch(ctx, descriptors, false, block)
	if err != nil {
		return nil, err
	}

	amounts := make([]*uint256.Int, len(edges))
	for i, r := range results {
		if r.Success && r.AmountOut != nil {
			amounts[i] = r.AmountOut
		} else {
			amounts[i] = uint256.NewInt(0)
		}
	}
	return amounts, nil
}

func eligibleTokens(eg *graph.ExchangeGraph, probeAmounts map[graph.Token]*uint256.Int) []graph.Token {
	var out []graph.Token
	for _, t := range eg.Tokens() {
		if _, ok := probeAmounts[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
