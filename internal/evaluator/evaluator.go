// Package evaluator implements the ArbitrageEvaluator of spec.md §4.6: given
// a candidate cyclic edge sequence (as produced by cyclefinder), it re-quotes
// every hop sequentially against the actual oracle to confirm real
// profitability, since the log-linearised model cyclefinder searched over is
// only an approximation.
package evaluator

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/arbitrage"
	"github.com/longtrieuuit/defi-arbitrage/internal/fanout"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/path"
	"github.com/longtrieuuit/defi-arbitrage/internal/quote"
)

// ArbitrageEvaluator re-quotes candidate cyclic paths hop-by-hop and emits
// confirmed Arbitrages.
type ArbitrageEvaluator struct {
	oracle quote.QuoteOracle
}

// New returns an ArbitrageEvaluator backed by the given oracle.
func New(oracle quote.QuoteOracle) *ArbitrageEvaluator {
	return &ArbitrageEvaluator{oracle: oracle}
}

// Evaluate re-quotes every candidate path and returns the confirmed
// Arbitrages. Independent candidates are evaluated concurrently under a
// bounded pool; evaluation within one candidate is strictly sequential,
// since each hop's input is the previous hop's output (spec.md §4.6).
// Output order preserves the input candidate order even though evaluation
// itself may run out of order (spec.md §5).
func (e *ArbitrageEvaluator) Evaluate(
	ctx context.Context,
	candidates [][]graph.ExchangeEdge,
	eg *graph.ExchangeGraph,
	probeAmounts map[graph.Token]*uint256.Int,
	block uint64,
	onlyProfitable bool,
) ([]*arbitrage.Arbitrage, error) {
	results := make([]*arbitrage.Arbitrage, len(candidates))

	pool := fanout.NewPool(0)
	err := pool.Run(ctx, len(candidates), func(ctx context.Context, i int) error {
		arb, err := e.evaluateOne(ctx, candidates[i], eg, probeAmounts, block, onlyProfitable)
		if err != nil {
			return err
		}
		results[i] = arb
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*arbitrage.Arbitrage, 0, len(results))
	for _, arb := range results {
		if arb != nil {
			out = append(out, arb)
		}
	}
	return out, nil
}

func (e *ArbitrageEvaluator) evaluateOne(
	ctx context.Context,
	edges []graph.ExchangeEdge,
	eg *graph.ExchangeGraph,
	probeAmounts map[graph.Token]*uint256.Int,
	block uint64,
	onlyProfitable bool,
) (*arbitrage.Arbitrage, error) {
	if len(edges) == 0 {
		return nil, nil
	}

	amountIn, ok := probeAmounts[edges[0].TokenIn]
	if !ok {
		return nil, nil
	}

	p := path.New()
	curr := amountIn
	for _, edge := range edges {
		descriptor, err := eg.Quote(ctx, edge, curr, block)
		if err != nil {
			return nil, err
		}

		results, err := e.oracle.Batch(ctx, []graph.QuoteDescriptor{descriptor}, false, block)
		if err != nil {
			return nil, err
		}

		next := uint256.NewInt(0)
		if len(results) > 0 && results[0].Success && results[0].AmountOut != nil {
			next = results[0].AmountOut
		}

		if err := p.Append(path.Hop{Edge: edge, AmountIn: curr, AmountOut: next, BlockNumber: block}); err != nil {
			return nil, err
		}
		curr = next
	}

	if !onlyProfitable || curr.Cmp(amountIn) > 0 {
		return arbitrage.New(p, block, 0)
	}
	return nil, nil
}
