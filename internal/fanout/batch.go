package fanout

import (
	"context"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

// Batcher is the narrow slice of QuoteOracle that BatchOracle needs. It is
// declared here, not imported from the quote package, because quote imports
// fanout; any quote.QuoteOracle satisfies Batcher structurally.
type Batcher interface {
	Batch(ctx context.Context, descriptors []graph.QuoteDescriptor, requireSuccess bool, block uint64) ([]graph.CallReturn, error)
}

// BatchOracle splits descriptors into chunks (spec.md §5's default
// max(1, n/4) policy), dispatches each chunk to the oracle concurrently
// under a bounded pool, and reassembles the results in the original order.
// A single descriptor list is still "submitted in one oracle batch" in
// spirit — every descriptor reaches Batch exactly once — while honouring
// §5's requirement that the quote fan-out pool parallelise sub-batches.
func BatchOracle(
	ctx context.Context,
	oracle Batcher,
	descriptors []graph.QuoteDescriptor,
	requireSuccess bool,
	block uint64,
	opts ChunkOptions,
) ([]graph.CallReturn, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	chunkSize := ChunkSize(len(descriptors), opts.Divisor)
	numChunks := (len(descriptors) + chunkSize - 1) / chunkSize

	results := make([]graph.CallReturn, len(descriptors))
	pool := NewPool(opts.Concurrency)

	err := pool.Run(ctx, numChunks, func(ctx context.Context, i int) error {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(descriptors) {
			end = len(descriptors)
		}

		chunkResults, err := oracle.Batch(ctx, descriptors[start:end], requireSuccess, block)
		if err != nil {
			return err
		}
		copy(results[start:end], chunkResults)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}
