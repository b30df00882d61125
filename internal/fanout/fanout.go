// Package fanout is the bounded worker-pool concurrency helper spec.md §5
// requires for the "quote fan-out pool" and "cycle-search pool": it never
// suspends the single-threaded search kernel itself, only the blocking
// oracle/price-feed I/O dispatched through it. It pairs golang.org/x/sync's
// errgroup with a buffered-channel semaphore, the idiom
// ajitpratap0-cryptofunk's internal/orchestrator/consensus.go uses for
// capping concurrent goroutines and other_examples' web3-nomad
// price-feeder's Oracle.SetPrices uses for per-provider fan-out.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight goroutines when a caller doesn't
// specify one explicitly.
const DefaultConcurrency = 8

// Pool runs indexed tasks with bounded concurrency. A Pool is safe to reuse
// across calls to Run but is not itself safe for concurrent calls to Run.
type Pool struct {
	limit int
	sem   chan struct{}
}

// NewPool creates a Pool allowing at most limit tasks in flight at once.
// limit <= 0 uses DefaultConcurrency.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Pool{limit: limit, sem: make(chan struct{}, limit)}
}

// Run executes fn(ctx, i) for every i in [0, n), bounded to the pool's
// concurrency limit. If any fn call returns an error, the shared context is
// cancelled (via errgroup) and the first error is returned once every
// in-flight call has drained — matching spec.md §5's "cancellation drops
// in-flight requests and yields no partial results."
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		select {
		case p.sem <- struct{}{}:
		case <-gctx.Done():
			return g.Wait()
		}
		g.Go(func() error {
			defer func() { <-p.sem }()
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// ChunkOptions tunes how a flat call list is split into sub-batches before
// dispatch. Both fields are tunables, not contracts (spec.md §5).
type ChunkOptions struct {
	// Concurrency bounds how many sub-batches run at once. <= 0 uses
	// DefaultConcurrency.
	Concurrency int
	// Divisor controls chunk size: chunkSize = max(1, n/Divisor). <= 0 uses
	// the §5 default of 4.
	Divisor int
}

// ChunkSize implements spec.md §5's default chunk policy: max(1, n/divisor).
func ChunkSize(n, divisor int) int {
	if divisor <= 0 {
		divisor = 4
	}
	size := n / divisor
	if size < 1 {
		size = 1
	}
	return size
}
