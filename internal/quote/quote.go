// Package quote holds the dynamic, per-block QuoteGraph snapshot
// (spec.md §4.3) and the collaborator contracts — QuoteOracle, PriceFeed,
// BlockResolver — the core consumes but never implements (spec.md §6).
package quote

import (
	"context"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

// Quote is a measurement of one edge's output for a specific input at a
// specific block (spec.md §3).
type Quote struct {
	TokenIn    graph.Token
	TokenOut   graph.Token
	AmountIn   *uint256.Int
	AmountOut  *uint256.Int
	Rate       float64
	NegLogRate float64
}

// NewQuote derives Rate and NegLogRate from the raw amounts, per spec.md §3:
// rate = amount_out/amount_in when amount_in>0; neg_log_rate = -log2(rate)
// when rate>0, else +Inf (which also covers the amount_out=0 failure case).
func NewQuote(tokenIn, tokenOut graph.Token, amountIn, amountOut *uint256.Int) Quote {
	q := Quote{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}

	if amountIn != nil && !amountIn.IsZero() {
		in, _ := new(big.Float).SetInt(amountIn.ToBig()).Float64()
		out, _ := new(big.Float).SetInt(amountOut.ToBig()).Float64()
		q.Rate = out / in
	}

	if q.Rate > 0 {
		q.NegLogRate = -math.Log2(q.Rate)
	} else {
		q.NegLogRate = math.Inf(1)
	}

	return q
}

// CallReturn re-exports graph.CallReturn so callers of this package never
// need to import graph just to name the oracle's result type.
type CallReturn = graph.CallReturn

// QuoteOracle is the batched call executor the core depends on (spec.md
// §4.2, §6). Implementations MAY reorder work internally but MUST preserve
// input order in the returned slice, and MUST be safe to cancel via ctx.
type QuoteOracle interface {
	Batch(ctx context.Context, descriptors []graph.QuoteDescriptor, requireSuccess bool, block uint64) ([]CallReturn, error)
}

// PriceFeed supplies per-token unit prices (in the native gas asset) and the
// base fee used to derive the default probe scalar (spec.md §6).
type PriceFeed interface {
	FetchPriceEth(ctx context.Context, tokens []graph.Token, block uint64) (map[graph.Token]float64, error)
	GetBaseFeePerGas(ctx context.Context, block uint64) (uint64, error)
}

// BlockResolver resolves the symbolic "latest" block identifier to a
// concrete number so a whole find_arbitrages invocation runs against a
// single height (spec.md §6).
type BlockResolver interface {
	ResolveLatestBlock(ctx context.Context) (uint64, error)
}
