// Package graph implements the static directed multigraph of exchangeable
// tokens described in spec.md §4.1: vertices are tokens, edges are
// (token_in, token_out, venue) triples. An edge's venue-supplied quote
// function and swap-transaction factory live on the venue's
// ExchangeFunction, looked up through ExchangeGraph.
package graph

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is the opaque 20-byte identifier spec.md §3 describes: an EVM
// account/contract address, value-equal and directly usable as a map key.
type Token = common.Address

// VenueID distinguishes one exchange implementation (and, for concentrated-
// liquidity venues, one fee tier) from another. It is stable within a run.
type VenueID string

// DecodeKind tags how an oracle should interpret the opaque payload attached
// to a QuoteDescriptor. Per spec.md §9's "callback-per-call" design note,
// this is a small closed set rather than a per-call closure, so an oracle's
// decoding surface is fixed and auditable.
type DecodeKind int

const (
	DecodeConstantProduct DecodeKind = iota
	DecodeConcentratedLiquidity
)

func (k DecodeKind) String() string {
	switch k {
	case DecodeConstantProduct:
		return "constant_product"
	case DecodeConcentratedLiquidity:
		return "concentrated_liquidity"
	default:
		return "unknown"
	}
}

// QuoteDescriptor is what an ExchangeFunction hands back for a single
// (token_in, token_out, amount_in) quote request: opaque to the core (§4.2),
// carrying only enough to let a QuoteOracle batch and decode it.
type QuoteDescriptor struct {
	Venue    VenueID
	TokenIn  Token
	TokenOut Token
	AmountIn *uint256.Int
	Decode   DecodeKind
	// Payload is venue- and transport-specific (e.g. a target address plus
	// ABI-encoded calldata); the core never inspects it.
	Payload any
}

// CallReturn is one batched oracle result: success with a decoded output
// amount, or failure (spec.md §4.2). It lives here, alongside
// QuoteDescriptor, so both the quote package (which defines the QuoteOracle
// contract) and the fanout package (which dispatches batches without
// knowing about that contract) can share it without an import cycle.
type CallReturn struct {
	Success   bool
	AmountOut *uint256.Int
}

// TxParams is a minimal, chain-agnostic transaction descriptor. Swap
// transaction construction itself is out of core scope (spec.md §1); this
// type exists only so SwapFunc has somewhere to put its output.
type TxParams struct {
	To       common.Address
	Data     []byte
	Value    *uint256.Int
	GasLimit uint64
}

// QuoteFunc quotes an output amount for a directed token pair and input
// amount at a given block, returning a descriptor a QuoteOracle can batch.
type QuoteFunc func(ctx context.Context, tokenIn, tokenOut Token, amountIn *uint256.Int, block uint64) QuoteDescriptor

// SwapFunc builds the swap transaction for a directed token pair.
type SwapFunc func(ctx context.Context, tokenIn, tokenOut Token, amountIn *uint256.Int, wallet common.Address, block uint64) (TxParams, error)

// ExchangeFunction is a venue plug-in's contribution to the graph: one
// venue, one quote function, one swap function. Registered at construction
// and immutable thereafter (spec.md §3).
type ExchangeFunction struct {
	Venue VenueID
	Quote QuoteFunc
	Swap  SwapFunc
}

// ExchangeEdge is the atomic unit of routing: a directed (token_in,
// token_out, venue) triple. Two edges are equal iff their triples are equal
// — ExchangeEdge intentionally carries no function pointer so it stays a
// plain comparable value usable as a map key.
type ExchangeEdge struct {
	TokenIn  Token
	TokenOut Token
	Venue    VenueID
}

// VenuePlugin enumerates the venues (e.g. one per fee tier) a plug-in
// exposes at a given block (spec.md §6).
type VenuePlugin interface {
	ExchangeFunctions(ctx context.Context, block uint64) ([]ExchangeFunction, error)
}
