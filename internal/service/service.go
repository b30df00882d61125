// Package service wires ExchangeGraph, QuoteGraph, CycleFinder,
// NaiveEnumerator, and ArbitrageEvaluator into the single public entrypoint
// spec.md §6 exposes: find_arbitrages(tokens, exchange_functions,
// block_identifier, max_hops, u_eth, algorithm) -> Arbitrages. It is
// grounded on ArbitrageService in arbitrage_service.py, which plays the same
// orchestrating role over the reference's ContractService/PriceFeedService
// collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/arbitrage"
	"github.com/longtrieuuit/defi-arbitrage/internal/cyclefinder"
	"github.com/longtrieuuit/defi-arbitrage/internal/evaluator"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/logging"
	"github.com/longtrieuuit/defi-arbitrage/internal/naive"
	"github.com/longtrieuuit/defi-arbitrage/internal/path"
	"github.com/longtrieuuit/defi-arbitrage/internal/quote"
)

// Algorithm selects which cycle-search strategy find_arbitrages uses.
type Algorithm string

const (
	AlgorithmNaive       Algorithm = "naive"
	AlgorithmBellmanFord Algorithm = "bellman_ford"
)

// BlockIdentifier is either a concrete block height or the symbolic
// "latest", resolved once per invocation so the whole call operates on a
// single block height (spec.md §6).
type BlockIdentifier struct {
	latest bool
	number uint64
}

// Latest is the symbolic "latest" block identifier.
func Latest() BlockIdentifier { return BlockIdentifier{latest: true} }

// AtBlock is a concrete block identifier.
func AtBlock(n uint64) BlockIdentifier { return BlockIdentifier{number: n} }

// Options tunes a single find_arbitrages call. There is deliberately no
// embedded default for UEth: spec.md §9's open question about the
// reference's shifting 1e6-vs-1e7 scaling constant is resolved by requiring
// callers to supply it explicitly rather than the core guessing.
type Options struct {
	// MaxHops bounds cycle length for the naive algorithm. Must be >= 2. Zero
	// uses the default of 3. The Bellman-Ford search does not use it; its
	// cycles can have up to one edge per token.
	MaxHops int
	// UEth is the per-invocation economic-value scalar behind probe_amount
	// normalisation (spec.md §4.3). Required; must be > 0.
	UEth float64
	// Algorithm selects naive or bellman_ford. Zero value uses bellman_ford.
	Algorithm Algorithm
	// IncludeUnprofitable retains every evaluated candidate, including
	// non-profitable ones, when true. The zero value (false) is the default
	// and matches this system's purpose (spec.md §1: "detects profitable
	// cyclic arbitrage opportunities") and the naive path's unconditional
	// profitable-only filter (naive.go), discarding non-profitable
	// candidates from the Bellman-Ford path too.
	IncludeUnprofitable bool
}

func (o Options) withDefaults() Options {
	if o.MaxHops == 0 {
		o.MaxHops = 3
	}
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmBellmanFord
	}
	return o
}

// ArbitrageService is the orchestrating core: it depends only on the
// collaborator contracts spec.md §6 defines, never on a concrete oracle or
// price-feed implementation.
type ArbitrageService struct {
	oracle    quote.QuoteOracle
	priceFeed quote.PriceFeed
	resolver  quote.BlockResolver
	log       logging.Logger
}

// New constructs an ArbitrageService. log may be nil, in which case
// logging.Nop is used.
func New(oracle quote.QuoteOracle, priceFeed quote.PriceFeed, resolver quote.BlockResolver, log logging.Logger) *ArbitrageService {
	if log == nil {
		log = logging.Nop
	}
	return &ArbitrageService{oracle: oracle, priceFeed: priceFeed, resolver: resolver, log: log}
}

// FindArbitrages is the public entrypoint spec.md §6 specifies. It returns
// an ordered (possibly empty) sequence of Arbitrages, or fails wholesale
// with one of ErrOracleUnavailable, ErrInvariantViolated, or a context
// cancellation/deadline error (spec.md §7). Invalid options and an
// exchange-function list graph.New rejects are returned as plain errors
// before any collaborator is called.
func (s *ArbitrageService) FindArbitrages(
	ctx context.Context,
	tokens []graph.Token,
	exchangeFunctions []graph.ExchangeFunction,
	block BlockIdentifier,
	opts Options,
) ([]*arbitrage.Arbitrage, error) {
	opts = opts.withDefaults()
	if opts.MaxHops < 2 {
		return nil, fmt.Errorf("service: max_hops must be >= 2, got %d", opts.MaxHops)
	}
	if opts.UEth <= 0 {
		return nil, fmt.Errorf("service: u_eth must be > 0, got %v", opts.UEth)
	}

	blockNumber, err := s.resolveBlock(ctx, block)
	if err != nil {
		return nil, err
	}

	eg, err := graph.New(tokens, exchangeFunctions)
	if err != nil {
		return nil, fmt.Errorf("service: building exchange graph: %w", err)
	}

	probeAmounts, err := s.buildProbeAmounts(ctx, tokens, opts.UEth, blockNumber)
	if err != nil {
		return nil, err
	}

	if len(probeAmounts) < 2 {
		s.log.Info("empty graph after price exclusion, returning no results", "eligible_tokens", len(probeAmounts))
		return nil, nil
	}

	var arbs []*arbitrage.Arbitrage
	switch opts.Algorithm {
	case AlgorithmNaive:
		arbs, err = naive.New(s.oracle).FindArbitrages(ctx, eg, probeAmounts, opts.MaxHops, blockNumber)
	case AlgorithmBellmanFord:
		arbs, err = s.findArbitragesBellmanFord(ctx, eg, probeAmounts, blockNumber, opts.IncludeUnprofitable)
	default:
		return nil, fmt.Errorf("service: unknown algorithm %q", opts.Algorithm)
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return arbs, nil
}

func (s *ArbitrageService) findArbitragesBellmanFord(
	ctx context.Context,
	eg *graph.ExchangeGraph,
	probeAmounts map[graph.Token]*uint256.Int,
	blockNumber uint64,
	includeUnprofitable bool,
) ([]*arbitrage.Arbitrage, error) {
	qg, err := quote.Build(ctx, eg, probeAmounts, blockNumber, s.oracle, quote.BuildOptions{})
	if err != nil {
		return nil, err
	}

	candidates := cyclefinder.New().FindCycles(qg)
	return evaluator.New(s.oracle).Evaluate(ctx, candidates, eg, probeAmounts, blockNumber, !includeUnprofitable)
}

func (s *ArbitrageService) resolveBlock(ctx context.Context, block BlockIdentifier) (uint64, error) {
	if !block.latest {
		return block.number, nil
	}
	n, err := s.resolver.ResolveLatestBlock(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: resolving latest block: %v", ErrOracleUnavailable, err)
	}
	return n, nil
}

// buildProbeAmounts implements spec.md §4.3's per-token probe normalisation:
// probe_amount(t) = round(u_eth * price_eth(t) * 1e18). Tokens PriceFeed has
// no price for are excluded (spec.md §7's PriceMissing recovery), never
// treated as fatal.
func (s *ArbitrageService) buildProbeAmounts(
	ctx context.Context,
	tokens []graph.Token,
	uEth float64,
	blockNumber uint64,
) (map[graph.Token]*uint256.Int, error) {
	prices, err := s.priceFeed.FetchPriceEth(ctx, tokens, blockNumber)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetching token prices: %v", ErrOracleUnavailable, err)
	}

	probes := make(map[graph.Token]*uint256.Int, len(tokens))
	for _, t := range tokens {
		price, ok := prices[t]
		if !ok || price <= 0 {
			s.log.Debug("excluding token with no price", "token", t)
			continue
		}
		amt, ok := probeAmountFromPrice(uEth, price)
		if !ok {
			s.log.Debug("excluding token with non-representable probe amount", "token", t)
			continue
		}
		probes[t] = amt
	}
	return probes, nil
}

func probeAmountFromPrice(uEth, priceEth float64) (*uint256.Int, bool) {
	v := new(big.Float).SetPrec(200).Mul(big.NewFloat(uEth), big.NewFloat(priceEth))
	v.Mul(v, big.NewFloat(1e18))
	v.Add(v, big.NewFloat(0.5))

	i, _ := v.Int(nil)
	if i.Sign() <= 0 {
		return nil, false
	}
	amt, overflow := uint256.FromBig(i)
	if overflow {
		return nil, false
	}
	return amt, true
}

// classifyErr maps internal errors to the §7 error kinds the caller sees.
func classifyErr(err error) error {
	var chainErr *path.ErrChainBroken
	if errors.As(err, &chainErr) {
		return fmt.Errorf("%w: %v", ErrInvariantViolated, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
}
