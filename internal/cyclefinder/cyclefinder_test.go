package cyclefinder_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtrieuuit/defi-arbitrage/internal/cyclefinder"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/quote"
)

func addr(b byte) graph.Token {
	var a common.Address
	a[19] = b
	return a
}

type pairKey struct {
	in, out graph.Token
	venue   graph.VenueID
}

// rateOracle is a deterministic mock QuoteOracle: amount_out =
// floor(amount_in * rate) for each (token_in, token_out, venue), mirroring
// the seed scenarios in spec.md §8 ("Quotes: A→B 2.0, B→A 0.5, ...").
type rateOracle struct {
	rates map[pairKey]float64
	fails map[pairKey]bool
}

func (r *rateOracle) Batch(_ context.Context, descriptors []graph.QuoteDescriptor, _ bool, _ uint64) ([]graph.CallReturn, error) {
	out := make([]graph.CallReturn, len(descriptors))
	for i, d := range descriptors {
		key := pairKey{in: d.TokenIn, out: d.TokenOut, venue: d.Venue}
		if r.fails[key] {
			out[i] = graph.CallReturn{Success: false, AmountOut: uint256.NewInt(0)}
			continue
		}
		rate, ok := r.rates[key]
		if !ok {
			out[i] = graph.CallReturn{Success: false, AmountOut: uint256.NewInt(0)}
			continue
		}
		inF := new(big.Float).SetInt(d.AmountIn.ToBig())
		outF := new(big.Float).Mul(inF, big.NewFloat(rate))
		outInt, _ := outF.Int(nil)
		amt, overflow := uint256.FromBig(outInt)
		if overflow {
			out[i] = graph.CallReturn{Success: false, AmountOut: uint256.NewInt(0)}
			continue
		}
		out[i] = graph.CallReturn{Success: true, AmountOut: amt}
	}
	return out, nil
}

func quoteFunc(venue graph.VenueID) graph.QuoteFunc {
	return func(_ context.Context, tokenIn, tokenOut graph.Token, amountIn *uint256.Int, _ uint64) graph.QuoteDescriptor {
		return graph.QuoteDescriptor{Venue: venue, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn}
	}
}

func buildGraph(t *testing.T, tokens []graph.Token, venues []graph.VenueID) *graph.ExchangeGraph {
	t.Helper()
	fns := make([]graph.ExchangeFunction, len(venues))
	for i, v := range venues {
		fns[i] = graph.ExchangeFunction{Venue: v, Quote: quoteFunc(v)}
	}
	eg, err := graph.New(tokens, fns)
	require.NoError(t, err)
	return eg
}

func uniformProbes(tokens []graph.Token, amount uint64) map[graph.Token]*uint256.Int {
	probes := make(map[graph.Token]*uint256.Int, len(tokens))
	for _, t := range tokens {
		probes[t] = uint256.NewInt(amount)
	}
	return probes
}

func TestCycleFinder_S1_NoArbitrageYieldsNoCycle(t *testing.T) {
	a, b, c := addr(1), addr(2), addr(3)
	tokens := []graph.Token{a, b, c}
	eg := buildGraph(t, tokens, []graph.VenueID{"v1"})

	oracle := &rateOracle{rates: map[pairKey]float64{
		{a, b, "v1"}: 2.0, {b, a, "v1"}: 0.5,
		{a, c, "v1"}: 3.0, {c, a, "v1"}: 0.333,
		{b, c, "v1"}: 1.5, {c, b, "v1"}: 0.666,
	}}

	qg, err := quote.Build(context.Background(), eg, uniformProbes(tokens, 100), 1, oracle, quote.BuildOptions{})
	require.NoError(t, err)

	cycles := cyclefinder.New().FindCycles(qg)
	assert.Empty(t, cycles)
}

func TestCycleFinder_S2_TwoHopArbitrage(t *testing.T) {
	a, b := addr(1), addr(2)
	tokens := []graph.Token{a, b}
	eg := buildGraph(t, tokens, []graph.VenueID{"v1"})

	oracle := &rateOracle{rates: map[pairKey]float64{
		{a, b, "v1"}: 2.0,
		{b, a, "v1"}: 0.6,
	}}

	qg, err := quote.Build(context.Background(), eg, uniformProbes(tokens, 100), 1, oracle, quote.BuildOptions{})
	require.NoError(t, err)

	cycles := cyclefinder.New().FindCycles(qg)
	require.NotEmpty(t, cycles)

	cycle := cycles[0]
	require.Len(t, cycle, 2)
	assert.Equal(t, cycle[0].TokenOut, cycle[1].TokenIn)
	assert.Equal(t, cycle[0].TokenIn, cycle[1].TokenOut)
}

func TestCycleFinder_S5_ParallelEdgesSelectsBetterVenue(t *testing.T) {
	a, b := addr(1), addr(2)
	tokens := []graph.Token{a, b}
	eg := buildGraph(t, tokens, []graph.VenueID{"v1", "v2"})

	oracle := &rateOracle{rates: map[pairKey]float64{
		{a, b, "v1"}: 2.0,
		{a, b, "v2"}: 2.1,
		{b, a, "v1"}: 0.6,
		{b, a, "v2"}: 0.1,
	}}

	qg, err := quote.Build(context.Background(), eg, uniformProbes(tokens, 100), 1, oracle, quote.BuildOptions{})
	require.NoError(t, err)

	cycles := cyclefinder.New().FindCycles(qg)
	require.NotEmpty(t, cycles)

	var sawV2 bool
	for _, cycle := range cycles {
		for _, e := range cycle {
			if e.TokenIn == a && e.TokenOut == b && e.Venue == "v2" {
				sawV2 = true
			}
		}
	}
	assert.True(t, sawV2, "expected the 2.1-rate venue to be selected over 2.0")
}
