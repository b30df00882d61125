package service_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
	"github.com/longtrieuuit/defi-arbitrage/internal/service"
)

func addr(b byte) graph.Token {
	var a common.Address
	a[19] = b
	return a
}

type edgeKey struct {
	in, out graph.Token
	venue   graph.VenueID
}

type rateOracle struct {
	rates map[edgeKey]float64
	fails map[edgeKey]bool
}

func (r *rateOracle) Batch(_ context.Context, descriptors []graph.QuoteDescriptor, _ bool, _ uint64) ([]graph.CallReturn, error) {
	out := make([]graph.CallReturn, len(descriptors))
	for i, d := range descriptors {
		key := edgeKey{d.TokenIn, d.TokenOut, d.Venue}
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
		amt, _ := uint256.FromBig(outInt)
		out[i] = graph.CallReturn{Success: true, AmountOut: amt}
	}
	return out, nil
}

type uniformPriceFeed struct {
	prices map[graph.Token]float64
}

func (p *uniformPriceFeed) FetchPriceEth(_ context.Context, tokens []graph.Token, _ uint64) (map[graph.Token]float64, error) {
	out := make(map[graph.Token]float64, len(tokens))
	for _, t := range tokens {
		if price, ok := p.prices[t]; ok {
			out[t] = price
		}
	}
	return out, nil
}

func (p *uniformPriceFeed) GetBaseFeePerGas(_ context.Context, _ uint64) (uint64, error) {
	return 1, nil
}

type fixedResolver struct{ block uint64 }

func (f *fixedResolver) ResolveLatestBlock(_ context.Context) (uint64, error) {
	return f.block, nil
}

func quoteFunc(venue graph.VenueID) graph.QuoteFunc {
	return func(_ context.Context, tokenIn, tokenOut graph.Token, amountIn *uint256.Int, _ uint64) graph.QuoteDescriptor {
		return graph.QuoteDescriptor{Venue: venue, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn}
	}
}

func newService(oracle *rateOracle, prices map[graph.Token]float64) *service.ArbitrageService {
	return service.New(oracle, &uniformPriceFeed{prices: prices}, &fixedResolver{block: 1}, nil)
}

func exchangeFunctions(venues ...graph.VenueID) []graph.ExchangeFunction {
	fns := make([]graph.ExchangeFunction, len(venues))
	for i, v := range venues {
		fns[i] = graph.ExchangeFunction{Venue: v, Quote: quoteFunc(v)}
	}
	return fns
}

func TestFindArbitrages_S1_NoArbitrage(t *testing.T) {
	a, b, c := addr(1), addr(2), addr(3)
	oracle := &rateOracle{rates: map[edgeKey]float64{
		{a, b, "v1"}: 2.0, {b, a, "v1"}: 0.5,
		{a, c, "v1"}: 3.0, {c, a, "v1"}: 0.333,
		{b, c, "v1"}: 1.5, {c, b, "v1"}: 0.666,
	}}
	prices := map[graph.Token]float64{a: 1, b: 1, c: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b, c}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	assert.Empty(t, arbs)
}

func TestFindArbitrages_S2_TwoHopArbitrage(t *testing.T) {
	a, b := addr(1), addr(2)
	oracle := &rateOracle{rates: map[edgeKey]float64{{a, b, "v1"}: 2.0, {b, a, "v1"}: 0.6}}
	prices := map[graph.Token]float64{a: 1, b: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	require.Len(t, arbs, 1)
	assert.True(t, arbs[0].IsProfitable())
}

func TestFindArbitrages_S3_ThreeHopCycle(t *testing.T) {
	a, b, c := addr(1), addr(2), addr(3)
	oracle := &rateOracle{rates: map[edgeKey]float64{
		{a, b, "v1"}: 2, {b, c, "v1"}: 2, {c, a, "v1"}: 0.3,
		{b, a, "v1"}: 0.5, {c, b, "v1"}: 0.5, {a, c, "v1"}: 0.1,
	}}
	prices := map[graph.Token]float64{a: 1, b: 1, c: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b, c}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	require.NotEmpty(t, arbs)
	for _, arb := range arbs {
		assert.True(t, arb.IsProfitable())
	}
}

func TestFindArbitrages_S4_MidCycleFailureYieldsNoArbitrage(t *testing.T) {
	a, b, c := addr(1), addr(2), addr(3)
	oracle := &rateOracle{
		rates: map[edgeKey]float64{
			{a, b, "v1"}: 2, {b, c, "v1"}: 2, {c, a, "v1"}: 0.3,
			{b, a, "v1"}: 0.5, {c, b, "v1"}: 0.5, {a, c, "v1"}: 0.1,
		},
		fails: map[edgeKey]bool{{b, c, "v1"}: true},
	}
	prices := map[graph.Token]float64{a: 1, b: 1, c: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b, c}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	assert.Empty(t, arbs)
}

func TestFindArbitrages_S5_ParallelEdgesSelectsBetterVenue(t *testing.T) {
	a, b := addr(1), addr(2)
	oracle := &rateOracle{rates: map[edgeKey]float64{
		{a, b, "v1"}: 2.0, {a, b, "v2"}: 2.1,
		{b, a, "v1"}: 0.6, {b, a, "v2"}: 0.1,
	}}
	prices := map[graph.Token]float64{a: 1, b: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b}, exchangeFunctions("v1", "v2"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	require.NotEmpty(t, arbs)
}

func TestFindArbitrages_S6_FourHopWithFailingParallelEdge(t *testing.T) {
	a, b, c, d := addr(1), addr(2), addr(3), addr(4)
	oracle := &rateOracle{
		rates: map[edgeKey]float64{
			{a, b, "v2"}: 2.0,
			{b, c, "v1"}: 2.0, {b, c, "v2"}: 2.0,
			{c, d, "v1"}: 2.0, {c, d, "v2"}: 2.0,
			{d, a, "v1"}: 0.2, {d, a, "v2"}: 0.2,
			{b, a, "v1"}: 0.5, {b, a, "v2"}: 0.5,
			{c, b, "v1"}: 0.5, {c, b, "v2"}: 0.5,
			{d, c, "v1"}: 0.5, {d, c, "v2"}: 0.5,
			{a, d, "v1"}: 5, {a, d, "v2"}: 5,
			{a, c, "v1"}: 4, {a, c, "v2"}: 4,
			{c, a, "v1"}: 0.25, {c, a, "v2"}: 0.25,
			{b, d, "v1"}: 4, {b, d, "v2"}: 4,
			{d, b, "v1"}: 0.25, {d, b, "v2"}: 0.25,
		},
		fails: map[edgeKey]bool{{a, b, "v1"}: true},
	}
	prices := map[graph.Token]float64{a: 1, b: 1, c: 1, d: 1}
	svc := newService(oracle, prices)

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b, c, d}, exchangeFunctions("v1", "v2"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	require.NotEmpty(t, arbs, "should still find the cycle via the working v2 edge")
}

func TestFindArbitrages_RejectsMissingUEth(t *testing.T) {
	a, b := addr(1), addr(2)
	svc := newService(&rateOracle{}, map[graph.Token]float64{a: 1, b: 1})

	_, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{})
	assert.Error(t, err)
}

func TestFindArbitrages_EmptyGraphAfterPriceExclusion(t *testing.T) {
	a, b := addr(1), addr(2)
	// b has no price entry at all, so it is excluded, leaving fewer than 2 tokens.
	svc := newService(&rateOracle{}, map[graph.Token]float64{a: 1})

	arbs, err := svc.FindArbitrages(context.Background(), []graph.Token{a, b}, exchangeFunctions("v1"), service.AtBlock(1), service.Options{UEth: 1})
	require.NoError(t, err)
	assert.Empty(t, arbs)
}
