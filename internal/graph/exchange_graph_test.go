package graph_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

func addr(b byte) graph.Token {
	var a common.Address
	a[19] = b
	return a
}

func constantFunction(venue graph.VenueID, rate float64) graph.ExchangeFunction {
	return graph.ExchangeFunction{
		Venue: venue,
		Quote: func(_ context.Context, tokenIn, tokenOut graph.Token, amountIn *uint256.Int, block uint64) graph.QuoteDescriptor {
			return graph.QuoteDescriptor{
				Venue:    venue,
				TokenIn:  tokenIn,
				TokenOut: tokenOut,
				AmountIn: amountIn,
				Decode:   graph.DecodeConstantProduct,
				Payload:  rate,
			}
		},
	}
}

func TestExchangeGraph_EdgeInventory(t *testing.T) {
	tokens := []graph.Token{addr(1), addr(2), addr(3)}
	functions := []graph.ExchangeFunction{
		constantFunction("venueA", 2.0),
		constantFunction("venueB", 2.1),
	}

	eg, err := graph.New(tokens, functions)
	require.NoError(t, err)

	total := 0
	for _, tokenIn := range eg.Tokens() {
		for _, tokenOut := range eg.Tokens() {
			if tokenIn == tokenOut {
				assert.Empty(t, eg.Edges(tokenIn, tokenOut))
				continue
			}
			edges := eg.Edges(tokenIn, tokenOut)
			assert.Len(t, edges, len(functions))
			for _, e := range edges {
				assert.NotEqual(t, e.TokenIn, e.TokenOut)
			}
			total += len(edges)
		}
	}

	// |tokens| * (|tokens|-1) * |venues|
	assert.Equal(t, len(tokens)*(len(tokens)-1)*len(functions), total)
}

func TestExchangeGraph_EdgeOrderIsInsertionOrder(t *testing.T) {
	tokens := []graph.Token{addr(1), addr(2)}
	functions := []graph.ExchangeFunction{
		constantFunction("venueB", 2.1),
		constantFunction("venueA", 2.0),
	}

	eg, err := graph.New(tokens, functions)
	require.NoError(t, err)

	edges := eg.Edges(tokens[0], tokens[1])
	require.Len(t, edges, 2)
	assert.Equal(t, graph.VenueID("venueB"), edges[0].Venue)
	assert.Equal(t, graph.VenueID("venueA"), edges[1].Venue)
}

func TestExchangeGraph_DuplicateVenueRejected(t *testing.T) {
	tokens := []graph.Token{addr(1), addr(2)}
	functions := []graph.ExchangeFunction{
		constantFunction("venueA", 2.0),
		constantFunction("venueA", 2.1),
	}

	_, err := graph.New(tokens, functions)
	assert.Error(t, err)
}

func TestExchangeGraph_QuoteUnregisteredVenueErrors(t *testing.T) {
	tokens := []graph.Token{addr(1), addr(2)}
	eg, err := graph.New(tokens, nil)
	require.NoError(t, err)

	_, err = eg.Quote(context.Background(), graph.ExchangeEdge{
		TokenIn:  tokens[0],
		TokenOut: tokens[1],
		Venue:    "ghost",
	}, uint256.NewInt(100), 1)
	assert.Error(t, err)
}
