package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/evmquote"
	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

// quoterV2ABIJSON is Uniswap V3's QuoterV2.quoteExactInputSingle: it returns
// amountOut as the first of four values (the rest are diagnostics), the
// concentrated-liquidity shape internal/evmquote's decoder already expects.
const quoterV2ABIJSON = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var quoterV2ABI abi.ABI

func init() {
	var err error
	quoterV2ABI, err = abi.JSON(strings.NewReader(quoterV2ABIJSON))
	if err != nil {
		panic("arbscan: invalid quoter ABI: " + err.Error())
	}
}

// feeTiers are Uniswap V3's standard pool fee tiers, in hundredths of a
// basis point. Each tier is registered as its own venue, since spec.md §3
// treats a concentrated-liquidity fee tier as a distinct venue.
var feeTiers = []uint32{500, 3000, 10000}

// uniswapV3ExchangeFunctions builds one ExchangeFunction per fee tier, each
// quoting through the given QuoterV2 deployment.
func uniswapV3ExchangeFunctions(quoter common.Address) []graph.ExchangeFunction {
	fns := make([]graph.ExchangeFunction, len(feeTiers))
	for i, fee := range feeTiers {
		fee := fee
		venue := graph.VenueID(fmt.Sprintf("univ3_%d", fee))
		fns[i] = graph.ExchangeFunction{
			Venue: venue,
			Quote: quoteExactInputSingleFunc(venue, quoter, fee),
		}
	}
	return fns
}

func quoteExactInputSingleFunc(venue graph.VenueID, quoter common.Address, fee uint32) graph.QuoteFunc {
	return func(_ context.Context, tokenIn, tokenOut graph.Token, amountIn *uint256.Int, _ uint64) graph.QuoteDescriptor {
		data, err := quoterV2ABI.Pack("quoteExactInputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			AmountIn          *big.Int
			Fee               uint32
			SqrtPriceLimitX96 *big.Int
		}{
			TokenIn:           tokenIn,
			TokenOut:          tokenOut,
			AmountIn:          amountIn.ToBig(),
			Fee:               fee,
			SqrtPriceLimitX96: big.NewInt(0),
		})
		if err != nil {
			// Packing only fails on a mismatched ABI/Go struct, never on
			// caller-supplied token or amount values; surface it as an
			// always-failing descriptor rather than panicking mid fan-out.
			data = nil
		}
		return graph.QuoteDescriptor{
			Venue:    venue,
			TokenIn:  tokenIn,
			TokenOut: tokenOut,
			AmountIn: amountIn,
			Decode:   graph.DecodeConcentratedLiquidity,
			Payload:  evmquote.CallPayload{To: quoter, Data: data},
		}
	}
}
