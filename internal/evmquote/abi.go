package evmquote

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// multicall2ABIJSON is Multicall2's tryAggregate entrypoint: batches many
// (target, callData) pairs into one eth_call, returning (success, returnData)
// per call. Grounded on contract_service.py's ContractService, which wraps
// the same contract (MULTICALL_ADDRESS, "multicall2" ABI) for every batched
// quote.
const multicall2ABIJSON = `[
	{
		"constant": false,
		"inputs": [
			{"internalType": "bool", "name": "requireSuccess", "type": "bool"},
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct Multicall2.Call[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "tryAggregate",
		"outputs": [
			{
				"components": [
					{"internalType": "bool", "name": "success", "type": "bool"},
					{"internalType": "bytes", "name": "returnData", "type": "bytes"}
				],
				"internalType": "struct Multicall2.Result[]",
				"name": "returnData",
				"type": "tuple[]"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// spotAggregator1inchABIJSON is the subset of the 1inch spot-price
// aggregator's ABI the price feed needs (price_feed_service.py's
// getRateToEth).
const spotAggregator1inchABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "srcToken", "type": "address"},
			{"internalType": "bool", "name": "useWrappers", "type": "bool"}
		],
		"name": "getRateToEth",
		"outputs": [{"internalType": "uint256", "name": "weightedRate", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// chainlinkAggregatorABIJSON is the subset of Chainlink's AggregatorV3Interface
// needed to read the ETH/USD reference price, grounded on
// price_feed_service.py's fetch_eth_price_usd.
const chainlinkAggregatorABIJSON = `[
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"internalType": "uint80", "name": "roundId", "type": "uint80"},
			{"internalType": "int256", "name": "answer", "type": "int256"},
			{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
			{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
			{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// erc20MetadataABIJSON is the single ERC20 view method
// price_feed_service.py's fetch_token_decimals reads.
const erc20MetadataABIJSON = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	multicall2ABI          abi.ABI
	spotAggregator1inchABI abi.ABI
	chainlinkAggregatorABI abi.ABI
	erc20MetadataABI       abi.ABI
)

func init() {
	var err error
	multicall2ABI, err = abi.JSON(strings.NewReader(multicall2ABIJSON))
	if err != nil {
		panic("evmquote: invalid multicall2 ABI: " + err.Error())
	}
	spotAggregator1inchABI, err = abi.JSON(strings.NewReader(spotAggregator1inchABIJSON))
	if err != nil {
		panic("evmquote: invalid spot aggregator ABI: " + err.Error())
	}
	chainlinkAggregatorABI, err = abi.JSON(strings.NewReader(chainlinkAggregatorABIJSON))
	if err != nil {
		panic("evmquote: invalid chainlink aggregator ABI: " + err.Error())
	}
	erc20MetadataABI, err = abi.JSON(strings.NewReader(erc20MetadataABIJSON))
	if err != nil {
		panic("evmquote: invalid erc20 metadata ABI: " + err.Error())
	}
}
