package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for a Uniswap V2 style Router02, its factory and ERC20 - only the methods we call.

const RouterABI = `[
	{
		"name": "getAmountsOut",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "amountIn", "type": "uint256"},
			{"name": "path",     "type": "address[]"}
		],
		"outputs": [{"name": "amounts", "type": "uint256[]"}]
	},
	{
		"name": "swapExactTokensForTokens",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "amountIn",     "type": "uint256"},
			{"name": "amountOutMin", "type": "uint256"},
			{"name": "path",         "type": "address[]"},
			{"name": "to",           "type": "address"},
			{"name": "deadline",     "type": "uint256"}
		],
		"outputs": [{"name": "amounts", "type": "uint256[]"}]
	},
	{
		"name": "swapExactETHForTokens",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "amountOutMin", "type": "uint256"},
			{"name": "path",         "type": "address[]"},
			{"name": "to",           "type": "address"},
			{"name": "deadline",     "type": "uint256"}
		],
		"outputs": [{"name": "amounts", "type": "uint256[]"}]
	},
	{
		"name": "swapExactTokensForETH",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "amountIn",     "type": "uint256"},
			{"name": "amountOutMin", "type": "uint256"},
			{"name": "path",         "type": "address[]"},
			{"name": "to",           "type": "address"},
			{"name": "deadline",     "type": "uint256"}
		],
		"outputs": [{"name": "amounts", "type": "uint256[]"}]
	},
	{
		"name": "addLiquidity",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "tokenA",         "type": "address"},
			{"name": "tokenB",         "type": "address"},
			{"name": "amountADesired", "type": "uint256"},
			{"name": "amountBDesired", "type": "uint256"},
			{"name": "amountAMin",     "type": "uint256"},
			{"name": "amountBMin",     "type": "uint256"},
			{"name": "to",             "type": "address"},
			{"name": "deadline",       "type": "uint256"}
		],
		"outputs": [
			{"name": "amountA",   "type": "uint256"},
			{"name": "amountB",   "type": "uint256"},
			{"name": "liquidity", "type": "uint256"}
		]
	},
	{
		"name": "addLiquidityETH",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "token",              "type": "address"},
			{"name": "amountTokenDesired", "type": "uint256"},
			{"name": "amountTokenMin",     "type": "uint256"},
			{"name": "amountETHMin",       "type": "uint256"},
			{"name": "to",                 "type": "address"},
			{"name": "deadline",           "type": "uint256"}
		],
		"outputs": [
			{"name": "amountToken", "type": "uint256"},
			{"name": "amountETH",   "type": "uint256"},
			{"name": "liquidity",   "type": "uint256"}
		]
	}
]`

const FactoryABI = `[
	{
		"name": "getPair",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"}
		],
		"outputs": [{"name": "pair", "type": "address"}]
	}
]`

const ERC20ABI = `[
	{
		"name": "symbol",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}]
	},
	{
		"name": "decimals",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"name": "balanceOf",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}],
		"outputs": [{"name": "balance", "type": "uint256"}]
	},
	{
		"name": "allowance",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner",   "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "approve",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount",  "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

var (
	routerABI  = mustParse(RouterABI)
	factoryABI = mustParse(FactoryABI)
	erc20ABI   = mustParse(ERC20ABI)
)

func ParsedRouter() abi.ABI  { return routerABI }
func ParsedFactory() abi.ABI { return factoryABI }
func ParsedERC20() abi.ABI   { return erc20ABI }

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("contracts: invalid ABI: " + err.Error())
	}
	return parsed
}
