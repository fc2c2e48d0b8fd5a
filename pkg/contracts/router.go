package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Router is a read-only binding to a Uniswap V2 style Router02
type Router struct {
	address common.Address
	bound   *bind.BoundContract
}

// NewRouter binds the router at address to caller
func NewRouter(address common.Address, caller bind.ContractCaller) *Router {
	return &Router{
		address: address,
		bound:   bind.NewBoundContract(address, routerABI, caller, nil, nil),
	}
}

// Address returns the router contract address
func (r *Router) Address() common.Address {
	return r.address
}

// GetAmountsOut returns the output of every hop along path for amountIn
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	var out []interface{}
	if err := r.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut", amountIn, path); err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAmountsOut: unexpected result length %d", len(out))
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut: unexpected result type %T", out[0])
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut: got %d amounts for %d-token path", len(amounts), len(path))
	}
	return amounts, nil
}

// PackSwapExactTokensForTokens encodes a token -> token swap
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

// PackSwapExactETHForTokens encodes a native -> token swap; the input travels as tx value
func PackSwapExactETHForTokens(amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactETHForTokens", amountOutMin, path, to, deadline)
}

// PackSwapExactTokensForETH encodes a token -> native swap
func PackSwapExactTokensForETH(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForETH", amountIn, amountOutMin, path, to, deadline)
}

// PackAddLiquidity encodes a two-token deposit
func PackAddLiquidity(tokenA, tokenB common.Address, amountA, amountB, amountAMin, amountBMin *big.Int, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("addLiquidity", tokenA, tokenB, amountA, amountB, amountAMin, amountBMin, to, deadline)
}

// PackAddLiquidityETH encodes a token + native deposit; the native side travels as tx value
func PackAddLiquidityETH(token common.Address, amountToken, amountTokenMin, amountETHMin *big.Int, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("addLiquidityETH", token, amountToken, amountTokenMin, amountETHMin, to, deadline)
}
