package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is a read-only binding to a token contract
type ERC20 struct {
	address common.Address
	bound   *bind.BoundContract
}

func NewERC20(address common.Address, caller bind.ContractCaller) *ERC20 {
	return &ERC20{
		address: address,
		bound:   bind.NewBoundContract(address, erc20ABI, caller, nil, nil),
	}
}

func (t *ERC20) Address() common.Address {
	return t.address
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	return callString(ctx, t.bound, "symbol")
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := t.bound.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result type %T", out[0])
	}
	return dec, nil
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return callUint(ctx, t.bound, "balanceOf", owner)
}

// Allowance reads the live allowance; callers must not cache it
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callUint(ctx, t.bound, "allowance", owner, spender)
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

func callString(ctx context.Context, c *bind.BoundContract, method string) (string, error) {
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return s, nil
}

func callUint(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return v, nil
}
