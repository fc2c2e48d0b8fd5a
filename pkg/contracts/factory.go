package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Factory is a read-only binding to a Uniswap V2 style pair factory
type Factory struct {
	bound *bind.BoundContract
}

func NewFactory(address common.Address, caller bind.ContractCaller) *Factory {
	return &Factory{bound: bind.NewBoundContract(address, factoryABI, caller, nil, nil)}
}

// GetPair returns the pool address for (a, b), or the zero address when none exists
func (f *Factory) GetPair(ctx context.Context, a, b common.Address) (common.Address, error) {
	var out []interface{}
	if err := f.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", a, b); err != nil {
		return common.Address{}, fmt.Errorf("getPair: %w", err)
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPair: unexpected result type %T", out[0])
	}
	return pair, nil
}
