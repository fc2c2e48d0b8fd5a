package contracts_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x1swap/pkg/contracts"
	"x1swap/pkg/contracts/contractstest"
	"x1swap/pkg/types"
)

var (
	routerAddr  = common.HexToAddress("0xB0aA1d29339bdFaC68a791d4C13b0698A239D97C")
	factoryAddr = common.HexToAddress("0xd6c29C74cEca823f93CeEEE6f2E958625a7Bfe00")
	tka         = common.HexToAddress("0x6cF0576a5088ECE1cbc92cbDdD2496c8de5517FB")
	tkb         = common.HexToAddress("0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5")
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestRouterGetAmountsOut(t *testing.T) {
	chain := contractstest.NewChain(10778)
	chain.HandleAt(routerAddr, "getAmountsOut", func(call contractstest.Call) ([]interface{}, error) {
		in := call.Args[0].(*big.Int)
		path := call.Args[1].([]common.Address)
		require.Len(t, path, 2)
		return []interface{}{[]*big.Int{in, new(big.Int).Mul(in, big.NewInt(2))}}, nil
	})

	router := contracts.NewRouter(routerAddr, chain)
	amounts, err := router.GetAmountsOut(context.Background(), big.NewInt(50), []common.Address{tka, tkb})
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	assert.Equal(t, "100", amounts[1].String())
}

func TestRouterGetAmountsOutRevert(t *testing.T) {
	chain := contractstest.NewChain(10778)
	chain.Handle("getAmountsOut", func(contractstest.Call) ([]interface{}, error) {
		return nil, contractstest.Revert("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	})

	router := contracts.NewRouter(routerAddr, chain)
	_, err := router.GetAmountsOut(context.Background(), big.NewInt(1), []common.Address{tka, tkb})
	require.Error(t, err)

	reason, ok := contracts.RevertReason(err)
	require.True(t, ok)
	assert.Equal(t, "UniswapV2Library: INSUFFICIENT_LIQUIDITY", reason)
}

func TestRouterGetAmountsOutShortResult(t *testing.T) {
	chain := contractstest.NewChain(10778)
	chain.Handle("getAmountsOut", func(call contractstest.Call) ([]interface{}, error) {
		return []interface{}{[]*big.Int{big.NewInt(1)}}, nil
	})

	router := contracts.NewRouter(routerAddr, chain)
	_, err := router.GetAmountsOut(context.Background(), big.NewInt(1), []common.Address{tka, tkb})
	assert.Error(t, err)
}

func TestERC20Reads(t *testing.T) {
	chain := contractstest.NewChain(10778)
	chain.AddToken(tka, "TKA", 6)
	chain.SetAllowance(tka, owner, routerAddr, big.NewInt(777))

	token := contracts.NewERC20(tka, chain)
	ctx := context.Background()

	symbol, err := token.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TKA", symbol)

	decimals, err := token.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	allowance, err := token.Allowance(ctx, owner, routerAddr)
	require.NoError(t, err)
	assert.Equal(t, "777", allowance.String())
}

func TestERC20NotAToken(t *testing.T) {
	chain := contractstest.NewChain(10778)
	token := contracts.NewERC20(tka, chain)

	_, err := token.Symbol(context.Background())
	assert.Error(t, err)
}

func TestFactoryGetPair(t *testing.T) {
	pair := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	chain := contractstest.NewChain(10778)
	chain.HandleAt(factoryAddr, "getPair", func(call contractstest.Call) ([]interface{}, error) {
		return []interface{}{pair}, nil
	})

	got, err := contracts.NewFactory(factoryAddr, chain).GetPair(context.Background(), tka, tkb)
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestPackedCallsDecode(t *testing.T) {
	chain := contractstest.NewChain(10778)
	signer := &contractstest.Signer{Chain: chain, From: owner}
	path := []common.Address{tka, tkb}
	deadline := big.NewInt(1_700_000_000)

	data, err := contracts.PackSwapExactTokensForTokens(big.NewInt(10), big.NewInt(9), path, owner, deadline)
	require.NoError(t, err)
	_, err = signer.SendTransaction(context.Background(), txTo(routerAddr, nil, data))
	require.NoError(t, err)

	data, err = contracts.PackApprove(routerAddr, big.NewInt(500))
	require.NoError(t, err)
	_, err = signer.SendTransaction(context.Background(), txTo(tka, nil, data))
	require.NoError(t, err)

	sent := chain.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "swapExactTokensForTokens", sent[0].Method)
	assert.Equal(t, path, sent[0].Args[2])
	assert.Equal(t, "approve", sent[1].Method)
	assert.Equal(t, "500", chain.Allowance(tka, owner, routerAddr).String())
}

func TestRevertReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"encoded data", contractstest.Revert("EXPIRED"), "EXPIRED", true},
		{"bare revert", contractstest.Revert(""), "", false},
		{"message only", errors.New("execution reverted: UniswapV2Router: EXPIRED"), "UniswapV2Router: EXPIRED", true},
		{"wrapped", fmt.Errorf("estimate gas: %w", contractstest.Revert("TransferHelper: TRANSFER_FROM_FAILED")), "TransferHelper: TRANSFER_FROM_FAILED", true},
		{"unrelated", errors.New("connection refused"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := contracts.RevertReason(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func txTo(to common.Address, value *big.Int, data []byte) types.TxRequest {
	return types.TxRequest{To: to, Value: value, Data: data}
}
