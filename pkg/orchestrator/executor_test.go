package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x1swap/pkg/contracts/contractstest"
	"x1swap/pkg/types"
	"x1swap/pkg/wallet"
)

var (
	routerAddr = common.HexToAddress("0xB0aA1d29339bdFaC68a791d4C13b0698A239D97C")
	wnative    = common.HexToAddress("0xc2F331332ca914685D773781744b1C589861C9Aa")
	user       = common.HexToAddress("0x00000000000000000000000000000000000000aa")

	native = types.Token{Name: "X1T (Native)", Symbol: "X1T", Address: wnative, Decimals: 18}
	tka    = types.Token{Name: "Token A", Symbol: "TKA", Address: common.HexToAddress("0x6cF0576a5088ECE1cbc92cbDdD2496c8de5517FB"), Decimals: 18}
	tkb    = types.Token{Name: "Token B", Symbol: "TKB", Address: common.HexToAddress("0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5"), Decimals: 18}

	fixedNow = time.Unix(1_700_000_000, 0)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newChain() *contractstest.Chain {
	chain := contractstest.NewChain(10778)
	chain.AddToken(tka.Address, "TKA", 18)
	chain.AddToken(tkb.Address, "TKB", 18)
	return chain
}

func newSession(chain *contractstest.Chain) *wallet.Session {
	return &wallet.Session{
		Address: user,
		ChainID: big.NewInt(10778),
		Network: types.Network{ChainID: 10778, Name: "X1 Maculatus Testnet"},
		Signer:  &contractstest.Signer{Chain: chain, From: user},
		Backend: chain,
	}
}

func newExecutor(mutate ...func(*Config)) *Executor {
	cfg := Config{
		Router:         routerAddr,
		WrappedNative:  wnative,
		SlippageBps:    DefaultSlippageBps,
		Deadline:       1200 * time.Second,
		ReceiptTimeout: 50 * time.Millisecond,
		PollInterval:   time.Millisecond,
		Now:            func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewExecutor(cfg)
}

func readyQuote(pair types.TokenPair, amount string, out *big.Int) types.Quote {
	return types.Quote{Pair: pair, AmountIn: amount, AmountOut: out, OutText: out.String(), State: types.QuoteReady}
}

func recordStates(e *Executor) *[]types.FlowState {
	var states []types.FlowState
	e.Flow().OnTransition(func(_, to types.FlowState) {
		states = append(states, to)
	})
	return &states
}

func TestSwapNativeIn(t *testing.T) {
	chain := newChain()
	exec := newExecutor()
	states := recordStates(exec)

	pair := types.TokenPair{In: native, Out: tka}
	result, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "1",
		Quote:  readyQuote(pair, "1", ether(100)),
	})
	require.NoError(t, err)

	sent := chain.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, "swapExactETHForTokens", tx.Method)
	assert.Equal(t, routerAddr, tx.To)
	assert.Equal(t, ether(1).String(), tx.Value.String())
	assert.Equal(t, ether(95).String(), tx.Args[0].(*big.Int).String(), "5% below the quoted output")
	assert.Equal(t, []common.Address{wnative, tka.Address}, tx.Args[1])
	assert.Equal(t, user, tx.Args[2])
	assert.Equal(t, fixedNow.Add(1200*time.Second).Unix(), tx.Args[3].(*big.Int).Int64())

	assert.Empty(t, chain.Reads(), "native input needs no allowance check")
	assert.Empty(t, result.Approvals)
	assert.Equal(t, tx.Hash, result.Hash)
	assert.Equal(t, types.KindSwap, result.Kind)
	assert.NotEmpty(t, result.ActionID)
	assert.NotZero(t, result.BlockNumber)

	assert.Equal(t, []types.FlowState{
		types.FlowQuotePending,
		types.FlowQuoteReady,
		types.FlowSubmitting,
		types.FlowConfirming,
		types.FlowSucceeded,
	}, *states)
}

func TestSwapTokenForNative(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, ether(1000))
	exec := newExecutor()

	pair := types.TokenPair{In: tka, Out: native}
	_, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "2.5",
		Quote:  readyQuote(pair, "2.5", big.NewInt(1000)),
	})
	require.NoError(t, err)

	sent := chain.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "swapExactTokensForETH", sent[0].Method)
	assert.Equal(t, "2500000000000000000", sent[0].Args[0].(*big.Int).String())
	assert.Equal(t, "950", sent[0].Args[1].(*big.Int).String())
	assert.Equal(t, []common.Address{tka.Address, wnative}, sent[0].Args[2])
	assert.Zero(t, sent[0].Value.Sign())
}

func TestSwapApprovesWhenAllowanceShort(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, big.NewInt(1))
	exec := newExecutor()
	states := recordStates(exec)

	pair := types.TokenPair{In: tka, Out: tkb}
	result, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "10",
		Quote:  readyQuote(pair, "10", ether(20)),
	})
	require.NoError(t, err)

	sent := chain.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, tka.Address, sent[0].To)
	assert.Equal(t, routerAddr, sent[0].Args[0])
	assert.Equal(t, 0, math.MaxBig256.Cmp(sent[0].Args[1].(*big.Int)), "unbounded approval")
	assert.Equal(t, "swapExactTokensForTokens", sent[1].Method)

	assert.Equal(t, []common.Hash{sent[0].Hash}, result.Approvals)
	assert.Equal(t, sent[1].Hash, result.Hash)
	assert.Contains(t, *states, types.FlowApproving)
	assert.Equal(t, types.FlowSucceeded, exec.Flow().State())
}

func TestSwapGuardsMakeNoCalls(t *testing.T) {
	pair := types.TokenPair{In: tka, Out: tkb}
	good := readyQuote(pair, "1", ether(2))

	tests := []struct {
		name string
		sess func(*contractstest.Chain) *wallet.Session
		req  SwapRequest
		want error
	}{
		{
			name: "no session",
			sess: func(*contractstest.Chain) *wallet.Session { return nil },
			req:  SwapRequest{Pair: pair, Amount: "1", Quote: good},
			want: ErrNotConnected,
		},
		{
			name: "no liquidity",
			sess: newSession,
			req: SwapRequest{Pair: pair, Amount: "1", Quote: types.Quote{
				Pair: pair, AmountIn: "1", State: types.QuoteUnavailable,
			}},
			want: ErrQuoteUnavailable,
		},
		{
			name: "empty quote",
			sess: newSession,
			req:  SwapRequest{Pair: pair, Amount: "1"},
			want: ErrQuoteUnavailable,
		},
		{
			name: "amount changed after quote",
			sess: newSession,
			req:  SwapRequest{Pair: pair, Amount: "2", Quote: good},
			want: ErrStaleQuote,
		},
		{
			name: "output token changed after quote",
			sess: newSession,
			req:  SwapRequest{Pair: types.TokenPair{In: tka, Out: native}, Amount: "1", Quote: good},
			want: ErrStaleQuote,
		},
		{
			name: "same token",
			sess: newSession,
			req:  SwapRequest{Pair: types.TokenPair{In: tka, Out: tka}, Amount: "1", Quote: good},
			want: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newChain()
			exec := newExecutor()

			_, err := exec.ExecuteSwap(context.Background(), tt.sess(chain), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, chain.Sent())
			assert.Empty(t, chain.Reads())
			assert.Equal(t, types.FlowIdle, exec.Flow().State())
		})
	}
}

func TestSwapRevertedOnChain(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, math.MaxBig256)
	chain.OnSend = func(call contractstest.Call) (uint64, error) {
		return ethtypes.ReceiptStatusFailed, nil
	}
	chain.Handle("swapExactTokensForTokens", func(contractstest.Call) ([]interface{}, error) {
		return nil, contractstest.Revert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
	})
	exec := newExecutor()

	pair := types.TokenPair{In: tka, Out: tkb}
	result, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "1",
		Quote:  readyQuote(pair, "1", ether(3)),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)

	var revert *RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT", revert.Reason)
	assert.Equal(t, result.Hash, revert.TxHash)
	assert.Equal(t, types.FlowFailed, exec.Flow().State())
}

func TestSwapSubmitFailures(t *testing.T) {
	pair := types.TokenPair{In: native, Out: tka}

	tests := []struct {
		name       string
		sendErr    error
		want       error
		wantReason string
	}{
		{
			name:    "rejected in wallet",
			sendErr: fmt.Errorf("send transaction: %w", &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User denied"}),
			want:    wallet.ErrUserRejected,
		},
		{
			name:       "estimate reverts",
			sendErr:    fmt.Errorf("failed to estimate gas: %w", contractstest.Revert("UniswapV2Router: EXPIRED")),
			want:       ErrReverted,
			wantReason: "UniswapV2Router: EXPIRED",
		},
		{
			name:    "node refuses",
			sendErr: fmt.Errorf("insufficient funds for gas * price + value"),
			want:    ErrReverted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newChain()
			chain.OnSend = func(contractstest.Call) (uint64, error) { return 0, tt.sendErr }
			exec := newExecutor()

			_, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
				Pair:   pair,
				Amount: "1",
				Quote:  readyQuote(pair, "1", ether(1)),
			})
			assert.ErrorIs(t, err, tt.want)
			if tt.wantReason != "" {
				var revert *RevertError
				require.ErrorAs(t, err, &revert)
				assert.Equal(t, tt.wantReason, revert.Reason)
			}
			assert.Equal(t, types.FlowFailed, exec.Flow().State())
		})
	}

	t.Run("rejection is not a revert", func(t *testing.T) {
		chain := newChain()
		chain.OnSend = func(contractstest.Call) (uint64, error) {
			return 0, &wallet.ProviderError{Code: wallet.CodeUserRejected}
		}
		_, err := newExecutor().ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
			Pair: pair, Amount: "1", Quote: readyQuote(pair, "1", ether(1)),
		})
		assert.NotErrorIs(t, err, ErrReverted)
	})
}

func TestSwapTimeout(t *testing.T) {
	chain := newChain()
	chain.HoldReceipts = true
	exec := newExecutor()

	pair := types.TokenPair{In: native, Out: tka}
	result, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "1",
		Quote:  readyQuote(pair, "1", ether(1)),
	})
	assert.ErrorIs(t, err, ErrTimeout)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, result.Hash, timeout.TxHash)
	assert.Equal(t, types.FlowFailed, exec.Flow().State())
}

func TestSwapCancelledWhileConfirming(t *testing.T) {
	chain := newChain()
	chain.HoldReceipts = true
	exec := newExecutor(func(c *Config) { c.ReceiptTimeout = time.Minute })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	pair := types.TokenPair{In: native, Out: tka}
	_, err := exec.ExecuteSwap(ctx, newSession(chain), SwapRequest{
		Pair: pair, Amount: "1", Quote: readyQuote(pair, "1", ether(1)),
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSwapWhileBusy(t *testing.T) {
	chain := newChain()
	exec := newExecutor()
	require.NoError(t, exec.Flow().Transition(types.FlowSubmitting))

	pair := types.TokenPair{In: native, Out: tka}
	_, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair: pair, Amount: "1", Quote: readyQuote(pair, "1", ether(1)),
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, chain.Sent())
}

func TestAddLiquidityCallSelection(t *testing.T) {
	tests := []struct {
		name       string
		a, b       types.Token
		method     string
		value      string
		approvals  int
		checkFirst common.Address
	}{
		{"native first", native, tka, "addLiquidityETH", "1000000000000000000", 1, tka.Address},
		{"native second", tka, native, "addLiquidityETH", "1000000000000000000", 1, tka.Address},
		{"two tokens", tka, tkb, "addLiquidity", "0", 2, tka.Address},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newChain()
			exec := newExecutor()
			states := recordStates(exec)

			amountA, amountB := "1", "100"
			if tt.a.Is(tka) {
				amountA, amountB = "100", "1"
			}

			result, err := exec.AddLiquidity(context.Background(), newSession(chain), LiquidityRequest{
				TokenA: tt.a, TokenB: tt.b, AmountA: amountA, AmountB: amountB,
			})
			require.NoError(t, err)

			sent := chain.Sent()
			require.Len(t, sent, tt.approvals+1)
			for _, approval := range sent[:tt.approvals] {
				assert.Equal(t, "approve", approval.Method)
			}
			assert.Equal(t, tt.checkFirst, sent[0].To)

			main := sent[len(sent)-1]
			assert.Equal(t, tt.method, main.Method)
			assert.Equal(t, tt.value, main.Value.String())
			assert.Equal(t, tt.approvals, len(result.Approvals))
			assert.Equal(t, types.KindLiquidity, result.Kind)
			assert.Equal(t, types.FlowSubmitting, (*states)[0], "liquidity starts straight from idle")
		})
	}
}

func TestAddLiquidityETHArguments(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, math.MaxBig256)

	_, err := newExecutor().AddLiquidity(context.Background(), newSession(chain), LiquidityRequest{
		TokenA: native, TokenB: tka, AmountA: "2", AmountB: "300",
	})
	require.NoError(t, err)

	sent := chain.Sent()
	require.Len(t, sent, 1, "allowance already covers the deposit")
	args := sent[0].Args
	assert.Equal(t, tka.Address, args[0])
	assert.Equal(t, ether(300).String(), args[1].(*big.Int).String())
	assert.Zero(t, args[2].(*big.Int).Sign(), "token minimum")
	assert.Zero(t, args[3].(*big.Int).Sign(), "native minimum")
	assert.Equal(t, user, args[4])
	assert.Equal(t, ether(2).String(), sent[0].Value.String())
}

func TestAddLiquidityMinimumsFromSlippage(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, math.MaxBig256)
	chain.SetAllowance(tkb.Address, user, routerAddr, math.MaxBig256)

	exec := newExecutor(func(c *Config) { c.LiquiditySlippageBps = 100 })
	_, err := exec.AddLiquidity(context.Background(), newSession(chain), LiquidityRequest{
		TokenA: tka, TokenB: tkb, AmountA: "100", AmountB: "200",
	})
	require.NoError(t, err)

	args := chain.Sent()[0].Args
	assert.Equal(t, ether(99).String(), args[4].(*big.Int).String())
	assert.Equal(t, ether(198).String(), args[5].(*big.Int).String())
}

func TestAddLiquidityRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  LiquidityRequest
	}{
		{"zero amount", LiquidityRequest{TokenA: tka, TokenB: tkb, AmountA: "0", AmountB: "1"}},
		{"blank amount", LiquidityRequest{TokenA: tka, TokenB: tkb, AmountA: "1", AmountB: ""}},
		{"malformed", LiquidityRequest{TokenA: tka, TokenB: tkb, AmountA: "1..2", AmountB: "1"}},
		{"same token", LiquidityRequest{TokenA: tka, TokenB: tka, AmountA: "1", AmountB: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newChain()
			_, err := newExecutor().AddLiquidity(context.Background(), newSession(chain), tt.req)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Empty(t, chain.Sent())
		})
	}
}

func TestAddLiquidityApprovalReverts(t *testing.T) {
	chain := newChain()
	chain.OnSend = func(call contractstest.Call) (uint64, error) {
		if call.Method == "approve" {
			return ethtypes.ReceiptStatusFailed, nil
		}
		return ethtypes.ReceiptStatusSuccessful, nil
	}
	exec := newExecutor()

	result, err := exec.AddLiquidity(context.Background(), newSession(chain), LiquidityRequest{
		TokenA: tka, TokenB: tkb, AmountA: "1", AmountB: "1",
	})
	assert.ErrorIs(t, err, ErrReverted)
	sent := chain.Sent()
	require.Len(t, sent, 1, "stops after the failed approval")
	assert.Equal(t, []common.Hash{sent[0].Hash}, result.Approvals)
	assert.Equal(t, common.Hash{}, result.Hash)
	assert.Equal(t, types.FlowFailed, exec.Flow().State())
}

func TestSwapKeepsRevertedApproval(t *testing.T) {
	chain := newChain()
	chain.SetAllowance(tka.Address, user, routerAddr, big.NewInt(1))
	chain.OnSend = func(call contractstest.Call) (uint64, error) {
		if call.Method == "approve" {
			return ethtypes.ReceiptStatusFailed, nil
		}
		return ethtypes.ReceiptStatusSuccessful, nil
	}
	exec := newExecutor()

	pair := types.TokenPair{In: tka, Out: tkb}
	result, err := exec.ExecuteSwap(context.Background(), newSession(chain), SwapRequest{
		Pair:   pair,
		Amount: "10",
		Quote:  readyQuote(pair, "10", ether(20)),
	})
	require.ErrorIs(t, err, ErrReverted)

	sent := chain.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, []common.Hash{sent[0].Hash}, result.Approvals)
	assert.Equal(t, types.FlowFailed, exec.Flow().State())
}

func TestExecutorQuoteDrivesFlow(t *testing.T) {
	exec := newExecutor()
	pair := types.TokenPair{In: tka, Out: tkb}

	q, err := exec.Quote(context.Background(), quoterFunc(func(types.TokenPair, string) types.Quote {
		return readyQuote(pair, "1", ether(2))
	}), pair, "1")
	require.NoError(t, err)
	assert.True(t, q.Executable())
	assert.Equal(t, types.FlowQuoteReady, exec.Flow().State())

	_, err = exec.Quote(context.Background(), quoterFunc(func(types.TokenPair, string) types.Quote {
		return types.Quote{Pair: pair, AmountIn: "1", State: types.QuoteUnavailable}
	}), pair, "1")
	require.NoError(t, err)
	assert.Equal(t, types.FlowQuoteUnavailable, exec.Flow().State())
}

type quoterFunc func(pair types.TokenPair, amount string) types.Quote

func (f quoterFunc) Quote(_ context.Context, pair types.TokenPair, amount string) types.Quote {
	return f(pair, amount)
}
