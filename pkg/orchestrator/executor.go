// Package orchestrator turns a confirmed quote or liquidity request into
// router transactions: approvals, submission and confirmation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"x1swap/pkg/contracts"
	"x1swap/pkg/logging"
	"x1swap/pkg/quote"
	"x1swap/pkg/types"
	"x1swap/pkg/units"
	"x1swap/pkg/wallet"
)

const (
	DefaultSlippageBps    = 500
	DefaultDeadline       = 20 * time.Minute
	DefaultReceiptTimeout = 3 * time.Minute
	DefaultPollInterval   = 2 * time.Second
)

// Config fixes the router and the safety parameters of every transaction
type Config struct {
	Router               common.Address
	WrappedNative        common.Address
	SlippageBps          uint
	LiquiditySlippageBps uint
	Deadline             time.Duration
	ReceiptTimeout       time.Duration
	PollInterval         time.Duration

	// Now is the clock deadlines are computed from; nil means time.Now
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = DefaultReceiptTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// SwapRequest is what the user confirmed: the input as typed and the quote shown for it
type SwapRequest struct {
	Pair      types.TokenPair
	Amount    string
	Quote     types.Quote
	Recipient common.Address
}

// LiquidityRequest deposits both sides of a pool
type LiquidityRequest struct {
	TokenA    types.Token
	TokenB    types.Token
	AmountA   string
	AmountB   string
	Recipient common.Address
}

// Executor drives a Flow through one transaction at a time
type Executor struct {
	cfg      Config
	flow     *Flow
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		flow:     NewFlow(),
		validate: validator.New(),
		logger:   logging.For("orchestrator"),
	}
}

// Flow exposes the state machine so callers can observe transitions
func (e *Executor) Flow() *Flow {
	return e.flow
}

// Quote fetches a quote and records its outcome on the flow
func (e *Executor) Quote(ctx context.Context, quoter quote.Quoter, pair types.TokenPair, amount string) (types.Quote, error) {
	if e.flow.Busy() {
		return types.Quote{}, ErrBusy
	}
	if err := e.flow.Transition(types.FlowQuotePending); err != nil {
		return types.Quote{}, err
	}
	q := quoter.Quote(ctx, pair, amount)
	if err := e.flow.Transition(types.FlowStateForQuote(q)); err != nil {
		return q, err
	}
	return q, nil
}

// ExecuteSwap submits the swap described by req. The quote must be ready and
// must have been computed for exactly req.Pair and req.Amount; otherwise no
// contract is touched. There is no automatic retry.
func (e *Executor) ExecuteSwap(ctx context.Context, sess *wallet.Session, req SwapRequest) (types.TxResult, error) {
	if !sess.Valid() {
		return types.TxResult{}, ErrNotConnected
	}
	if err := req.Pair.Validate(); err != nil {
		return types.TxResult{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !req.Quote.Executable() {
		return types.TxResult{}, ErrQuoteUnavailable
	}
	if !req.Quote.Matches(req.Pair, req.Amount) {
		return types.TxResult{}, ErrStaleQuote
	}
	amountIn, err := units.Parse(req.Amount, req.Pair.In.Decimals)
	if err != nil {
		return types.TxResult{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amountIn.Sign() == 0 {
		return types.TxResult{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = sess.Address
	}
	action := types.SwapAction{
		ID:           uuid.NewString(),
		TokenIn:      req.Pair.In,
		TokenOut:     req.Pair.Out,
		AmountIn:     amountIn,
		MinAmountOut: units.ApplySlippage(req.Quote.AmountOut, e.cfg.SlippageBps),
		Deadline:     e.deadline(),
		Recipient:    recipient,
	}
	if err := e.validate.Struct(action); err != nil {
		return types.TxResult{}, fmt.Errorf("invalid swap: %w", err)
	}

	if err := e.enterSubmitting(&req.Quote); err != nil {
		return types.TxResult{}, err
	}

	logger := e.logger.With().Str("action", action.ID).Str("kind", types.KindSwap).Logger()
	logger.Info().
		Str("pair", req.Pair.String()).
		Str("amount_in", action.AmountIn.String()).
		Str("min_out", action.MinAmountOut.String()).
		Msg("executing swap")

	result, err := e.swap(ctx, sess, action, logger)
	return e.settle(result, err, logger)
}

func (e *Executor) swap(ctx context.Context, sess *wallet.Session, a types.SwapAction, logger zerolog.Logger) (types.TxResult, error) {
	result := types.TxResult{ActionID: a.ID, Kind: types.KindSwap}
	path := quote.Path(types.TokenPair{In: a.TokenIn, Out: a.TokenOut}, e.cfg.WrappedNative)

	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch {
	case e.isNative(a.TokenIn):
		data, err = contracts.PackSwapExactETHForTokens(a.MinAmountOut, path, a.Recipient, a.Deadline)
		value = a.AmountIn
	case e.isNative(a.TokenOut):
		data, err = contracts.PackSwapExactTokensForETH(a.AmountIn, a.MinAmountOut, path, a.Recipient, a.Deadline)
	default:
		data, err = contracts.PackSwapExactTokensForTokens(a.AmountIn, a.MinAmountOut, path, a.Recipient, a.Deadline)
	}
	if err != nil {
		return result, fmt.Errorf("encode swap: %w", err)
	}

	if !e.isNative(a.TokenIn) {
		approval, err := e.ensureAllowance(ctx, sess, a.TokenIn, a.AmountIn, logger)
		if approval != (common.Hash{}) {
			result.Approvals = append(result.Approvals, approval)
		}
		if err != nil {
			return result, err
		}
	}

	return e.submit(ctx, sess, result, types.TxRequest{To: e.cfg.Router, Value: value, Data: data}, logger)
}

// AddLiquidity deposits both amounts. Each non-native side is approved first
// when the router allowance is short; the native side travels as value.
func (e *Executor) AddLiquidity(ctx context.Context, sess *wallet.Session, req LiquidityRequest) (types.TxResult, error) {
	if !sess.Valid() {
		return types.TxResult{}, ErrNotConnected
	}
	if err := (types.TokenPair{In: req.TokenA, Out: req.TokenB}).Validate(); err != nil {
		return types.TxResult{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	amountA, err := parsePositive(req.AmountA, req.TokenA)
	if err != nil {
		return types.TxResult{}, err
	}
	amountB, err := parsePositive(req.AmountB, req.TokenB)
	if err != nil {
		return types.TxResult{}, err
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = sess.Address
	}
	action := types.AddLiquidityAction{
		ID:         uuid.NewString(),
		TokenA:     req.TokenA,
		TokenB:     req.TokenB,
		AmountA:    amountA,
		AmountB:    amountB,
		AmountAMin: e.liquidityMin(amountA),
		AmountBMin: e.liquidityMin(amountB),
		Deadline:   e.deadline(),
		Recipient:  recipient,
	}
	if err := e.validate.Struct(action); err != nil {
		return types.TxResult{}, fmt.Errorf("invalid liquidity request: %w", err)
	}

	if err := e.enterSubmitting(nil); err != nil {
		return types.TxResult{}, err
	}

	logger := e.logger.With().Str("action", action.ID).Str("kind", types.KindLiquidity).Logger()
	logger.Info().
		Str("token_a", req.TokenA.Label()).
		Str("token_b", req.TokenB.Label()).
		Str("amount_a", amountA.String()).
		Str("amount_b", amountB.String()).
		Msg("adding liquidity")

	result, err := e.addLiquidity(ctx, sess, action, logger)
	return e.settle(result, err, logger)
}

func (e *Executor) addLiquidity(ctx context.Context, sess *wallet.Session, a types.AddLiquidityAction, logger zerolog.Logger) (types.TxResult, error) {
	result := types.TxResult{ActionID: a.ID, Kind: types.KindLiquidity}

	for _, side := range []struct {
		token  types.Token
		amount *big.Int
	}{{a.TokenA, a.AmountA}, {a.TokenB, a.AmountB}} {
		if e.isNative(side.token) {
			continue
		}
		approval, err := e.ensureAllowance(ctx, sess, side.token, side.amount, logger)
		if approval != (common.Hash{}) {
			result.Approvals = append(result.Approvals, approval)
		}
		if err != nil {
			return result, err
		}
	}

	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch {
	case e.isNative(a.TokenA):
		data, err = contracts.PackAddLiquidityETH(a.TokenB.Address, a.AmountB, a.AmountBMin, a.AmountAMin, a.Recipient, a.Deadline)
		value = a.AmountA
	case e.isNative(a.TokenB):
		data, err = contracts.PackAddLiquidityETH(a.TokenA.Address, a.AmountA, a.AmountAMin, a.AmountBMin, a.Recipient, a.Deadline)
		value = a.AmountB
	default:
		data, err = contracts.PackAddLiquidity(a.TokenA.Address, a.TokenB.Address, a.AmountA, a.AmountB, a.AmountAMin, a.AmountBMin, a.Recipient, a.Deadline)
	}
	if err != nil {
		return result, fmt.Errorf("encode liquidity: %w", err)
	}

	return e.submit(ctx, sess, result, types.TxRequest{To: e.cfg.Router, Value: value, Data: data}, logger)
}

// ensureAllowance reads the router allowance fresh and, when it is below
// amount, approves the maximum and waits for the approval to be mined.
// It returns the approval hash, or the zero hash when none was needed.
func (e *Executor) ensureAllowance(ctx context.Context, sess *wallet.Session, token types.Token, amount *big.Int, logger zerolog.Logger) (common.Hash, error) {
	erc20 := contracts.NewERC20(token.Address, sess.Backend)
	allowance, err := erc20.Allowance(ctx, sess.Address, e.cfg.Router)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read %s allowance: %w", token.Label(), err)
	}
	if allowance.Cmp(amount) >= 0 {
		return common.Hash{}, nil
	}

	data, err := contracts.PackApprove(e.cfg.Router, math.MaxBig256)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode approve: %w", err)
	}
	if err := e.flow.Transition(types.FlowApproving); err != nil {
		return common.Hash{}, err
	}

	req := types.TxRequest{To: token.Address, Data: data}
	hash, err := e.send(ctx, sess, req)
	if err != nil {
		return common.Hash{}, err
	}
	logger.Info().Str("token", token.Label()).Str("hash", hash.Hex()).Msg("approval sent")

	if _, err := e.confirm(ctx, sess, req, hash); err != nil {
		return hash, err
	}
	return hash, e.flow.Transition(types.FlowSubmitting)
}

func (e *Executor) submit(ctx context.Context, sess *wallet.Session, result types.TxResult, req types.TxRequest, logger zerolog.Logger) (types.TxResult, error) {
	hash, err := e.send(ctx, sess, req)
	if err != nil {
		return result, err
	}
	result.Hash = hash
	logger.Info().Str("hash", hash.Hex()).Msg("transaction sent")

	if err := e.flow.Transition(types.FlowConfirming); err != nil {
		return result, err
	}

	receipt, err := e.confirm(ctx, sess, req, hash)
	if receipt != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
		result.GasUsed = receipt.GasUsed
	}
	return result, err
}

func (e *Executor) send(ctx context.Context, sess *wallet.Session, req types.TxRequest) (common.Hash, error) {
	hash, err := sess.Signer.SendTransaction(ctx, req)
	if err == nil {
		return hash, nil
	}
	if errors.Is(err, wallet.ErrUserRejected) || errors.Is(err, context.Canceled) {
		return common.Hash{}, err
	}
	reason, _ := contracts.RevertReason(err)
	return common.Hash{}, &RevertError{Reason: reason, Err: err}
}

// confirm waits for the receipt and turns status 0 into a RevertError,
// replaying the call at the inclusion block to recover the reason
func (e *Executor) confirm(ctx context.Context, sess *wallet.Session, req types.TxRequest, hash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := e.waitReceipt(ctx, sess.Backend, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return receipt, nil
	}

	to := req.To
	_, callErr := sess.Backend.CallContract(ctx, ethereum.CallMsg{
		From:  sess.Address,
		To:    &to,
		Value: req.Value,
		Data:  req.Data,
	}, receipt.BlockNumber)
	reason, _ := contracts.RevertReason(callErr)
	return receipt, &RevertError{TxHash: hash, Reason: reason}
}

func (e *Executor) waitReceipt(ctx context.Context, backend wallet.Backend, hash common.Hash) (*ethtypes.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			e.logger.Debug().Err(err).Str("hash", hash.Hex()).Msg("receipt lookup failed, retrying")
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{TxHash: hash}
		case <-ticker.C:
		}
	}
}

// settle moves the flow to its terminal state
func (e *Executor) settle(result types.TxResult, err error, logger zerolog.Logger) (types.TxResult, error) {
	if err != nil {
		logger.Error().Err(err).Str("hash", result.Hash.Hex()).Msg("transaction failed")
		if terr := e.flow.Transition(types.FlowFailed); terr != nil {
			logger.Warn().Err(terr).Msg("flow not settled")
		}
		return result, err
	}
	logger.Info().Str("hash", result.Hash.Hex()).Uint64("block", result.BlockNumber).Msg("transaction confirmed")
	return result, e.flow.Transition(types.FlowSucceeded)
}

// enterSubmitting walks the flow into Submitting. A swap first records its
// quote when the flow has not seen it; a liquidity add starts from Idle.
func (e *Executor) enterSubmitting(q *types.Quote) error {
	if e.flow.Busy() {
		return ErrBusy
	}

	state := e.flow.State()
	if q != nil && state != types.FlowQuoteReady {
		if err := e.flow.Transition(types.FlowQuotePending); err != nil {
			return err
		}
		if err := e.flow.Transition(types.FlowStateForQuote(*q)); err != nil {
			return err
		}
	}
	if q == nil && state != types.FlowIdle {
		if err := e.flow.Transition(types.FlowIdle); err != nil {
			return err
		}
	}
	return e.flow.Transition(types.FlowSubmitting)
}

func (e *Executor) deadline() *big.Int {
	return big.NewInt(e.cfg.Now().Add(e.cfg.Deadline).Unix())
}

func (e *Executor) liquidityMin(amount *big.Int) *big.Int {
	if e.cfg.LiquiditySlippageBps == 0 {
		return new(big.Int)
	}
	return units.ApplySlippage(amount, e.cfg.LiquiditySlippageBps)
}

func (e *Executor) isNative(t types.Token) bool {
	return quote.IsNative(t, e.cfg.WrappedNative)
}

func parsePositive(text string, token types.Token) (*big.Int, error) {
	v, err := units.Parse(text, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAmount, token.Label(), err)
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s amount must be greater than zero", ErrInvalidAmount, token.Label())
	}
	return v, nil
}
