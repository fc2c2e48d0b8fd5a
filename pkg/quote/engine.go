// Package quote computes indicative router outputs and keeps the latest one
// current while the user edits the input.
package quote

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"x1swap/pkg/contracts"
	"x1swap/pkg/logging"
	"x1swap/pkg/types"
	"x1swap/pkg/units"
)

// AmountsOutGetter is the single router read a quote needs. *contracts.Router satisfies it.
type AmountsOutGetter interface {
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

var _ AmountsOutGetter = (*contracts.Router)(nil)

// Path returns the swap route for pair. Routes are always one hop; the native
// side is swapped through the wrapped-native contract.
func Path(pair types.TokenPair, wrappedNative common.Address) []common.Address {
	switch {
	case IsNative(pair.In, wrappedNative):
		return []common.Address{wrappedNative, pair.Out.Address}
	case IsNative(pair.Out, wrappedNative):
		return []common.Address{pair.In.Address, wrappedNative}
	default:
		return []common.Address{pair.In.Address, pair.Out.Address}
	}
}

// IsNative reports whether t stands for the chain's native currency
func IsNative(t types.Token, wrappedNative common.Address) bool {
	return t.Address == wrappedNative
}

// Engine answers one quote request at a time; it holds no per-request state
type Engine struct {
	router        AmountsOutGetter
	wrappedNative common.Address
	logger        zerolog.Logger
}

func NewEngine(router AmountsOutGetter, wrappedNative common.Address) *Engine {
	return &Engine{
		router:        router,
		wrappedNative: wrappedNative,
		logger:        logging.For("quote"),
	}
}

// Quote asks the router what amountText of pair.In buys. It never returns an
// error: failures are reported through the quote's State and Err.
func (e *Engine) Quote(ctx context.Context, pair types.TokenPair, amountText string) types.Quote {
	q := types.Quote{Pair: pair, AmountIn: amountText, State: types.QuoteEmpty}

	if units.IsZero(amountText) {
		return q
	}
	if err := pair.Validate(); err != nil {
		q.State, q.Err = types.QuoteInvalid, err
		return q
	}

	amountWei, err := units.Parse(amountText, pair.In.Decimals)
	if err != nil {
		q.State, q.Err = types.QuoteInvalid, err
		return q
	}
	q.AmountWei = amountWei
	q.Path = Path(pair, e.wrappedNative)

	amounts, err := e.router.GetAmountsOut(ctx, amountWei, q.Path)
	if err != nil {
		reason, _ := contracts.RevertReason(err)
		e.logger.Debug().
			Err(err).
			Str("pair", pair.String()).
			Str("amount", amountText).
			Str("reason", reason).
			Msg("quote unavailable")
		q.State, q.Err = types.QuoteUnavailable, err
		return q
	}

	var out *big.Int
	if len(amounts) > 0 {
		out = amounts[len(amounts)-1]
	}
	if out == nil || out.Sign() <= 0 {
		q.State = types.QuoteUnavailable
		return q
	}

	q.AmountOut = out
	q.OutText = units.Format(out, pair.Out.Decimals)
	q.State = types.QuoteReady
	return q
}
