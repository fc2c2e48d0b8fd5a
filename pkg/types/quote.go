package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteState describes whether a quote can back an execution
type QuoteState string

const (
	QuoteEmpty       QuoteState = "empty"       // No amount entered
	QuoteReady       QuoteState = "ready"       // Router returned an output amount
	QuoteUnavailable QuoteState = "unavailable" // Router reverted, usually no liquidity
	QuoteInvalid     QuoteState = "invalid"     // Input rejected before any call
)

// NoLiquidityText is the marker shown in place of an output amount
const NoLiquidityText = "No liquidity"

// Quote is an indicative router output for a given input. It is derived, never persisted.
type Quote struct {
	Seq       uint64           `json:"seq"`
	Pair      TokenPair        `json:"-"`
	AmountIn  string           `json:"amount_in"`
	AmountWei *big.Int         `json:"amount_in_wei,omitempty"`
	AmountOut *big.Int         `json:"amount_out_wei,omitempty"`
	OutText   string           `json:"amount_out"`
	Path      []common.Address `json:"path,omitempty"`
	State     QuoteState       `json:"state"`
	Err       error            `json:"-"`
}

// Executable reports whether an execution may be based on this quote
func (q Quote) Executable() bool {
	return q.State == QuoteReady && q.AmountOut != nil && q.AmountOut.Sign() > 0
}

// Matches reports whether the quote was computed for exactly these inputs
func (q Quote) Matches(pair TokenPair, amountIn string) bool {
	return q.Pair.In.Is(pair.In) &&
		q.Pair.Out.Is(pair.Out) &&
		strings.TrimSpace(q.AmountIn) == strings.TrimSpace(amountIn)
}

// Display returns the text shown in the output field
func (q Quote) Display() string {
	switch q.State {
	case QuoteReady:
		return q.OutText
	case QuoteUnavailable:
		return NoLiquidityText
	default:
		return ""
	}
}
