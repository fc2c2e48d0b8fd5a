package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrSameToken is returned when both sides of a pair resolve to the same contract
var ErrSameToken = errors.New("input and output token must differ")

// Token is a swappable asset. Identity is the contract address; common.Address
// comparison is byte-wise, so two tokens written with different hex casing are equal.
type Token struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// Is reports whether t and other refer to the same contract
func (t Token) Is(other Token) bool {
	return t.Address == other.Address
}

// Label returns the best human-readable name for the token
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Address.Hex()
}

// Matches reports whether query names this token by symbol, name or address
func (t Token) Matches(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if common.IsHexAddress(query) {
		return common.HexToAddress(query) == t.Address
	}
	return strings.EqualFold(t.Symbol, query) || strings.EqualFold(t.Name, query)
}

// TokenPair is an ordered (in, out) pair of distinct tokens
type TokenPair struct {
	In  Token
	Out Token
}

// NewTokenPair builds a pair and enforces In != Out
func NewTokenPair(in, out Token) (TokenPair, error) {
	p := TokenPair{In: in, Out: out}
	if err := p.Validate(); err != nil {
		return TokenPair{}, err
	}
	return p, nil
}

// Validate checks the pair invariant
func (p TokenPair) Validate() error {
	if p.In.Is(p.Out) {
		return fmt.Errorf("%w: %s", ErrSameToken, p.In.Label())
	}
	return nil
}

func (p TokenPair) String() string {
	return p.In.Label() + "/" + p.Out.Label()
}

// SwapAction is a confirmed swap waiting to be submitted
type SwapAction struct {
	ID           string         `validate:"required,uuid4"`
	TokenIn      Token          `validate:"required"`
	TokenOut     Token          `validate:"required"`
	AmountIn     *big.Int       `validate:"required"`
	MinAmountOut *big.Int       `validate:"required"`
	Deadline     *big.Int       `validate:"required"`
	Recipient    common.Address `validate:"required"`
}

// AddLiquidityAction is a confirmed liquidity deposit waiting to be submitted
type AddLiquidityAction struct {
	ID         string         `validate:"required,uuid4"`
	TokenA     Token          `validate:"required"`
	TokenB     Token          `validate:"required"`
	AmountA    *big.Int       `validate:"required"`
	AmountB    *big.Int       `validate:"required"`
	AmountAMin *big.Int       `validate:"required"`
	AmountBMin *big.Int       `validate:"required"`
	Deadline   *big.Int       `validate:"required"`
	Recipient  common.Address `validate:"required"`
}

// TxResult describes a transaction that was included on chain
type TxResult struct {
	ActionID    string        `json:"action_id"`
	Kind        string        `json:"kind"`
	Hash        common.Hash   `json:"hash"`
	BlockNumber uint64        `json:"block_number"`
	GasUsed     uint64        `json:"gas_used"`
	Approvals   []common.Hash `json:"approvals,omitempty"`
}

// Transaction kinds reported in TxResult
const (
	KindSwap      = "swap"
	KindLiquidity = "liquidity"
	KindApproval  = "approval"
)

// TxRequest is an unsigned contract call handed to a wallet for signing and submission
type TxRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}
