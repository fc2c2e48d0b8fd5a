// Package contractstest provides an in-memory chain that answers router, factory
// and ERC20 calls by ABI selector, for tests of packages that talk to contracts.
package contractstest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"x1swap/pkg/contracts"
	domain "x1swap/pkg/types"
)

// Call is a decoded contract invocation, either an eth_call or a sent transaction
type Call struct {
	From   common.Address
	To     common.Address
	Value  *big.Int
	Method string
	Args   []interface{}
	Hash   common.Hash
}

// Handler answers a call with output values matching the method's ABI outputs
type Handler func(call Call) ([]interface{}, error)

// SendHook decides the fate of a sent transaction: a non-nil error rejects the
// submission, otherwise the returned status is recorded on the receipt.
type SendHook func(call Call) (status uint64, err error)

// Chain is a fake backend. The zero value is not usable; use NewChain.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	block    uint64
	handlers map[string]Handler
	byAddr   map[common.Address]map[string]Handler

	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	balances   map[common.Address]*big.Int

	receipts map[common.Hash]*types.Receipt

	// HoldReceipts keeps sent transactions pending forever
	HoldReceipts bool
	// OnSend runs for every sent transaction before it is recorded
	OnSend SendHook

	reads []Call
	sent  []Call
}

var methodSources = []abi.ABI{contracts.ParsedRouter(), contracts.ParsedFactory(), contracts.ParsedERC20()}

// NewChain returns an empty chain with the given id
func NewChain(chainID int64) *Chain {
	return &Chain{
		chainID:    big.NewInt(chainID),
		block:      100,
		handlers:   make(map[string]Handler),
		byAddr:     make(map[common.Address]map[string]Handler),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		balances:   make(map[common.Address]*big.Int),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

// Handle registers a handler for method on any contract address
func (c *Chain) Handle(method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

// HandleAt registers a handler for method on one contract address
func (c *Chain) HandleAt(addr common.Address, method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byAddr[addr] == nil {
		c.byAddr[addr] = make(map[string]Handler)
	}
	c.byAddr[addr][method] = h
}

// AddToken makes addr answer symbol, decimals, balanceOf and allowance
func (c *Chain) AddToken(addr common.Address, symbol string, decimals uint8) {
	c.HandleAt(addr, "symbol", func(Call) ([]interface{}, error) { return []interface{}{symbol}, nil })
	c.HandleAt(addr, "decimals", func(Call) ([]interface{}, error) { return []interface{}{decimals}, nil })
	c.HandleAt(addr, "balanceOf", func(call Call) ([]interface{}, error) {
		return []interface{}{big.NewInt(0)}, nil
	})
	c.HandleAt(addr, "allowance", func(call Call) ([]interface{}, error) {
		owner := call.Args[0].(common.Address)
		spender := call.Args[1].(common.Address)
		return []interface{}{c.Allowance(addr, owner, spender)}, nil
	})
}

// SetAllowance seeds the allowance token[owner][spender]
func (c *Chain) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAllowanceLocked(token, owner, spender, amount)
}

// Allowance returns the current allowance token[owner][spender]
func (c *Chain) Allowance(token, owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.allowances[token][owner][spender]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// SetBalance seeds a native balance
func (c *Chain) SetBalance(account common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = new(big.Int).Set(wei)
}

// Reads returns every eth_call seen so far
func (c *Chain) Reads() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.reads...)
}

// Sent returns every transaction submitted so far
func (c *Chain) Sent() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.sent...)
}

// CodeAt reports non-empty code for every address
func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

// CallContract decodes msg against the known ABIs and dispatches to a handler
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("contractstest: call without target")
	}
	method, args, err := decode(msg.Data)
	if err != nil {
		return nil, err
	}

	call := Call{From: msg.From, To: *msg.To, Value: msg.Value, Method: method.Name, Args: args}

	c.mu.Lock()
	c.reads = append(c.reads, call)
	h := c.handlerLocked(call.To, method.Name)
	c.mu.Unlock()

	if h == nil {
		return nil, Revert("")
	}
	out, err := h(call)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

// ChainID returns the configured chain id
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// BalanceAt returns a seeded native balance
func (c *Chain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.balances[account]; v != nil {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// TransactionReceipt returns the receipt of a mined transaction or ethereum.NotFound
func (c *Chain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.HoldReceipts {
		return nil, ethereum.NotFound
	}
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// Send records a transaction from sender and mines it immediately
func (c *Chain) Send(ctx context.Context, from common.Address, req domain.TxRequest) (common.Hash, error) {
	method, args, err := decode(req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", len(c.sent))))
	call := Call{From: from, To: req.To, Value: req.Value, Method: method.Name, Args: args, Hash: hash}
	hook := c.OnSend
	c.mu.Unlock()

	status := types.ReceiptStatusSuccessful
	if hook != nil {
		s, err := hook(call)
		if err != nil {
			return common.Hash{}, err
		}
		status = s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, call)
	c.block++
	c.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		GasUsed:     21000,
	}
	if status == types.ReceiptStatusSuccessful && method.Name == "approve" {
		c.setAllowanceLocked(req.To, from, args[0].(common.Address), args[1].(*big.Int))
	}
	return hash, nil
}

func (c *Chain) handlerLocked(addr common.Address, method string) Handler {
	if h := c.byAddr[addr][method]; h != nil {
		return h
	}
	return c.handlers[method]
}

func (c *Chain) setAllowanceLocked(token, owner, spender common.Address, amount *big.Int) {
	if c.allowances[token] == nil {
		c.allowances[token] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if c.allowances[token][owner] == nil {
		c.allowances[token][owner] = make(map[common.Address]*big.Int)
	}
	c.allowances[token][owner][spender] = new(big.Int).Set(amount)
}

func decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("contractstest: calldata too short (%d bytes)", len(data))
	}
	for _, a := range methodSources {
		m, err := a.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, nil, fmt.Errorf("contractstest: unpack %s: %w", m.Name, err)
		}
		return m, args, nil
	}
	return nil, nil, fmt.Errorf("contractstest: unknown selector %s", hexutil.Encode(data[:4]))
}
