package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"x1swap/pkg/types"
)

// Backend is the read side of a chain connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Signer submits transactions on behalf of one account on one chain
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, req types.TxRequest) (common.Hash, error)
}

// Session is the result of a successful Connect
type Session struct {
	Address common.Address
	ChainID *big.Int
	Network types.Network
	Signer  Signer
	Backend Backend

	provider Provider
}

// Valid reports whether the session can still be used to sign for its network
func (s *Session) Valid() bool {
	if s == nil || s.Signer == nil || s.Backend == nil || s.ChainID == nil {
		return false
	}
	if s.Address == (common.Address{}) || s.Signer.Address() != s.Address {
		return false
	}
	return s.ChainID.Int64() == s.Network.ChainID
}

// Close releases the backend connection and disconnects the provider when it holds one
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if c, ok := s.Backend.(interface{ Close() }); ok {
		c.Close()
	}
	if d, ok := s.provider.(Disconnecter); ok {
		return d.Disconnect()
	}
	return nil
}

// providerSigner forwards transactions to the wallet with eth_sendTransaction
type providerSigner struct {
	provider Provider
	from     common.Address
	chainID  *big.Int
}

type sendTxParams struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Value   *hexutil.Big   `json:"value,omitempty"`
	Data    hexutil.Bytes  `json:"data,omitempty"`
	ChainID *hexutil.Big   `json:"chainId,omitempty"`
}

func (s *providerSigner) Address() common.Address {
	return s.from
}

func (s *providerSigner) SendTransaction(ctx context.Context, req types.TxRequest) (common.Hash, error) {
	params := sendTxParams{
		From:    s.from,
		To:      req.To,
		Data:    req.Data,
		ChainID: (*hexutil.Big)(s.chainID),
	}
	if req.Value != nil && req.Value.Sign() > 0 {
		params.Value = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := call(ctx, s.provider, &hash, "eth_sendTransaction", params); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return hash, nil
}
