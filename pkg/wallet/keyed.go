package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"x1swap/pkg/logging"
	"x1swap/pkg/types"
)

// TxClient is what the keyed provider needs from a node to submit transactions
type TxClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// TxDialFunc opens a TxClient for one RPC endpoint
type TxDialFunc func(ctx context.Context, rawurl string) (TxClient, error)

// KeyedProvider is a wallet backed by a private key held in process. It keeps
// its own list of known networks so that switching to an unregistered chain
// fails with CodeUnknownChain until wallet_addEthereumChain is called.
type KeyedProvider struct {
	mu sync.Mutex

	key     *ecdsa.PrivateKey
	address common.Address

	known  map[int64]types.AddChainParams
	active int64
	client TxClient

	dial     TxDialFunc
	gasPrice *big.Int
	gasLimit uint64
	logger   zerolog.Logger
}

// KeyedOption customises a KeyedProvider
type KeyedOption func(*KeyedProvider)

// WithGasPrice pins the gas price instead of asking the node
func WithGasPrice(wei *big.Int) KeyedOption {
	return func(p *KeyedProvider) {
		if wei != nil && wei.Sign() > 0 {
			p.gasPrice = new(big.Int).Set(wei)
		}
	}
}

// WithGasLimit pins the gas limit instead of estimating it
func WithGasLimit(limit uint64) KeyedOption {
	return func(p *KeyedProvider) { p.gasLimit = limit }
}

// WithTxDialer replaces the ethclient dialer
func WithTxDialer(dial TxDialFunc) KeyedOption {
	return func(p *KeyedProvider) { p.dial = dial }
}

// WithKnownNetwork registers a network up front, as if the user had added it before
func WithKnownNetwork(n types.Network) KeyedOption {
	return func(p *KeyedProvider) {
		p.known[n.ChainID] = n.AddChainParams()
	}
}

// NewKeyedProvider parses a hex private key (with or without 0x)
func NewKeyedProvider(privateKey string, opts ...KeyedOption) (*KeyedProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	p := &KeyedProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		known:   make(map[int64]types.AddChainParams),
		dial: func(ctx context.Context, rawurl string) (TxClient, error) {
			client, err := ethclient.DialContext(ctx, rawurl)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		logger: logging.For("keyed-wallet"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Address returns the account controlled by the key
func (p *KeyedProvider) Address() common.Address {
	return p.address
}

// Request implements Provider
func (p *KeyedProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return json.Marshal([]common.Address{p.address})

	case "eth_chainId":
		p.mu.Lock()
		active := p.active
		p.mu.Unlock()
		if active == 0 {
			return nil, &ProviderError{Code: CodeChainNotLinked, Message: "no active chain"}
		}
		return json.Marshal(hexutil.EncodeBig(big.NewInt(active)))

	case "wallet_addEthereumChain":
		var desc types.AddChainParams
		if err := decodeParam(params, &desc); err != nil {
			return nil, err
		}
		id, err := hexutil.DecodeBig(desc.ChainID)
		if err != nil {
			return nil, &ProviderError{Code: -32602, Message: "invalid chainId: " + desc.ChainID}
		}
		if len(desc.RPCURLs) == 0 {
			return nil, &ProviderError{Code: -32602, Message: "rpcUrls is required"}
		}
		p.mu.Lock()
		p.known[id.Int64()] = desc
		p.mu.Unlock()
		p.logger.Info().Str("chain", desc.ChainID).Str("name", desc.ChainName).Msg("network added")
		return json.RawMessage("null"), nil

	case "wallet_switchEthereumChain":
		var sw switchChainParams
		if err := decodeParam(params, &sw); err != nil {
			return nil, err
		}
		id, err := hexutil.DecodeBig(sw.ChainID)
		if err != nil {
			return nil, &ProviderError{Code: -32602, Message: "invalid chainId: " + sw.ChainID}
		}
		if err := p.switchTo(ctx, id.Int64()); err != nil {
			return nil, err
		}
		return json.RawMessage("null"), nil

	case "eth_sendTransaction":
		var tx sendTxParams
		if err := decodeParam(params, &tx); err != nil {
			return nil, err
		}
		hash, err := p.send(ctx, tx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)
	}

	return nil, &ProviderError{Code: CodeUnsupported, Message: "unsupported method " + method}
}

func (p *KeyedProvider) switchTo(ctx context.Context, chainID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	desc, ok := p.known[chainID]
	if !ok {
		return &ProviderError{Code: CodeUnknownChain, Message: fmt.Sprintf("unrecognized chain id 0x%x", chainID)}
	}
	if p.active == chainID && p.client != nil {
		return nil
	}

	var lastErr error
	for _, url := range desc.RPCURLs {
		client, err := p.dial(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		p.closeLocked()
		p.client = client
		p.active = chainID
		return nil
	}
	return &ProviderError{Code: CodeDisconnected, Message: fmt.Sprintf("cannot reach chain 0x%x: %v", chainID, lastErr)}
}

func (p *KeyedProvider) send(ctx context.Context, req sendTxParams) (common.Hash, error) {
	p.mu.Lock()
	client, active := p.client, p.active
	p.mu.Unlock()

	if client == nil {
		return common.Hash{}, &ProviderError{Code: CodeDisconnected, Message: "not connected"}
	}
	if req.From != p.address {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: "unknown account " + req.From.Hex()}
	}
	if req.ChainID != nil && req.ChainID.ToInt().Int64() != active {
		return common.Hash{}, &ProviderError{Code: CodeChainNotLinked, Message: "transaction chain differs from active chain"}
	}

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}

	nonce, err := client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := p.gasPrice
	if gasPrice == nil {
		gasPrice, err = client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := p.gasLimit
	if gasLimit == 0 {
		to := req.To
		estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{
			From:  p.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100 // 20% headroom
	}

	tx := ethtypes.NewTransaction(nonce, req.To, value, gasLimit, gasPrice, req.Data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(active)), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.logger.Debug().
		Str("hash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gasLimit).
		Msg("transaction sent")
	return signed.Hash(), nil
}

// Disconnect drops the node connection; the key and known networks are kept
func (p *KeyedProvider) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	p.client = nil
	p.active = 0
	return nil
}

func (p *KeyedProvider) closeLocked() {
	if c, ok := p.client.(interface{ Close() }); ok {
		c.Close()
	}
}

// decodeParam round-trips the first positional parameter through JSON so
// in-process callers and remote callers are treated the same way
func decodeParam(params []interface{}, out interface{}) error {
	if len(params) == 0 {
		return &ProviderError{Code: -32602, Message: "missing params"}
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return &ProviderError{Code: -32602, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Code: -32602, Message: err.Error()}
	}
	return nil
}
