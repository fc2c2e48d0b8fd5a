package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"x1swap/pkg/logging"
	"x1swap/pkg/types"
)

// DialFunc opens a read connection to one RPC endpoint
type DialFunc func(ctx context.Context, rawurl string) (Backend, error)

// DialEthclient is the default DialFunc
func DialEthclient(ctx context.Context, rawurl string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Connector pins a provider to one network and produces Sessions
type Connector struct {
	provider Provider
	network  types.Network
	dial     DialFunc
	logger   zerolog.Logger
}

// NewConnector returns a connector for network. A nil dial uses DialEthclient.
func NewConnector(provider Provider, network types.Network, dial DialFunc) *Connector {
	if dial == nil {
		dial = DialEthclient
	}
	return &Connector{
		provider: provider,
		network:  network,
		dial:     dial,
		logger:   logging.For("wallet"),
	}
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

// Connect switches the wallet to the configured network (registering it first
// when the wallet does not know it), requests an account and verifies the chain.
// There is no implicit reconnection; call Connect again after a failure.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	if c.provider == nil {
		return nil, ErrWalletUnavailable
	}

	if err := c.switchNetwork(ctx); err != nil {
		return nil, err
	}

	var accounts []common.Address
	if err := call(ctx, c.provider, &accounts, "eth_requestAccounts"); err != nil {
		return nil, classify("request accounts", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUserRejected, ErrNoAccount)
	}
	account := accounts[0]

	var reported hexutil.Big
	if err := call(ctx, c.provider, &reported, "eth_chainId"); err != nil {
		return nil, classify("read chain id", err)
	}
	chainID := (*big.Int)(&reported)
	if chainID.Cmp(c.network.ChainIDBig()) != 0 {
		return nil, fmt.Errorf("%w: wallet is on chain %s, expected %d", ErrNetworkMismatch, chainID, c.network.ChainID)
	}

	backend, err := c.dialBackend(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("account", account.Hex()).
		Str("chain", c.network.ChainIDHex()).
		Msg("wallet connected")

	return &Session{
		Address:  account,
		ChainID:  chainID,
		Network:  c.network,
		Signer:   &providerSigner{provider: c.provider, from: account, chainID: chainID},
		Backend:  backend,
		provider: c.provider,
	}, nil
}

func (c *Connector) switchNetwork(ctx context.Context) error {
	params := switchChainParams{ChainID: c.network.ChainIDHex()}

	err := call(ctx, c.provider, nil, "wallet_switchEthereumChain", params)
	if err == nil {
		return nil
	}
	if ErrorCode(err) != CodeUnknownChain {
		return classify("switch network", err)
	}

	c.logger.Info().Str("chain", params.ChainID).Str("name", c.network.Name).Msg("registering network with wallet")
	if err := call(ctx, c.provider, nil, "wallet_addEthereumChain", c.network.AddChainParams()); err != nil {
		return classify("add network", err)
	}

	// one retry only
	if err := call(ctx, c.provider, nil, "wallet_switchEthereumChain", params); err != nil {
		return classify("switch network", err)
	}
	return nil
}

func (c *Connector) dialBackend(ctx context.Context) (Backend, error) {
	if len(c.network.RPCURLs) == 0 {
		return nil, errors.New("connect rpc: no rpc url configured")
	}
	var errs []error
	for _, url := range c.network.RPCURLs {
		backend, err := c.dial(ctx, url)
		if err != nil {
			c.logger.Warn().Err(err).Str("rpc", url).Msg("rpc endpoint unreachable")
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		id, err := backend.ChainID(ctx)
		if err != nil {
			closeBackend(backend)
			errs = append(errs, fmt.Errorf("%s: read chain id: %w", url, err))
			continue
		}
		if id.Int64() != c.network.ChainID {
			closeBackend(backend)
			return nil, fmt.Errorf("%w: rpc %s serves chain %s", ErrNetworkMismatch, url, id)
		}
		return backend, nil
	}
	return nil, fmt.Errorf("connect rpc: %w", errors.Join(errs...))
}

func closeBackend(b Backend) {
	if c, ok := b.(interface{ Close() }); ok {
		c.Close()
	}
}

// classify keeps provider errors as they are and marks transport failures as an unavailable wallet
func classify(step string, err error) error {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return fmt.Errorf("%s: %w", step, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrWalletUnavailable, step, err)
}
