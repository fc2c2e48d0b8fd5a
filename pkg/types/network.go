package types

import (
	"fmt"
	"math/big"
	"strings"
)

// NativeCurrency describes the chain's gas token
type NativeCurrency struct {
	Name     string `json:"name" mapstructure:"name" validate:"required"`
	Symbol   string `json:"symbol" mapstructure:"symbol" validate:"required"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
}

// Network is the descriptor handed verbatim to a wallet during chain registration
type Network struct {
	ChainID        int64          `json:"chain_id" mapstructure:"chain_id" validate:"required,gt=0"`
	Name           string         `json:"name" mapstructure:"name" validate:"required"`
	NativeCurrency NativeCurrency `json:"native_currency" mapstructure:"native_currency"`
	RPCURLs        []string       `json:"rpc_urls" mapstructure:"rpc_urls" validate:"required,min=1,dive,url"`
	ExplorerURL    string         `json:"explorer_url" mapstructure:"explorer_url" validate:"omitempty,url"`
}

// ChainIDHex returns the 0x-prefixed hex chain id used by wallet requests
func (n Network) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// ChainIDBig returns the chain id as *big.Int
func (n Network) ChainIDBig() *big.Int {
	return big.NewInt(n.ChainID)
}

// AddChainParams is the wallet_addEthereumChain parameter object
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddChainParams builds the registration payload for this network
func (n Network) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:        n.ChainIDHex(),
		ChainName:      n.Name,
		NativeCurrency: n.NativeCurrency,
		RPCURLs:        append([]string(nil), n.RPCURLs...),
	}
	if n.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{n.ExplorerURL}
	}
	return p
}

// TxURL links a transaction hash on the block explorer, or returns "" without one
func (n Network) TxURL(hash string) string {
	if n.ExplorerURL == "" || hash == "" {
		return ""
	}
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}
