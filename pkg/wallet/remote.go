package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RemoteProvider forwards requests to an external wallet daemon over JSON-RPC
type RemoteProvider struct {
	client *rpc.Client
}

// DialRemote connects to a wallet daemon at rawurl (http, ws or ipc)
func DialRemote(ctx context.Context, rawurl string) (*RemoteProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return NewRemoteProvider(client), nil
}

func NewRemoteProvider(client *rpc.Client) *RemoteProvider {
	return &RemoteProvider{client: client}
}

// Request implements Provider. Errors carrying an EIP-1193 code come back as
// *ProviderError; anything else (including revert data) is returned untouched.
func (r *RemoteProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := r.client.CallContext(ctx, &result, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && isProviderCode(rpcErr.ErrorCode()) {
			return nil, &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		}
		return nil, err
	}
	return result, nil
}

// Disconnect closes the underlying connection
func (r *RemoteProvider) Disconnect() error {
	r.client.Close()
	return nil
}

func isProviderCode(code int) bool {
	return code >= 4000 && code < 5000
}
