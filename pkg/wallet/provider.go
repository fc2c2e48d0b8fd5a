// Package wallet connects to a wallet provider, pins it to the configured
// network and hands back a Session able to sign and submit transactions.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected   = 4001
	CodeUnauthorized   = 4100
	CodeUnsupported    = 4200
	CodeDisconnected   = 4900
	CodeChainNotLinked = 4901
	CodeUnknownChain   = 4902
)

var (
	ErrWalletUnavailable = errors.New("no wallet provider available")
	ErrUserRejected      = errors.New("request rejected in wallet")
	ErrNetworkMismatch   = errors.New("wallet is on a different network")
	ErrNoAccount         = errors.New("wallet returned no account")
)

// Provider is a request/response wallet endpoint in the shape of EIP-1193
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// ProviderError is an error answered by the provider itself
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match provider codes against the package sentinels
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUserRejected:
		return e.Code == CodeUserRejected
	case ErrNetworkMismatch:
		return e.Code == CodeChainNotLinked
	case ErrWalletUnavailable:
		return e.Code == CodeDisconnected
	}
	return false
}

// ErrorCode returns the provider code of err, or 0 when err did not come from a provider
func ErrorCode(err error) int {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return 0
}

// Disconnecter is implemented by providers that hold a connection
type Disconnecter interface {
	Disconnect() error
}

func call(ctx context.Context, p Provider, out interface{}, method string, params ...interface{}) error {
	raw, err := p.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
