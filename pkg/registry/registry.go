// Package registry holds the tokens the client can trade: built-ins from
// configuration plus tokens imported by address and persisted locally.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"x1swap/pkg/contracts"
	"x1swap/pkg/logging"
	"x1swap/pkg/types"
)

// StorageKey is the namespace imported tokens are persisted under
const StorageKey = "maculatusCustomTokens"

var (
	ErrInvalidAddress = errors.New("invalid token address")
	ErrDuplicate      = errors.New("token already listed")
	ErrReadFailure    = errors.New("failed to read token")
	ErrNotFound       = errors.New("token not found")
	ErrBuiltin        = errors.New("built-in tokens cannot be removed")
	ErrAmbiguous      = errors.New("token name is ambiguous")
)

// Registry is safe for concurrent use
type Registry struct {
	mu       sync.RWMutex
	builtins []types.Token
	imported []types.Token
	store    Store
	logger   zerolog.Logger
}

// New loads previously imported tokens from store. Built-ins are kept in the
// given order and never written to the store.
func New(builtins []types.Token, store Store) (*Registry, error) {
	r := &Registry{
		builtins: append([]types.Token(nil), builtins...),
		store:    store,
		logger:   logging.For("registry"),
	}

	if store == nil {
		return r, nil
	}
	raw, ok := store.Get(StorageKey)
	if !ok || len(raw) == 0 {
		return r, nil
	}

	var saved []types.Token
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", StorageKey, err)
	}
	for _, t := range saved {
		// a built-in added to config after the import wins
		if r.indexLocked(t.Address) >= 0 {
			continue
		}
		r.imported = append(r.imported, t)
	}
	return r, nil
}

// List returns built-ins first, then imports in insertion order
func (r *Registry) List() []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Token, 0, len(r.builtins)+len(r.imported))
	out = append(out, r.builtins...)
	return append(out, r.imported...)
}

// Imported returns only the user-imported tokens
func (r *Registry) Imported() []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Token(nil), r.imported...)
}

// Import validates address, reads symbol and decimals from the contract and
// persists the token. Nothing changes unless every step succeeds.
func (r *Registry) Import(ctx context.Context, caller bind.ContractCaller, address string) (types.Token, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return types.Token{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)

	r.mu.RLock()
	dup := r.indexLocked(addr) >= 0
	r.mu.RUnlock()
	if dup {
		return types.Token{}, fmt.Errorf("%w: %s", ErrDuplicate, addr.Hex())
	}

	token, err := readToken(ctx, caller, addr)
	if err != nil {
		r.logger.Warn().Err(err).Str("address", addr.Hex()).Msg("token import failed")
		return types.Token{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// lost a race with a concurrent import of the same address
	if r.indexLocked(addr) >= 0 {
		return types.Token{}, fmt.Errorf("%w: %s", ErrDuplicate, addr.Hex())
	}

	r.imported = append(r.imported, token)
	if err := r.persistLocked(); err != nil {
		r.imported = r.imported[:len(r.imported)-1]
		return types.Token{}, err
	}

	r.logger.Info().Str("symbol", token.Symbol).Str("address", addr.Hex()).Msg("token imported")
	return token, nil
}

// Remove drops an imported token
func (r *Registry) Remove(address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(strings.TrimSpace(address))

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.builtins {
		if b.Address == addr {
			return fmt.Errorf("%w: %s", ErrBuiltin, b.Label())
		}
	}

	for i, t := range r.imported {
		if t.Address != addr {
			continue
		}
		prev := r.imported
		next := make([]types.Token, 0, len(prev)-1)
		next = append(next, prev[:i]...)
		r.imported = append(next, prev[i+1:]...)
		if err := r.persistLocked(); err != nil {
			r.imported = prev
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, addr.Hex())
}

// Lookup resolves a symbol, name or address. Symbols match case-insensitively;
// a symbol shared by several tokens must be given by address instead.
func (r *Registry) Lookup(query string) (types.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []types.Token
	for _, t := range append(append([]types.Token(nil), r.builtins...), r.imported...) {
		if t.Matches(query) {
			found = append(found, t)
		}
	}

	switch len(found) {
	case 0:
		return types.Token{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	case 1:
		return found[0], nil
	}
	return types.Token{}, fmt.Errorf("%w: %s matches %d tokens, use the address", ErrAmbiguous, query, len(found))
}

func (r *Registry) indexLocked(addr common.Address) int {
	for i, t := range r.builtins {
		if t.Address == addr {
			return i
		}
	}
	for i, t := range r.imported {
		if t.Address == addr {
			return len(r.builtins) + i
		}
	}
	return -1
}

func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	data, err := json.Marshal(r.imported)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	if err := r.store.Put(StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}

func readToken(ctx context.Context, caller bind.ContractCaller, addr common.Address) (types.Token, error) {
	if caller == nil {
		return types.Token{}, fmt.Errorf("%w: no chain connection", ErrReadFailure)
	}
	erc20 := contracts.NewERC20(addr, caller)

	symbol, err := erc20.Symbol(ctx)
	if err != nil {
		return types.Token{}, fmt.Errorf("%w: symbol: %v", ErrReadFailure, err)
	}
	decimals, err := erc20.Decimals(ctx)
	if err != nil {
		return types.Token{}, fmt.Errorf("%w: decimals: %v", ErrReadFailure, err)
	}

	name := symbol
	if name == "" {
		name = "Unknown"
	}
	return types.Token{
		Name:     name,
		Symbol:   symbol,
		Address:  addr,
		Decimals: decimals,
	}, nil
}
