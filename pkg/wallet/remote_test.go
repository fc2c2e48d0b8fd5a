package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x1swap/pkg/types"
)

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// daemonWallet is served under the "wallet" namespace
type daemonWallet struct {
	mu       sync.Mutex
	known    map[string]bool
	switches int
	added    []types.AddChainParams
	reject   bool
}

func (w *daemonWallet) SwitchEthereumChain(p switchChainParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches++
	if !w.known[p.ChainID] {
		return &codedError{code: CodeUnknownChain, msg: "Unrecognized chain ID " + p.ChainID}
	}
	return nil
}

func (w *daemonWallet) AddEthereumChain(p types.AddChainParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return &codedError{code: CodeUserRejected, msg: "User rejected the request."}
	}
	w.added = append(w.added, p)
	w.known[p.ChainID] = true
	return nil
}

// daemonEth is served under the "eth" namespace
type daemonEth struct {
	account common.Address
	chainID hexutil.Big
}

func (e *daemonEth) RequestAccounts() ([]common.Address, error) {
	return []common.Address{e.account}, nil
}

func (e *daemonEth) ChainId() (*hexutil.Big, error) {
	return &e.chainID, nil
}

func newDaemon(t *testing.T, w *daemonWallet) *RemoteProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("wallet", w))
	require.NoError(t, server.RegisterName("eth", &daemonEth{
		account: testAccount,
		chainID: hexutil.Big(*testNetwork().ChainIDBig()),
	}))
	t.Cleanup(server.Stop)

	return NewRemoteProvider(rpc.DialInProc(server))
}

func TestRemoteProviderConnect(t *testing.T) {
	w := &daemonWallet{known: map[string]bool{}}
	remote := newDaemon(t, w)

	dial, _ := chainDialer(10778)
	sess, err := NewConnector(remote, testNetwork(), dial).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAccount, sess.Address)

	assert.Equal(t, 2, w.switches)
	require.Len(t, w.added, 1)
	assert.Equal(t, testNetwork().ChainIDHex(), w.added[0].ChainID)
	assert.Equal(t, []string{"https://maculatus-scan.x1eco.com/"}, w.added[0].BlockExplorerURLs)

	require.NoError(t, sess.Close())
}

func TestRemoteProviderMapsCodes(t *testing.T) {
	w := &daemonWallet{known: map[string]bool{}, reject: true}
	remote := newDaemon(t, w)

	dial, _ := chainDialer(10778)
	_, err := NewConnector(remote, testNetwork(), dial).Connect(context.Background())
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, CodeUserRejected, ErrorCode(err))
}

func TestRemoteProviderUnknownMethod(t *testing.T) {
	remote := newDaemon(t, &daemonWallet{known: map[string]bool{}})

	_, err := remote.Request(context.Background(), "personal_sign", "0x00")
	require.Error(t, err)
	assert.Zero(t, ErrorCode(err), "json-rpc method errors are not provider codes")
}
