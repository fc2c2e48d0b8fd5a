package contractstest

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	domain "x1swap/pkg/types"
)

// RevertError mimics the JSON-RPC error a node returns for a reverted eth_call
type RevertError struct {
	data string
}

func (e *RevertError) Error() string { return "execution reverted" }
func (e *RevertError) ErrorCode() int { return 3 }
func (e *RevertError) ErrorData() interface{} {
	if e.data == "" {
		return nil
	}
	return e.data
}

// Revert builds a revert error carrying reason ABI-encoded as Error(string).
// An empty reason produces a bare revert with no data.
func Revert(reason string) error {
	if reason == "" {
		return &RevertError{}
	}
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &RevertError{data: hexutil.Encode(append(selector, packed...))}
}

// Signer submits transactions straight into a Chain on behalf of From
type Signer struct {
	Chain *Chain
	From  common.Address
}

func (s *Signer) Address() common.Address { return s.From }

func (s *Signer) SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	if req.Value == nil {
		req.Value = new(big.Int)
	}
	return s.Chain.Send(ctx, s.From, req)
}
