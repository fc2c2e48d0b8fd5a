package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotConnected     = errors.New("wallet not connected")
	ErrQuoteUnavailable = errors.New("no executable quote")
	ErrStaleQuote       = errors.New("quote does not match the current input")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrBusy             = errors.New("a transaction is already in progress")
	ErrReverted         = errors.New("transaction reverted")
	ErrTimeout          = errors.New("timed out waiting for confirmation")
)

// RevertError is a failed submission or a mined transaction with status 0
type RevertError struct {
	TxHash common.Hash
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	msg := ErrReverted.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TxHash != (common.Hash{}) {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash.Hex())
	}
	return msg
}

func (e *RevertError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReverted}
	}
	return []error{ErrReverted, e.Err}
}

// TimeoutError carries the hash of the transaction that never confirmed
type TimeoutError struct {
	TxHash common.Hash
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTimeout, e.TxHash.Hex())
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
