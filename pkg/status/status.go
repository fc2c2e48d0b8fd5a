// Package status turns the outcome of a wallet, registry, quote or
// transaction operation into the single message shown to the user.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"x1swap/pkg/orchestrator"
	"x1swap/pkg/registry"
	"x1swap/pkg/types"
	"x1swap/pkg/units"
	"x1swap/pkg/wallet"
)

// Level grades a report for rendering
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Report is one user-visible status line
type Report struct {
	Level       Level  `json:"level"`
	Message     string `json:"message"`
	Detail      string `json:"detail,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Err         string `json:"error,omitempty"`
}

// Reporter builds reports for one network so transaction links point at its explorer
type Reporter struct {
	network types.Network
}

func NewReporter(network types.Network) *Reporter {
	return &Reporter{network: network}
}

// Progress is the message shown while an operation of kind is in flight
func (r *Reporter) Progress(kind string) string {
	switch kind {
	case types.KindSwap:
		return "Swapping..."
	case types.KindLiquidity:
		return "Adding liquidity..."
	case types.KindApproval:
		return "Approving..."
	default:
		return "Working..."
	}
}

// Connected reports a successful wallet connection
func (r *Reporter) Connected(sess *wallet.Session) Report {
	return Report{
		Level:   LevelSuccess,
		Message: "Wallet connected",
		Detail:  fmt.Sprintf("%s on %s", sess.Address.Hex(), r.network.Name),
	}
}

// Imported reports a token added to the registry
func (r *Reporter) Imported(t types.Token) Report {
	return Report{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("Token %s added", t.Label()),
		Detail:  t.Address.Hex(),
	}
}

// Quote reports a quote outcome; a ready quote yields an info line with the output amount
func (r *Reporter) Quote(q types.Quote) Report {
	switch q.State {
	case types.QuoteReady:
		return Report{
			Level:   LevelInfo,
			Message: fmt.Sprintf("%s %s -> %s %s", q.AmountIn, q.Pair.In.Label(), q.OutText, q.Pair.Out.Label()),
		}
	case types.QuoteUnavailable:
		return Report{Level: LevelWarning, Message: types.NoLiquidityText}
	case types.QuoteInvalid:
		return r.Error(q.Err)
	default:
		return Report{Level: LevelInfo, Message: "Enter an amount"}
	}
}

// Result reports a transaction outcome. err, when set, takes precedence over res.
func (r *Reporter) Result(res types.TxResult, err error) Report {
	if err != nil {
		rep := r.failure(res.Kind, err)
		if rep.TxHash == "" {
			hash := res.Hash
			if hash == (common.Hash{}) && len(res.Approvals) > 0 {
				hash = res.Approvals[len(res.Approvals)-1]
			}
			r.link(&rep, hash)
		}
		return rep
	}

	rep := Report{Level: LevelSuccess}
	switch res.Kind {
	case types.KindLiquidity:
		rep.Message = "Liquidity added"
	case types.KindApproval:
		rep.Message = "Approval confirmed"
	default:
		rep.Message = "Swap succeeded"
	}
	if res.BlockNumber > 0 {
		rep.Detail = fmt.Sprintf("included in block %d", res.BlockNumber)
	}
	r.link(&rep, res.Hash)
	return rep
}

// Error reports a failure outside any transaction
func (r *Reporter) Error(err error) Report {
	return r.failure("", err)
}

func (r *Reporter) failure(kind string, err error) Report {
	if err == nil {
		return Report{Level: LevelInfo, Message: "OK"}
	}
	rep := r.describe(kind, err)
	rep.Err = err.Error()
	return rep
}

func (r *Reporter) describe(kind string, err error) Report {
	var (
		revert  *orchestrator.RevertError
		timeout *orchestrator.TimeoutError
	)
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return Report{Level: LevelWarning, Message: "Request rejected in wallet"}
	case errors.Is(err, wallet.ErrWalletUnavailable):
		return Report{
			Level:   LevelError,
			Message: "No wallet available",
			Detail:  "set wallet.private_key or wallet.remote_url (X1SWAP_WALLET_PRIVATE_KEY / X1SWAP_WALLET_REMOTE_URL)",
		}
	case errors.Is(err, wallet.ErrNetworkMismatch):
		return Report{
			Level:   LevelError,
			Message: "Wallet is on the wrong network",
			Detail:  fmt.Sprintf("switch to %s (chain %d)", r.network.Name, r.network.ChainID),
		}
	case errors.Is(err, wallet.ErrNoAccount), errors.Is(err, orchestrator.ErrNotConnected):
		return Report{Level: LevelError, Message: "Wallet not connected"}
	case errors.As(err, &timeout):
		rep := Report{
			Level:   LevelWarning,
			Message: "Transaction not confirmed in time",
			Detail:  "it may still be mined; check it with the status command",
		}
		r.link(&rep, timeout.TxHash)
		return rep
	case errors.As(err, &revert):
		rep := Report{Level: LevelError, Message: failedPrefix(kind)}
		if revert.Reason != "" {
			rep.Message += ": " + revert.Reason
		} else if revert.Err != nil {
			rep.Detail = revert.Err.Error()
		}
		r.link(&rep, revert.TxHash)
		return rep
	case errors.Is(err, orchestrator.ErrQuoteUnavailable):
		return Report{Level: LevelWarning, Message: types.NoLiquidityText}
	case errors.Is(err, orchestrator.ErrStaleQuote):
		return Report{Level: LevelWarning, Message: "Quote is out of date", Detail: "request a new quote and confirm again"}
	case errors.Is(err, orchestrator.ErrBusy):
		return Report{Level: LevelWarning, Message: "A transaction is already in progress"}
	case errors.Is(err, registry.ErrReadFailure):
		return Report{Level: LevelError, Message: "Failed to read token", Detail: err.Error()}
	case errors.Is(err, registry.ErrDuplicate):
		return Report{Level: LevelWarning, Message: "Token already listed"}
	case errors.Is(err, registry.ErrInvalidAddress),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrAmbiguous),
		errors.Is(err, registry.ErrBuiltin),
		errors.Is(err, orchestrator.ErrInvalidAmount),
		errors.Is(err, units.ErrEmptyAmount),
		errors.Is(err, units.ErrInvalidAmount),
		errors.Is(err, units.ErrTooManyDecimals),
		errors.Is(err, types.ErrSameToken):
		return Report{Level: LevelError, Message: "Invalid input", Detail: err.Error()}
	case errors.Is(err, context.Canceled):
		return Report{Level: LevelWarning, Message: "Cancelled"}
	default:
		return Report{Level: LevelError, Message: failedPrefix(kind), Detail: err.Error()}
	}
}

func failedPrefix(kind string) string {
	switch kind {
	case types.KindLiquidity:
		return "Add liquidity failed"
	case types.KindSwap:
		return "Swap failed"
	default:
		return "Failed"
	}
}

func (r *Reporter) link(rep *Report, hash common.Hash) {
	if hash == (common.Hash{}) {
		return
	}
	rep.TxHash = hash.Hex()
	rep.ExplorerURL = r.network.TxURL(rep.TxHash)
}

// Render writes the report as colored terminal lines
func (rep Report) Render(w io.Writer) {
	var paint func(format string, a ...interface{}) string
	switch rep.Level {
	case LevelSuccess:
		paint = color.GreenString
	case LevelWarning:
		paint = color.YellowString
	case LevelError:
		paint = color.RedString
	default:
		paint = color.CyanString
	}

	fmt.Fprintln(w, paint("%s", rep.Message))
	if rep.Detail != "" {
		fmt.Fprintf(w, "  %s\n", rep.Detail)
	}
	if rep.TxHash != "" {
		fmt.Fprintf(w, "  Tx:       %s\n", color.HiBlackString(rep.TxHash))
	}
	if rep.ExplorerURL != "" {
		fmt.Fprintf(w, "  Explorer: %s\n", color.CyanString(rep.ExplorerURL))
	}
}

// JSON writes the report as an indented JSON object
func (rep Report) JSON(w io.Writer) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Failed reports whether the report carries an error, whatever its level
func (rep Report) Failed() bool {
	return rep.Level == LevelError || rep.Err != ""
}
