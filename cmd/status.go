package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/wallet"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a transaction",
	Long: `Check whether a swap, approval or liquidity transaction was mined and
whether it succeeded.

Examples:
  x1swap status 0x5c50...2060
  x1swap status 0x5c50...2060 --watch
  x1swap status 0x5c50...2060 --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

type txStatus struct {
	Hash        string `json:"hash"`
	State       string `json:"state"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	raw := args[0]
	if len(strings.TrimPrefix(raw, "0x")) != 64 {
		printError(fmt.Errorf("invalid transaction hash: %s", raw))
		os.Exit(1)
	}
	hash := common.HexToHash(raw)

	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	backend, err := a.readBackend(ctx)
	if err != nil {
		a.fail(err)
	}

	if watchStatus {
		if a.json {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchTxStatus(ctx, a, backend, hash)
		return
	}

	s := a.newSpinner("Checking transaction status...")
	st, err := lookupTx(ctx, a, backend, hash)
	s.Stop()
	if err != nil {
		a.fail(err)
	}

	if a.json {
		jsonData, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayStatus(st)
}

func watchTxStatus(ctx context.Context, a *app, backend wallet.Backend, hash common.Hash) {
	if watchInterval < 1 {
		watchInterval = 1
	}
	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		st, err := lookupTx(ctx, a, backend, hash)
		if err != nil {
			color.Red("Error: %v", err)
		} else if st.State != "PENDING" {
			displayStatus(st)
			return
		} else {
			fmt.Printf("  %s %s\n", time.Now().Format("15:04:05"), getColoredStatus(st.State))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func lookupTx(ctx context.Context, a *app, backend wallet.Backend, hash common.Hash) (txStatus, error) {
	st := txStatus{Hash: hash.Hex(), ExplorerURL: a.cfg.Network.TxURL(hash.Hex())}

	receipt, err := backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		st.State = "PENDING"
		return st, nil
	}
	if err != nil {
		return st, err
	}

	st.BlockNumber = receipt.BlockNumber.Uint64()
	st.GasUsed = receipt.GasUsed
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		st.State = "SUCCESS"
	} else {
		st.State = "FAILED"
	}
	return st, nil
}

func displayStatus(st txStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:     %s\n", color.CyanString(st.Hash))
	fmt.Printf("  Status:      %s\n", getColoredStatus(st.State))
	if st.BlockNumber > 0 {
		fmt.Printf("  Block:       %d\n", st.BlockNumber)
		fmt.Printf("  Gas Used:    %d\n", st.GasUsed)
	}
	if st.ExplorerURL != "" {
		fmt.Printf("  Explorer:    %s\n", color.HiBlackString(st.ExplorerURL))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	switch status {
	case "SUCCESS":
		return color.GreenString(status)
	case "PENDING":
		return color.YellowString(status)
	case "FAILED":
		return color.RedString(status)
	default:
		return status
	}
}
