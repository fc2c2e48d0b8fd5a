package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/contracts"
	"x1swap/pkg/units"
	"x1swap/pkg/wallet"
)

var balanceAddr string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show native and token balances",
	Long: `Show the native balance and the balance of every listed token.
Without --address the connected wallet account is used.

Examples:
  x1swap balance
  x1swap balance --address 0x123...`,
	Args: cobra.NoArgs,
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceAddr, "address", "", "Account to inspect (defaults to the connected wallet)")
}

type balanceRow struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address,omitempty"`
	Balance string `json:"balance"`
	Error   string `json:"error,omitempty"`
}

func runBalance(cmd *cobra.Command, args []string) {
	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	var (
		account common.Address
		backend wallet.Backend
	)
	s := a.newSpinner("Fetching balances...")
	if balanceAddr != "" {
		if !common.IsHexAddress(balanceAddr) {
			s.Stop()
			printError(fmt.Errorf("invalid address: %s", balanceAddr))
			os.Exit(1)
		}
		account = common.HexToAddress(balanceAddr)
		b, err := a.readBackend(ctx)
		if err != nil {
			s.Stop()
			a.fail(err)
		}
		backend = b
	} else {
		sess, err := a.connect(ctx)
		if err != nil {
			s.Stop()
			a.fail(err)
		}
		defer sess.Close()
		account, backend = sess.Address, sess.Backend
	}

	native := a.cfg.Network.NativeCurrency
	rows := []balanceRow{{Symbol: native.Symbol}}
	if wei, err := backend.BalanceAt(ctx, account, nil); err != nil {
		rows[0].Error = err.Error()
	} else {
		rows[0].Balance = units.Format(wei, native.Decimals)
	}

	for _, t := range a.registry.List() {
		if a.isNative(t) {
			continue
		}
		row := balanceRow{Symbol: t.Label(), Address: t.Address.Hex()}
		bal, err := contracts.NewERC20(t.Address, backend).BalanceOf(ctx, account)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Balance = units.Format(bal, t.Decimals)
		}
		rows = append(rows, row)
	}
	s.Stop()

	if a.json {
		output := map[string]interface{}{"account": account.Hex(), "balances": rows}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                            BALANCES")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Account: %s\n\n", color.CyanString(account.Hex()))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		value := r.Balance
		if r.Error != "" {
			value = color.RedString("unreadable")
		}
		fmt.Fprintf(w, "  %s\t%s\n", color.YellowString(r.Symbol), value)
	}
	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
