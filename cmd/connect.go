package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/units"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the configured wallet to the target network",
	Long: `Switch the configured wallet to the target network, registering the network
with the wallet first when it does not know it, then request an account.

The wallet is either a private key (wallet.private_key / X1SWAP_WALLET_PRIVATE_KEY)
or a remote wallet daemon (wallet.remote_url / X1SWAP_WALLET_REMOTE_URL).

Examples:
  x1swap connect
  x1swap connect --json`,
	Args: cobra.NoArgs,
	Run:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) {
	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	s := a.newSpinner("Connecting wallet...")
	sess, err := a.connect(ctx)
	s.Stop()
	if err != nil {
		a.fail(err)
	}
	defer sess.Close()

	balance, err := sess.Backend.BalanceAt(ctx, sess.Address, nil)
	if err != nil {
		a.fail(err)
	}
	native := a.cfg.Network.NativeCurrency
	formatted := units.Format(balance, native.Decimals)

	if a.json {
		output := map[string]interface{}{
			"address":  sess.Address.Hex(),
			"chain_id": sess.ChainID.String(),
			"network":  a.cfg.Network.Name,
			"balance":  formatted,
			"symbol":   native.Symbol,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	a.emit(a.reporter.Connected(sess))
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Address:  %s\n", color.CyanString(sess.Address.Hex()))
	fmt.Printf("  Network:  %s (chain %s)\n", a.cfg.Network.Name, sess.ChainID)
	fmt.Printf("  Balance:  %s %s\n", formatted, color.YellowString(native.Symbol))
	fmt.Println(strings.Repeat("=", 60) + "\n")
}
