package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "x1swap",
	Short: "A CLI for swapping and pooling tokens on an X1 Uniswap-V2 router",
	Long: `x1swap quotes and executes token swaps and liquidity deposits against a
Uniswap-V2-style router on the X1 Maculatus testnet. It connects to a wallet
(a local private key or a remote wallet daemon), switches it to the target
network and signs router transactions on your behalf.

Examples:
  x1swap connect
  x1swap quote 1 X1T to TKA
  x1swap swap 1.5 TKA to TKB
  x1swap liquidity add 1 X1T + 100 TKA
  x1swap tokens import 0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5
  x1swap status <tx-hash>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.x1swap.yaml)")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
