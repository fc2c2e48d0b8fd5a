package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/orchestrator"
	"x1swap/pkg/parser"
	"x1swap/pkg/types"
)

var (
	recipientAddr string
	noConfirm     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens through the router",
	Long: `Quote a swap, ask for confirmation and execute it with the connected wallet.

The minimum output is the quoted amount less the configured slippage
(slippage_bps, default 5%). The transaction expires after the configured
deadline (default 20 minutes). When the input token's router allowance is too
small an approval is sent and confirmed first.

Examples:
  # Native to token
  x1swap swap 1 X1T to TKA

  # Token to token, skipping the confirmation prompt
  x1swap swap 2.5 TKA to TKB --yes

  # Send the output to another address
  x1swap swap 10 TKB to X1T --recipient 0x123...`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (defaults to the connected account)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	// Parse the command
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if recipientAddr != "" && !common.IsHexAddress(recipientAddr) {
		printError(fmt.Errorf("invalid recipient address: %s", recipientAddr))
		os.Exit(1)
	}

	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	pair, err := a.pair(swapReq.From, swapReq.To)
	if err != nil {
		a.fail(err)
	}

	s := a.newSpinner("Connecting wallet...")
	sess, err := a.connect(ctx)
	if err != nil {
		s.Stop()
		a.fail(err)
	}
	defer sess.Close()

	s.Suffix = " Fetching quote..."
	q := a.engine(sess.Backend).Quote(ctx, pair, swapReq.Amount)
	s.Stop()

	if !q.Executable() {
		a.emit(a.reporter.Quote(q))
		os.Exit(1)
	}

	if a.json {
		if !noConfirm {
			jsonData, _ := json.MarshalIndent(quoteOutput(q, a.cfg.SlippageBps), "", "  ")
			fmt.Println(string(jsonData))
			fmt.Fprintln(os.Stderr, "re-run with --yes to execute")
			return
		}
	} else {
		displayQuote(q, a.cfg.SlippageBps, a.cfg.WrappedNativeAddress().Hex())
		fmt.Printf("  Wallet:  %s\n", color.CyanString(sess.Address.Hex()))
		if !noConfirm && !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	req := orchestrator.SwapRequest{Pair: pair, Amount: swapReq.Amount, Quote: q}
	if recipientAddr != "" {
		req.Recipient = common.HexToAddress(recipientAddr)
	}

	exec := a.executor()
	s = a.newSpinner(a.reporter.Progress(types.KindSwap))
	a.trackFlow(exec, s, types.KindSwap)
	result, err := exec.ExecuteSwap(ctx, sess, req)
	s.Stop()

	result.Kind = types.KindSwap

	a.emit(a.reporter.Result(result, err))
}
