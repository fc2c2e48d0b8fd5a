package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/parser"
	"x1swap/pkg/quote"
	"x1swap/pkg/types"
	"x1swap/pkg/units"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> to <token>",
	Short: "Show the router's output for a swap without sending anything",
	Long: `Ask the router how much of the output token a swap would return.
No wallet is needed. Native X1T is routed through the wrapped token.

Examples:
  x1swap quote 1 X1T to TKA
  x1swap quote 2.5 TKA to TKB --json`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		return
	}

	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	pair, err := a.pair(swapReq.From, swapReq.To)
	if err != nil {
		a.fail(err)
	}
	backend, err := a.readBackend(ctx)
	if err != nil {
		a.fail(err)
	}

	s := a.newSpinner("Fetching quote...")
	q := a.engine(backend).Quote(ctx, pair, swapReq.Amount)
	s.Stop()

	if a.json {
		output := quoteOutput(q, a.cfg.SlippageBps)
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	if !q.Executable() {
		a.emit(a.reporter.Quote(q))
		return
	}
	displayQuote(q, a.cfg.SlippageBps, a.cfg.WrappedNativeAddress().Hex())
}

func quoteOutput(q types.Quote, slippageBps uint) map[string]interface{} {
	output := map[string]interface{}{
		"source_amount": q.AmountIn,
		"source_token":  q.Pair.In.Label(),
		"dest_token":    q.Pair.Out.Label(),
		"state":         q.State,
		"dest_amount":   q.Display(),
	}
	if q.Executable() {
		output["min_received"] = units.Format(units.ApplySlippage(q.AmountOut, slippageBps), q.Pair.Out.Decimals)
		output["path"] = q.Path
	}
	if q.Err != nil {
		output["error"] = q.Err.Error()
	}
	return output
}

func displayQuote(q types.Quote, slippageBps uint, wrapped string) {
	minOut := units.Format(units.ApplySlippage(q.AmountOut, slippageBps), q.Pair.Out.Decimals)

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", q.AmountIn, color.YellowString(q.Pair.In.Label()))
	fmt.Printf("  To:                ~%s %s\n", q.OutText, color.YellowString(q.Pair.Out.Label()))
	fmt.Printf("  Minimum received:  %s %s (%.2f%% slippage)\n", minOut, q.Pair.Out.Label(), float64(slippageBps)/100)

	hops := make([]string, 0, len(q.Path))
	for _, addr := range q.Path {
		label := addr.Hex()
		if strings.EqualFold(label, wrapped) {
			label = "wrapped native"
		}
		hops = append(hops, label)
	}
	fmt.Printf("  Route:             %s\n", color.HiBlackString(strings.Join(hops, " -> ")))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// quoteLine renders one watcher event on a single line
func quoteLine(ev quote.Event) string {
	switch ev.State {
	case types.FlowQuotePending:
		return color.HiBlackString("quoting...")
	case types.FlowQuoteReady:
		return fmt.Sprintf("%s %s -> %s %s",
			ev.Quote.AmountIn, ev.Quote.Pair.In.Label(), color.GreenString(ev.Quote.OutText), ev.Quote.Pair.Out.Label())
	case types.FlowQuoteUnavailable:
		if ev.Quote.State == types.QuoteInvalid && ev.Quote.Err != nil {
			return color.RedString("invalid input: %v", ev.Quote.Err)
		}
		return color.YellowString(types.NoLiquidityText)
	default:
		return color.HiBlackString("(cleared)")
	}
}
