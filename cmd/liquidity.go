package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/contracts"
	"x1swap/pkg/orchestrator"
	"x1swap/pkg/parser"
	"x1swap/pkg/types"
)

var liquidityCmd = &cobra.Command{
	Use:   "liquidity",
	Short: "Manage router liquidity",
}

var liquidityAddCmd = &cobra.Command{
	Use:   "add <amount> <token> + <amount> <token>",
	Short: "Deposit both sides of a pool",
	Long: `Add liquidity to the pool of two tokens. Each non-native token is approved
for the router first when its allowance is too small; native X1T is sent as
the transaction value.

Examples:
  x1swap liquidity add 1 X1T + 100 TKA
  x1swap liquidity add 5 TKA and 10 TKB --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAddLiquidity,
}

func init() {
	rootCmd.AddCommand(liquidityCmd)
	liquidityCmd.AddCommand(liquidityAddCmd)

	liquidityAddCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runAddLiquidity(cmd *cobra.Command, args []string) {
	liqReq, err := parser.ParseLiquidityCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	pair, err := a.pair(liqReq.TokenA, liqReq.TokenB)
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

	s.Suffix = " Looking up pool..."
	factory := contracts.NewFactory(a.cfg.FactoryAddress(), sess.Backend)
	poolAddr, err := factory.GetPair(ctx, pair.In.Address, pair.Out.Address)
	s.Stop()
	if err != nil {
		a.fail(err)
	}
	newPool := poolAddr == (common.Address{})

	if a.json {
		if !noConfirm {
			output := map[string]interface{}{
				"token_a":  pair.In.Label(),
				"amount_a": liqReq.AmountA,
				"token_b":  pair.Out.Label(),
				"amount_b": liqReq.AmountB,
				"pool":     poolAddr.Hex(),
				"new_pool": newPool,
			}
			jsonData, _ := json.MarshalIndent(output, "", "  ")
			fmt.Println(string(jsonData))
			fmt.Fprintln(os.Stderr, "re-run with --yes to execute")
			return
		}
	} else {
		displayLiquidity(liqReq, pair, poolAddr, newPool)
		if !noConfirm && !confirm("Proceed with deposit?") {
			fmt.Println("\nDeposit cancelled.")
			os.Exit(0)
		}
	}

	exec := a.executor()
	s = a.newSpinner(a.reporter.Progress(types.KindLiquidity))
	a.trackFlow(exec, s, types.KindLiquidity)
	result, err := exec.AddLiquidity(ctx, sess, orchestrator.LiquidityRequest{
		TokenA:  pair.In,
		TokenB:  pair.Out,
		AmountA: liqReq.AmountA,
		AmountB: liqReq.AmountB,
	})
	s.Stop()

	result.Kind = types.KindLiquidity
	a.emit(a.reporter.Result(result, err))
}

func displayLiquidity(req *parser.LiquidityCommand, pair types.TokenPair, pool common.Address, newPool bool) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   ADD LIQUIDITY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Deposit:  %s %s\n", req.AmountA, color.YellowString(pair.In.Label()))
	fmt.Printf("            %s %s\n", req.AmountB, color.YellowString(pair.Out.Label()))
	if newPool {
		color.Yellow("  Pool:     none yet; this deposit creates it and sets the price")
	} else {
		fmt.Printf("  Pool:     %s\n", color.CyanString(pool.Hex()))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
