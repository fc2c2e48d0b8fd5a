package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/types"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List, import and remove tokens",
	Long: `List the tokens available for swapping: the built-in tokens from the
configuration followed by tokens you imported.

Examples:
  x1swap tokens
  x1swap tokens --symbol tk
  x1swap tokens import 0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5
  x1swap tokens remove 0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

var tokensImportCmd = &cobra.Command{
	Use:   "import <address>",
	Short: "Import an ERC-20 token by contract address",
	Long: `Read symbol and decimals from the token contract and add it to the token list.
Imported tokens are remembered across runs.`,
	Args: cobra.ExactArgs(1),
	Run:  runImportToken,
}

var tokensRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove an imported token",
	Args:  cobra.ExactArgs(1),
	Run:   runRemoveToken,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensImportCmd)
	tokensCmd.AddCommand(tokensRemoveCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

type tokenRow struct {
	types.Token
	Native   bool `json:"native"`
	Imported bool `json:"imported"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	a := mustLoadApp(cmd)

	imported := make(map[string]bool)
	for _, t := range a.registry.Imported() {
		imported[t.Address.Hex()] = true
	}

	var rows []tokenRow
	for _, t := range a.registry.List() {
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(filterSymbol)) {
			continue
		}
		rows = append(rows, tokenRow{Token: t, Native: a.isNative(t), Imported: imported[t.Address.Hex()]})
	}

	if a.json {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTokens(rows)
}

func displayTokens(rows []tokenRow) {
	if len(rows) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n  SYMBOL\tNAME\tADDRESS\tDECIMALS\tSOURCE")
	for _, r := range rows {
		source := "built-in"
		if r.Imported {
			source = "imported"
		}
		if r.Native {
			source = "native"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\n",
			color.YellowString(r.Symbol), r.Name, r.Address.Hex(), r.Decimals, source)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("Total: %d tokens\n\n", len(rows))
}

func runImportToken(cmd *cobra.Command, args []string) {
	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	backend, err := a.readBackend(ctx)
	if err != nil {
		a.fail(err)
	}

	s := a.newSpinner("Reading token contract...")
	token, err := a.registry.Import(ctx, backend, args[0])
	s.Stop()
	if err != nil {
		a.fail(err)
	}

	a.emit(a.reporter.Imported(token))
}

func runRemoveToken(cmd *cobra.Command, args []string) {
	a := mustLoadApp(cmd)

	if err := a.registry.Remove(args[0]); err != nil {
		a.fail(err)
	}
	if a.json {
		fmt.Printf("{\"removed\": %q}\n", args[0])
		return
	}
	printSuccess(color.GreenString("Token %s removed", args[0]))
}
