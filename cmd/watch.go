package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"x1swap/pkg/parser"
	"x1swap/pkg/quote"
)

var watchCmd = &cobra.Command{
	Use:   "watch <token> to <token>",
	Short: "Quote interactively as you type amounts",
	Long: `Read amounts from standard input and print a live quote for each one.
Input is debounced; answers for amounts you already replaced are dropped.

Each line is one of:
  <amount>                      quote the current pair
  <amount> <token> to <token>   change the pair and quote
  r | refresh                   query the current input again
  q | quit                      exit

Examples:
  x1swap watch X1T to TKA`,
	Args: cobra.ExactArgs(3),
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	if !strings.EqualFold(args[1], "to") {
		printError(fmt.Errorf("expected '<token> to <token>', got %q", strings.Join(args, " ")))
		os.Exit(1)
	}

	a := mustLoadApp(cmd)
	ctx := cmd.Context()

	pair, err := a.pair(args[0], args[2])
	if err != nil {
		a.fail(err)
	}
	backend, err := a.readBackend(ctx)
	if err != nil {
		a.fail(err)
	}

	watcher := quote.NewWatcher(a.engine(backend), a.cfg.Debounce)
	defer watcher.Close()
	watcher.Subscribe(func(ev quote.Event) {
		fmt.Println("  " + quoteLine(ev))
	})

	fmt.Printf("\nWatching %s. Enter amounts, 'r' to refresh, 'q' to quit.\n\n", color.CyanString(pair.String()))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// input ended; let the last amount get its answer
				watcher.Flush()
				return
			}
			switch strings.ToLower(line) {
			case "":
				continue
			case "q", "quit", "exit":
				return
			case "r", "refresh":
				watcher.Refresh()
				continue
			}

			if strings.ContainsRune(line, ' ') {
				swapReq, err := parser.ParseSwapCommand(line)
				if err != nil {
					color.Red("  %v", err)
					continue
				}
				next, err := a.pair(swapReq.From, swapReq.To)
				if err != nil {
					color.Red("  %s", a.reporter.Error(err).Message)
					continue
				}
				pair = next
				line = swapReq.Amount
			}
			watcher.Set(quote.Input{Pair: pair, Amount: line})
		}
	}
}
