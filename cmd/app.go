package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"x1swap/config"
	"x1swap/pkg/contracts"
	"x1swap/pkg/logging"
	"x1swap/pkg/orchestrator"
	"x1swap/pkg/quote"
	"x1swap/pkg/registry"
	"x1swap/pkg/status"
	"x1swap/pkg/types"
	"x1swap/pkg/wallet"
)

// app is the per-invocation wiring shared by every command
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	reporter *status.Reporter
	json     bool
	verbose  bool
}

func loadApp(cmd *cobra.Command) (*app, error) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logging.Setup(level, cfg.LogPretty && !jsonOutput, os.Stderr); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	store, err := registry.NewFileStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(cfg.BuiltinTokens(), store)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		registry: reg,
		reporter: status.NewReporter(cfg.Network),
		json:     jsonOutput,
		verbose:  verbose,
	}, nil
}

// mustLoadApp exits the process on configuration errors, like every command did before wiring
func mustLoadApp(cmd *cobra.Command) *app {
	a, err := loadApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}

// provider picks the configured wallet. A private key wins over a remote URL.
func (a *app) provider(ctx context.Context) (wallet.Provider, error) {
	w := a.cfg.Wallet
	switch {
	case w.PrivateKey != "":
		opts := []wallet.KeyedOption{wallet.WithGasLimit(w.GasLimit)}
		if w.GasPrice > 0 {
			opts = append(opts, wallet.WithGasPrice(new(big.Int).SetUint64(w.GasPrice)))
		}
		return wallet.NewKeyedProvider(w.PrivateKey, opts...)
	case w.RemoteURL != "":
		return wallet.DialRemote(ctx, w.RemoteURL)
	default:
		return nil, wallet.ErrWalletUnavailable
	}
}

func (a *app) connect(ctx context.Context) (*wallet.Session, error) {
	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	return wallet.NewConnector(p, a.cfg.Network, wallet.DialEthclient).Connect(ctx)
}

// readBackend dials the first reachable RPC endpoint for calls that need no wallet
func (a *app) readBackend(ctx context.Context) (wallet.Backend, error) {
	var errs []error
	for _, url := range a.cfg.Network.RPCURLs {
		backend, err := wallet.DialEthclient(ctx, url)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		return backend, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("no rpc url configured")
	}
	return nil, errors.Join(errs...)
}

func (a *app) engine(backend wallet.Backend) *quote.Engine {
	router := contracts.NewRouter(a.cfg.RouterAddress(), backend)
	return quote.NewEngine(router, a.cfg.WrappedNativeAddress())
}

func (a *app) executor() *orchestrator.Executor {
	return orchestrator.NewExecutor(orchestrator.Config{
		Router:               a.cfg.RouterAddress(),
		WrappedNative:        a.cfg.WrappedNativeAddress(),
		SlippageBps:          a.cfg.SlippageBps,
		LiquiditySlippageBps: a.cfg.LiquiditySlippageBps,
		Deadline:             a.cfg.Deadline,
		ReceiptTimeout:       a.cfg.ReceiptTimeout,
		PollInterval:         a.cfg.PollInterval,
	})
}

func (a *app) pair(from, to string) (types.TokenPair, error) {
	in, err := a.registry.Lookup(from)
	if err != nil {
		return types.TokenPair{}, err
	}
	out, err := a.registry.Lookup(to)
	if err != nil {
		return types.TokenPair{}, err
	}
	return types.NewTokenPair(in, out)
}

func (a *app) isNative(t types.Token) bool {
	return quote.IsNative(t, a.cfg.WrappedNativeAddress())
}

// newSpinner returns a spinner that stays silent in JSON mode
func (a *app) newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	if !a.json {
		s.Start()
	}
	return s
}

// trackFlow keeps the spinner text in step with the executor
func (a *app) trackFlow(exec *orchestrator.Executor, s *spinner.Spinner, kind string) {
	exec.Flow().OnTransition(func(_, to types.FlowState) {
		switch to {
		case types.FlowSubmitting:
			s.Suffix = " " + a.reporter.Progress(kind)
		case types.FlowApproving:
			s.Suffix = " " + a.reporter.Progress(types.KindApproval)
		case types.FlowConfirming:
			s.Suffix = " Waiting for confirmation..."
		}
		if a.verbose && !a.json {
			fmt.Fprintf(os.Stderr, "\nDebug: flow -> %s\n", to)
		}
	})
}

// emit prints a report and exits non-zero when it describes an error
func (a *app) emit(rep status.Report) {
	if a.json {
		_ = rep.JSON(os.Stdout)
	} else {
		fmt.Println()
		rep.Render(os.Stdout)
		fmt.Println()
	}
	if rep.Failed() {
		os.Exit(1)
	}
}

func (a *app) fail(err error) {
	a.emit(a.reporter.Error(err))
	os.Exit(1)
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
