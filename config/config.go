package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"x1swap/pkg/types"
)

// TokenConfig is a built-in token entry
type TokenConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Symbol   string `mapstructure:"symbol" validate:"required"`
	Address  string `mapstructure:"address" validate:"required,eth_addr"`
	Decimals uint8  `mapstructure:"decimals" validate:"lte=36"`
}

// WalletConfig selects the wallet provider. A private key wins over a remote URL.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	RemoteURL  string `mapstructure:"remote_url" validate:"omitempty,url"`
	GasPrice   uint64 `mapstructure:"gas_price"`
	GasLimit   uint64 `mapstructure:"gas_limit"`
}

// Config holds the application configuration
type Config struct {
	Network              types.Network `mapstructure:"network"`
	Router               string        `mapstructure:"router" validate:"required,eth_addr"`
	Factory              string        `mapstructure:"factory" validate:"required,eth_addr"`
	WrappedNative        string        `mapstructure:"wrapped_native" validate:"required,eth_addr"`
	Tokens               []TokenConfig `mapstructure:"tokens" validate:"required,min=1,dive"`
	SlippageBps          uint          `mapstructure:"slippage_bps" validate:"lt=10000"`
	LiquiditySlippageBps uint          `mapstructure:"liquidity_slippage_bps" validate:"lt=10000"`
	Deadline             time.Duration `mapstructure:"deadline" validate:"gt=0"`
	Debounce             time.Duration `mapstructure:"debounce" validate:"gte=0"`
	ReceiptTimeout       time.Duration `mapstructure:"receipt_timeout" validate:"gt=0"`
	PollInterval         time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Wallet               WalletConfig  `mapstructure:"wallet"`
	StorePath            string        `mapstructure:"store_path"`
	LogLevel             string        `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	LogPretty            bool          `mapstructure:"log_pretty"`
}

// Load reads configuration from defaults, the optional .x1swap.yaml and X1SWAP_* environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".x1swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	return load(v, true)
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v, false)
}

func load(v *viper.Viper, optional bool) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("X1SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !optional || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// AutomaticEnv cannot split a list-valued variable on its own
	if urls := v.GetStringSlice("network.rpc_urls"); len(urls) == 1 && strings.Contains(urls[0], ",") {
		cfg.Network.RPCURLs = strings.Split(urls[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.chain_id", 10778)
	v.SetDefault("network.name", "Maculatus Testnet")
	v.SetDefault("network.native_currency.name", "X1 Token")
	v.SetDefault("network.native_currency.symbol", "X1T")
	v.SetDefault("network.native_currency.decimals", 18)
	v.SetDefault("network.rpc_urls", []string{"https://maculatus-rpc.x1eco.com/"})
	v.SetDefault("network.explorer_url", "https://maculatus-scan.x1eco.com/")

	v.SetDefault("router", "0xB0aA1d29339bdFaC68a791d4C13b0698A239D97C")
	v.SetDefault("factory", "0xd6c29C74cEca823f93CeEEE6f2E958625a7Bfe00")
	v.SetDefault("wrapped_native", "0xc2F331332ca914685D773781744b1C589861C9Aa")
	v.SetDefault("tokens", []map[string]interface{}{
		{"name": "X1T (Native)", "symbol": "X1T", "address": "0xc2F331332ca914685D773781744b1C589861C9Aa", "decimals": 18},
		{"name": "TKA", "symbol": "TKA", "address": "0x6cF0576a5088ECE1cbc92cbDdD2496c8de5517FB", "decimals": 18},
		{"name": "TKB", "symbol": "TKB", "address": "0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5", "decimals": 18},
		{"name": "TKC", "symbol": "TKC", "address": "0x1234567890abcdef1234567890abcdef12345678", "decimals": 18},
	})

	v.SetDefault("slippage_bps", 500)
	v.SetDefault("liquidity_slippage_bps", 0)
	v.SetDefault("deadline", "20m")
	v.SetDefault("debounce", "500ms")
	v.SetDefault("receipt_timeout", "3m")
	v.SetDefault("poll_interval", "2s")

	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.remote_url", "")
	v.SetDefault("wallet.gas_price", 0)
	v.SetDefault("wallet.gas_limit", 0)

	v.SetDefault("store_path", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_pretty", true)
}

// Validate checks field constraints and the cross-field rules the tags cannot express
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[common.Address]string, len(c.Tokens))
	for _, t := range c.Tokens {
		addr := common.HexToAddress(t.Address)
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("invalid config: tokens %s and %s share address %s", prev, t.Symbol, t.Address)
		}
		seen[addr] = t.Symbol
	}
	if _, ok := seen[c.WrappedNativeAddress()]; !ok {
		return fmt.Errorf("invalid config: no token entry for the wrapped native address %s", c.WrappedNative)
	}
	return nil
}

// BuiltinTokens returns the configured tokens in config order
func (c *Config) BuiltinTokens() []types.Token {
	out := make([]types.Token, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		out = append(out, types.Token{
			Name:     t.Name,
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		})
	}
	return out
}

func (c *Config) RouterAddress() common.Address {
	return common.HexToAddress(c.Router)
}

func (c *Config) FactoryAddress() common.Address {
	return common.HexToAddress(c.Factory)
}

func (c *Config) WrappedNativeAddress() common.Address {
	return common.HexToAddress(c.WrappedNative)
}
