// Package config loads indexer configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dex-ledger/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEX_LEDGER_"

// Config is the full indexer configuration.
type Config struct {
	FactoryAddress        string          `yaml:"factory_address"`
	IntermediaryAddresses []string        `yaml:"intermediary_addresses"`
	WhitelistTokens       []string        `yaml:"whitelist_tokens"`
	UntrackedPairs        []string        `yaml:"untracked_pairs"`
	Pricing               PricingConfig   `yaml:"pricing"`
	TokenOverrides        []TokenOverride `yaml:"token_overrides"`
	RPC                   RPCConfig       `yaml:"rpc"`
	Storage               StorageConfig   `yaml:"storage"`
	Log                   logging.Config  `yaml:"log"`
	HTTP                  HTTPConfig      `yaml:"http"`
}

// PricingConfig holds the reference prices used by the static oracle.
type PricingConfig struct {
	EthPriceUSD string            `yaml:"eth_price_usd"`
	DerivedETH  map[string]string `yaml:"derived_eth"` // token address -> price in ETH
}

// TokenOverride pins display metadata for contracts that misreport it.
type TokenOverride struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals *uint8 `yaml:"decimals"`
}

// RPCConfig configures log ingestion.
type RPCConfig struct {
	URL           string        `yaml:"url"`
	StartBlock    uint64        `yaml:"start_block"`
	BatchBlocks   uint64        `yaml:"batch_blocks"`
	Confirmations uint64        `yaml:"confirmations"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	RateLimit     float64       `yaml:"rate_limit"` // calls per second, 0 is unlimited
}

// StorageConfig selects record stores.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // memory or postgres
	PostgresDSN     string `yaml:"postgres_dsn"`
	ClickhouseDSN   string `yaml:"clickhouse_dsn"` // optional swap-leg journal
	HeaderCachePath string `yaml:"header_cache_path"`
}

// HTTPConfig configures the reporting server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration for Uniswap v2 on Ethereum mainnet.
func Default() *Config {
	return &Config{
		FactoryAddress: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		IntermediaryAddresses: []string{
			"0x7a250d5630b4cf539739df2c5dacb4c659f2488d", // router 02
			"0xf164fc0ec4e93095b804a4795bbe1e041497b92a", // router 01
		},
		WhitelistTokens: []string{
			"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
			"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
			"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
		},
		UntrackedPairs: []string{
			"0x9ea3b5b4ec044b70375236a281986106457b20ef",
		},
		Pricing: PricingConfig{
			EthPriceUSD: "0",
			DerivedETH: map[string]string{
				"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "1",
			},
		},
		RPC: RPCConfig{
			StartBlock:    10000835,
			BatchBlocks:   500,
			Confirmations: 12,
			PollInterval:  12 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files if present. Missing files are ignored and
// variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"RPC_URL":           &c.RPC.URL,
		"STORAGE_BACKEND":   &c.Storage.Backend,
		"POSTGRES_DSN":      &c.Storage.PostgresDSN,
		"CLICKHOUSE_DSN":    &c.Storage.ClickhouseDSN,
		"HEADER_CACHE_PATH": &c.Storage.HeaderCachePath,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FILE":          &c.Log.OutputFile,
		"HTTP_ADDR":         &c.HTTP.Addr,
		"ETH_PRICE_USD":     &c.Pricing.EthPriceUSD,
		"FACTORY_ADDRESS":   &c.FactoryAddress,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "START_BLOCK"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSTART_BLOCK: %w", EnvPrefix, err)
		}
		c.RPC.StartBlock = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "INTERMEDIARY_ADDRESSES"); ok {
		c.IntermediaryAddresses = splitList(v)
	}
	return nil
}

// Validate checks addresses and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	if !common.IsHexAddress(c.FactoryAddress) {
		errs = append(errs, fmt.Errorf("factory_address %q is not an address", c.FactoryAddress))
	}
	for field, list := range map[string][]string{
		"intermediary_addresses": c.IntermediaryAddresses,
		"whitelist_tokens":       c.WhitelistTokens,
		"untracked_pairs":        c.UntrackedPairs,
	} {
		for _, a := range list {
			if !common.IsHexAddress(a) {
				errs = append(errs, fmt.Errorf("%s: %q is not an address", field, a))
			}
		}
	}
	for _, o := range c.TokenOverrides {
		if !common.IsHexAddress(o.Address) {
			errs = append(errs, fmt.Errorf("token_overrides: %q is not an address", o.Address))
		}
	}
	for a := range c.Pricing.DerivedETH {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Errorf("pricing.derived_eth: %q is not an address", a))
		}
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be memory or postgres", c.Storage.Backend))
	}

	if c.RPC.BatchBlocks == 0 {
		errs = append(errs, errors.New("rpc.batch_blocks must be positive"))
	}
	if c.RPC.RateLimit < 0 {
		errs = append(errs, errors.New("rpc.rate_limit must not be negative"))
	}
	if c.RPC.PollInterval <= 0 {
		errs = append(errs, errors.New("rpc.poll_interval must be positive"))
	}

	return errors.Join(errs...)
}

// Factory returns the factory address.
func (c *Config) Factory() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// Intermediaries returns the router allow-list as addresses.
func (c *Config) Intermediaries() []common.Address {
	return toAddresses(c.IntermediaryAddresses)
}

// Whitelist returns the tracked-token whitelist as addresses.
func (c *Config) Whitelist() []common.Address {
	return toAddresses(c.WhitelistTokens)
}

// Untracked returns the pairs excluded from tracked volume.
func (c *Config) Untracked() []common.Address {
	return toAddresses(c.UntrackedPairs)
}

func toAddresses(in []string) []common.Address {
	out := make([]common.Address, 0, len(in))
	for _, s := range in {
		out = append(out, common.HexToAddress(s))
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
