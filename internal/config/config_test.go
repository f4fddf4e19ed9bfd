package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Intermediaries(), 2)
	assert.Contains(t, cfg.Intermediaries(), common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"))
	assert.Equal(t, common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"), cfg.Factory())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
intermediary_addresses:
  - "0x00000000000000000000000000000000000000aa"
rpc:
  url: "http://localhost:8545"
  batch_blocks: 50
  poll_interval: 3s
token_overrides:
  - address: "0xe0b7927c4af23765cb51314a0e0521a9645f0e2a"
    symbol: "DGD"
    name: "DGD"
    decimals: 9
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []common.Address{common.HexToAddress("0xaa")}, cfg.Intermediaries())
	assert.Equal(t, "http://localhost:8545", cfg.RPC.URL)
	assert.Equal(t, uint64(50), cfg.RPC.BatchBlocks)
	assert.Equal(t, 3*time.Second, cfg.RPC.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.TokenOverrides, 1)
	require.NotNil(t, cfg.TokenOverrides[0].Decimals)
	assert.Equal(t, uint8(9), *cfg.TokenOverrides[0].Decimals)

	// untouched sections keep defaults
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Len(t, cfg.WhitelistTokens, 4)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"RPC_URL", "ws://node:8546")
	t.Setenv(EnvPrefix+"START_BLOCK", "123")
	t.Setenv(EnvPrefix+"INTERMEDIARY_ADDRESSES", "0x00000000000000000000000000000000000000aa, 0x00000000000000000000000000000000000000bb")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ws://node:8546", cfg.RPC.URL)
	assert.Equal(t, uint64(123), cfg.RPC.StartBlock)
	assert.Len(t, cfg.IntermediaryAddresses, 2)
}

func TestLoad_BadStartBlock(t *testing.T) {
	t.Setenv(EnvPrefix+"START_BLOCK", "abc")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.FactoryAddress = "nope"
	cfg.IntermediaryAddresses = append(cfg.IntermediaryAddresses, "0x123")
	cfg.Storage.Backend = "postgres"
	cfg.RPC.BatchBlocks = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory_address")
	assert.Contains(t, err.Error(), "intermediary_addresses")
	assert.Contains(t, err.Error(), "postgres_dsn")
	assert.Contains(t, err.Error(), "batch_blocks")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEX_LEDGER_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DEX_LEDGER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("DEX_LEDGER_TEST_DOTENV"))
}
