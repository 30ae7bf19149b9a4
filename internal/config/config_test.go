package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "charli3.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
network: preprod

backend:
  kind: ogmios
  ogmios_url: ws://localhost:1337

oracle:
  contract_address: addr_test1contract
  marker_policy: `+testPolicy+`

wallet:
  address: addr_test1wallet

sessions:
  path: /tmp/charli3-test-sessions.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "preprod", cfg.Network)
	assert.Equal(t, "ogmios", cfg.Backend.Kind)
	assert.Equal(t, "ws://localhost:1337", cfg.Backend.OgmiosURL)
	assert.Equal(t, testPolicy, cfg.Oracle.MarkerPolicy)
	assert.Equal(t, "OracleState", cfg.Oracle.MarkerName, "default should apply")
	assert.Equal(t, uint64(1200), cfg.Protocol.TTLSlots, "default should apply")
	assert.Equal(t, path, cfg.Path())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
network: preview

backend:
  kind: blockfrost
  blockfrost_project_id: preview123

oracle:
  contract_address: addr_test1contract
  marker_policy: `+testPolicy+`

wallet:
  address: addr_test1wallet
`)

	t.Setenv("CHARLI3_BACKEND_BLOCKFROST_PROJECT_ID", "fromenv456")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv456", cfg.Backend.BlockfrostProjectID)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	valid := func() Config {
		return Config{
			Network: "mainnet",
			Backend: BackendConfig{Kind: "blockfrost", BlockfrostProjectID: "id"},
			Oracle: OracleConfig{
				ContractAddress: "addr1contract",
				MarkerPolicy:    testPolicy,
				MarkerName:      "OracleState",
			},
			Wallet:   WalletConfig{Address: "addr1wallet"},
			Sessions: SessionsConfig{Path: "sessions.db"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown network", func(c *Config) { c.Network = "testnet" }, "network"},
		{"unknown backend kind", func(c *Config) { c.Backend.Kind = "koios" }, "kind"},
		{"ogmios without url", func(c *Config) { c.Backend = BackendConfig{Kind: "ogmios"} }, "ogmios_url"},
		{"ogmios with http url", func(c *Config) {
			c.Backend = BackendConfig{Kind: "ogmios", OgmiosURL: "http://localhost:1337"}
		}, "ws://"},
		{"blockfrost without project id", func(c *Config) { c.Backend.BlockfrostProjectID = "" }, "blockfrost_project_id"},
		{"missing contract address", func(c *Config) { c.Oracle.ContractAddress = "" }, "contract_address"},
		{"missing marker policy", func(c *Config) { c.Oracle.MarkerPolicy = "" }, "marker_policy"},
		{"short marker policy", func(c *Config) { c.Oracle.MarkerPolicy = "cafe" }, "28 bytes"},
		{"non-hex marker policy", func(c *Config) { c.Oracle.MarkerPolicy = "zz" }, "not hex"},
		{"non-hex fee token policy", func(c *Config) { c.Oracle.FeeTokenPolicy = "zz" }, "fee_token_policy"},
		{"missing wallet address", func(c *Config) { c.Wallet.Address = "" }, "wallet"},
		{"missing sessions path", func(c *Config) { c.Sessions.Path = "" }, "sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
}
