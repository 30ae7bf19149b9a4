// Package config loads and validates the engine configuration. Sources
// layer in priority order: built-in defaults, then the YAML config
// file, then CHARLI3_-prefixed environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Config is the complete engine configuration.
type Config struct {
	// Network names the chain: mainnet, preprod or preview.
	Network string `yaml:"network" mapstructure:"network"`

	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Wallet   WalletConfig   `yaml:"wallet" mapstructure:"wallet"`
	Protocol ProtocolConfig `yaml:"protocol" mapstructure:"protocol"`
	Sessions SessionsConfig `yaml:"sessions" mapstructure:"sessions"`

	configPath string
}

// BackendConfig selects and parameterizes the chain backend.
type BackendConfig struct {
	// Kind is "ogmios" or "blockfrost".
	Kind string `yaml:"kind" mapstructure:"kind"`

	// OgmiosURL is the ws:// endpoint for the ogmios backend.
	OgmiosURL string `yaml:"ogmios_url" mapstructure:"ogmios_url"`

	// BlockfrostURL and BlockfrostProjectID configure the REST backend.
	// An empty URL falls back to the public endpoint for Network.
	BlockfrostURL       string `yaml:"blockfrost_url" mapstructure:"blockfrost_url"`
	BlockfrostProjectID string `yaml:"blockfrost_project_id" mapstructure:"blockfrost_project_id"`
}

// OracleConfig pins one oracle deployment.
type OracleConfig struct {
	// ContractAddress is the validator's bech32 payment address.
	ContractAddress string `yaml:"contract_address" mapstructure:"contract_address"`

	// MarkerPolicy and MarkerName identify the state NFT; the policy is
	// hex, the name is raw text.
	MarkerPolicy string `yaml:"marker_policy" mapstructure:"marker_policy"`
	MarkerName   string `yaml:"marker_name" mapstructure:"marker_name"`

	// FeeTokenPolicy and FeeTokenName identify the reward token. Empty
	// policy means rewards are paid in the chain currency.
	FeeTokenPolicy string `yaml:"fee_token_policy" mapstructure:"fee_token_policy"`
	FeeTokenName   string `yaml:"fee_token_name" mapstructure:"fee_token_name"`
}

// WalletConfig is the engine's own wallet.
type WalletConfig struct {
	// Address is the fee wallet's bech32 address.
	Address string `yaml:"address" mapstructure:"address"`

	// SigningKeyFile holds the hex-encoded ed25519 seed. Optional for
	// watch-only commands.
	SigningKeyFile string `yaml:"signing_key_file" mapstructure:"signing_key_file"`
}

// ProtocolConfig overrides ledger parameters when set; zero values take
// defaults.
type ProtocolConfig struct {
	MinFeeA          uint64 `yaml:"min_fee_a" mapstructure:"min_fee_a"`
	MinFeeB          uint64 `yaml:"min_fee_b" mapstructure:"min_fee_b"`
	CoinsPerUTxOByte uint64 `yaml:"coins_per_utxo_byte" mapstructure:"coins_per_utxo_byte"`
	MaxTxSize        uint64 `yaml:"max_tx_size" mapstructure:"max_tx_size"`
	TTLSlots         uint64 `yaml:"ttl_slots" mapstructure:"ttl_slots"`
}

// SessionsConfig locates the multisig session store.
type SessionsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Path returns where the configuration was loaded from.
func (c *Config) Path() string { return c.configPath }

// Validate checks the complete configuration.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "preprod", "preview":
	default:
		return fmt.Errorf("network must be mainnet, preprod or preview, got %q", c.Network)
	}
	if err := c.Backend.validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Oracle.validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	if c.Wallet.Address == "" {
		return fmt.Errorf("wallet: address is required")
	}
	if c.Sessions.Path == "" {
		return fmt.Errorf("sessions: path is required")
	}
	return nil
}

func (b *BackendConfig) validate() error {
	switch b.Kind {
	case "ogmios":
		if b.OgmiosURL == "" {
			return fmt.Errorf("ogmios_url is required for the ogmios backend")
		}
		if !strings.HasPrefix(b.OgmiosURL, "ws://") && !strings.HasPrefix(b.OgmiosURL, "wss://") {
			return fmt.Errorf("ogmios_url must be a ws:// or wss:// URL, got %q", b.OgmiosURL)
		}
	case "blockfrost":
		if b.BlockfrostProjectID == "" {
			return fmt.Errorf("blockfrost_project_id is required for the blockfrost backend")
		}
	default:
		return fmt.Errorf("kind must be ogmios or blockfrost, got %q", b.Kind)
	}
	return nil
}

func (o *OracleConfig) validate() error {
	if o.ContractAddress == "" {
		return fmt.Errorf("contract_address is required")
	}
	if err := checkPolicyHex(o.MarkerPolicy); err != nil {
		return fmt.Errorf("marker_policy: %w", err)
	}
	if o.FeeTokenPolicy != "" {
		if err := checkPolicyHex(o.FeeTokenPolicy); err != nil {
			return fmt.Errorf("fee_token_policy: %w", err)
		}
	}
	return nil
}

func checkPolicyHex(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("not hex: %v", err)
	}
	if len(raw) != 28 {
		return fmt.Errorf("want 28 bytes, got %d", len(raw))
	}
	return nil
}
