package config

import "github.com/spf13/viper"

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	// Network defaults
	v.SetDefault("network", "mainnet")

	// Backend defaults
	v.SetDefault("backend.kind", "blockfrost")
	v.SetDefault("backend.ogmios_url", "")
	v.SetDefault("backend.blockfrost_url", "")
	v.SetDefault("backend.blockfrost_project_id", "")

	// Oracle defaults
	v.SetDefault("oracle.marker_name", "OracleState")
	v.SetDefault("oracle.fee_token_policy", "")
	v.SetDefault("oracle.fee_token_name", "")

	// Protocol defaults; zero overrides fall back to mainnet parameters
	v.SetDefault("protocol.min_fee_a", 0)
	v.SetDefault("protocol.min_fee_b", 0)
	v.SetDefault("protocol.coins_per_utxo_byte", 0)
	v.SetDefault("protocol.max_tx_size", 0)
	v.SetDefault("protocol.ttl_slots", 1200)

	// Session store defaults
	v.SetDefault("sessions.path", "charli3-sessions.db")
}
