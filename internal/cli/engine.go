package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/chainquery"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/config"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/multisig"
)

// engine holds everything a command needs once the configuration is
// resolved: the chain backend, the state resolver, the transaction
// builder, the submission gate and the multisig session store.
type engine struct {
	cfg      *config.Config
	log      *slog.Logger
	backend  chainquery.Backend
	resolver *chainquery.Resolver
	builder  *tx.Builder
	gate     *chainquery.Gate
	store    *multisig.Store
	coord    *multisig.Coordinator
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine loads the configuration and assembles the runtime.
func newEngine() (*engine, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	log := newLogger()

	network, err := tx.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	contract, err := tx.ParseAddress(cfg.Oracle.ContractAddress, network)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}
	wallet, err := tx.ParseAddress(cfg.Wallet.Address, network)
	if err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}
	if wallet.IsScript {
		return nil, fmt.Errorf("wallet address: script credentials cannot sign")
	}
	walletKey, err := oracle.KeyHashFromBytes(wallet.Hash[:])
	if err != nil {
		return nil, err
	}
	marker, err := parseAsset(cfg.Oracle.MarkerPolicy, cfg.Oracle.MarkerName)
	if err != nil {
		return nil, fmt.Errorf("marker token: %w", err)
	}

	backend, err := newBackend(cfg, network)
	if err != nil {
		return nil, err
	}
	resolver, err := chainquery.NewResolver(backend, contract, marker, chainquery.SlotConfigFor(network))
	if err != nil {
		return nil, err
	}

	builder := &tx.Builder{
		Params:    protocolParams(cfg),
		Network:   network,
		Contract:  contract,
		Wallet:    wallet,
		WalletKey: walletKey,
		Marker:    marker,
		TTLSlots:  cfg.Protocol.TTLSlots,
	}
	if cfg.Oracle.FeeTokenPolicy != "" {
		feeToken, err := parseAsset(cfg.Oracle.FeeTokenPolicy, cfg.Oracle.FeeTokenName)
		if err != nil {
			return nil, fmt.Errorf("fee token: %w", err)
		}
		builder.FeeToken = &feeToken
	}

	store, err := multisig.OpenStore(cfg.Sessions.Path)
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		log:      log,
		backend:  backend,
		resolver: resolver,
		builder:  builder,
		gate:     chainquery.NewGate(backend, resolver, log),
		store:    store,
		coord:    multisig.NewCoordinator(store, log),
	}, nil
}

func (e *engine) Close() {
	if c, ok := e.backend.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			e.log.Warn("backend close", "err", err)
		}
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("session store close", "err", err)
	}
}

// signingKey reads the wallet's ed25519 key from the configured file.
// The file holds the hex-encoded 32-byte seed or 64-byte private key.
func (e *engine) signingKey() (ed25519.PrivateKey, error) {
	path := e.cfg.Wallet.SigningKeyFile
	if path == "" {
		return nil, fmt.Errorf("wallet.signing_key_file is not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("signing key: not hex: %v", err)
	}
	switch len(decoded) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	default:
		return nil, fmt.Errorf("signing key: want %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(decoded))
	}
}

func newBackend(cfg *config.Config, network tx.Network) (chainquery.Backend, error) {
	switch cfg.Backend.Kind {
	case "ogmios":
		return chainquery.NewOgmiosBackend(cfg.Backend.OgmiosURL), nil
	case "blockfrost":
		url := cfg.Backend.BlockfrostURL
		if url == "" {
			switch network {
			case tx.Mainnet:
				url = chainquery.BlockfrostMainnetURL
			case tx.Preprod:
				url = chainquery.BlockfrostPreprodURL
			case tx.Preview:
				url = chainquery.BlockfrostPreviewURL
			}
		}
		return chainquery.NewBlockfrostBackend(url, cfg.Backend.BlockfrostProjectID), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

func protocolParams(cfg *config.Config) tx.ProtocolParams {
	p := tx.DefaultProtocolParams()
	if cfg.Protocol.MinFeeA != 0 {
		p.MinFeeA = cfg.Protocol.MinFeeA
	}
	if cfg.Protocol.MinFeeB != 0 {
		p.MinFeeB = cfg.Protocol.MinFeeB
	}
	if cfg.Protocol.CoinsPerUTxOByte != 0 {
		p.CoinsPerUTxOByte = cfg.Protocol.CoinsPerUTxOByte
	}
	if cfg.Protocol.MaxTxSize != 0 {
		p.MaxTxSize = cfg.Protocol.MaxTxSize
	}
	return p
}

func parseAsset(policyHex, name string) (tx.AssetID, error) {
	var asset tx.AssetID
	raw, err := hex.DecodeString(policyHex)
	if err != nil {
		return asset, fmt.Errorf("policy: %v", err)
	}
	if len(raw) != len(asset.Policy) {
		return asset, fmt.Errorf("policy: want %d bytes, got %d", len(asset.Policy), len(raw))
	}
	copy(asset.Policy[:], raw)
	asset.Name = name
	return asset, nil
}

// runAction is the shared command path: build the transaction, open a
// signing session, contribute the wallet's own witness, and either
// submit immediately or leave the session pending for the remaining
// signers.
func runAction(ctx context.Context, e *engine, req oracle.ActionRequest) error {
	key, err := e.signingKey()
	if err != nil {
		return err
	}

	unsigned, err := e.builder.Build(ctx, e.resolver, req)
	if err != nil {
		return err
	}

	if _, err := e.coord.Start(unsigned); err != nil {
		return err
	}

	w := multisig.Sign(key, unsigned.Hash[:])
	status, err := e.coord.Contribute(unsigned.Hash, w.VKey, w.Signature)
	if err != nil {
		return err
	}

	if !status.Complete {
		fmt.Printf("Session %s needs more signatures (%d of %d collected).\n",
			unsigned.Hash, len(status.Collected), status.Threshold)
		fmt.Printf("Share the session with the other signers:\n")
		fmt.Printf("  charli3 multisig export --tx %s --out session.cbor\n", unsigned.Hash)
		return nil
	}

	signed, err := e.coord.Assemble(unsigned.Hash)
	if err != nil {
		return err
	}
	return submitAndWait(ctx, e, unsigned, signed)
}

func submitAndWait(ctx context.Context, e *engine, unsigned *tx.Unsigned, signed []byte) error {
	hash, err := e.gate.Submit(ctx, unsigned, signed)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted %s, waiting for confirmation...\n", hash)
	if err := e.gate.WaitConfirmed(ctx, hash); err != nil {
		return err
	}
	fmt.Printf("Confirmed %s\n", hash)
	return nil
}

// withEngine wraps a command body with engine setup, teardown and a
// cancellable context.
func withEngine(run func(ctx context.Context, e *engine) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd.Context(), e)
	}
}
