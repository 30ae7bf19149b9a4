package cli

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/multisig"
)

var multisigCmd = &cobra.Command{
	Use:   "multisig",
	Short: "Multisig signing sessions",
	Long: `Manage pending signing sessions. A session is created automatically
when an owner action needs more signatures than the wallet alone can
provide; export it, pass it to the other signers, import their
contributions and submit once the policy threshold is met.`,
}

var (
	sessionHash string
	exportPath  string
)

func parseSessionHash() (tx.TxHash, error) {
	hash, err := tx.ParseTxHash(sessionHash)
	if err != nil {
		return tx.TxHash{}, fmt.Errorf("--tx: %w", err)
	}
	return hash, nil
}

func printStatus(s *multisig.Status) {
	fmt.Printf("Session   %s\n", s.Hash)
	fmt.Printf("Action    %s\n", s.Action)
	fmt.Printf("Collected %d of %d required signatures\n", len(s.Collected), s.Threshold)
	for _, kh := range s.Collected {
		fmt.Printf("  signed  %s\n", kh)
	}
	if s.Complete {
		fmt.Println("Status    ready to submit")
	} else {
		fmt.Println("Status    pending")
	}
}

var msStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show one session's progress",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		hash, err := parseSessionHash()
		if err != nil {
			return err
		}
		status, err := e.coord.Status(hash)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	}),
}

var msListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pending sessions",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		sessions, err := e.coord.Sessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No pending sessions.")
			return nil
		}
		for _, s := range sessions {
			state := "pending"
			if s.Complete {
				state = "ready"
			}
			fmt.Printf("%s  %-16s %d/%d  %s\n", s.Hash, s.Action, len(s.Collected), s.Threshold, state)
		}
		return nil
	}),
}

var msSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Add this wallet's signature to a session",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		hash, err := parseSessionHash()
		if err != nil {
			return err
		}
		key, err := e.signingKey()
		if err != nil {
			return err
		}
		env, err := e.store.Get(hash)
		if err != nil {
			return err
		}
		unsigned, err := env.Unsigned()
		if err != nil {
			return err
		}

		// never sign blind: the transaction must still spend the live
		// state, need this wallet's credential, and not raid its UTxOs
		if unsigned.Action.HasRedeemer() {
			if err := e.gate.CheckFresh(ctx, unsigned); err != nil {
				return err
			}
		}
		credential, err := multisig.CredentialOf(key.Public().(ed25519.PublicKey))
		if err != nil {
			return err
		}
		if !env.RequiresSigner(credential) {
			return fmt.Errorf("%w: session %s does not need %s",
				multisig.ErrUnexpectedSigner, hash, credential)
		}
		if credential != unsigned.FeePayer {
			ours, err := e.resolver.WalletUTxOs(ctx, e.builder.Wallet)
			if err != nil {
				return err
			}
			if env.SpendsAny(outPointsOf(ours)) {
				return fmt.Errorf("session %s spends this wallet's utxos; refusing to sign", hash)
			}
		}

		w := multisig.Sign(key, hash[:])
		status, err := e.coord.Contribute(hash, w.VKey, w.Signature)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	}),
}

func outPointsOf(utxos []tx.UTxO) []tx.OutPoint {
	out := make([]tx.OutPoint, len(utxos))
	for i, u := range utxos {
		out[i] = u.OutPoint
	}
	return out
}

var msExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a session envelope to a file",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		hash, err := parseSessionHash()
		if err != nil {
			return err
		}
		env, err := e.store.Get(hash)
		if err != nil {
			return err
		}
		data, err := env.Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportPath, data, 0600); err != nil {
			return err
		}
		fmt.Printf("Wrote session %s to %s\n", hash, exportPath)
		return nil
	}),
}

var msImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a session envelope, merging any witnesses it carries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		env, err := multisig.UnmarshalEnvelope(data)
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			return err
		}
		hash := env.Hash()

		if _, err := e.coord.Status(hash); errors.Is(err, multisig.ErrSessionNotFound) {
			witnesses := env.Witnesses
			env.Witnesses = nil
			if err := e.store.Put(hash, env); err != nil {
				return err
			}
			env.Witnesses = witnesses
		} else if err != nil {
			return err
		}

		var status *multisig.Status
		for _, w := range env.Witnesses {
			status, err = e.coord.Contribute(hash, w.VKey, w.Signature)
			if err != nil {
				return err
			}
		}
		if status == nil {
			status, err = e.coord.Status(hash)
			if err != nil {
				return err
			}
		}
		printStatus(status)
		return nil
	},
}

var msSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Assemble a complete session and submit it",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		hash, err := parseSessionHash()
		if err != nil {
			return err
		}
		env, err := e.store.Get(hash)
		if err != nil {
			return err
		}
		unsigned, err := env.Unsigned()
		if err != nil {
			return err
		}
		signed, err := e.coord.Assemble(hash)
		if err != nil {
			return err
		}
		return submitAndWait(ctx, e, unsigned, signed)
	}),
}

var msAbandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Discard a session",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		hash, err := parseSessionHash()
		if err != nil {
			return err
		}
		if err := e.coord.Abandon(hash); err != nil {
			return err
		}
		fmt.Printf("Abandoned session %s\n", hash)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(multisigCmd)
	multisigCmd.AddCommand(msStatusCmd)
	multisigCmd.AddCommand(msListCmd)
	multisigCmd.AddCommand(msSignCmd)
	multisigCmd.AddCommand(msExportCmd)
	multisigCmd.AddCommand(msImportCmd)
	multisigCmd.AddCommand(msSubmitCmd)
	multisigCmd.AddCommand(msAbandonCmd)

	for _, c := range []*cobra.Command{msStatusCmd, msSignCmd, msExportCmd, msSubmitCmd, msAbandonCmd} {
		c.Flags().StringVar(&sessionHash, "tx", "", "session transaction hash (hex)")
		c.MarkFlagRequired("tx")
	}
	msExportCmd.Flags().StringVar(&exportPath, "out", "session.cbor", "output file")
}
