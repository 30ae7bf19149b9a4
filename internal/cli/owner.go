package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Platform owner actions",
	Long: `Administrative actions gated by the platform multisig policy: managing
the node set, editing settings, collecting the platform reward, funding
the reserve and closing the oracle. These commands build the
transaction and contribute the wallet's signature; when the policy
needs more signers the session stays pending in the local store.`,
}

var (
	nodesArg []string

	removePayout bool

	fundAmount uint64

	platformPayTo string

	closePayTo    string
	closeToNodes  bool
	refScriptFile string

	editUpdatedNodesPct    uint64
	editNodeExpiry         int64
	editAggregateWindow    int64
	editAggregateChangePct uint64
	editMinimumDeposit     uint64
	editNodeFee            uint64
	editAggregateFee       uint64
	editPlatformFee        uint64
	editIQRMultiplier      uint64
	editDivergencePct      uint64
	editSigners            []string
	editThreshold          int
)

func parseKeyHashes(args []string) ([]oracle.KeyHash, error) {
	out := make([]oracle.KeyHash, len(args))
	for i, s := range args {
		kh, err := oracle.ParseKeyHash(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = kh
	}
	return out, nil
}

var addNodesCmd = &cobra.Command{
	Use:   "add-nodes",
	Short: "Register new node operators",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		operators, err := parseKeyHashes(nodesArg)
		if err != nil {
			return err
		}
		return runAction(ctx, e, oracle.AddNodes{Operators: operators})
	}),
}

var removeNodesCmd = &cobra.Command{
	Use:   "remove-nodes",
	Short: "Deregister node operators",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		operators, err := parseKeyHashes(nodesArg)
		if err != nil {
			return err
		}
		return runAction(ctx, e, oracle.RemoveNodes{
			Operators:     operators,
			PayoutRewards: removePayout,
		})
	}),
}

var editSettingsCmd = &cobra.Command{
	Use:   "edit-settings",
	Short: "Replace the oracle settings",
	Long: `Replace the oracle's aggregation settings. Fields not given as flags
keep their current on-chain value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := cmd.Context()

		snap, err := e.resolver.StateSnapshot(ctx)
		if err != nil {
			return err
		}
		s := snap.State.Settings

		flags := cmd.Flags()
		if flags.Changed("updated-nodes-pct") {
			s.UpdatedNodesPct = editUpdatedNodesPct
		}
		if flags.Changed("node-expiry") {
			s.NodeExpiry = editNodeExpiry
		}
		if flags.Changed("aggregate-window") {
			s.AggregateWindow = editAggregateWindow
		}
		if flags.Changed("aggregate-change-pct") {
			s.AggregateChangePct = editAggregateChangePct
		}
		if flags.Changed("minimum-deposit") {
			s.MinimumDeposit = editMinimumDeposit
		}
		if flags.Changed("node-fee") {
			s.Fees.NodeFee = editNodeFee
		}
		if flags.Changed("aggregate-fee") {
			s.Fees.AggregateFee = editAggregateFee
		}
		if flags.Changed("platform-fee") {
			s.Fees.PlatformFee = editPlatformFee
		}
		if flags.Changed("iqr-multiplier") {
			s.IQRMultiplier = editIQRMultiplier
		}
		if flags.Changed("divergence-pct") {
			s.DivergencePct = editDivergencePct
		}
		if flags.Changed("signers") {
			signers, err := parseKeyHashes(editSigners)
			if err != nil {
				return fmt.Errorf("--signers: %w", err)
			}
			s.Platform.Signers = signers
		}
		if flags.Changed("threshold") {
			s.Platform.Threshold = editThreshold
		}

		return runAction(ctx, e, oracle.EditSettings{Settings: s})
	},
}

var platformCollectCmd = &cobra.Command{
	Use:   "platform-collect",
	Short: "Collect the accumulated platform reward",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		payTo := e.builder.WalletKey
		if platformPayTo != "" {
			kh, err := oracle.ParseKeyHash(platformPayTo)
			if err != nil {
				return fmt.Errorf("--pay-to: %w", err)
			}
			payTo = kh
		}
		return runAction(ctx, e, oracle.PlatformCollect{PayTo: payTo})
	}),
}

var addFundsCmd = &cobra.Command{
	Use:   "add-funds",
	Short: "Top up the oracle's fee-token reserve",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		if fundAmount == 0 {
			return fmt.Errorf("--amount must be positive")
		}
		return runAction(ctx, e, oracle.AddFunds{Amount: fundAmount})
	}),
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the oracle and settle its funds",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		payTo := e.builder.WalletKey
		if closePayTo != "" {
			kh, err := oracle.ParseKeyHash(closePayTo)
			if err != nil {
				return fmt.Errorf("--pay-to: %w", err)
			}
			payTo = kh
		}
		disbursement := oracle.DisburseToAddress
		if closeToNodes {
			disbursement = oracle.DisburseToNodes
		}
		return runAction(ctx, e, oracle.Close{
			PayTo:        payTo,
			Disbursement: disbursement,
		})
	}),
}

var createRefScriptCmd = &cobra.Command{
	Use:   "create-reference-script",
	Short: "Publish the validator script as a reference UTxO",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		script, err := os.ReadFile(refScriptFile)
		if err != nil {
			return fmt.Errorf("--script-file: %w", err)
		}
		return runAction(ctx, e, oracle.CreateReferenceScript{Script: script})
	}),
}

func init() {
	rootCmd.AddCommand(ownerCmd)
	ownerCmd.AddCommand(addNodesCmd)
	ownerCmd.AddCommand(removeNodesCmd)
	ownerCmd.AddCommand(editSettingsCmd)
	ownerCmd.AddCommand(platformCollectCmd)
	ownerCmd.AddCommand(addFundsCmd)
	ownerCmd.AddCommand(closeCmd)
	ownerCmd.AddCommand(createRefScriptCmd)

	addNodesCmd.Flags().StringSliceVar(&nodesArg, "nodes", nil, "operator credentials to register (hex)")
	addNodesCmd.MarkFlagRequired("nodes")
	removeNodesCmd.Flags().StringSliceVar(&nodesArg, "nodes", nil, "operator credentials to deregister (hex)")
	removeNodesCmd.MarkFlagRequired("nodes")
	removeNodesCmd.Flags().BoolVar(&removePayout, "payout-rewards", false, "pay out unclaimed rewards to the removed nodes")

	flags := editSettingsCmd.Flags()
	flags.Uint64Var(&editUpdatedNodesPct, "updated-nodes-pct", 0, "required fresh node fraction (10000 = 100%)")
	flags.Int64Var(&editNodeExpiry, "node-expiry", 0, "feed freshness window in milliseconds")
	flags.Int64Var(&editAggregateWindow, "aggregate-window", 0, "minimum aggregation spacing in milliseconds")
	flags.Uint64Var(&editAggregateChangePct, "aggregate-change-pct", 0, "price move overriding the window (10000 = 100%)")
	flags.Uint64Var(&editMinimumDeposit, "minimum-deposit", 0, "minimum fee-token reserve")
	flags.Uint64Var(&editNodeFee, "node-fee", 0, "per-node reward per aggregation")
	flags.Uint64Var(&editAggregateFee, "aggregate-fee", 0, "aggregator reward per aggregation")
	flags.Uint64Var(&editPlatformFee, "platform-fee", 0, "platform reward per aggregation")
	flags.Uint64Var(&editIQRMultiplier, "iqr-multiplier", 0, "outlier fence width in whole IQRs")
	flags.Uint64Var(&editDivergencePct, "divergence-pct", 0, "maximum divergence from the median (10000 = 100%)")
	flags.StringSliceVar(&editSigners, "signers", nil, "platform signer credentials (hex)")
	flags.IntVar(&editThreshold, "threshold", 0, "required platform signatures")

	platformCollectCmd.Flags().StringVar(&platformPayTo, "pay-to", "", "credential receiving the reward (hex, default: own wallet)")
	addFundsCmd.Flags().Uint64Var(&fundAmount, "amount", 0, "fee-token amount to deposit")
	addFundsCmd.MarkFlagRequired("amount")
	closeCmd.Flags().StringVar(&closePayTo, "pay-to", "", "credential receiving the remainder (hex, default: own wallet)")
	closeCmd.Flags().BoolVar(&closeToNodes, "disburse-to-nodes", false, "pay unclaimed node rewards to the nodes instead of --pay-to")
	createRefScriptCmd.Flags().StringVar(&refScriptFile, "script-file", "", "file holding the raw validator script bytes")
	createRefScriptCmd.MarkFlagRequired("script-file")
}
