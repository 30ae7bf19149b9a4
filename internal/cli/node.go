package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Node operator actions",
	Long: `Actions available to a registered node operator: submitting a price
observation, triggering an aggregation, and collecting accumulated
rewards. The operator credential is derived from the configured wallet.`,
}

var (
	submitPriceValue int64

	collectPayTo string
)

var submitPriceCmd = &cobra.Command{
	Use:   "submit-price",
	Short: "Submit this node's price observation",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		if submitPriceValue <= 0 {
			return fmt.Errorf("--price must be positive")
		}
		return runAction(ctx, e, oracle.SubmitPrice{
			Operator: e.builder.WalletKey,
			Value:    submitPriceValue,
		})
	}),
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold the fresh node feeds into a new canonical price",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		return runAction(ctx, e, oracle.Aggregate{
			Aggregator: e.builder.WalletKey,
		})
	}),
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect this node's accumulated reward",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		payTo := e.builder.WalletKey
		if collectPayTo != "" {
			kh, err := oracle.ParseKeyHash(collectPayTo)
			if err != nil {
				return fmt.Errorf("--pay-to: %w", err)
			}
			payTo = kh
		}
		return runAction(ctx, e, oracle.NodeCollect{
			Operator: e.builder.WalletKey,
			PayTo:    payTo,
		})
	}),
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.AddCommand(submitPriceCmd)
	nodeCmd.AddCommand(aggregateCmd)
	nodeCmd.AddCommand(collectCmd)

	submitPriceCmd.Flags().Int64Var(&submitPriceValue, "price", 0, "observed price in base units")
	submitPriceCmd.MarkFlagRequired("price")

	collectCmd.Flags().StringVar(&collectPayTo, "pay-to", "", "credential receiving the reward (hex, default: own wallet)")
}
