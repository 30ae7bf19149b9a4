package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Read-only oracle state inspection",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the live oracle state",
	RunE: withEngine(func(ctx context.Context, e *engine) error {
		snap, err := e.resolver.StateSnapshot(ctx)
		if err != nil {
			return err
		}
		now, err := e.resolver.NowMillis(ctx)
		if err != nil {
			return err
		}
		s := snap.State

		fmt.Printf("State UTxO  %s\n", snap.UTxO.OutPoint)
		fmt.Printf("Balance     %s\n", snap.UTxO.Output.Value)
		if s.Price != nil {
			age := time.Duration(now-s.Price.Timestamp) * time.Millisecond
			fmt.Printf("Price       %d (aggregated %s ago, expires %s)\n",
				s.Price.Price, age.Round(time.Second), millis(s.Price.Expiry))
		} else {
			fmt.Println("Price       none yet")
		}
		fmt.Printf("Platform    %d signers, threshold %d, reward %d\n",
			len(s.Settings.Platform.Signers), s.Settings.Platform.Threshold, s.PlatformReward)

		fmt.Printf("Nodes       %d registered, %d fresh needed\n",
			len(s.Nodes), s.Settings.RequiredNodeCount(len(s.Nodes)))
		for _, n := range s.Nodes {
			line := fmt.Sprintf("  %s  reward %d", n.Operator, n.Reward)
			if n.Feed != nil {
				fresh := "stale"
				if now-n.Feed.UpdatedAt <= s.Settings.NodeExpiry {
					fresh = "fresh"
				}
				line += fmt.Sprintf("  feed %d at %s (%s)", n.Feed.Value, millis(n.Feed.UpdatedAt), fresh)
			} else {
				line += "  no feed"
			}
			fmt.Println(line)
		}
		return nil
	}),
}

func millis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func init() {
	rootCmd.AddCommand(oracleCmd)
	oracleCmd.AddCommand(showCmd)
}
