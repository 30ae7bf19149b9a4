package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow = int64(1_700_000_600_000)

// liveState returns a five-node oracle where three nodes have fresh
// feeds, matching a 6000 (60%) fresh-node requirement exactly.
func liveState(t *testing.T) *OracleState {
	t.Helper()
	s := &OracleState{
		Price: &PriceData{
			Price:     1_000_000,
			Timestamp: testNow - 2_000_000,
			Expiry:    testNow - 200_000,
		},
		Settings:  testSettings(t),
		Lifecycle: LifecycleActive,
	}
	for i := byte(1); i <= 5; i++ {
		s.Nodes = append(s.Nodes, NodeEntry{Operator: kh(t, i)})
	}
	s.Nodes[0].Feed = &Feed{Value: 1_010_000, UpdatedAt: testNow - 60_000}
	s.Nodes[1].Feed = &Feed{Value: 1_011_000, UpdatedAt: testNow - 120_000}
	s.Nodes[2].Feed = &Feed{Value: 1_009_000, UpdatedAt: testNow - 30_000}
	// node 4 last reported long ago, node 5 never has
	s.Nodes[3].Feed = &Feed{Value: 900_000, UpdatedAt: testNow - 7_200_000}
	return s
}

func TestCanApplySubmitPrice(t *testing.T) {
	s := liveState(t)

	require.NoError(t, CanApply(s, SubmitPrice{Operator: kh(t, 1), Value: 1_010_000}, testNow))

	err := CanApply(s, SubmitPrice{Operator: kh(t, 0x99), Value: 1_010_000}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)

	err = CanApply(s, SubmitPrice{Operator: kh(t, 1), Value: 0}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestApplySubmitPrice(t *testing.T) {
	s := liveState(t)

	next, payouts, err := Apply(s, SubmitPrice{Operator: kh(t, 5), Value: 1_010_500}, testNow)
	require.NoError(t, err)
	require.Empty(t, payouts)

	node := next.FindNode(kh(t, 5))
	require.NotNil(t, node.Feed)
	assert.Equal(t, int64(1_010_500), node.Feed.Value)
	assert.Equal(t, testNow, node.Feed.UpdatedAt)

	// original untouched
	assert.Nil(t, s.FindNode(kh(t, 5)).Feed)
}

func TestAggregateWindowExpired(t *testing.T) {
	s := liveState(t)

	next, payouts, err := Apply(s, Aggregate{Aggregator: kh(t, 1)}, testNow)
	require.NoError(t, err)
	require.Empty(t, payouts)

	require.NotNil(t, next.Price)
	assert.Equal(t, int64(1_010_000), next.Price.Price)
	assert.Equal(t, testNow, next.Price.Timestamp)
	assert.Equal(t, testNow+s.Settings.AggregateWindow, next.Price.Expiry)
}

func TestAggregateRewardBookkeeping(t *testing.T) {
	s := liveState(t)
	fees := s.Settings.Fees

	next, _, err := Apply(s, Aggregate{Aggregator: kh(t, 2)}, testNow)
	require.NoError(t, err)

	// fresh nodes earn the node fee, the aggregator earns both
	assert.Equal(t, fees.NodeFee, next.FindNode(kh(t, 1)).Reward)
	assert.Equal(t, fees.NodeFee+fees.AggregateFee, next.FindNode(kh(t, 2)).Reward)
	assert.Equal(t, fees.NodeFee, next.FindNode(kh(t, 3)).Reward)

	// stale and silent nodes earn nothing
	assert.Zero(t, next.FindNode(kh(t, 4)).Reward)
	assert.Zero(t, next.FindNode(kh(t, 5)).Reward)

	assert.Equal(t, s.PlatformReward+fees.PlatformFee, next.PlatformReward)
}

func TestAggregateNotEnoughFreshNodes(t *testing.T) {
	s := liveState(t)
	s.Nodes[2].Feed = nil // 2 of 5 fresh, need 3

	err := CanApply(s, Aggregate{Aggregator: kh(t, 1)}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "fresh feeds")
}

func TestAggregateIgnoresFeedsFromBeforeLastPrice(t *testing.T) {
	s := liveState(t)
	// node 2 reported before the last aggregation; its feed is still
	// within NodeExpiry but cannot count toward a second price
	s.Nodes[1].Feed.UpdatedAt = s.Price.Timestamp - 100_000

	err := CanApply(s, Aggregate{Aggregator: kh(t, 1)}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "fresh feeds")
}

func TestAggregateSkipsRewardForPreAggregationFeed(t *testing.T) {
	s := liveState(t)
	s.Nodes[1].Feed.UpdatedAt = s.Price.Timestamp - 100_000
	s.Nodes[3].Feed = &Feed{Value: 1_008_000, UpdatedAt: testNow - 50_000}

	next, _, err := Apply(s, Aggregate{Aggregator: kh(t, 1)}, testNow)
	require.NoError(t, err)

	// the stale reporter earns nothing, the replacement fresh node does
	assert.Zero(t, next.FindNode(kh(t, 2)).Reward)
	assert.Equal(t, s.Settings.Fees.NodeFee, next.FindNode(kh(t, 4)).Reward)
}

func TestRequiredNodeCountRoundsUp(t *testing.T) {
	set := testSettings(t) // 60%
	assert.Equal(t, 3, set.RequiredNodeCount(4))
	assert.Equal(t, 3, set.RequiredNodeCount(5))
	assert.Equal(t, 0, set.RequiredNodeCount(0))

	set.UpdatedNodesPct = FactorResolution
	assert.Equal(t, 7, set.RequiredNodeCount(7))
}

func TestAggregateUnregisteredAggregator(t *testing.T) {
	err := CanApply(liveState(t), Aggregate{Aggregator: kh(t, 0x99)}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAggregateWindowOpen(t *testing.T) {
	s := liveState(t)
	s.Price.Timestamp = testNow - 200_000 // window still open, feeds newer
	s.Price.Price = 1_010_000             // matches the incoming consensus

	err := CanApply(s, Aggregate{Aggregator: kh(t, 1)}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "window")
}

func TestAggregateWindowOpenLargeMove(t *testing.T) {
	s := liveState(t)
	s.Price.Timestamp = testNow - 200_000
	// consensus 1010000 vs current 1000000 is a 1% move, threshold is 1%
	require.NoError(t, CanApply(s, Aggregate{Aggregator: kh(t, 1)}, testNow))
}

func TestNodeCollect(t *testing.T) {
	s := liveState(t)
	s.Nodes[0].Reward = 4_500_000

	next, payouts, err := Apply(s, NodeCollect{Operator: kh(t, 1), PayTo: kh(t, 1)}, testNow)
	require.NoError(t, err)

	assert.Zero(t, next.FindNode(kh(t, 1)).Reward)
	require.Len(t, payouts, 1)
	assert.Equal(t, Payout{To: kh(t, 1), Amount: 4_500_000}, payouts[0])
}

func TestNodeCollectNothingAccrued(t *testing.T) {
	err := CanApply(liveState(t), NodeCollect{Operator: kh(t, 1), PayTo: kh(t, 1)}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPlatformCollect(t *testing.T) {
	s := liveState(t)
	s.PlatformReward = 9_000_000

	next, payouts, err := Apply(s, PlatformCollect{PayTo: kh(t, 0xa1)}, testNow)
	require.NoError(t, err)
	assert.Zero(t, next.PlatformReward)
	require.Len(t, payouts, 1)
	assert.Equal(t, uint64(9_000_000), payouts[0].Amount)
}

func TestEditSettings(t *testing.T) {
	s := liveState(t)
	updated := testSettings(t)
	updated.AggregateWindow = 900_000

	next, _, err := Apply(s, EditSettings{Settings: updated}, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(900_000), next.Settings.AggregateWindow)

	// node registry is independent of settings
	assert.Len(t, next.Nodes, len(s.Nodes))
}

func TestEditSettingsRejectsInvalid(t *testing.T) {
	bad := testSettings(t)
	bad.Platform.Threshold = 5 // only 3 signers

	err := CanApply(liveState(t), EditSettings{Settings: bad}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAddNodes(t *testing.T) {
	s := liveState(t)

	next, _, err := Apply(s, AddNodes{Operators: []KeyHash{kh(t, 0x10), kh(t, 0x11)}}, testNow)
	require.NoError(t, err)
	assert.Len(t, next.Nodes, 7)
	assert.True(t, next.HasNode(kh(t, 0x10)))
	assert.Nil(t, next.FindNode(kh(t, 0x11)).Feed)
}

func TestAddNodesRejectsDuplicate(t *testing.T) {
	s := liveState(t)

	err := CanApply(s, AddNodes{Operators: []KeyHash{kh(t, 1)}}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)

	err = CanApply(s, AddNodes{Operators: []KeyHash{kh(t, 0x10), kh(t, 0x10)}}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRemoveNodesWithUnclaimedReward(t *testing.T) {
	s := liveState(t)
	s.Nodes[1].Reward = 2_500_000

	// removal without payout is blocked while a reward is outstanding
	err := CanApply(s, RemoveNodes{Operators: []KeyHash{kh(t, 2)}}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)

	// collecting first clears the block
	afterCollect, _, err := Apply(s, NodeCollect{Operator: kh(t, 2), PayTo: kh(t, 2)}, testNow)
	require.NoError(t, err)
	next, payouts, err := Apply(afterCollect, RemoveNodes{Operators: []KeyHash{kh(t, 2)}}, testNow)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.False(t, next.HasNode(kh(t, 2)))
}

func TestRemoveNodesForcedPayout(t *testing.T) {
	s := liveState(t)
	s.Nodes[1].Reward = 2_500_000

	next, payouts, err := Apply(s, RemoveNodes{Operators: []KeyHash{kh(t, 2)}, PayoutRewards: true}, testNow)
	require.NoError(t, err)
	assert.False(t, next.HasNode(kh(t, 2)))
	require.Len(t, payouts, 1)
	assert.Equal(t, Payout{To: kh(t, 2), Amount: 2_500_000}, payouts[0])
}

func TestAddFunds(t *testing.T) {
	s := liveState(t)

	next, payouts, err := Apply(s, AddFunds{Amount: 50_000_000}, testNow)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.True(t, next.Equal(s))

	err = CanApply(s, AddFunds{}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestClose(t *testing.T) {
	s := liveState(t)
	s.Nodes[0].Reward = 1_000_000
	s.PlatformReward = 3_000_000

	next, payouts, err := Apply(s, Close{PayTo: kh(t, 0xa1), Disbursement: DisburseToNodes}, testNow)
	require.NoError(t, err)
	assert.Nil(t, next, "close must not recreate the state")
	require.Len(t, payouts, 2)
	assert.Equal(t, Payout{To: kh(t, 1), Amount: 1_000_000}, payouts[0])
	assert.Equal(t, Payout{To: kh(t, 0xa1), Amount: 3_000_000}, payouts[1])
}

func TestCloseToAddress(t *testing.T) {
	s := liveState(t)
	s.Nodes[0].Reward = 1_000_000

	next, payouts, err := Apply(s, Close{PayTo: kh(t, 0xa1), Disbursement: DisburseToAddress}, testNow)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Empty(t, payouts)
}

func TestClosedStateRejectsEverything(t *testing.T) {
	s := liveState(t)
	s.Lifecycle = LifecycleClosed

	err := CanApply(s, SubmitPrice{Operator: kh(t, 1), Value: 1}, testNow)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRequiredSigners(t *testing.T) {
	s := liveState(t)

	spec := RequiredSigners(s, SubmitPrice{Operator: kh(t, 1)})
	assert.Equal(t, []KeyHash{kh(t, 1)}, spec.Signers)
	assert.Equal(t, 1, spec.Threshold)

	spec = RequiredSigners(s, RemoveNodes{Operators: []KeyHash{kh(t, 2)}})
	assert.Equal(t, s.Settings.Platform.Signers, spec.Signers)
	assert.Equal(t, s.Settings.Platform.Threshold, spec.Threshold)

	spec = RequiredSigners(s, AddFunds{Amount: 1})
	assert.True(t, spec.Empty())
}

func TestValidateSettings(t *testing.T) {
	require.NoError(t, ValidateSettings(testSettings(t)))

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero fresh pct", func(s *Settings) { s.UpdatedNodesPct = 0 }},
		{"fresh pct over 100%", func(s *Settings) { s.UpdatedNodesPct = FactorResolution + 1 }},
		{"negative node expiry", func(s *Settings) { s.NodeExpiry = -1 }},
		{"zero aggregate window", func(s *Settings) { s.AggregateWindow = 0 }},
		{"no signers", func(s *Settings) { s.Platform.Signers = nil }},
		{"zero threshold", func(s *Settings) { s.Platform.Threshold = 0 }},
		{"threshold over signer count", func(s *Settings) { s.Platform.Threshold = 4 }},
		{"divergence over 100%", func(s *Settings) { s.DivergencePct = FactorResolution + 1 }},
		{"zero IQR multiplier", func(s *Settings) { s.IQRMultiplier = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := testSettings(t)
			tt.mutate(&set)
			require.ErrorIs(t, ValidateSettings(set), ErrInvalidSettings)
		})
	}
}

func TestValidateSettingsDuplicateSigner(t *testing.T) {
	set := testSettings(t)
	set.Platform.Signers = append(set.Platform.Signers, set.Platform.Signers[0])

	require.ErrorIs(t, ValidateSettings(set), ErrInvalidSettings)
}
