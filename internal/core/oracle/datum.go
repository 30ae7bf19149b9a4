// Package oracle models the on-chain state of the push oracle: the datum
// carried by the state UTxO, the redeemers naming each spend intent, the
// binary codec for both, and the transition rules the off-chain engine
// enforces before any transaction is built.
package oracle

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// FactorResolution is the fixed-point resolution for every percentage
// carried in Settings: 10000 = 100%.
const FactorResolution = 10000

// KeyHashSize is the size of a blake2b-224 credential hash.
const KeyHashSize = 28

// KeyHash is a payment credential: the blake2b-224 hash of an ed25519
// verification key, or of a script for script credentials.
type KeyHash [KeyHashSize]byte

// ParseKeyHash decodes a hex-encoded credential.
func ParseKeyHash(s string) (KeyHash, error) {
	var kh KeyHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return kh, fmt.Errorf("key hash: %w", err)
	}
	if len(b) != KeyHashSize {
		return kh, fmt.Errorf("key hash: want %d bytes, got %d", KeyHashSize, len(b))
	}
	copy(kh[:], b)
	return kh, nil
}

// KeyHashFromBytes converts a raw 28-byte slice into a KeyHash.
func KeyHashFromBytes(b []byte) (KeyHash, error) {
	var kh KeyHash
	if len(b) != KeyHashSize {
		return kh, fmt.Errorf("key hash: want %d bytes, got %d", KeyHashSize, len(b))
	}
	copy(kh[:], b)
	return kh, nil
}

func (kh KeyHash) String() string {
	return hex.EncodeToString(kh[:])
}

// Bytes returns the hash as a fresh slice.
func (kh KeyHash) Bytes() []byte {
	out := make([]byte, KeyHashSize)
	copy(out, kh[:])
	return out
}

// PriceData is the aggregated feed recorded on chain, the CIP oracle
// datum price map: 0 = price, 1 = aggregation timestamp, 2 = expiry.
// All timestamps are POSIX milliseconds.
type PriceData struct {
	Price     int64
	Timestamp int64
	Expiry    int64
}

// Feed is a single node's submitted observation.
type Feed struct {
	Value     int64
	UpdatedAt int64
}

// NodeEntry is one registered node: its payment credential, its latest
// submitted feed (nil until the first submission), and the fee-token
// reward it has accumulated but not yet collected.
type NodeEntry struct {
	Operator KeyHash
	Feed     *Feed
	Reward   uint64
}

// Fees are the per-aggregation reward amounts, denominated in the fee
// token.
type Fees struct {
	NodeFee      uint64
	AggregateFee uint64
	PlatformFee  uint64
}

// Platform is the owner multisig policy: the allowed signer credentials
// and how many of them an owner action needs.
type Platform struct {
	Signers   []KeyHash
	Threshold int
}

// Contains reports whether kh is one of the platform signers.
func (p Platform) Contains(kh KeyHash) bool {
	for _, s := range p.Signers {
		if s == kh {
			return true
		}
	}
	return false
}

// Settings are the oracle's aggregation parameters. Percentages use
// FactorResolution fixed point; durations are POSIX milliseconds.
type Settings struct {
	// UpdatedNodesPct is the fraction of registered nodes that must have
	// fresh feeds before an aggregation may run.
	UpdatedNodesPct uint64

	// NodeExpiry is how long a submitted feed stays fresh.
	NodeExpiry int64

	// AggregateWindow is the minimum spacing between aggregations; a new
	// price before the window expires is legal only when the value moved
	// by at least AggregateChangePct.
	AggregateWindow int64

	// AggregateChangePct is the minimum relative price move that justifies
	// aggregating inside the window.
	AggregateChangePct uint64

	// MinimumDeposit is the smallest fee-token reserve the oracle is
	// expected to keep funded.
	MinimumDeposit uint64

	Fees Fees

	// IQRMultiplier widens the interquartile fence used to reject
	// outliers during consensus. It is a plain small integer, not a
	// FactorResolution percentage; 2 is the usual choice.
	IQRMultiplier uint64

	// DivergencePct caps how far from the median a feed may sit and still
	// join the consensus.
	DivergencePct uint64

	Platform Platform
}

// RequiredNodeCount returns how many fresh nodes an aggregation needs
// given the current registration count. The count rounds up so the
// fresh fraction never falls short of UpdatedNodesPct.
func (s Settings) RequiredNodeCount(totalNodes int) int {
	return (int(s.UpdatedNodesPct)*totalNodes + FactorResolution - 1) / FactorResolution
}

// Lifecycle tags the resolved oracle state. Closed is terminal: the state
// UTxO has been burned and nothing can be built against it.
type Lifecycle uint8

const (
	LifecycleActive Lifecycle = iota
	LifecycleClosed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "active"
	case LifecycleClosed:
		return "closed"
	default:
		return fmt.Sprintf("lifecycle(%d)", uint8(l))
	}
}

// OracleState is the canonical on-chain record held by the single state
// UTxO. Lifecycle is an off-chain view tag set during resolution; it is
// not part of the datum.
type OracleState struct {
	Price          *PriceData
	Settings       Settings
	Nodes          []NodeEntry
	PlatformReward uint64
	Lifecycle      Lifecycle
}

// FindNode returns the entry for operator, or nil.
func (s *OracleState) FindNode(operator KeyHash) *NodeEntry {
	for i := range s.Nodes {
		if s.Nodes[i].Operator == operator {
			return &s.Nodes[i]
		}
	}
	return nil
}

// HasNode reports whether operator is registered.
func (s *OracleState) HasNode(operator KeyHash) bool {
	return s.FindNode(operator) != nil
}

// OutstandingRewards is the sum of unclaimed node rewards plus the
// platform reward. The spendable reserve is the state UTxO's fee-token
// balance minus this.
func (s *OracleState) OutstandingRewards() uint64 {
	total := s.PlatformReward
	for _, n := range s.Nodes {
		total += n.Reward
	}
	return total
}

// Clone returns a deep copy. Transitions operate on copies so a failed
// build never mutates the resolved snapshot.
func (s *OracleState) Clone() *OracleState {
	out := &OracleState{
		Settings:       s.Settings,
		PlatformReward: s.PlatformReward,
		Lifecycle:      s.Lifecycle,
	}
	if s.Price != nil {
		p := *s.Price
		out.Price = &p
	}
	out.Settings.Platform.Signers = append([]KeyHash(nil), s.Settings.Platform.Signers...)
	out.Nodes = make([]NodeEntry, len(s.Nodes))
	for i, n := range s.Nodes {
		out.Nodes[i] = n
		if n.Feed != nil {
			f := *n.Feed
			out.Nodes[i].Feed = &f
		}
	}
	return out
}

// Equal reports deep equality of the datum content (Lifecycle included).
func (s *OracleState) Equal(o *OracleState) bool {
	if (s.Price == nil) != (o.Price == nil) {
		return false
	}
	if s.Price != nil && *s.Price != *o.Price {
		return false
	}
	if s.PlatformReward != o.PlatformReward || s.Lifecycle != o.Lifecycle {
		return false
	}
	if !settingsEqual(s.Settings, o.Settings) {
		return false
	}
	if len(s.Nodes) != len(o.Nodes) {
		return false
	}
	for i := range s.Nodes {
		a, b := s.Nodes[i], o.Nodes[i]
		if a.Operator != b.Operator || a.Reward != b.Reward {
			return false
		}
		if (a.Feed == nil) != (b.Feed == nil) {
			return false
		}
		if a.Feed != nil && *a.Feed != *b.Feed {
			return false
		}
	}
	return true
}

func settingsEqual(a, b Settings) bool {
	if a.UpdatedNodesPct != b.UpdatedNodesPct ||
		a.NodeExpiry != b.NodeExpiry ||
		a.AggregateWindow != b.AggregateWindow ||
		a.AggregateChangePct != b.AggregateChangePct ||
		a.MinimumDeposit != b.MinimumDeposit ||
		a.Fees != b.Fees ||
		a.IQRMultiplier != b.IQRMultiplier ||
		a.DivergencePct != b.DivergencePct ||
		a.Platform.Threshold != b.Platform.Threshold {
		return false
	}
	if len(a.Platform.Signers) != len(b.Platform.Signers) {
		return false
	}
	for i := range a.Platform.Signers {
		if !bytes.Equal(a.Platform.Signers[i][:], b.Platform.Signers[i][:]) {
			return false
		}
	}
	return true
}
