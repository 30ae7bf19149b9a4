package oracle

// Payout is a fee-token payment a transition forces out of the contract
// in the same transaction, e.g. a reward claim.
type Payout struct {
	To     KeyHash
	Amount uint64
}

// SignerSpec names the credentials whose signatures a transition needs
// beyond the fee payer. Threshold is how many of Signers must sign; for
// single-key actions it is 1.
type SignerSpec struct {
	Signers   []KeyHash
	Threshold int
}

// Empty reports whether the transition needs no domain signature.
func (s SignerSpec) Empty() bool { return len(s.Signers) == 0 }

// CanApply checks every state-level precondition of req against s at
// wall-clock time now (milliseconds since epoch). Failures wrap
// ErrIllegalTransition. Chain-level preconditions, funding and the
// reference-script check live in the transaction builder.
func CanApply(s *OracleState, req ActionRequest, now int64) error {
	if s.Lifecycle != LifecycleActive {
		return illegalf("oracle is closed")
	}
	switch a := req.(type) {
	case SubmitPrice:
		if a.Value <= 0 {
			return illegalf("price %d must be positive", a.Value)
		}
		if !s.HasNode(a.Operator) {
			return illegalf("%s is not a registered node", a.Operator)
		}
		return nil

	case Aggregate:
		return canAggregate(s, a, now)

	case NodeCollect:
		node := s.FindNode(a.Operator)
		if node == nil {
			return illegalf("%s is not a registered node", a.Operator)
		}
		if node.Reward == 0 {
			return illegalf("node %s has no reward to collect", a.Operator)
		}
		return nil

	case PlatformCollect:
		if s.PlatformReward == 0 {
			return illegalf("no platform reward to collect")
		}
		return nil

	case EditSettings:
		if err := ValidateSettings(a.Settings); err != nil {
			return illegalf("settings rejected: %v", err)
		}
		return nil

	case AddNodes:
		if len(a.Operators) == 0 {
			return illegalf("no nodes to add")
		}
		seen := make(map[KeyHash]struct{}, len(a.Operators))
		for _, op := range a.Operators {
			if _, dup := seen[op]; dup {
				return illegalf("node %s listed twice", op)
			}
			seen[op] = struct{}{}
			if s.HasNode(op) {
				return illegalf("node %s is already registered", op)
			}
		}
		return nil

	case RemoveNodes:
		if len(a.Operators) == 0 {
			return illegalf("no nodes to remove")
		}
		for _, op := range a.Operators {
			node := s.FindNode(op)
			if node == nil {
				return illegalf("%s is not a registered node", op)
			}
			if node.Reward != 0 && !a.PayoutRewards {
				return illegalf("node %s holds an unclaimed reward of %d", op, node.Reward)
			}
		}
		return nil

	case AddFunds:
		if a.Amount == 0 {
			return illegalf("deposit amount is zero")
		}
		return nil

	case Close:
		return nil

	case CreateReferenceScript:
		if len(a.Script) == 0 {
			return illegalf("reference script is empty")
		}
		return nil

	default:
		return illegalf("unsupported action %T", req)
	}
}

func canAggregate(s *OracleState, a Aggregate, now int64) error {
	if !s.HasNode(a.Aggregator) {
		return illegalf("aggregator %s is not a registered node", a.Aggregator)
	}
	fresh := freshValues(s, now)
	need := s.Settings.RequiredNodeCount(len(s.Nodes))
	if need < 1 {
		need = 1
	}
	if len(fresh) < need {
		return illegalf("only %d of %d required fresh feeds", len(fresh), need)
	}
	next, err := ConsensusPrice(fresh, s.Settings.IQRMultiplier, s.Settings.DivergencePct)
	if err != nil {
		return illegalf("%v", err)
	}
	if s.Price == nil {
		return nil
	}
	if now-s.Price.Timestamp >= s.Settings.AggregateWindow {
		return nil
	}
	// window still open: only a large enough move justifies aggregating
	band := floorDiv(abs64(s.Price.Price)*int64(s.Settings.AggregateChangePct), FactorResolution)
	if diff := abs64(next - s.Price.Price); diff > 0 && diff >= band {
		return nil
	}
	return illegalf("aggregation window open and price moved below threshold")
}

// feedFresh reports whether f counts toward the next aggregation at
// now: it must postdate the last aggregated price and have been
// submitted within Settings.NodeExpiry.
func feedFresh(s *OracleState, f *Feed, now int64) bool {
	if f == nil {
		return false
	}
	if s.Price != nil && f.UpdatedAt <= s.Price.Timestamp {
		return false
	}
	return f.UpdatedAt <= now && now-f.UpdatedAt <= s.Settings.NodeExpiry
}

// freshValues collects the feed values eligible for the next
// aggregation.
func freshValues(s *OracleState, now int64) []int64 {
	var out []int64
	for i := range s.Nodes {
		if f := s.Nodes[i].Feed; feedFresh(s, f, now) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Apply executes req against s and returns the successor state plus any
// forced payouts. s is never mutated. A nil successor means the state
// UTxO is not recreated (Close, CreateReferenceScript). Apply re-checks
// preconditions, so callers may skip CanApply.
func Apply(s *OracleState, req ActionRequest, now int64) (*OracleState, []Payout, error) {
	if err := CanApply(s, req, now); err != nil {
		return nil, nil, err
	}
	next := s.Clone()

	switch a := req.(type) {
	case SubmitPrice:
		node := next.FindNode(a.Operator)
		node.Feed = &Feed{Value: a.Value, UpdatedAt: now}
		return next, nil, nil

	case Aggregate:
		fresh := freshValues(s, now)
		price, err := ConsensusPrice(fresh, next.Settings.IQRMultiplier, next.Settings.DivergencePct)
		if err != nil {
			return nil, nil, illegalf("%v", err)
		}
		next.Price = &PriceData{
			Price:     price,
			Timestamp: now,
			Expiry:    now + next.Settings.AggregateWindow,
		}
		for i := range next.Nodes {
			n := &next.Nodes[i]
			if !feedFresh(s, n.Feed, now) {
				continue
			}
			n.Reward += next.Settings.Fees.NodeFee
		}
		agg := next.FindNode(a.Aggregator)
		agg.Reward += next.Settings.Fees.AggregateFee
		next.PlatformReward += next.Settings.Fees.PlatformFee
		return next, nil, nil

	case NodeCollect:
		node := next.FindNode(a.Operator)
		amount := node.Reward
		node.Reward = 0
		return next, []Payout{{To: a.PayTo, Amount: amount}}, nil

	case PlatformCollect:
		amount := next.PlatformReward
		next.PlatformReward = 0
		return next, []Payout{{To: a.PayTo, Amount: amount}}, nil

	case EditSettings:
		next.Settings = a.Settings
		return next, nil, nil

	case AddNodes:
		for _, op := range a.Operators {
			next.Nodes = append(next.Nodes, NodeEntry{Operator: op})
		}
		return next, nil, nil

	case RemoveNodes:
		var payouts []Payout
		kept := next.Nodes[:0]
		for _, n := range next.Nodes {
			if !containsKey(a.Operators, n.Operator) {
				kept = append(kept, n)
				continue
			}
			if n.Reward > 0 {
				payouts = append(payouts, Payout{To: n.Operator, Amount: n.Reward})
			}
		}
		next.Nodes = kept
		return next, payouts, nil

	case AddFunds:
		return next, nil, nil

	case Close:
		var payouts []Payout
		if a.Disbursement == DisburseToNodes {
			for _, n := range s.Nodes {
				if n.Reward > 0 {
					payouts = append(payouts, Payout{To: n.Operator, Amount: n.Reward})
				}
			}
			if s.PlatformReward > 0 {
				payouts = append(payouts, Payout{To: a.PayTo, Amount: s.PlatformReward})
			}
		}
		return nil, payouts, nil

	case CreateReferenceScript:
		return nil, nil, nil

	default:
		return nil, nil, illegalf("unsupported action %T", req)
	}
}

// RequiredSigners returns the signer specification for req. Node actions
// need the node's own key; owner actions need the platform multisig;
// AddFunds and CreateReferenceScript need only the fee payer.
func RequiredSigners(s *OracleState, req ActionRequest) SignerSpec {
	switch a := req.(type) {
	case SubmitPrice:
		return SignerSpec{Signers: []KeyHash{a.Operator}, Threshold: 1}
	case Aggregate:
		return SignerSpec{Signers: []KeyHash{a.Aggregator}, Threshold: 1}
	case NodeCollect:
		return SignerSpec{Signers: []KeyHash{a.Operator}, Threshold: 1}
	case PlatformCollect, EditSettings, AddNodes, RemoveNodes, Close:
		signers := append([]KeyHash(nil), s.Settings.Platform.Signers...)
		return SignerSpec{Signers: signers, Threshold: s.Settings.Platform.Threshold}
	default:
		return SignerSpec{}
	}
}

func containsKey(set []KeyHash, k KeyHash) bool {
	for _, v := range set {
		if v == k {
			return true
		}
	}
	return false
}
