package oracle

// ActionKind identifies a state transition. The numeric value is the
// redeemer constructor index fixed by the deployed validator; it must not
// change.
type ActionKind uint64

const (
	KindSubmitPrice     ActionKind = 0
	KindNodeCollect     ActionKind = 1
	KindPlatformCollect ActionKind = 2
	KindAggregate       ActionKind = 3
	KindEditSettings    ActionKind = 4
	KindAddNodes        ActionKind = 5
	KindRemoveNodes     ActionKind = 6
	KindClose           ActionKind = 7
	KindAddFunds        ActionKind = 8

	// KindCreateReferenceScript publishes the validator as a reference
	// script. It spends no script input and therefore has no redeemer
	// constructor; the value is outside the validator's range.
	KindCreateReferenceScript ActionKind = 255
)

func (k ActionKind) String() string {
	switch k {
	case KindSubmitPrice:
		return "SubmitPrice"
	case KindNodeCollect:
		return "NodeCollect"
	case KindPlatformCollect:
		return "PlatformCollect"
	case KindAggregate:
		return "Aggregate"
	case KindEditSettings:
		return "EditSettings"
	case KindAddNodes:
		return "AddNodes"
	case KindRemoveNodes:
		return "RemoveNodes"
	case KindClose:
		return "Close"
	case KindAddFunds:
		return "AddFunds"
	case KindCreateReferenceScript:
		return "CreateReferenceScript"
	default:
		return "Unknown"
	}
}

// HasRedeemer reports whether the action spends the state UTxO and thus
// carries a redeemer.
func (k ActionKind) HasRedeemer() bool {
	return k != KindCreateReferenceScript
}

// ActionRequest is a typed, validated intent. It carries only the
// semantic delta of the transition, never encoded bytes. The set of
// variants is closed: the transaction builder switches exhaustively over
// Kind and rejects anything else.
type ActionRequest interface {
	Kind() ActionKind
}

// SubmitPrice refreshes the calling node's own feed ahead of an
// aggregation.
type SubmitPrice struct {
	Operator KeyHash
	Value    int64
}

func (SubmitPrice) Kind() ActionKind { return KindSubmitPrice }

// Aggregate folds the fresh node feeds into a new canonical price. The
// aggregator must itself be a registered node.
type Aggregate struct {
	Aggregator KeyHash
}

func (Aggregate) Kind() ActionKind { return KindAggregate }

// AddNodes registers new node operators. Owner action.
type AddNodes struct {
	Operators []KeyHash
}

func (AddNodes) Kind() ActionKind { return KindAddNodes }

// RemoveNodes deregisters node operators. Owner action. When
// PayoutRewards is set, any unclaimed reward of a removed node is paid to
// that node's own credential in the same transaction; otherwise removal
// of a node with a nonzero reward is illegal.
type RemoveNodes struct {
	Operators     []KeyHash
	PayoutRewards bool
}

func (RemoveNodes) Kind() ActionKind { return KindRemoveNodes }

// AddFunds tops up the oracle's fee-token reserve. Open to anyone.
type AddFunds struct {
	Amount uint64
}

func (AddFunds) Kind() ActionKind { return KindAddFunds }

// EditSettings atomically replaces Settings. Owner action. The node set
// is not part of Settings and is untouched by this transition.
type EditSettings struct {
	Settings Settings
}

func (EditSettings) Kind() ActionKind { return KindEditSettings }

// NodeCollect pays out the calling node's accumulated reward.
type NodeCollect struct {
	Operator KeyHash

	// PayTo is the payment credential receiving the reward; usually the
	// operator itself.
	PayTo KeyHash
}

func (NodeCollect) Kind() ActionKind { return KindNodeCollect }

// PlatformCollect pays out the accumulated platform reward. Owner action.
type PlatformCollect struct {
	PayTo KeyHash
}

func (PlatformCollect) Kind() ActionKind { return KindPlatformCollect }

// Disbursement selects where Close sends unclaimed node rewards.
type Disbursement uint8

const (
	// DisburseToNodes pays each node's unclaimed reward to its own
	// credential; the remainder goes to PayTo.
	DisburseToNodes Disbursement = iota

	// DisburseToAddress sends the entire locked balance to PayTo.
	DisburseToAddress
)

// Close destroys the oracle: burns the marker token, settles rewards and
// returns the remaining locked funds. Owner action; terminal.
type Close struct {
	PayTo        KeyHash
	Disbursement Disbursement
}

func (Close) Kind() ActionKind { return KindClose }

// CreateReferenceScript publishes the validator script in its own UTxO so
// later transactions can reference it instead of re-embedding the bytes.
type CreateReferenceScript struct {
	Script []byte
}

func (CreateReferenceScript) Kind() ActionKind { return KindCreateReferenceScript }
