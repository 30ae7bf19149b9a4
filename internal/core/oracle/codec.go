package oracle

import (
	"errors"
	"fmt"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/codec/plutus"
)

// Datum/redeemer schema. Field order and constructor indexes are fixed by
// the deployed validator:
//
//	OracleDatum   = Constr 0 [ price    : Option PriceMap
//	                         , settings : Settings
//	                         , nodes    : [NodeEntry]
//	                         , rewards  : RewardState ]
//	Option t      = Constr 0 [t] | Constr 1 []
//	PriceMap      = Constr 2 [ {0: price, 1: timestamp, 2: expiry} ]
//	Settings      = Constr 0 [ updatedNodesPct, nodeExpiry,
//	                           aggregateWindow, aggregateChangePct,
//	                           minimumDeposit, fees, iqrMultiplier,
//	                           divergencePct, platform ]
//	Fees          = Constr 0 [ nodeFee, aggregateFee, platformFee ]
//	Platform      = Constr 0 [ [pkh], threshold ]
//	NodeEntry     = Constr 0 [ operator, Option Feed, reward ]
//	Feed          = Constr 0 [ value, updatedAt ]
//	RewardState   = Constr 0 [ platformReward ]
//
// Redeemers are bare constructors 0..8 with empty field lists, indexed by
// ActionKind.

const (
	priceMapKeyPrice     = 0
	priceMapKeyTimestamp = 1
	priceMapKeyExpiry    = 2
)

// EncodeState serializes an OracleState into datum bytes.
func EncodeState(s *OracleState) []byte {
	var w plutus.Writer
	w.BeginConstr(0)

	// price : Option PriceMap
	if s.Price != nil {
		w.BeginConstr(0)
		w.BeginConstr(2)
		w.WriteUintMap(map[uint64]int64{
			priceMapKeyPrice:     s.Price.Price,
			priceMapKeyTimestamp: s.Price.Timestamp,
			priceMapKeyExpiry:    s.Price.Expiry,
		})
		w.EndIndef()
		w.EndIndef()
	} else {
		w.WriteEmptyConstr(1)
	}

	encodeSettings(&w, s.Settings)

	// nodes : [NodeEntry]
	w.BeginIndefArray()
	for _, n := range s.Nodes {
		encodeNodeEntry(&w, n)
	}
	w.EndIndef()

	// rewards : RewardState
	w.BeginConstr(0)
	w.WriteUint(s.PlatformReward)
	w.EndIndef()

	w.EndIndef()
	return w.Bytes()
}

func encodeSettings(w *plutus.Writer, set Settings) {
	w.BeginConstr(0)
	w.WriteUint(set.UpdatedNodesPct)
	w.WriteInt(set.NodeExpiry)
	w.WriteInt(set.AggregateWindow)
	w.WriteUint(set.AggregateChangePct)
	w.WriteUint(set.MinimumDeposit)

	w.BeginConstr(0)
	w.WriteUint(set.Fees.NodeFee)
	w.WriteUint(set.Fees.AggregateFee)
	w.WriteUint(set.Fees.PlatformFee)
	w.EndIndef()

	w.WriteUint(set.IQRMultiplier)
	w.WriteUint(set.DivergencePct)

	w.BeginConstr(0)
	w.BeginIndefArray()
	for _, pkh := range set.Platform.Signers {
		w.WriteBytes(pkh[:])
	}
	w.EndIndef()
	w.WriteUint(uint64(set.Platform.Threshold))
	w.EndIndef()

	w.EndIndef()
}

func encodeNodeEntry(w *plutus.Writer, n NodeEntry) {
	w.BeginConstr(0)
	w.WriteBytes(n.Operator[:])
	if n.Feed != nil {
		w.BeginConstr(0)
		w.BeginConstr(0)
		w.WriteInt(n.Feed.Value)
		w.WriteInt(n.Feed.UpdatedAt)
		w.EndIndef()
		w.EndIndef()
	} else {
		w.WriteEmptyConstr(1)
	}
	w.WriteUint(n.Reward)
	w.EndIndef()
}

// DecodeState parses datum bytes into an OracleState. Structural
// deviation from the schema fails with ErrSchemaMismatch; the bytes are
// never coerced.
func DecodeState(data []byte) (*OracleState, error) {
	r := plutus.NewReader(data)
	s, err := decodeState(r)
	if err != nil {
		return nil, asSchemaErr(err)
	}
	if err := r.Finish(); err != nil {
		return nil, asSchemaErr(err)
	}
	return s, nil
}

func decodeState(r *plutus.Reader) (*OracleState, error) {
	indef, err := r.ReadConstrExpect(0, 4)
	if err != nil {
		return nil, err
	}
	s := &OracleState{Lifecycle: LifecycleActive}

	// price : Option PriceMap
	some, err := decodeOption(r)
	definiteSome := errors.Is(err, errDefiniteSome)
	if err != nil && !definiteSome {
		return nil, err
	}
	if some {
		pIndef, err := r.ReadConstrExpect(2, 1)
		if err != nil {
			return nil, err
		}
		m, err := r.ReadUintMap()
		if err != nil {
			return nil, err
		}
		if len(m) != 3 {
			return nil, fmt.Errorf("price map: want 3 entries, got %d", len(m))
		}
		s.Price = &PriceData{
			Price:     m[priceMapKeyPrice],
			Timestamp: m[priceMapKeyTimestamp],
			Expiry:    m[priceMapKeyExpiry],
		}
		if err := r.EndConstr(pIndef); err != nil {
			return nil, err
		}
		if !definiteSome {
			if err := r.ExpectBreak(); err != nil { // close Option Constr 0
				return nil, err
			}
		}
	}

	if s.Settings, err = decodeSettings(r); err != nil {
		return nil, err
	}

	// nodes : [NodeEntry]
	n, listIndef, err := r.ReadArray()
	if err != nil {
		return nil, err
	}
	if listIndef {
		for {
			done, err := r.Break()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			entry, err := decodeNodeEntry(r)
			if err != nil {
				return nil, err
			}
			s.Nodes = append(s.Nodes, entry)
		}
	} else {
		for i := 0; i < n; i++ {
			entry, err := decodeNodeEntry(r)
			if err != nil {
				return nil, err
			}
			s.Nodes = append(s.Nodes, entry)
		}
	}

	// rewards : RewardState
	rIndef, err := r.ReadConstrExpect(0, 1)
	if err != nil {
		return nil, err
	}
	if s.PlatformReward, err = r.ReadUint(); err != nil {
		return nil, err
	}
	if err := r.EndConstr(rIndef); err != nil {
		return nil, err
	}

	if err := r.EndConstr(indef); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeOption consumes an Option header. For Some it consumes only the
// constructor head; the caller reads the payload and the closing break.
// For None the whole constructor is consumed.
func decodeOption(r *plutus.Reader) (some bool, err error) {
	index, indef, fields, err := r.ReadConstr()
	if err != nil {
		return false, err
	}
	switch index {
	case 0:
		if !indef && fields != 1 {
			return false, fmt.Errorf("option: want 1 field, got %d", fields)
		}
		if !indef {
			// definite Some: payload follows, nothing to close
			return true, errDefiniteSome
		}
		return true, nil
	case 1:
		if !indef && fields != 0 {
			return false, fmt.Errorf("option none: want 0 fields, got %d", fields)
		}
		if indef {
			if err := r.ExpectBreak(); err != nil {
				return false, err
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("option: unexpected constructor %d", index)
	}
}

// errDefiniteSome signals that a Some constructor used a definite field
// list, so no break terminator follows the payload. The canonical
// encoding is indefinite; tolerate definite here since both appear on
// chain.
var errDefiniteSome = errors.New("definite some")

func decodeSettings(r *plutus.Reader) (Settings, error) {
	var set Settings
	indef, err := r.ReadConstrExpect(0, 9)
	if err != nil {
		return set, err
	}
	if set.UpdatedNodesPct, err = r.ReadUint(); err != nil {
		return set, err
	}
	if set.NodeExpiry, err = r.ReadInt(); err != nil {
		return set, err
	}
	if set.AggregateWindow, err = r.ReadInt(); err != nil {
		return set, err
	}
	if set.AggregateChangePct, err = r.ReadUint(); err != nil {
		return set, err
	}
	if set.MinimumDeposit, err = r.ReadUint(); err != nil {
		return set, err
	}

	fIndef, err := r.ReadConstrExpect(0, 3)
	if err != nil {
		return set, err
	}
	if set.Fees.NodeFee, err = r.ReadUint(); err != nil {
		return set, err
	}
	if set.Fees.AggregateFee, err = r.ReadUint(); err != nil {
		return set, err
	}
	if set.Fees.PlatformFee, err = r.ReadUint(); err != nil {
		return set, err
	}
	if err := r.EndConstr(fIndef); err != nil {
		return set, err
	}

	if set.IQRMultiplier, err = r.ReadUint(); err != nil {
		return set, err
	}
	if set.DivergencePct, err = r.ReadUint(); err != nil {
		return set, err
	}

	pIndef, err := r.ReadConstrExpect(0, 2)
	if err != nil {
		return set, err
	}
	n, listIndef, err := r.ReadArray()
	if err != nil {
		return set, err
	}
	readSigner := func() error {
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		kh, err := KeyHashFromBytes(b)
		if err != nil {
			return err
		}
		set.Platform.Signers = append(set.Platform.Signers, kh)
		return nil
	}
	if listIndef {
		for {
			done, err := r.Break()
			if err != nil {
				return set, err
			}
			if done {
				break
			}
			if err := readSigner(); err != nil {
				return set, err
			}
		}
	} else {
		for i := 0; i < n; i++ {
			if err := readSigner(); err != nil {
				return set, err
			}
		}
	}
	threshold, err := r.ReadUint()
	if err != nil {
		return set, err
	}
	set.Platform.Threshold = int(threshold)
	if err := r.EndConstr(pIndef); err != nil {
		return set, err
	}

	if err := r.EndConstr(indef); err != nil {
		return set, err
	}
	return set, nil
}

func decodeNodeEntry(r *plutus.Reader) (NodeEntry, error) {
	var entry NodeEntry
	indef, err := r.ReadConstrExpect(0, 3)
	if err != nil {
		return entry, err
	}
	opBytes, err := r.ReadBytes()
	if err != nil {
		return entry, err
	}
	if entry.Operator, err = KeyHashFromBytes(opBytes); err != nil {
		return entry, err
	}

	some, err := decodeOption(r)
	definiteSome := errors.Is(err, errDefiniteSome)
	if err != nil && !definiteSome {
		return entry, err
	}
	if some {
		fIndef, err := r.ReadConstrExpect(0, 2)
		if err != nil {
			return entry, err
		}
		var feed Feed
		if feed.Value, err = r.ReadInt(); err != nil {
			return entry, err
		}
		if feed.UpdatedAt, err = r.ReadInt(); err != nil {
			return entry, err
		}
		entry.Feed = &feed
		if err := r.EndConstr(fIndef); err != nil {
			return entry, err
		}
		if !definiteSome {
			if err := r.ExpectBreak(); err != nil {
				return entry, err
			}
		}
	}

	if entry.Reward, err = r.ReadUint(); err != nil {
		return entry, err
	}
	if err := r.EndConstr(indef); err != nil {
		return entry, err
	}
	return entry, nil
}

// EncodeRedeemer serializes the redeemer for an action kind.
func EncodeRedeemer(kind ActionKind) ([]byte, error) {
	if !kind.HasRedeemer() {
		return nil, fmt.Errorf("action %s has no redeemer", kind)
	}
	var w plutus.Writer
	w.WriteEmptyConstr(uint64(kind))
	return w.Bytes(), nil
}

// DecodeRedeemer parses redeemer bytes back into an action kind.
func DecodeRedeemer(data []byte) (ActionKind, error) {
	r := plutus.NewReader(data)
	index, indef, fields, err := r.ReadConstr()
	if err != nil {
		return 0, asSchemaErr(err)
	}
	if !indef && fields != 0 {
		return 0, schemaf("redeemer: want 0 fields, got %d", fields)
	}
	if indef {
		if err := r.ExpectBreak(); err != nil {
			return 0, asSchemaErr(err)
		}
	}
	if err := r.Finish(); err != nil {
		return 0, asSchemaErr(err)
	}
	kind := ActionKind(index)
	if kind > KindAddFunds {
		return 0, schemaf("redeemer: unknown constructor %d", index)
	}
	return kind, nil
}

// asSchemaErr wraps a codec-level failure as a schema mismatch, keeping
// the detail chain intact.
func asSchemaErr(err error) error {
	if errors.Is(err, ErrSchemaMismatch) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
}
