// Package tx builds unsigned transactions for the oracle contract. The
// builder turns a validated action request plus a chain snapshot into a
// deterministic, fee-balanced transaction body ready for the signature
// coordinator.
package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

// TxHashSize is the size of a blake2b-256 transaction id.
const TxHashSize = 32

// TxHash identifies a transaction by the blake2b-256 hash of its body.
type TxHash [TxHashSize]byte

func (h TxHash) String() string { return hex.EncodeToString(h[:]) }

// ParseTxHash decodes a hex transaction id.
func ParseTxHash(s string) (TxHash, error) {
	var h TxHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("tx hash: %w", err)
	}
	if len(b) != TxHashSize {
		return h, fmt.Errorf("tx hash: want %d bytes, got %d", TxHashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// OutPoint names a transaction output by its producing transaction and
// output index.
type OutPoint struct {
	Hash  TxHash
	Index uint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s#%d", o.Hash, o.Index)
}

// Less orders outpoints by hash then index, the order inputs are encoded
// in.
func (o OutPoint) Less(other OutPoint) bool {
	if c := bytes.Compare(o.Hash[:], other.Hash[:]); c != 0 {
		return c < 0
	}
	return o.Index < other.Index
}

// AssetID names a native asset by minting policy and asset name.
type AssetID struct {
	Policy [28]byte
	Name   string
}

func (a AssetID) String() string {
	return hex.EncodeToString(a.Policy[:]) + "." + hex.EncodeToString([]byte(a.Name))
}

// Less orders assets by policy then name, the canonical multiasset order.
func (a AssetID) Less(other AssetID) bool {
	if c := bytes.Compare(a.Policy[:], other.Policy[:]); c != 0 {
		return c < 0
	}
	return a.Name < other.Name
}

// Value is an amount of the chain currency plus native assets. Zero
// quantities are never stored; an asset missing from the map is zero.
type Value struct {
	Coin   uint64
	Assets map[AssetID]uint64
}

// NewValue returns a coin-only value.
func NewValue(coin uint64) Value {
	return Value{Coin: coin}
}

// AssetQty returns the held quantity of id.
func (v Value) AssetQty(id AssetID) uint64 {
	return v.Assets[id]
}

// WithAsset returns a copy of v holding qty of id.
func (v Value) WithAsset(id AssetID, qty uint64) Value {
	out := v.Clone()
	if qty == 0 {
		delete(out.Assets, id)
		if len(out.Assets) == 0 {
			out.Assets = nil
		}
		return out
	}
	if out.Assets == nil {
		out.Assets = make(map[AssetID]uint64, 1)
	}
	out.Assets[id] = qty
	return out
}

// Clone deep-copies v.
func (v Value) Clone() Value {
	out := Value{Coin: v.Coin}
	if len(v.Assets) > 0 {
		out.Assets = make(map[AssetID]uint64, len(v.Assets))
		for id, q := range v.Assets {
			out.Assets[id] = q
		}
	}
	return out
}

// Add returns v + other.
func (v Value) Add(other Value) Value {
	out := v.Clone()
	out.Coin += other.Coin
	for id, q := range other.Assets {
		if out.Assets == nil {
			out.Assets = make(map[AssetID]uint64, len(other.Assets))
		}
		out.Assets[id] += q
	}
	return out
}

// Sub returns v - other and reports whether the subtraction stayed
// non-negative in every dimension.
func (v Value) Sub(other Value) (Value, bool) {
	if v.Coin < other.Coin {
		return Value{}, false
	}
	out := v.Clone()
	out.Coin -= other.Coin
	for id, q := range other.Assets {
		have := out.Assets[id]
		if have < q {
			return Value{}, false
		}
		if have == q {
			delete(out.Assets, id)
		} else {
			out.Assets[id] = have - q
		}
	}
	if len(out.Assets) == 0 {
		out.Assets = nil
	}
	return out, true
}

// Covers reports whether v >= other in every dimension.
func (v Value) Covers(other Value) bool {
	_, ok := v.Sub(other)
	return ok
}

// IsZero reports whether v holds nothing at all.
func (v Value) IsZero() bool {
	return v.Coin == 0 && len(v.Assets) == 0
}

// Equal compares two values exactly.
func (v Value) Equal(other Value) bool {
	if v.Coin != other.Coin || len(v.Assets) != len(other.Assets) {
		return false
	}
	for id, q := range v.Assets {
		if other.Assets[id] != q {
			return false
		}
	}
	return true
}

// sortedAssets returns the asset ids in canonical order.
func (v Value) sortedAssets() []AssetID {
	ids := make([]AssetID, 0, len(v.Assets))
	for id := range v.Assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func (v Value) String() string {
	if len(v.Assets) == 0 {
		return fmt.Sprintf("%d lovelace", v.Coin)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d lovelace", v.Coin)
	for _, id := range v.sortedAssets() {
		fmt.Fprintf(&b, " + %d %s", v.Assets[id], id)
	}
	return b.String()
}

// TxOutput is an output under construction: a destination, a value, and
// optionally an inline datum or reference script.
type TxOutput struct {
	Address Address
	Value   Value
	Datum   []byte
	Script  []byte
}

// UTxO is an unspent output as reported by the chain.
type UTxO struct {
	OutPoint OutPoint
	Output   TxOutput
}

// TxBody is the signable portion of a transaction. Inputs and reference
// inputs are kept sorted; the encoder relies on that.
type TxBody struct {
	Inputs          []OutPoint
	Outputs         []TxOutput
	Fee             uint64
	TTL             uint64
	ValidityStart   uint64
	Mint            map[AssetID]int64
	Collateral      []OutPoint
	RequiredSigners []oracle.KeyHash
	ReferenceInputs []OutPoint
}

// SortInputs puts inputs, collateral and reference inputs into canonical
// order.
func (b *TxBody) SortInputs() {
	sortOutPoints(b.Inputs)
	sortOutPoints(b.Collateral)
	sortOutPoints(b.ReferenceInputs)
}

func sortOutPoints(ops []OutPoint) {
	sort.Slice(ops, func(i, j int) bool { return ops[i].Less(ops[j]) })
}

// VKeyWitness is one signature over the body hash.
type VKeyWitness struct {
	VKey      []byte
	Signature []byte
}

// Transaction is a body plus its collected witnesses.
type Transaction struct {
	Body      TxBody
	Witnesses []VKeyWitness

	// Redeemer carries the spend redeemer bytes when the transaction
	// spends the contract state. RedeemerIndex is the state input's
	// position in the sorted input list.
	Redeemer      []byte
	RedeemerIndex uint64
}

// Unsigned is the builder's product: the encoded body, its hash, and the
// signer specification the coordinator must satisfy.
type Unsigned struct {
	Body     TxBody
	BodyCBOR []byte
	Hash     TxHash
	Signers  oracle.SignerSpec

	// FeePayer is the wallet credential funding the transaction. Its
	// witness is always required but never counts toward the policy
	// threshold.
	FeePayer oracle.KeyHash

	// Redeemer carries the spend redeemer bytes; RedeemerIndex is the
	// state input's position in the sorted input list.
	Redeemer      []byte
	RedeemerIndex uint64

	Action    oracle.ActionKind
	NextState *oracle.OracleState
}

// StateSnapshot is the resolved contract state: the UTxO carrying the
// marker token and its decoded datum.
type StateSnapshot struct {
	UTxO  UTxO
	State *oracle.OracleState
}
