package tx

import (
	"sort"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/codec/plutus"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

// Body map keys, fixed by the ledger CDDL.
const (
	bodyKeyInputs          = 0
	bodyKeyOutputs         = 1
	bodyKeyFee             = 2
	bodyKeyTTL             = 3
	bodyKeyValidityStart   = 8
	bodyKeyMint            = 9
	bodyKeyCollateral      = 13
	bodyKeyRequiredSigners = 14
	bodyKeyReferenceInputs = 18
)

// Output map keys.
const (
	outKeyAddress = 0
	outKeyValue   = 1
	outKeyDatum   = 2
	outKeyScript  = 3
)

// Witness set map keys.
const (
	witKeyVKeys     = 0
	witKeyRedeemers = 5
)

// EncodeBody serializes a body into its canonical CBOR form. The
// encoding is deterministic: map keys ascend and inputs are pre-sorted
// by SortInputs.
func EncodeBody(b *TxBody) []byte {
	var w plutus.Writer

	entries := 3 // inputs, outputs, fee always present
	if b.TTL != 0 {
		entries++
	}
	if b.ValidityStart != 0 {
		entries++
	}
	if len(b.Mint) > 0 {
		entries++
	}
	if len(b.Collateral) > 0 {
		entries++
	}
	if len(b.RequiredSigners) > 0 {
		entries++
	}
	if len(b.ReferenceInputs) > 0 {
		entries++
	}
	w.WriteMap(entries)

	w.WriteUint(bodyKeyInputs)
	encodeOutPoints(&w, b.Inputs)

	w.WriteUint(bodyKeyOutputs)
	w.WriteArray(len(b.Outputs))
	for i := range b.Outputs {
		encodeOutput(&w, &b.Outputs[i])
	}

	w.WriteUint(bodyKeyFee)
	w.WriteUint(b.Fee)

	if b.TTL != 0 {
		w.WriteUint(bodyKeyTTL)
		w.WriteUint(b.TTL)
	}
	if b.ValidityStart != 0 {
		w.WriteUint(bodyKeyValidityStart)
		w.WriteUint(b.ValidityStart)
	}
	if len(b.Mint) > 0 {
		w.WriteUint(bodyKeyMint)
		encodeMint(&w, b.Mint)
	}
	if len(b.Collateral) > 0 {
		w.WriteUint(bodyKeyCollateral)
		encodeOutPoints(&w, b.Collateral)
	}
	if len(b.RequiredSigners) > 0 {
		w.WriteUint(bodyKeyRequiredSigners)
		w.WriteArray(len(b.RequiredSigners))
		for _, kh := range b.RequiredSigners {
			w.WriteBytes(kh[:])
		}
	}
	if len(b.ReferenceInputs) > 0 {
		w.WriteUint(bodyKeyReferenceInputs)
		encodeOutPoints(&w, b.ReferenceInputs)
	}

	return w.Bytes()
}

func encodeOutPoints(w *plutus.Writer, ops []OutPoint) {
	w.WriteArray(len(ops))
	for _, op := range ops {
		w.WriteArray(2)
		w.WriteBytes(op.Hash[:])
		w.WriteUint(uint64(op.Index))
	}
}

func encodeOutput(w *plutus.Writer, o *TxOutput) {
	entries := 2
	if len(o.Datum) > 0 {
		entries++
	}
	if len(o.Script) > 0 {
		entries++
	}
	w.WriteMap(entries)

	w.WriteUint(outKeyAddress)
	w.WriteBytes(o.Address.Raw())

	w.WriteUint(outKeyValue)
	encodeValue(w, o.Value)

	if len(o.Datum) > 0 {
		// inline datum: [1, 24(bytes)]
		w.WriteUint(outKeyDatum)
		w.WriteArray(2)
		w.WriteUint(1)
		w.WriteTag(24)
		w.WriteBytes(o.Datum)
	}
	if len(o.Script) > 0 {
		w.WriteUint(outKeyScript)
		w.WriteTag(24)
		w.WriteBytes(o.Script)
	}
}

func encodeValue(w *plutus.Writer, v Value) {
	if len(v.Assets) == 0 {
		w.WriteUint(v.Coin)
		return
	}
	w.WriteArray(2)
	w.WriteUint(v.Coin)

	// group by policy, both levels sorted
	byPolicy := make(map[[28]byte]map[string]uint64)
	for id, q := range v.Assets {
		inner := byPolicy[id.Policy]
		if inner == nil {
			inner = make(map[string]uint64)
			byPolicy[id.Policy] = inner
		}
		inner[id.Name] = q
	}
	policies := make([][28]byte, 0, len(byPolicy))
	for p := range byPolicy {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return string(policies[i][:]) < string(policies[j][:])
	})

	w.WriteMap(len(policies))
	for _, p := range policies {
		w.WriteBytes(p[:])
		inner := byPolicy[p]
		names := make([]string, 0, len(inner))
		for n := range inner {
			names = append(names, n)
		}
		sort.Strings(names)
		w.WriteMap(len(names))
		for _, n := range names {
			w.WriteBytes([]byte(n))
			w.WriteUint(inner[n])
		}
	}
}

func encodeMint(w *plutus.Writer, mint map[AssetID]int64) {
	byPolicy := make(map[[28]byte]map[string]int64)
	for id, q := range mint {
		inner := byPolicy[id.Policy]
		if inner == nil {
			inner = make(map[string]int64)
			byPolicy[id.Policy] = inner
		}
		inner[id.Name] = q
	}
	policies := make([][28]byte, 0, len(byPolicy))
	for p := range byPolicy {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return string(policies[i][:]) < string(policies[j][:])
	})

	w.WriteMap(len(policies))
	for _, p := range policies {
		w.WriteBytes(p[:])
		inner := byPolicy[p]
		names := make([]string, 0, len(inner))
		for n := range inner {
			names = append(names, n)
		}
		sort.Strings(names)
		w.WriteMap(len(names))
		for _, n := range names {
			w.WriteBytes([]byte(n))
			w.WriteInt(inner[n])
		}
	}
}

// EncodeWitnessSet serializes the collected witnesses, keeping them in
// the order they were contributed.
func EncodeWitnessSet(t *Transaction) []byte {
	var w plutus.Writer

	entries := 0
	if len(t.Witnesses) > 0 {
		entries++
	}
	if len(t.Redeemer) > 0 {
		entries++
	}
	w.WriteMap(entries)

	if len(t.Witnesses) > 0 {
		w.WriteUint(witKeyVKeys)
		w.WriteArray(len(t.Witnesses))
		for _, wit := range t.Witnesses {
			w.WriteArray(2)
			w.WriteBytes(wit.VKey)
			w.WriteBytes(wit.Signature)
		}
	}
	if len(t.Redeemer) > 0 {
		// [tag=spend(0), index, data, ex-units]; the index names the
		// script input's position among the sorted inputs
		w.WriteUint(witKeyRedeemers)
		w.WriteArray(1)
		w.WriteArray(4)
		w.WriteUint(0)
		w.WriteUint(t.RedeemerIndex)
		w.WriteRaw(t.Redeemer)
		w.WriteArray(2)
		w.WriteUint(defaultExMem)
		w.WriteUint(defaultExSteps)
	}

	return w.Bytes()
}

// Execution unit ceilings claimed for the spend redeemer. The chain
// charges actual usage; these just need to cover it.
const (
	defaultExMem   = 7_000_000
	defaultExSteps = 3_000_000_000
)

// EncodeTransaction assembles the full signed transaction:
// [body, witness set, valid, metadata].
func EncodeTransaction(t *Transaction, bodyCBOR []byte) []byte {
	var w plutus.Writer
	w.WriteArray(4)
	w.WriteRaw(bodyCBOR)
	w.WriteRaw(EncodeWitnessSet(t))
	w.WriteBool(true)
	w.WriteNull()
	return w.Bytes()
}

// sortRequiredSigners orders credentials lexicographically so the body
// encoding never depends on contribution order.
func sortRequiredSigners(signers []oracle.KeyHash) {
	sort.Slice(signers, func(i, j int) bool {
		return string(signers[i][:]) < string(signers[j][:])
	})
}
