// Package multisig coordinates signature collection for built
// transactions. A session is keyed by the transaction hash, so two
// parties independently building the same transaction land in the same
// session; signatures are contributed in any order and duplicates are
// absorbed. Sessions persist across process restarts.
package multisig

import (
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

var cborHandle = func() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	return h
}()

// Witness is one collected signature.
type Witness struct {
	VKey      []byte `codec:"vkey"`
	Signature []byte `codec:"sig"`
}

// Input is one spent outpoint, kept alongside the opaque body bytes so
// the submitter can re-check state freshness without a body decoder.
type Input struct {
	Hash  []byte `codec:"hash"`
	Index uint32 `codec:"index"`
}

// Envelope is the persisted form of a signing session: the transaction
// body, the signer policy, and every witness collected so far.
type Envelope struct {
	BodyCBOR      []byte    `codec:"body"`
	Inputs        []Input   `codec:"inputs"`
	Action        uint64    `codec:"action"`
	Signers       [][]byte  `codec:"signers"`
	Threshold     int       `codec:"threshold"`
	FeePayer      []byte    `codec:"fee_payer"`
	Redeemer      []byte    `codec:"redeemer,omitempty"`
	RedeemerIndex uint64    `codec:"redeemer_index,omitempty"`
	Witnesses     []Witness `codec:"witnesses,omitempty"`
	CreatedAt     int64     `codec:"created_at"`
}

// NewEnvelope seeds an envelope from a built transaction.
func NewEnvelope(unsigned *tx.Unsigned, createdAt int64) *Envelope {
	signers := make([][]byte, len(unsigned.Signers.Signers))
	for i, kh := range unsigned.Signers.Signers {
		signers[i] = kh.Bytes()
	}
	threshold := unsigned.Signers.Threshold
	if threshold == 0 && len(signers) == 0 {
		// fee-payer-only transactions still need that one signature
		threshold = 1
	}
	inputs := make([]Input, len(unsigned.Body.Inputs))
	for i, in := range unsigned.Body.Inputs {
		inputs[i] = Input{Hash: append([]byte(nil), in.Hash[:]...), Index: in.Index}
	}
	return &Envelope{
		BodyCBOR:      unsigned.BodyCBOR,
		Inputs:        inputs,
		Action:        uint64(unsigned.Action),
		Signers:       signers,
		Threshold:     threshold,
		FeePayer:      unsigned.FeePayer.Bytes(),
		Redeemer:      unsigned.Redeemer,
		RedeemerIndex: unsigned.RedeemerIndex,
		CreatedAt:     createdAt,
	}
}

// Marshal serializes the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, cborHandle).Encode(e); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmarshalEnvelope parses a stored envelope.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return &e, nil
}

// Hash recomputes the transaction hash the envelope is keyed by.
func (e *Envelope) Hash() tx.TxHash {
	return tx.HashBody(e.BodyCBOR)
}

// SignerSet returns the required signer credentials.
func (e *Envelope) SignerSet() ([]oracle.KeyHash, error) {
	out := make([]oracle.KeyHash, len(e.Signers))
	for i, raw := range e.Signers {
		kh, err := oracle.KeyHashFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: signer %d: %v", ErrEnvelope, i, err)
		}
		out[i] = kh
	}
	return out, nil
}

// Unsigned reconstructs the signing-relevant view of the transaction:
// enough for hash verification, freshness checks and submission. The
// body itself stays opaque bytes.
func (e *Envelope) Unsigned() (*tx.Unsigned, error) {
	signers, err := e.SignerSet()
	if err != nil {
		return nil, err
	}
	feePayer, err := oracle.KeyHashFromBytes(e.FeePayer)
	if err != nil {
		return nil, fmt.Errorf("%w: fee payer: %v", ErrEnvelope, err)
	}
	u := &tx.Unsigned{
		BodyCBOR:      e.BodyCBOR,
		Hash:          e.Hash(),
		Signers:       oracle.SignerSpec{Signers: signers, Threshold: e.Threshold},
		FeePayer:      feePayer,
		Redeemer:      e.Redeemer,
		RedeemerIndex: e.RedeemerIndex,
		Action:        oracle.ActionKind(e.Action),
	}
	u.Body.Inputs = make([]tx.OutPoint, len(e.Inputs))
	for i, in := range e.Inputs {
		if len(in.Hash) != len(tx.TxHash{}) {
			return nil, fmt.Errorf("%w: input %d: bad hash length %d", ErrEnvelope, i, len(in.Hash))
		}
		copy(u.Body.Inputs[i].Hash[:], in.Hash)
		u.Body.Inputs[i].Index = in.Index
	}
	return u, nil
}

// RequiresSigner reports whether a witness from kh is useful to the
// session: kh is either a policy signer or the fee payer.
func (e *Envelope) RequiresSigner(kh oracle.KeyHash) bool {
	if len(e.FeePayer) == len(kh) && string(e.FeePayer) == string(kh[:]) {
		return true
	}
	for _, raw := range e.Signers {
		if len(raw) == len(kh) && string(raw) == string(kh[:]) {
			return true
		}
	}
	return false
}

// SpendsAny reports whether the transaction consumes any of points. A
// signer checks its own wallet UTxOs here before contributing; a foreign
// envelope spending them would drain the signer's funds.
func (e *Envelope) SpendsAny(points []tx.OutPoint) bool {
	for _, in := range e.Inputs {
		for _, p := range points {
			if in.Index == p.Index && string(in.Hash) == string(p.Hash[:]) {
				return true
			}
		}
	}
	return false
}

// Validate checks the envelope's internal consistency.
func (e *Envelope) Validate() error {
	if len(e.BodyCBOR) == 0 {
		return fmt.Errorf("%w: empty body", ErrEnvelope)
	}
	signers, err := e.SignerSet()
	if err != nil {
		return err
	}
	if e.Threshold < 1 {
		return fmt.Errorf("%w: threshold %d", ErrEnvelope, e.Threshold)
	}
	if len(signers) > 0 && e.Threshold > len(signers) {
		return fmt.Errorf("%w: threshold %d exceeds %d signers", ErrEnvelope, e.Threshold, len(signers))
	}
	seen := make(map[oracle.KeyHash]struct{}, len(signers))
	for _, kh := range signers {
		if _, dup := seen[kh]; dup {
			return fmt.Errorf("%w: duplicate signer %s", ErrEnvelope, kh)
		}
		seen[kh] = struct{}{}
	}
	return nil
}
