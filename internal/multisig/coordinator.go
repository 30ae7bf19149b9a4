package multisig

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// Status summarizes a session's progress.
type Status struct {
	Hash      tx.TxHash
	Action    oracle.ActionKind
	Signers   []oracle.KeyHash
	Threshold int
	Collected []oracle.KeyHash
	Complete  bool
}

// Coordinator runs signing sessions over a persistent store. Safe for
// concurrent use.
type Coordinator struct {
	mu    sync.Mutex
	store *Store
	log   *slog.Logger
	now   func() time.Time
}

// NewCoordinator builds a coordinator over store.
func NewCoordinator(store *Store, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, log: log, now: time.Now}
}

// Start opens a session for unsigned. Starting a session that already
// exists returns the existing one unchanged: the hash is derived from
// the body, so it is necessarily the same transaction.
func (c *Coordinator) Start(unsigned *tx.Unsigned) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if env, err := c.store.Get(unsigned.Hash); err == nil {
		c.log.Debug("resuming signing session", "tx", unsigned.Hash.String())
		return c.status(unsigned.Hash, env)
	}

	env := NewEnvelope(unsigned, c.now().UnixMilli())
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.Put(unsigned.Hash, env); err != nil {
		return nil, err
	}
	c.log.Info("signing session opened",
		"tx", unsigned.Hash.String(),
		"action", unsigned.Action.String(),
		"threshold", env.Threshold,
		"signers", len(env.Signers))
	return c.status(unsigned.Hash, env)
}

// Contribute adds a signature to the session for hash. The signature
// must verify over the hash and the key must belong to the required
// signer set; a duplicate contribution is absorbed without error.
func (c *Coordinator) Contribute(hash tx.TxHash, vkey ed25519.PublicKey, signature []byte) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := c.store.Get(hash)
	if err != nil {
		return nil, err
	}

	w := Witness{VKey: append([]byte(nil), vkey...), Signature: signature}
	if err := VerifyWitness(w, hash[:]); err != nil {
		return nil, err
	}

	credential, err := CredentialOf(vkey)
	if err != nil {
		return nil, err
	}
	signers, err := env.SignerSet()
	if err != nil {
		return nil, err
	}
	isFeePayer := bytes.Equal(env.FeePayer, credential.Bytes())
	if !isFeePayer && !containsHash(signers, credential) {
		return nil, fmt.Errorf("%w: %s is not in the signer set", ErrUnexpectedSigner, credential)
	}

	for _, have := range env.Witnesses {
		if bytes.Equal(have.VKey, w.VKey) {
			// same key, verified over the same hash: nothing to add
			return c.status(hash, env)
		}
	}

	env.Witnesses = append(env.Witnesses, w)
	if err := c.store.Put(hash, env); err != nil {
		return nil, err
	}
	c.log.Info("signature collected",
		"tx", hash.String(),
		"signer", credential.String(),
		"have", len(env.Witnesses),
		"need", env.Threshold)
	return c.status(hash, env)
}

// Status reports the session for hash.
func (c *Coordinator) Status(hash tx.TxHash) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := c.store.Get(hash)
	if err != nil {
		return nil, err
	}
	return c.status(hash, env)
}

// Sessions lists every open session.
func (c *Coordinator) Sessions() ([]Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hashes, err := c.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(hashes))
	for _, h := range hashes {
		env, err := c.store.Get(h)
		if err != nil {
			return nil, err
		}
		st, err := c.status(h, env)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// Assemble produces the fully signed transaction bytes once the
// threshold is met, and closes the session.
func (c *Coordinator) Assemble(hash tx.TxHash) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := c.store.Get(hash)
	if err != nil {
		return nil, err
	}
	st, err := c.status(hash, env)
	if err != nil {
		return nil, err
	}
	if !st.Complete {
		return nil, fmt.Errorf("%w: %d of %d signatures", ErrIncomplete, len(st.Collected), st.Threshold)
	}

	signed := &tx.Transaction{Redeemer: env.Redeemer, RedeemerIndex: env.RedeemerIndex}
	for _, w := range env.Witnesses {
		signed.Witnesses = append(signed.Witnesses, tx.VKeyWitness{
			VKey:      w.VKey,
			Signature: w.Signature,
		})
	}
	bytes := tx.EncodeTransaction(signed, env.BodyCBOR)

	if err := c.store.Delete(hash); err != nil {
		return nil, err
	}
	c.log.Info("transaction assembled", "tx", hash.String(), "witnesses", len(env.Witnesses))
	return bytes, nil
}

// Abandon drops the session for hash.
func (c *Coordinator) Abandon(hash tx.TxHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(hash)
}

func (c *Coordinator) status(hash tx.TxHash, env *Envelope) (*Status, error) {
	signers, err := env.SignerSet()
	if err != nil {
		return nil, err
	}

	collected := make([]oracle.KeyHash, 0, len(env.Witnesses))
	for _, w := range env.Witnesses {
		credential, err := CredentialOf(w.VKey)
		if err != nil {
			return nil, err
		}
		collected = append(collected, credential)
	}

	// only policy signers count toward the threshold; the fee payer's
	// witness is required separately but cannot satisfy the policy
	counted := 0
	feePayerSigned := false
	for _, kh := range collected {
		if bytes.Equal(env.FeePayer, kh.Bytes()) {
			feePayerSigned = true
		}
		if containsHash(signers, kh) {
			counted++
		}
	}
	complete := feePayerSigned
	if len(signers) > 0 {
		complete = complete && counted >= env.Threshold
	}

	return &Status{
		Hash:      hash,
		Action:    oracle.ActionKind(env.Action),
		Signers:   signers,
		Threshold: env.Threshold,
		Collected: collected,
		Complete:  complete,
	}, nil
}

func containsHash(set []oracle.KeyHash, kh oracle.KeyHash) bool {
	for _, s := range set {
		if s == kh {
			return true
		}
	}
	return false
}
