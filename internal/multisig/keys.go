package multisig

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

// CredentialOf hashes an ed25519 verification key into its payment
// credential: blake2b-224 over the raw key bytes.
func CredentialOf(vkey ed25519.PublicKey) (oracle.KeyHash, error) {
	var kh oracle.KeyHash
	if len(vkey) != ed25519.PublicKeySize {
		return kh, fmt.Errorf("verification key: want %d bytes, got %d", ed25519.PublicKeySize, len(vkey))
	}
	h, err := blake2b.New(oracle.KeyHashSize, nil)
	if err != nil {
		return kh, err
	}
	h.Write(vkey)
	copy(kh[:], h.Sum(nil))
	return kh, nil
}

// Sign produces a witness over the transaction hash.
func Sign(key ed25519.PrivateKey, hash []byte) Witness {
	return Witness{
		VKey:      append([]byte(nil), key.Public().(ed25519.PublicKey)...),
		Signature: ed25519.Sign(key, hash),
	}
}

// VerifyWitness checks w's signature over hash.
func VerifyWitness(w Witness, hash []byte) error {
	if len(w.VKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad key length %d", ErrBadSignature, len(w.VKey))
	}
	if !ed25519.Verify(ed25519.PublicKey(w.VKey), hash, w.Signature) {
		return ErrBadSignature
	}
	return nil
}
