package tx

import "golang.org/x/crypto/blake2b"

// HashBody computes the transaction id over the encoded body.
func HashBody(bodyCBOR []byte) TxHash {
	return TxHash(blake2b.Sum256(bodyCBOR))
}
