package multisig

import "errors"

var (
	// ErrSessionNotFound means no signing session exists for the
	// transaction hash.
	ErrSessionNotFound = errors.New("signing session not found")

	// ErrUnexpectedSigner means the contributed key is not in the
	// session's required signer set.
	ErrUnexpectedSigner = errors.New("unexpected signer")

	// ErrBadSignature means the signature does not verify against the
	// transaction hash.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrIncomplete means the session has fewer signatures than the
	// threshold requires.
	ErrIncomplete = errors.New("signing session incomplete")

	// ErrEnvelope means a stored envelope is structurally invalid.
	ErrEnvelope = errors.New("invalid signing envelope")
)
