package chainquery

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotFound means no UTxO at the contract address carries the
	// marker token. The oracle is not deployed, or was closed.
	ErrStateNotFound = errors.New("oracle state not found")

	// ErrAmbiguousState means more than one UTxO carries the marker. The
	// deployment is corrupt; refusing to pick one is the only safe move.
	ErrAmbiguousState = errors.New("ambiguous oracle state")

	// ErrStaleTransaction means the state input a transaction spends is
	// no longer the live state UTxO. The transaction must be rebuilt from
	// a fresh snapshot.
	ErrStaleTransaction = errors.New("transaction is stale")

	// ErrRejected means the node evaluated the transaction and refused
	// it. Resubmitting the same bytes cannot succeed.
	ErrRejected = errors.New("transaction rejected")

	// ErrNetwork means the backend could not be reached or answered
	// incompletely. The operation may be retried as-is.
	ErrNetwork = errors.New("chain backend unavailable")

	// ErrConfirmTimeout means the transaction did not appear on chain
	// within the confirmation window. It may still land later.
	ErrConfirmTimeout = errors.New("confirmation timed out")

	// ErrDatumMissing means a state UTxO reports a datum hash the
	// backend cannot resolve.
	ErrDatumMissing = errors.New("datum not resolvable")
)

// RejectionError carries the node's verdict for a refused transaction.
type RejectionError struct {
	Code    int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transaction rejected (%d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("transaction rejected: %s", e.Message)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// netErr tags err as a retryable backend failure.
func netErr(err error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
