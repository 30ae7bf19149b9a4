package oracle

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition means the requested action violates the state
	// machine's precondition for the current oracle state. Detected before
	// any transaction is built; never retried.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrSchemaMismatch means the on-chain datum or redeemer bytes do not
	// match the fixed validator schema. Fatal: indicates version skew
	// between the deployed validator and this engine.
	ErrSchemaMismatch = errors.New("datum schema mismatch")

	// ErrInvalidSettings means a Settings value fails structural
	// validation (percentages out of range, non-positive windows,
	// threshold exceeding the signer count).
	ErrInvalidSettings = errors.New("invalid oracle settings")
)

// illegalf wraps ErrIllegalTransition with a reason.
func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalTransition, fmt.Sprintf(format, args...))
}

// schemaf wraps ErrSchemaMismatch with a reason.
func schemaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}
