package tx

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the wallet's spendable UTxOs cannot
	// cover the transaction's outputs plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrFeeEstimationFailed means the fee did not converge within the
	// iteration bound.
	ErrFeeEstimationFailed = errors.New("fee estimation failed")

	// ErrTxTooLarge means the balanced transaction exceeds the protocol
	// size limit.
	ErrTxTooLarge = errors.New("transaction exceeds size limit")

	// ErrNoWalletUTxOs means the wallet address holds nothing spendable
	// at all.
	ErrNoWalletUTxOs = errors.New("wallet has no spendable utxos")

	// ErrReferenceScriptExists means the contract already has a published
	// reference script.
	ErrReferenceScriptExists = errors.New("reference script already published")

	// ErrInsufficientReserve means the state UTxO's fee-token balance
	// cannot cover the rewards an aggregation would credit.
	ErrInsufficientReserve = errors.New("reserve below outstanding rewards")
)

// InsufficientFundsError reports how far short the selection fell.
type InsufficientFundsError struct {
	Need Value
	Have Value
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Need, e.Have)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }
