package chainquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// Gate carries finished transactions to the network. Before submitting
// a transaction that spends the contract state, it re-resolves the live
// state and refuses to send anything built against a superseded UTxO;
// losing the race to another engine then costs one rebuild instead of a
// pointless on-chain rejection.
type Gate struct {
	backend  Backend
	resolver *Resolver
	log      *slog.Logger

	// PollInterval and ConfirmTimeout drive WaitConfirmed.
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// NewGate builds a submission gate over backend and resolver.
func NewGate(backend Backend, resolver *Resolver, log *slog.Logger) *Gate {
	return &Gate{
		backend:        backend,
		resolver:       resolver,
		log:            log,
		PollInterval:   5 * time.Second,
		ConfirmTimeout: 3 * time.Minute,
	}
}

// Submit sends the signed bytes for unsigned. ErrStaleTransaction means
// the caller must rebuild from a fresh snapshot; ErrRejected means the
// node refused the transaction; ErrNetwork failures may be retried with
// the same bytes.
func (g *Gate) Submit(ctx context.Context, unsigned *tx.Unsigned, signedCBOR []byte) (tx.TxHash, error) {
	if unsigned.Action.HasRedeemer() {
		if err := g.CheckFresh(ctx, unsigned); err != nil {
			return tx.TxHash{}, err
		}
	}

	hash, err := g.backend.SubmitTx(ctx, signedCBOR)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			g.log.Warn("transaction rejected by node",
				"action", unsigned.Action.String(),
				"tx", unsigned.Hash.String(),
				"err", err)
			// a rejection after passing the freshness check usually means
			// someone spent the state between check and submit
			if stale := g.recheckStale(ctx, unsigned); stale != nil {
				return tx.TxHash{}, stale
			}
		}
		return tx.TxHash{}, err
	}

	g.log.Info("transaction submitted",
		"action", unsigned.Action.String(),
		"tx", hash.String())
	return hash, nil
}

// CheckFresh verifies the state input the transaction spends is still
// the live state UTxO. Signers run it before contributing so a stale
// envelope is caught at the first signature, not at submission.
func (g *Gate) CheckFresh(ctx context.Context, unsigned *tx.Unsigned) error {
	snap, err := g.resolver.StateSnapshot(ctx)
	if err != nil {
		return err
	}
	for _, in := range unsigned.Body.Inputs {
		if in == snap.UTxO.OutPoint {
			return nil
		}
	}
	return fmt.Errorf("%w: state moved to %s", ErrStaleTransaction, snap.UTxO.OutPoint)
}

// recheckStale reruns the freshness check after a rejection and returns
// a staleness error when that is the explanation, nil otherwise.
func (g *Gate) recheckStale(ctx context.Context, unsigned *tx.Unsigned) error {
	if !unsigned.Action.HasRedeemer() {
		return nil
	}
	if err := g.CheckFresh(ctx, unsigned); errors.Is(err, ErrStaleTransaction) {
		return err
	}
	return nil
}

// WaitConfirmed polls until hash is on chain or the confirmation window
// closes.
func (g *Gate) WaitConfirmed(ctx context.Context, hash tx.TxHash) error {
	deadline := time.Now().Add(g.ConfirmTimeout)
	ticker := time.NewTicker(g.PollInterval)
	defer ticker.Stop()

	for {
		found, err := g.backend.HasTransaction(ctx, hash)
		if err != nil && !errors.Is(err, ErrNetwork) {
			return err
		}
		if found {
			g.log.Info("transaction confirmed", "tx", hash.String())
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, hash, g.ConfirmTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
