package chainquery

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// datumCacheSize bounds the resolved-datum cache. Datums are content
// addressed, so entries never go stale.
const datumCacheSize = 512

// datumFetchParallelism caps concurrent DatumByHash calls per resolve.
const datumFetchParallelism = 4

// Resolver reads the oracle's chain state through a Backend and exposes
// it as the builder's ChainView.
type Resolver struct {
	backend  Backend
	contract tx.Address
	marker   tx.AssetID
	slots    SlotConfig

	datums *lru.Cache[string, []byte]
}

// NewResolver builds a resolver for one oracle deployment.
func NewResolver(backend Backend, contract tx.Address, marker tx.AssetID, slots SlotConfig) (*Resolver, error) {
	cache, err := lru.New[string, []byte](datumCacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		backend:  backend,
		contract: contract,
		marker:   marker,
		slots:    slots,
		datums:   cache,
	}, nil
}

// StateSnapshot locates the UTxO carrying the marker token at the
// contract address and decodes its datum. Exactly one must exist:
// none is ErrStateNotFound, several is ErrAmbiguousState.
func (r *Resolver) StateSnapshot(ctx context.Context) (*tx.StateSnapshot, error) {
	utxos, err := r.contractUTxOs(ctx)
	if err != nil {
		return nil, err
	}

	var matches []ChainUTxO
	for _, u := range utxos {
		if u.Output.Value.AssetQty(r.marker) > 0 {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no utxo at %s carries %s", ErrStateNotFound, r.contract, r.marker)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d utxos at %s carry %s", ErrAmbiguousState, len(matches), r.contract, r.marker)
	}

	match := matches[0]
	datum := match.Output.Datum
	if len(datum) == 0 {
		if match.DatumHash == "" {
			return nil, fmt.Errorf("%w: state utxo %s has no datum", ErrDatumMissing, match.OutPoint)
		}
		if datum, err = r.datum(ctx, match.DatumHash); err != nil {
			return nil, err
		}
		match.Output.Datum = datum
	}

	state, err := oracle.DecodeState(datum)
	if err != nil {
		return nil, fmt.Errorf("state utxo %s: %w", match.OutPoint, err)
	}
	return &tx.StateSnapshot{UTxO: match.UTxO, State: state}, nil
}

// WalletUTxOs lists the unspent outputs at addr, resolving any
// hash-referenced datums so the coin selector can see and skip them.
func (r *Resolver) WalletUTxOs(ctx context.Context, addr tx.Address) ([]tx.UTxO, error) {
	chainUTxOs, err := r.backend.UTxOsByAddress(ctx, addr.String())
	if err != nil {
		return nil, err
	}
	if err := r.fillDatums(ctx, chainUTxOs); err != nil {
		return nil, err
	}
	out := make([]tx.UTxO, len(chainUTxOs))
	for i, u := range chainUTxOs {
		out[i] = u.UTxO
	}
	return out, nil
}

// ReferenceScript finds the published validator UTxO at the contract
// address, or nil when none exists.
func (r *Resolver) ReferenceScript(ctx context.Context) (*tx.UTxO, error) {
	utxos, err := r.contractUTxOs(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range utxos {
		if len(u.Output.Script) > 0 {
			found := u.UTxO
			return &found, nil
		}
	}
	return nil, nil
}

// TipSlot returns the current tip's absolute slot.
func (r *Resolver) TipSlot(ctx context.Context) (uint64, error) {
	tip, err := r.backend.Tip(ctx)
	if err != nil {
		return 0, err
	}
	return tip.Slot, nil
}

// NowMillis derives the chain clock from the tip slot. Preferring the
// tip over the local clock keeps transition checks consistent with what
// the validator will see.
func (r *Resolver) NowMillis(ctx context.Context) (int64, error) {
	slot, err := r.TipSlot(ctx)
	if err != nil {
		return 0, err
	}
	return r.slots.SlotToTime(slot), nil
}

func (r *Resolver) contractUTxOs(ctx context.Context) ([]ChainUTxO, error) {
	utxos, err := r.backend.UTxOsByAddress(ctx, r.contract.String())
	if err != nil {
		return nil, err
	}
	return utxos, nil
}

// datum fetches one datum through the cache.
func (r *Resolver) datum(ctx context.Context, hash string) ([]byte, error) {
	if cached, ok := r.datums.Get(hash); ok {
		return cached, nil
	}
	body, err := r.backend.DatumByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	r.datums.Add(hash, body)
	return body, nil
}

// fillDatums resolves every hash-referenced datum in utxos in place,
// fetching uncached ones concurrently.
func (r *Resolver) fillDatums(ctx context.Context, utxos []ChainUTxO) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(datumFetchParallelism)
	for i := range utxos {
		if len(utxos[i].Output.Datum) > 0 || utxos[i].DatumHash == "" {
			continue
		}
		u := &utxos[i]
		g.Go(func() error {
			body, err := r.datum(ctx, u.DatumHash)
			if err != nil {
				return fmt.Errorf("utxo %s: %w", u.OutPoint, err)
			}
			u.Output.Datum = body
			return nil
		})
	}
	return g.Wait()
}
