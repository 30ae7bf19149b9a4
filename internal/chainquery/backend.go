// Package chainquery resolves the oracle's on-chain state and carries
// finished transactions to the network. It speaks to a node through a
// pluggable Backend (Ogmios over websocket, or Blockfrost over REST),
// caches resolved datums, and gates submissions against stale snapshots.
package chainquery

import (
	"context"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// Tip is the chain head as reported by the backend.
type Tip struct {
	Slot uint64
	Hash string
}

// ChainUTxO is a UTxO as a backend reports it. DatumHash is set when the
// output references its datum by hash instead of carrying it inline; the
// resolver fetches such datums separately.
type ChainUTxO struct {
	tx.UTxO
	DatumHash string
}

// Backend is the raw node access the resolver builds on. Implementations
// translate their transport errors into ErrNetwork so callers can tell a
// flaky connection from a firm rejection.
type Backend interface {
	// UTxOsByAddress lists the unspent outputs at a bech32 address.
	UTxOsByAddress(ctx context.Context, address string) ([]ChainUTxO, error)

	// DatumByHash fetches a datum body by its hash. ErrDatumMissing when
	// the backend does not know it.
	DatumByHash(ctx context.Context, hash string) ([]byte, error)

	// Tip returns the current chain head.
	Tip(ctx context.Context) (Tip, error)

	// SubmitTx sends a fully signed transaction. A node-side refusal is a
	// RejectionError; transport failures are ErrNetwork.
	SubmitTx(ctx context.Context, txCBOR []byte) (tx.TxHash, error)

	// HasTransaction reports whether hash is on chain.
	HasTransaction(ctx context.Context, hash tx.TxHash) (bool, error)
}
