package chainquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

var (
	testMarker   = tx.AssetID{Policy: [28]byte{0xcc}, Name: "OracleState"}
	testContract = tx.NewScriptAddress(tx.Preprod, testKeyHash(0xee))
	testWallet   = tx.NewKeyAddress(tx.Preprod, testKeyHash(0x77))
)

func testKeyHash(b byte) oracle.KeyHash {
	var kh oracle.KeyHash
	for i := range kh {
		kh[i] = b
	}
	return kh
}

func testOutPoint(b byte, index uint32) tx.OutPoint {
	var h tx.TxHash
	for i := range h {
		h[i] = b
	}
	return tx.OutPoint{Hash: h, Index: index}
}

func minimalState() *oracle.OracleState {
	return &oracle.OracleState{
		Settings: oracle.Settings{
			UpdatedNodesPct: 6000,
			NodeExpiry:      3_600_000,
			AggregateWindow: 1_800_000,
			MinimumDeposit:  1,
			Fees:            oracle.Fees{NodeFee: 1, AggregateFee: 1, PlatformFee: 1},
			IQRMultiplier:   2,
			Platform: oracle.Platform{
				Signers:   []oracle.KeyHash{testKeyHash(0xa1)},
				Threshold: 1,
			},
		},
		Lifecycle: oracle.LifecycleActive,
	}
}

// fakeBackend serves canned UTxO sets keyed by address string.
type fakeBackend struct {
	utxos  map[string][]ChainUTxO
	datums map[string][]byte
	tip    Tip

	submitErr  error
	onSubmit   func()
	submitted  [][]byte
	confirmed  map[tx.TxHash]bool
	datumCalls int
}

func (f *fakeBackend) UTxOsByAddress(_ context.Context, address string) ([]ChainUTxO, error) {
	return f.utxos[address], nil
}

func (f *fakeBackend) DatumByHash(_ context.Context, hash string) ([]byte, error) {
	f.datumCalls++
	body, ok := f.datums[hash]
	if !ok {
		return nil, ErrDatumMissing
	}
	return body, nil
}

func (f *fakeBackend) Tip(context.Context) (Tip, error) { return f.tip, nil }

func (f *fakeBackend) SubmitTx(_ context.Context, txCBOR []byte) (tx.TxHash, error) {
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if f.submitErr != nil {
		return tx.TxHash{}, f.submitErr
	}
	f.submitted = append(f.submitted, txCBOR)
	return tx.HashBody(txCBOR), nil
}

func (f *fakeBackend) HasTransaction(_ context.Context, hash tx.TxHash) (bool, error) {
	return f.confirmed[hash], nil
}

func stateUTxO(state *oracle.OracleState, point tx.OutPoint) ChainUTxO {
	return ChainUTxO{
		UTxO: tx.UTxO{
			OutPoint: point,
			Output: tx.TxOutput{
				Address: testContract,
				Value:   tx.NewValue(50_000_000).WithAsset(testMarker, 1),
				Datum:   oracle.EncodeState(state),
			},
		},
	}
}

func newTestResolver(t *testing.T, backend Backend) *Resolver {
	t.Helper()
	r, err := NewResolver(backend, testContract, testMarker, SlotConfigFor(tx.Preprod))
	require.NoError(t, err)
	return r
}

func TestStateSnapshot(t *testing.T) {
	state := minimalState()
	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{
			testContract.String(): {stateUTxO(state, testOutPoint(1, 0))},
		},
	}
	r := newTestResolver(t, backend)

	snap, err := r.StateSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testOutPoint(1, 0), snap.UTxO.OutPoint)
	assert.True(t, snap.State.Equal(state))
}

func TestStateSnapshotNotFound(t *testing.T) {
	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{
			// a contract utxo without the marker does not count
			testContract.String(): {{
				UTxO: tx.UTxO{
					OutPoint: testOutPoint(1, 0),
					Output:   tx.TxOutput{Address: testContract, Value: tx.NewValue(2_000_000)},
				},
			}},
		},
	}
	r := newTestResolver(t, backend)

	_, err := r.StateSnapshot(context.Background())
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateSnapshotAmbiguous(t *testing.T) {
	state := minimalState()
	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{
			testContract.String(): {
				stateUTxO(state, testOutPoint(1, 0)),
				stateUTxO(state, testOutPoint(2, 0)),
			},
		},
	}
	r := newTestResolver(t, backend)

	_, err := r.StateSnapshot(context.Background())
	require.ErrorIs(t, err, ErrAmbiguousState)
}

func TestStateSnapshotResolvesDatumHash(t *testing.T) {
	state := minimalState()
	encoded := oracle.EncodeState(state)

	u := stateUTxO(state, testOutPoint(1, 0))
	u.Output.Datum = nil
	u.DatumHash = "abc123"

	backend := &fakeBackend{
		utxos:  map[string][]ChainUTxO{testContract.String(): {u}},
		datums: map[string][]byte{"abc123": encoded},
	}
	r := newTestResolver(t, backend)

	snap, err := r.StateSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.State.Equal(state))
	assert.Equal(t, 1, backend.datumCalls)

	// second resolve hits the cache
	_, err = r.StateSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.datumCalls)
}

func TestStateSnapshotRejectsBadDatum(t *testing.T) {
	u := stateUTxO(minimalState(), testOutPoint(1, 0))
	u.Output.Datum = []byte{0x01, 0x02}

	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{testContract.String(): {u}},
	}
	r := newTestResolver(t, backend)

	_, err := r.StateSnapshot(context.Background())
	require.ErrorIs(t, err, oracle.ErrSchemaMismatch)
}

func TestWalletUTxOs(t *testing.T) {
	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{
			testWallet.String(): {
				{UTxO: tx.UTxO{OutPoint: testOutPoint(3, 0), Output: tx.TxOutput{Value: tx.NewValue(7)}}},
			},
		},
	}
	r := newTestResolver(t, backend)

	got, err := r.WalletUTxOs(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].Output.Value.Coin)
}

func TestReferenceScript(t *testing.T) {
	withScript := ChainUTxO{
		UTxO: tx.UTxO{
			OutPoint: testOutPoint(4, 0),
			Output:   tx.TxOutput{Address: testContract, Script: []byte{0x59}},
		},
	}
	backend := &fakeBackend{
		utxos: map[string][]ChainUTxO{
			testContract.String(): {stateUTxO(minimalState(), testOutPoint(1, 0)), withScript},
		},
	}
	r := newTestResolver(t, backend)

	ref, err := r.ReferenceScript(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, testOutPoint(4, 0), ref.OutPoint)

	backend.utxos[testContract.String()] = backend.utxos[testContract.String()][:1]
	ref, err = r.ReferenceScript(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestNowMillisFollowsTip(t *testing.T) {
	backend := &fakeBackend{tip: Tip{Slot: 60_000_000}}
	r := newTestResolver(t, backend)

	now, err := r.NowMillis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SlotConfigFor(tx.Preprod).SlotToTime(60_000_000), now)
}
