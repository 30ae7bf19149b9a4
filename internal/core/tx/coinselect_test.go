package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outpoint(b byte, index uint32) OutPoint {
	var h TxHash
	for i := range h {
		h[i] = b
	}
	return OutPoint{Hash: h, Index: index}
}

func walletUTxO(b byte, coin uint64) UTxO {
	return UTxO{
		OutPoint: outpoint(b, 0),
		Output:   TxOutput{Value: NewValue(coin)},
	}
}

func TestSelectCoinsLargestFirst(t *testing.T) {
	candidates := []UTxO{
		walletUTxO(1, 2_000_000),
		walletUTxO(2, 10_000_000),
		walletUTxO(3, 5_000_000),
	}

	picked, change, err := SelectCoins(candidates, NewValue(8_000_000))
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, outpoint(2, 0), picked[0].OutPoint)
	assert.Equal(t, uint64(2_000_000), change.Coin)
}

func TestSelectCoinsAccumulates(t *testing.T) {
	candidates := []UTxO{
		walletUTxO(1, 2_000_000),
		walletUTxO(2, 10_000_000),
		walletUTxO(3, 5_000_000),
	}

	picked, change, err := SelectCoins(candidates, NewValue(16_000_000))
	require.NoError(t, err)
	require.Len(t, picked, 3)
	assert.Equal(t, uint64(1_000_000), change.Coin)
}

func TestSelectCoinsInsufficient(t *testing.T) {
	candidates := []UTxO{walletUTxO(1, 2_000_000)}

	_, _, err := SelectCoins(candidates, NewValue(3_000_000))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	var detail *InsufficientFundsError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, uint64(3_000_000), detail.Need.Coin)
	assert.Equal(t, uint64(2_000_000), detail.Have.Coin)
}

func TestSelectCoinsEmpty(t *testing.T) {
	_, _, err := SelectCoins(nil, NewValue(1))
	require.ErrorIs(t, err, ErrNoWalletUTxOs)
}

func TestSelectCoinsDeterministicTieBreak(t *testing.T) {
	candidates := []UTxO{
		walletUTxO(5, 4_000_000),
		walletUTxO(2, 4_000_000),
		walletUTxO(9, 4_000_000),
	}

	first, _, err := SelectCoins(candidates, NewValue(1_000_000))
	require.NoError(t, err)
	second, _, err := SelectCoins([]UTxO{candidates[2], candidates[0], candidates[1]}, NewValue(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, first[0].OutPoint, second[0].OutPoint)
	assert.Equal(t, outpoint(2, 0), first[0].OutPoint)
}

func TestSelectCoinsWithAssets(t *testing.T) {
	marker := AssetID{Name: "nft"}
	holder := walletUTxO(1, 2_000_000)
	holder.Output.Value = holder.Output.Value.WithAsset(marker, 1)
	candidates := []UTxO{walletUTxO(2, 9_000_000), holder}

	target := Value{Coin: 1_000_000, Assets: map[AssetID]uint64{marker: 1}}
	picked, change, err := SelectCoins(candidates, target)
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, uint64(10_000_000), change.Coin)
	assert.Empty(t, change.Assets)
}

func TestFilterSpendable(t *testing.T) {
	plain := walletUTxO(1, 1_000_000)
	withDatum := walletUTxO(2, 1_000_000)
	withDatum.Output.Datum = []byte{0x01}
	withScript := walletUTxO(3, 1_000_000)
	withScript.Output.Script = []byte{0x02}
	excluded := walletUTxO(4, 1_000_000)

	got := FilterSpendable(
		[]UTxO{plain, withDatum, withScript, excluded},
		map[OutPoint]bool{excluded.OutPoint: true},
	)
	require.Len(t, got, 1)
	assert.Equal(t, plain.OutPoint, got[0].OutPoint)
}

func TestValueArithmetic(t *testing.T) {
	a := AssetID{Name: "a"}
	v := NewValue(10).WithAsset(a, 5)

	sum := v.Add(NewValue(3).WithAsset(a, 2))
	assert.Equal(t, uint64(13), sum.Coin)
	assert.Equal(t, uint64(7), sum.AssetQty(a))

	diff, ok := sum.Sub(v)
	require.True(t, ok)
	assert.Equal(t, uint64(3), diff.Coin)
	assert.Equal(t, uint64(2), diff.AssetQty(a))

	_, ok = NewValue(1).Sub(NewValue(2))
	assert.False(t, ok)
	_, ok = NewValue(10).Sub(NewValue(1).WithAsset(a, 1))
	assert.False(t, ok)

	// subtracting the full asset quantity clears the map entry
	cleared, ok := v.Sub(NewValue(0).WithAsset(a, 5))
	require.True(t, ok)
	assert.Nil(t, cleared.Assets)
}
