package plutus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUintHeadForms(t *testing.T) {
	// one value per encoded head width
	values := []uint64{0, 23, 24, 255, 256, 65535, 65536, 4294967295, 4294967296, 1<<64 - 1}
	for _, v := range values {
		var w Writer
		w.WriteUint(v)

		r := NewReader(w.Bytes())
		got, err := r.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
		require.NoError(t, r.Finish())
	}
}

func TestIntRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 23, -24, -25, 1_000_000, -1_000_000, 1<<62 - 1, -(1 << 62)}
	for _, v := range values {
		var w Writer
		w.WriteInt(v)

		r := NewReader(w.Bytes())
		got, err := r.ReadInt()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestNegativeIntWireForm(t *testing.T) {
	var w Writer
	w.WriteInt(-1)
	assert.Equal(t, []byte{0x20}, w.Bytes())

	w = Writer{}
	w.WriteInt(-25)
	assert.Equal(t, []byte{0x38, 0x18}, w.Bytes())
}

func TestBytesAndText(t *testing.T) {
	var w Writer
	w.WriteBytes([]byte{0xde, 0xad})
	w.WriteText("péage")

	r := NewReader(w.Bytes())
	b, err := r.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, b)

	s, err := r.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "péage", s)
	require.NoError(t, r.Finish())
}

func TestIndefiniteArray(t *testing.T) {
	var w Writer
	w.BeginIndefArray()
	w.WriteUint(1)
	w.WriteUint(2)
	w.EndIndef()

	r := NewReader(w.Bytes())
	_, indef, err := r.ReadArray()
	require.NoError(t, err)
	require.True(t, indef)

	var got []uint64
	for {
		done, err := r.Break()
		require.NoError(t, err)
		if done {
			break
		}
		v, err := r.ReadUint()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []uint64{1, 2}, got)
	require.NoError(t, r.Finish())
}

func TestUintMapSortedAndRoundTrips(t *testing.T) {
	m := map[uint64]int64{2: -7, 0: 10, 1: 20}

	var w Writer
	w.WriteUintMap(m)

	// keys must come out ascending regardless of map iteration order
	expectPrefix := []byte{0xa3, 0x00, 0x0a, 0x01, 0x14, 0x02, 0x26}
	assert.Equal(t, expectPrefix, w.Bytes())

	r := NewReader(w.Bytes())
	got, err := r.ReadUintMap()
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestConstrTagMapping(t *testing.T) {
	tests := []struct {
		index uint64
		tag   uint64
	}{
		{0, 121},
		{6, 127},
		{7, 1280},
		{100, 1373},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tag, ConstrTag(tt.index))
		back, ok := ConstrIndex(tt.tag)
		require.True(t, ok)
		assert.Equal(t, tt.index, back)
	}

	_, ok := ConstrIndex(128) // between the low and high ranges
	assert.False(t, ok)
}

func TestConstrRoundTrip(t *testing.T) {
	var w Writer
	w.BeginConstr(3)
	w.WriteUint(42)
	w.EndIndef()

	r := NewReader(w.Bytes())
	index, indef, _, err := r.ReadConstr()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), index)
	require.True(t, indef)

	v, err := r.ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
	require.NoError(t, r.EndConstr(indef))
	require.NoError(t, r.Finish())
}

func TestEmptyConstr(t *testing.T) {
	var w Writer
	w.WriteEmptyConstr(1)

	r := NewReader(w.Bytes())
	indef, err := r.ReadConstrExpect(1, 0)
	require.NoError(t, err)
	assert.False(t, indef)
	require.NoError(t, r.Finish())
}

func TestReadConstrExpectMismatch(t *testing.T) {
	var w Writer
	w.WriteEmptyConstr(2)

	r := NewReader(w.Bytes())
	_, err := r.ReadConstrExpect(0, 0)
	require.ErrorIs(t, err, ErrUnexpectedType)
}

func TestTruncatedInput(t *testing.T) {
	var w Writer
	w.WriteBytes(make([]byte, 10))

	r := NewReader(w.Bytes()[:5])
	_, err := r.ReadBytes()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestTrailingBytes(t *testing.T) {
	var w Writer
	w.WriteUint(1)
	w.WriteUint(2)

	r := NewReader(w.Bytes())
	_, err := r.ReadUint()
	require.NoError(t, err)
	require.ErrorIs(t, r.Finish(), ErrTrailingBytes)
}

func TestWriteRawSplices(t *testing.T) {
	var inner Writer
	inner.WriteUint(7)

	var w Writer
	w.WriteArray(2)
	w.WriteRaw(inner.Bytes())
	w.WriteUint(8)

	r := NewReader(w.Bytes())
	n, indef, err := r.ReadArray()
	require.NoError(t, err)
	require.False(t, indef)
	require.Equal(t, 2, n)
	a, err := r.ReadUint()
	require.NoError(t, err)
	b, err := r.ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), a)
	assert.Equal(t, uint64(8), b)
}
