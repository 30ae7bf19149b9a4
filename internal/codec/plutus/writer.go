// Package plutus implements the canonical CBOR subset used by Plutus data
// values: unsigned/negative integers, byte strings, definite and indefinite
// arrays, maps with integer keys, and constructor tags (121+index for the
// first seven alternatives, 1280+index-7 beyond that).
//
// The encoding is canonical: integers use the shortest form, definite
// lengths are used everywhere except constructor field lists, which are
// indefinite to match the on-chain serialization produced by the validator
// toolchain. Any deviation on decode is a schema error for the caller.
package plutus

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// CBOR major types.
const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorText   = 3
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6
	majorSimple = 7
)

const (
	// indefBreak terminates an indefinite-length array.
	indefBreak = 0xff

	// constrTagBase is the CBOR tag of constructor 0. Constructors 0-6 map
	// to tags 121-127, constructor 7 and above map to 1280+(i-7).
	constrTagBase     = 121
	constrTagHighBase = 1280
	constrSmallMax    = 6
)

// Writer serializes Plutus data values into canonical CBOR.
// The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the serialized output accumulated so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) writeHead(major byte, n uint64) {
	switch {
	case n < 24:
		w.buf.WriteByte(major<<5 | byte(n))
	case n <= 0xff:
		w.buf.WriteByte(major<<5 | 24)
		w.buf.WriteByte(byte(n))
	case n <= 0xffff:
		w.buf.WriteByte(major<<5 | 25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		w.buf.Write(b[:])
	case n <= 0xffffffff:
		w.buf.WriteByte(major<<5 | 26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		w.buf.Write(b[:])
	default:
		w.buf.WriteByte(major<<5 | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], n)
		w.buf.Write(b[:])
	}
}

// WriteUint writes an unsigned integer.
func (w *Writer) WriteUint(v uint64) {
	w.writeHead(majorUint, v)
}

// WriteInt writes a signed integer using the CBOR negative encoding when
// needed.
func (w *Writer) WriteInt(v int64) {
	if v >= 0 {
		w.writeHead(majorUint, uint64(v))
		return
	}
	w.writeHead(majorNegInt, uint64(-v-1))
}

// WriteBytes writes a byte string.
func (w *Writer) WriteBytes(b []byte) {
	w.writeHead(majorBytes, uint64(len(b)))
	w.buf.Write(b)
}

// WriteText writes a UTF-8 text string.
func (w *Writer) WriteText(s string) {
	w.writeHead(majorText, uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteArray writes a definite-length array header; the caller writes the n
// elements afterwards.
func (w *Writer) WriteArray(n int) {
	w.writeHead(majorArray, uint64(n))
}

// BeginIndefArray starts an indefinite-length array, terminated by
// EndIndef.
func (w *Writer) BeginIndefArray() {
	w.buf.WriteByte(majorArray<<5 | 31)
}

// EndIndef terminates an indefinite-length array.
func (w *Writer) EndIndef() {
	w.buf.WriteByte(indefBreak)
}

// WriteMap writes a definite-length map header; the caller writes n
// key/value pairs afterwards in canonical key order.
func (w *Writer) WriteMap(n int) {
	w.writeHead(majorMap, uint64(n))
}

// WriteUintMap writes a map with uint keys and int values, keys sorted
// ascending. This is the shape of the CIP oracle price map.
func (w *Writer) WriteUintMap(m map[uint64]int64) {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w.WriteMap(len(m))
	for _, k := range keys {
		w.WriteUint(k)
		w.WriteInt(m[k])
	}
}

// WriteTag writes a CBOR tag header; the tagged value follows.
func (w *Writer) WriteTag(tag uint64) {
	w.writeHead(majorTag, tag)
}

// WriteBool writes a CBOR boolean.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(majorSimple<<5 | 21)
	} else {
		w.buf.WriteByte(majorSimple<<5 | 20)
	}
}

// WriteNull writes a CBOR null.
func (w *Writer) WriteNull() {
	w.buf.WriteByte(majorSimple<<5 | 22)
}

// WriteRaw splices pre-encoded CBOR into the output unchanged. Used to
// embed an already-serialized transaction body without re-encoding it.
func (w *Writer) WriteRaw(b []byte) {
	w.buf.Write(b)
}

// BeginConstr writes the constructor tag for alternative index and opens
// the indefinite field list. Close it with EndIndef. A constructor with no
// fields still carries an (empty, definite) array per the on-chain
// encoding; use WriteEmptyConstr for that.
func (w *Writer) BeginConstr(index uint64) {
	w.WriteTag(ConstrTag(index))
	w.BeginIndefArray()
}

// WriteEmptyConstr writes a constructor with an empty field list.
func (w *Writer) WriteEmptyConstr(index uint64) {
	w.WriteTag(ConstrTag(index))
	w.WriteArray(0)
}

// ConstrTag maps a constructor index to its CBOR tag.
func ConstrTag(index uint64) uint64 {
	if index <= constrSmallMax {
		return constrTagBase + index
	}
	return constrTagHighBase + index - constrSmallMax - 1
}

// ConstrIndex maps a CBOR tag back to a constructor index. The second
// return is false when the tag is not a constructor tag.
func ConstrIndex(tag uint64) (uint64, bool) {
	switch {
	case tag >= constrTagBase && tag <= constrTagBase+constrSmallMax:
		return tag - constrTagBase, true
	case tag >= constrTagHighBase:
		return tag - constrTagHighBase + constrSmallMax + 1, true
	default:
		return 0, false
	}
}
