package plutus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode errors. ErrUnexpectedType covers every structural mismatch: wrong
// major type, wrong constructor tag, wrong arity. Callers translate it into
// their own schema error, never coerce.
var (
	ErrTruncated      = errors.New("plutus: truncated input")
	ErrUnexpectedType = errors.New("plutus: unexpected type")
	ErrTrailingBytes  = errors.New("plutus: trailing bytes after value")
)

// Reader parses the Plutus data CBOR subset. It accepts both definite and
// indefinite-length arrays on decode since either appears on chain.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// HasMore reports whether unread bytes remain.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.data)
}

// Finish fails with ErrTrailingBytes if input remains unconsumed.
func (r *Reader) Finish() error {
	if r.HasMore() {
		return fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, len(r.data)-r.pos)
	}
	return nil
}

func (r *Reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) peekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	return r.data[r.pos], nil
}

// readHead consumes a CBOR item head and returns its major type and
// argument. An indefinite-length marker returns argument ^uint64(0).
func (r *Reader) readHead() (byte, uint64, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	major := b >> 5
	info := b & 0x1f
	switch {
	case info < 24:
		return major, uint64(info), nil
	case info == 24:
		v, err := r.readByte()
		return major, uint64(v), err
	case info == 25:
		if r.pos+2 > len(r.data) {
			return 0, 0, ErrTruncated
		}
		v := binary.BigEndian.Uint16(r.data[r.pos:])
		r.pos += 2
		return major, uint64(v), nil
	case info == 26:
		if r.pos+4 > len(r.data) {
			return 0, 0, ErrTruncated
		}
		v := binary.BigEndian.Uint32(r.data[r.pos:])
		r.pos += 4
		return major, uint64(v), nil
	case info == 27:
		if r.pos+8 > len(r.data) {
			return 0, 0, ErrTruncated
		}
		v := binary.BigEndian.Uint64(r.data[r.pos:])
		r.pos += 8
		return major, v, nil
	case info == 31:
		return major, ^uint64(0), nil
	default:
		return 0, 0, fmt.Errorf("%w: reserved additional info %d", ErrUnexpectedType, info)
	}
}

// ReadUint reads an unsigned integer.
func (r *Reader) ReadUint() (uint64, error) {
	major, v, err := r.readHead()
	if err != nil {
		return 0, err
	}
	if major != majorUint {
		return 0, fmt.Errorf("%w: want uint, got major %d", ErrUnexpectedType, major)
	}
	return v, nil
}

// ReadInt reads a signed integer (uint or negative-int major type).
func (r *Reader) ReadInt() (int64, error) {
	major, v, err := r.readHead()
	if err != nil {
		return 0, err
	}
	switch major {
	case majorUint:
		if v > 1<<63-1 {
			return 0, fmt.Errorf("%w: integer overflows int64", ErrUnexpectedType)
		}
		return int64(v), nil
	case majorNegInt:
		if v > 1<<63-1 {
			return 0, fmt.Errorf("%w: integer overflows int64", ErrUnexpectedType)
		}
		return -int64(v) - 1, nil
	default:
		return 0, fmt.Errorf("%w: want int, got major %d", ErrUnexpectedType, major)
	}
}

// ReadBytes reads a byte string.
func (r *Reader) ReadBytes() ([]byte, error) {
	major, n, err := r.readHead()
	if err != nil {
		return nil, err
	}
	if major != majorBytes {
		return nil, fmt.Errorf("%w: want bytes, got major %d", ErrUnexpectedType, major)
	}
	if n > uint64(len(r.data)-r.pos) {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// ReadText reads a UTF-8 text string.
func (r *Reader) ReadText() (string, error) {
	major, n, err := r.readHead()
	if err != nil {
		return "", err
	}
	if major != majorText {
		return "", fmt.Errorf("%w: want text, got major %d", ErrUnexpectedType, major)
	}
	if n > uint64(len(r.data)-r.pos) {
		return "", ErrTruncated
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// ReadArray reads an array header. It returns the element count and false
// for definite arrays, or -1 and true for indefinite ones; iterate with
// Break() to detect the terminator in the indefinite case.
func (r *Reader) ReadArray() (int, bool, error) {
	major, n, err := r.readHead()
	if err != nil {
		return 0, false, err
	}
	if major != majorArray {
		return 0, false, fmt.Errorf("%w: want array, got major %d", ErrUnexpectedType, major)
	}
	if n == ^uint64(0) {
		return -1, true, nil
	}
	return int(n), false, nil
}

// ReadArrayLen reads an array header and requires exactly want elements.
// Indefinite arrays are accepted; the caller must call ExpectBreak after
// reading the elements when indef is returned true.
func (r *Reader) ReadArrayLen(want int) (indef bool, err error) {
	n, indef, err := r.ReadArray()
	if err != nil {
		return false, err
	}
	if !indef && n != want {
		return false, fmt.Errorf("%w: want %d fields, got %d", ErrUnexpectedType, want, n)
	}
	return indef, nil
}

// Break reports whether the next byte is the indefinite-length terminator
// and consumes it if so.
func (r *Reader) Break() (bool, error) {
	b, err := r.peekByte()
	if err != nil {
		return false, err
	}
	if b == indefBreak {
		r.pos++
		return true, nil
	}
	return false, nil
}

// ExpectBreak consumes the indefinite-length terminator or fails.
func (r *Reader) ExpectBreak() error {
	ok, err := r.Break()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing break after indefinite array", ErrUnexpectedType)
	}
	return nil
}

// ReadMap reads a map header and returns the pair count.
func (r *Reader) ReadMap() (int, error) {
	major, n, err := r.readHead()
	if err != nil {
		return 0, err
	}
	if major != majorMap {
		return 0, fmt.Errorf("%w: want map, got major %d", ErrUnexpectedType, major)
	}
	if n == ^uint64(0) {
		return 0, fmt.Errorf("%w: indefinite maps not supported", ErrUnexpectedType)
	}
	return int(n), nil
}

// ReadUintMap reads a map with uint keys and int values.
func (r *Reader) ReadUintMap() (map[uint64]int64, error) {
	n, err := r.ReadMap()
	if err != nil {
		return nil, err
	}
	m := make(map[uint64]int64, n)
	for i := 0; i < n; i++ {
		k, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadInt()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// ReadTag reads a tag header and returns the tag number.
func (r *Reader) ReadTag() (uint64, error) {
	major, v, err := r.readHead()
	if err != nil {
		return 0, err
	}
	if major != majorTag {
		return 0, fmt.Errorf("%w: want tag, got major %d", ErrUnexpectedType, major)
	}
	return v, nil
}

// ReadConstr reads a constructor tag plus its field-list header and
// returns the constructor index. The caller reads the fields and then
// calls EndConstr with the returned state.
func (r *Reader) ReadConstr() (index uint64, indef bool, fields int, err error) {
	tag, err := r.ReadTag()
	if err != nil {
		return 0, false, 0, err
	}
	index, ok := ConstrIndex(tag)
	if !ok {
		return 0, false, 0, fmt.Errorf("%w: tag %d is not a constructor", ErrUnexpectedType, tag)
	}
	n, indef, err := r.ReadArray()
	if err != nil {
		return 0, false, 0, err
	}
	return index, indef, n, nil
}

// ReadConstrExpect reads a constructor and requires index want with
// exactly fields fields. Returns indef; call EndConstr(indef) after
// reading the fields.
func (r *Reader) ReadConstrExpect(want uint64, fields int) (bool, error) {
	index, indef, n, err := r.ReadConstr()
	if err != nil {
		return false, err
	}
	if index != want {
		return false, fmt.Errorf("%w: want constructor %d, got %d", ErrUnexpectedType, want, index)
	}
	if !indef && n != fields {
		return false, fmt.Errorf("%w: constructor %d: want %d fields, got %d", ErrUnexpectedType, want, fields, n)
	}
	return indef, nil
}

// EndConstr consumes the field-list terminator for indefinite constructors.
func (r *Reader) EndConstr(indef bool) error {
	if !indef {
		return nil
	}
	return r.ExpectBreak()
}
