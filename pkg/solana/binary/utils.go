// Package binary reads and writes the fixed offset, little endian account
// layouts used by the native token program.
package binary

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

// OptionSize is the size of a COption tag.
const OptionSize = 4

var ErrShortBuffer = errors.New("buffer too small for layout")

// Writer fills a fixed size layout from the front.
type Writer struct {
	b      []byte
	offset int
}

func NewWriter(size int) *Writer {
	return &Writer{b: make([]byte, size)}
}

func (w *Writer) PutKey32(k solana.PublicKey) {
	copy(w.b[w.offset:], k[:])
	w.offset += len(k)
}

// PutOptionalKey32 writes a COption<Pubkey>. A zero key is encoded as None.
func (w *Writer) PutOptionalKey32(k solana.PublicKey) {
	if !k.IsZero() {
		binary.LittleEndian.PutUint32(w.b[w.offset:], 1)
		copy(w.b[w.offset+OptionSize:], k[:])
	}
	w.offset += OptionSize + len(k)
}

func (w *Writer) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.b[w.offset:], v)
	w.offset += 8
}

func (w *Writer) PutOptionalUint64(v *uint64) {
	if v != nil {
		binary.LittleEndian.PutUint32(w.b[w.offset:], 1)
		binary.LittleEndian.PutUint64(w.b[w.offset+OptionSize:], *v)
	}
	w.offset += OptionSize + 8
}

func (w *Writer) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.b[w.offset:], v)
	w.offset += 4
}

func (w *Writer) PutUint8(v uint8) {
	w.b[w.offset] = v
	w.offset++
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func (w *Writer) Bytes() []byte {
	return w.b
}

// Reader consumes a layout from the front. The first out of bounds read
// latches ErrShortBuffer, and later reads are no-ops.
type Reader struct {
	b      []byte
	offset int
	err    error
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b)-r.offset < n {
		r.err = ErrShortBuffer
		return nil
	}

	v := r.b[r.offset : r.offset+n]
	r.offset += n
	return v
}

func (r *Reader) GetKey32(dst *solana.PublicKey) {
	if v := r.take(len(dst)); v != nil {
		copy(dst[:], v)
	}
}

func (r *Reader) GetOptionalKey32(dst *solana.PublicKey) {
	v := r.take(OptionSize + len(dst))
	if v == nil {
		return
	}

	*dst = solana.PublicKey{}
	if binary.LittleEndian.Uint32(v) == 1 {
		copy(dst[:], v[OptionSize:])
	}
}

func (r *Reader) GetUint64(dst *uint64) {
	if v := r.take(8); v != nil {
		*dst = binary.LittleEndian.Uint64(v)
	}
}

func (r *Reader) GetOptionalUint64(dst **uint64) {
	v := r.take(OptionSize + 8)
	if v == nil {
		return
	}

	*dst = nil
	if binary.LittleEndian.Uint32(v) == 1 {
		val := binary.LittleEndian.Uint64(v[OptionSize:])
		*dst = &val
	}
}

func (r *Reader) GetUint32(dst *uint32) {
	if v := r.take(4); v != nil {
		*dst = binary.LittleEndian.Uint32(v)
	}
}

func (r *Reader) GetUint8(dst *uint8) {
	if v := r.take(1); v != nil {
		*dst = v[0]
	}
}

func (r *Reader) GetBool(dst *bool) {
	if v := r.take(1); v != nil {
		*dst = v[0] != 0
	}
}

// Err returns ErrShortBuffer if any read ran past the end of the layout.
func (r *Reader) Err() error {
	return r.err
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.b) - r.offset
}
