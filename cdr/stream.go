package cdr

import (
	"encoding/binary"

	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Writer produces a CDR stream. A counting Writer tracks the length only.
type Writer struct {
	buf      []byte
	base     int
	n        int
	order    byteOrder
	maxAlign int
	count    bool
}

// NewWriter returns a Writer for the given version and byte order.
func NewWriter(v layout.EncodingVersion, bigEndian bool) *Writer {
	return newWriter(nil, v, bigEndian, false)
}

// NewCounter returns a Writer that only measures.
func NewCounter(v layout.EncodingVersion) *Writer {
	return newWriter(nil, v, false, true)
}

func newWriter(buf []byte, v layout.EncodingVersion, bigEndian, count bool) *Writer {
	var order byteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	return &Writer{buf: buf, base: len(buf), order: order, maxAlign: int(v.MaxAlign()), count: count}
}

// Len returns the number of bytes produced. Alignment is relative to the
// first byte the Writer produced.
func (w *Writer) Len() int { return w.n }

// Bytes returns the stream, including any prefix the Writer was given.
func (w *Writer) Bytes() []byte { return w.buf }

// Align pads to a multiple of align, capped at the version's maximum.
func (w *Writer) Align(align int) {
	align = min(align, w.maxAlign)
	if align <= 1 {
		return
	}
	if pad := (align - w.n%align) % align; pad > 0 {
		w.Zeros(pad)
	}
}

func (w *Writer) Zeros(n int) {
	w.n += n
	if w.count {
		return
	}
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) U8(v uint8) {
	w.n++
	if !w.count {
		w.buf = append(w.buf, v)
	}
}

func (w *Writer) U16(v uint16) {
	w.Align(2)
	w.n += 2
	if !w.count {
		w.buf = w.order.AppendUint16(w.buf, v)
	}
}

func (w *Writer) U32(v uint32) {
	w.Align(4)
	w.n += 4
	if !w.count {
		w.buf = w.order.AppendUint32(w.buf, v)
	}
}

func (w *Writer) U64(v uint64) {
	w.Align(8)
	w.n += 8
	if !w.count {
		w.buf = w.order.AppendUint64(w.buf, v)
	}
}

// Raw appends bytes without alignment.
func (w *Writer) Raw(b []byte) {
	w.n += len(b)
	if !w.count {
		w.buf = append(w.buf, b...)
	}
}

// Reserve32 writes a placeholder word and returns its position.
func (w *Writer) Reserve32() int {
	w.Align(4)
	at := w.n
	w.U32(0)
	return at
}

// Patch32 overwrites the word at a position returned by Reserve32.
func (w *Writer) Patch32(at int, v uint32) {
	if !w.count {
		w.order.PutUint32(w.buf[w.base+at:], v)
	}
}

// Patch16 overwrites a 16-bit value at a known position.
func (w *Writer) Patch16(at int, v uint16) {
	if !w.count {
		w.order.PutUint16(w.buf[w.base+at:], v)
	}
}

// Reader consumes a CDR stream.
type Reader struct {
	data     []byte
	pos      int
	order    binary.ByteOrder
	maxAlign int
}

func NewReader(data []byte, v layout.EncodingVersion, bigEndian bool) *Reader {
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	return &Reader{data: data, order: order, maxAlign: int(v.MaxAlign())}
}

func (r *Reader) Pos() int       { return r.pos }
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) need(what string, n int) error {
	if n < 0 || n > r.Remaining() {
		return errors.Truncated(errors.PhaseDecode, what, r.pos, n, r.Remaining())
	}
	return nil
}

func (r *Reader) Align(align int) error {
	align = min(align, r.maxAlign)
	if align <= 1 {
		return nil
	}
	pad := (align - r.pos%align) % align
	if err := r.need("padding", pad); err != nil {
		return err
	}
	r.pos += pad
	return nil
}

// Seek moves to an absolute position inside the stream.
func (r *Reader) Seek(what string, pos int) error {
	if pos < 0 || pos > len(r.data) {
		return errors.Truncated(errors.PhaseDecode, what, r.pos, pos-r.pos, r.Remaining())
	}
	r.pos = pos
	return nil
}

func (r *Reader) Bytes(what string, n int) ([]byte, error) {
	if err := r.need(what, n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U8(what string) (uint8, error) {
	b, err := r.Bytes(what, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16(what string) (uint16, error) {
	if err := r.Align(2); err != nil {
		return 0, err
	}
	b, err := r.Bytes(what, 2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) U32(what string) (uint32, error) {
	if err := r.Align(4); err != nil {
		return 0, err
	}
	b, err := r.Bytes(what, 4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) U64(what string) (uint64, error) {
	if err := r.Align(8); err != nil {
		return 0, err
	}
	b, err := r.Bytes(what, 8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// Peek16 reads an aligned 16-bit value without consuming it.
func (r *Reader) Peek16(what string) (uint16, error) {
	save := r.pos
	v, err := r.U16(what)
	r.pos = save
	return v, err
}

// Peek32 reads an aligned word without consuming it.
func (r *Reader) Peek32(what string) (uint32, error) {
	save := r.pos
	v, err := r.U32(what)
	r.pos = save
	return v, err
}
