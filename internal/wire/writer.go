package wire

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates little-endian output.
type Writer struct {
	buf *bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteU32 writes a little-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteWords writes a count followed by the words.
func (w *Writer) WriteWords(words []uint32) {
	w.WriteU32(uint32(len(words)))
	for _, v := range words {
		w.WriteU32(v)
	}
}

// WriteString writes a length-prefixed string padded with zeros to a
// 4-byte boundary.
func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
	w.pad()
}

func (w *Writer) pad() {
	for w.buf.Len()%4 != 0 {
		w.buf.WriteByte(0)
	}
}
