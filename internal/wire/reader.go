package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/wippyai/dds-core/errors"
)

// Reader consumes little-endian input with position tracking. Every
// failure is a corrupt-input error.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) take(what string, n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.Truncated(errors.PhaseDeserialize, what, r.pos, n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32(what string) (uint32, error) {
	b, err := r.take(what, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadCount reads a u32 element count and checks that the remaining input
// can hold count items of at least minSize bytes.
func (r *Reader) ReadCount(what string, minSize int) (int, error) {
	n, err := r.ReadU32(what)
	if err != nil {
		return 0, err
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		return 0, errors.Truncated(errors.PhaseDeserialize, what, r.pos, int(n)*minSize, r.Remaining())
	}
	return int(n), nil
}

// ReadWords reads a count-prefixed list of words.
func (r *Reader) ReadWords(what string) ([]uint32, error) {
	n, err := r.ReadCount(what, 4)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, n)
	for i := range words {
		if words[i], err = r.ReadU32(what); err != nil {
			return nil, err
		}
	}
	return words, nil
}

// ReadString reads a length-prefixed, padded UTF-8 string.
func (r *Reader) ReadString(what string) (string, error) {
	n, err := r.ReadU32(what)
	if err != nil {
		return "", err
	}
	b, err := r.take(what, int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.Corrupt(errors.PhaseDeserialize, "%s is not valid UTF-8", what)
	}
	s := string(b)
	if pad := (4 - r.pos%4) % 4; pad > 0 {
		if _, err := r.take(what+" padding", pad); err != nil {
			return "", err
		}
	}
	return s, nil
}

// ExpectEOF fails if unread input remains.
func (r *Reader) ExpectEOF(what string) error {
	if r.Remaining() != 0 {
		return errors.Corrupt(errors.PhaseDeserialize, "%d trailing bytes after %s", r.Remaining(), what)
	}
	return nil
}
