package cdr

import (
	"encoding/binary"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
)

// Codec serializes samples of one descriptor.
type Codec struct {
	d         *descriptor.Descriptor
	v         layout.EncodingVersion
	format    Format
	bigEndian bool
	optSize   uint32
}

// Option configures a Codec.
type Option func(*Codec)

// WithBigEndian makes the Codec write big-endian bodies. Big-endian bodies
// never use the native copy path.
func WithBigEndian() Option {
	return func(c *Codec) { c.bigEndian = true }
}

func New(d *descriptor.Descriptor, opts ...Option) *Codec {
	c := &Codec{
		d:      d,
		v:      d.EncodingVersion(),
		format: FormatFor(d.Extensibility),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.bigEndian {
		c.optSize = OptimizedSize(d, c.v)
	}
	return c
}

func (c *Codec) Descriptor() *descriptor.Descriptor { return c.d }

func (c *Codec) Version() layout.EncodingVersion { return c.v }

func (c *Codec) Format() Format { return c.format }

// OptimizedSize is the native size when samples are copied verbatim, or 0.
func (c *Codec) OptimizedSize() uint32 { return c.optSize }

// Header returns the encapsulation header for samples of this Codec.
func (c *Codec) Header() Header {
	return NewHeader(c.format, c.v, c.bigEndian)
}

func (c *Codec) encoder(mem ddscore.Memory, w *Writer) *encoder {
	return &encoder{p: c.d.Program, mem: mem, w: w, v: c.v}
}

// Size returns the exact body length of the sample at addr, padding
// included and the encapsulation header excluded.
func (c *Codec) Size(mem ddscore.Memory, addr uint32) (int, error) {
	if c.optSize > 0 {
		return padded(int(c.optSize)), nil
	}
	e := c.encoder(mem, NewCounter(c.v))
	if err := e.structAt(0, addr); err != nil {
		return 0, err
	}
	return padded(e.w.Len()), nil
}

// writeBody appends the padded body to w and returns the padding count.
func (c *Codec) writeBody(mem ddscore.Memory, addr uint32, w *Writer) (int, error) {
	if c.optSize > 0 {
		raw, err := mem.Read(addr, c.optSize)
		if err != nil {
			return 0, errors.Wrap(errors.PhaseSerialize, errors.KindOutOfBounds, err, "read sample")
		}
		w.Raw(raw)
	} else if err := c.encoder(mem, w).structAt(0, addr); err != nil {
		return 0, err
	}
	pad := padded(w.Len()) - w.Len()
	w.Zeros(pad)
	return pad, nil
}

// SerializeInto writes the body of the sample at addr into dst and returns
// its length. dst must hold at least Size bytes.
func (c *Codec) SerializeInto(mem ddscore.Memory, addr uint32, dst []byte) (int, error) {
	n, err := c.Size(mem, addr)
	if err != nil {
		return 0, err
	}
	if len(dst) < n {
		return 0, errors.BufferTooSmall(errors.PhaseSerialize, n, len(dst))
	}
	w := newWriter(dst[:0], c.v, c.bigEndian, false)
	if _, err := c.writeBody(mem, addr, w); err != nil {
		return 0, err
	}
	if w.Len() != n {
		return 0, errors.Corrupt(errors.PhaseSerialize, "sample changed during serialization: %d bytes, expected %d", w.Len(), n)
	}
	return n, nil
}

// Serialize returns the encapsulation header followed by the body.
func (c *Codec) Serialize(mem ddscore.Memory, addr uint32) ([]byte, error) {
	buf := c.Header().Append(make([]byte, 0, 64))
	w := newWriter(buf, c.v, c.bigEndian, false)
	pad, err := c.writeBody(mem, addr, w)
	if err != nil {
		return nil, err
	}
	out := w.Bytes()
	binary.BigEndian.PutUint16(out[2:], uint16(pad))
	return out, nil
}

// Deserialize replaces the sample at addr with the decoded contents of a
// serialized sample. On failure the sample is left zeroed and owns nothing.
func (c *Codec) Deserialize(mem ddscore.Memory, alloc ddscore.Allocator, addr uint32, data []byte) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if want := NewHeader(c.format, h.Version(), h.BigEndian()); want.ID != h.ID {
		return errors.New(errors.PhaseDeserialize, errors.KindInvalidData).
			TypeName(c.d.TypeName).
			Detail("encapsulation %#04x does not match %s samples", h.ID, c.format).
			Build()
	}
	body := data[HeaderSize:]
	if pad := h.Padding(); pad <= len(body) {
		body = body[:len(body)-pad]
	}
	return c.ReadBody(mem, alloc, addr, body, h.Version(), h.BigEndian())
}

// ReadBody decodes a body of the given version and byte order into the
// sample at addr, releasing what the sample owned before.
func (c *Codec) ReadBody(mem ddscore.Memory, alloc ddscore.Allocator, addr uint32, body []byte, v layout.EncodingVersion, bigEndian bool) error {
	if err := c.FreeContents(mem, alloc, addr); err != nil {
		return err
	}
	if err := c.zero(mem, addr); err != nil {
		return err
	}
	if c.optSize > 0 && v == c.v && !bigEndian {
		if len(body) < int(c.optSize) {
			return errors.Truncated(errors.PhaseDeserialize, "sample", 0, int(c.optSize), len(body))
		}
		if err := mem.Write(addr, body[:c.optSize]); err != nil {
			return errors.Wrap(errors.PhaseDeserialize, errors.KindOutOfBounds, err, "write sample")
		}
		return nil
	}
	return c.decode(mem, alloc, addr, body, v, bigEndian, func(d *decoder) error {
		return d.structAt(0, addr)
	})
}

func (c *Codec) decode(mem ddscore.Memory, alloc ddscore.Allocator, addr uint32, body []byte, v layout.EncodingVersion, bigEndian bool, run func(*decoder) error) error {
	al := newAllocations()
	defer al.release()
	d := &decoder{
		p:     c.d.Program,
		mem:   mem,
		alloc: alloc,
		r:     NewReader(body, v, bigEndian),
		v:     v,
		al:    al,
	}
	if err := run(d); err != nil {
		al.free(alloc)
		_ = c.zero(mem, addr)
		return err
	}
	return nil
}

func (c *Codec) zero(mem ddscore.Memory, addr uint32) error {
	if c.d.Size == 0 {
		return nil
	}
	if err := mem.Write(addr, make([]byte, c.d.Size)); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "clear sample")
	}
	return nil
}

// FreeContents releases every heap block the sample at addr owns and
// clears the pointers. The sample memory itself is not released.
func (c *Codec) FreeContents(mem ddscore.Memory, alloc ddscore.Allocator, addr uint32) error {
	return newFreer(c.d.Program, mem, alloc).structAt(0, addr)
}

// KeyHash returns the instance key hash of the sample at addr.
func (c *Codec) KeyHash(mem ddscore.Memory, addr uint32) (KeyHash, error) {
	return keyHash(c.d.Program, c.d.Keys, c.d.Flags.Has(descriptor.FlagFixedKeyXCDR2), mem, addr)
}

// SerializeKey serializes only the key fields of the sample at addr, in key
// order, behind a plain encapsulation header.
func (c *Codec) SerializeKey(mem ddscore.Memory, addr uint32) ([]byte, error) {
	buf := NewHeader(FormatPlain, c.v, c.bigEndian).Append(nil)
	w := newWriter(buf, c.v, c.bigEndian, false)
	if err := writeKey(c.encoder(mem, w), c.d.Keys, addr); err != nil {
		return nil, err
	}
	pad := padded(w.Len()) - w.Len()
	w.Zeros(pad)
	out := w.Bytes()
	binary.BigEndian.PutUint16(out[2:], uint16(pad))
	return out, nil
}

// DeserializeKey fills the key fields of the sample at addr from the output
// of SerializeKey. All other members are left zero.
func (c *Codec) DeserializeKey(mem ddscore.Memory, alloc ddscore.Allocator, addr uint32, data []byte) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if err := c.FreeContents(mem, alloc, addr); err != nil {
		return err
	}
	if err := c.zero(mem, addr); err != nil {
		return err
	}
	return c.decode(mem, alloc, addr, data[HeaderSize:], h.Version(), h.BigEndian(), func(d *decoder) error {
		for _, k := range c.d.Keys {
			adr, at, err := keyField(d.p, k, addr)
			if err != nil {
				return err
			}
			if err := d.value(adr, at); err != nil {
				return err
			}
		}
		return nil
	})
}

func padded(n int) int {
	return (n + 3) &^ 3
}
