package cdr

import (
	"crypto/md5"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
	"github.com/wippyai/dds-core/memory"
)

func richDoc(ext string) string {
	return fmt.Sprintf(`
types:
  - {enum: color, enumerators: [red, green, blue]}
  - struct: point
    nested: true
    extensibility: %[1]s
    members:
      - {name: x, type: long}
      - {name: y, type: double}
  - struct: sample
    extensibility: %[1]s
    members:
      - {name: id, type: long, key: true}
      - {name: name, type: string}
      - {name: tag, type: "string<7>"}
      - {name: c, type: color}
      - {name: flag, type: boolean}
      - {name: data, type: "sequence<octet>"}
      - {name: pts, type: "sequence<point, 4>"}
      - {name: grid, type: "short[3]"}
      - {name: words, type: "sequence<string>"}
      - {name: at, type: point}
      - {name: note, type: string, optional: true}
`, ext)
}

func fillRich(t *testing.T, s *sample) {
	m := s.m
	require.NoError(t, m.WriteU32(s.at(0), 7))
	putString(t, m, s.at(1), "hello")
	require.NoError(t, m.Write(s.at(2), []byte("abc")))
	require.NoError(t, m.WriteU32(s.at(3), 2))
	require.NoError(t, m.WriteU8(s.at(4), 1))

	data := putSeq(t, m, s.at(5), s.adrs[5], 3)
	require.NoError(t, m.Write(data, []byte{1, 2, 3}))

	point := members(s.d.Program, s.adrs[9].Jump)
	pts := putSeq(t, m, s.at(6), s.adrs[6], 2)
	for i := uint32(0); i < 2; i++ {
		base := pts + i*s.adrs[6].ElemSize
		require.NoError(t, m.WriteU32(base+point[0].Offset, 10+i))
		require.NoError(t, m.WriteU64(base+point[1].Offset, math.Float64bits(float64(i)+0.5)))
	}

	for i := uint32(0); i < 3; i++ {
		require.NoError(t, m.WriteU16(s.at(7)+2*i, uint16(100+i)))
	}

	words := putSeq(t, m, s.at(8), s.adrs[8], 2)
	putString(t, m, words, "a")
	putString(t, m, words+8, "bc")

	require.NoError(t, m.WriteU32(s.at(9)+point[0].Offset, 99))
	require.NoError(t, m.WriteU64(s.at(9)+point[1].Offset, math.Float64bits(-1)))

	note, err := m.Alloc(8, 4)
	require.NoError(t, err)
	putString(t, m, note, "opt")
	require.NoError(t, m.WriteU32(s.at(10), note))
}

func TestRoundTrip(t *testing.T) {
	for _, ext := range []string{"final", "appendable", "mutable"} {
		for _, v := range []layout.EncodingVersion{layout.XCDR1, layout.XCDR2} {
			t.Run(ext+"/"+v.String(), func(t *testing.T) {
				d := build(t, richDoc(ext), "sample", descriptor.WithEncodingVersion(v))
				c := New(d)
				m := memory.NewLinear(256)

				src := newSample(t, m, d)
				fillRich(t, src)

				data, err := c.Serialize(m, src.addr)
				require.NoError(t, err)
				h, err := ParseHeader(data)
				require.NoError(t, err)
				assert.Equal(t, c.Header().ID, h.ID)
				assert.Equal(t, v, h.Version())
				assert.Zero(t, (len(data)-HeaderSize)%4)

				size, err := c.Size(m, src.addr)
				require.NoError(t, err)
				assert.Equal(t, len(data)-HeaderSize, size)

				dst := newSample(t, m, d)
				require.NoError(t, c.Deserialize(m, m, dst.addr, data))

				again, err := c.Serialize(m, dst.addr)
				require.NoError(t, err)
				assert.Equal(t, data, again)

				assert.Equal(t, uint32(7), readU32(t, m, dst.at(0)))
				assert.Equal(t, "hello", getString(t, m, dst.at(1)))
				tag, err := m.Read(dst.at(2), 8)
				require.NoError(t, err)
				assert.Equal(t, []byte("abc\x00\x00\x00\x00\x00"), tag)
				assert.Equal(t, uint32(2), readU32(t, m, dst.at(8)+4))
				note := readU32(t, m, dst.at(10))
				require.NotZero(t, note)
				assert.Equal(t, "opt", getString(t, m, note))

				src.release(c)
				dst.release(c)
				assert.NoError(t, m.Check())
			})
		}
	}
}

func TestRoundTripBigEndian(t *testing.T) {
	d := build(t, richDoc("appendable"), "sample")
	le, be := New(d), New(d, WithBigEndian())
	m := memory.NewLinear(256)

	src := newSample(t, m, d)
	fillRich(t, src)

	beData, err := be.Serialize(m, src.addr)
	require.NoError(t, err)
	assert.Equal(t, EncDCDR2BE, be.Header().ID)
	assert.Equal(t, []byte{0x00, 0x08}, beData[:2])

	dst := newSample(t, m, d)
	require.NoError(t, le.Deserialize(m, m, dst.addr, beData))

	want, err := le.Serialize(m, src.addr)
	require.NoError(t, err)
	got, err := le.Serialize(m, dst.addr)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	src.release(le)
	dst.release(le)
	assert.NoError(t, m.Check())
}

func TestWireLayout(t *testing.T) {
	const plain = `
types:
  - struct: t
    extensibility: %s
    members:
      - {name: a, type: long, key: true}
      - {name: b, type: double}`

	tests := []struct {
		name string
		doc  string
		v    layout.EncodingVersion
		fill func(t *testing.T, s *sample)
		want []byte
	}{
		{
			name: "final xcdr1 aligns doubles to 8",
			doc:  fmt.Sprintf(plain, "final"),
			v:    layout.XCDR1,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
				require.NoError(t, s.m.WriteU64(s.at(1), math.Float64bits(2)))
			},
			want: []byte{
				0x00, 0x01, 0x00, 0x00,
				1, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 0x40,
			},
		},
		{
			name: "final xcdr2 aligns doubles to 4",
			doc:  fmt.Sprintf(plain, "final"),
			v:    layout.XCDR2,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
				require.NoError(t, s.m.WriteU64(s.at(1), math.Float64bits(2)))
			},
			want: []byte{
				0x00, 0x07, 0x00, 0x00,
				1, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 0x40,
			},
		},
		{
			name: "appendable xcdr2 has a dheader",
			doc: `
types:
  - {struct: t, extensibility: appendable, members: [{name: a, type: long}]}`,
			v: layout.XCDR2,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
			},
			want: []byte{
				0x00, 0x09, 0x00, 0x00,
				4, 0, 0, 0,
				1, 0, 0, 0,
			},
		},
		{
			name: "mutable xcdr2 has member headers",
			doc: `
types:
  - struct: t
    extensibility: mutable
    members:
      - {name: a, type: long, key: true}
      - {name: s, type: string}`,
			v: layout.XCDR2,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
				putString(t, s.m, s.at(1), "hi")
			},
			want: []byte{
				0x00, 0x0b, 0x00, 0x01,
				23, 0, 0, 0,
				0, 0, 0, 0xA0, 1, 0, 0, 0,
				1, 0, 0, 0x40, 7, 0, 0, 0, 3, 0, 0, 0, 'h', 'i', 0,
				0,
			},
		},
		{
			name: "mutable xcdr1 is a parameter list",
			doc: `
types:
  - struct: t
    extensibility: mutable
    members:
      - {name: a, type: long, key: true}
      - {name: b, type: short}`,
			v: layout.XCDR1,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
				require.NoError(t, s.m.WriteU16(s.at(1), 2))
			},
			want: []byte{
				0x00, 0x03, 0x00, 0x00,
				0x00, 0x40, 4, 0, 1, 0, 0, 0,
				0x01, 0x00, 4, 0, 2, 0, 0, 0,
				0x02, 0x3F, 0, 0,
			},
		},
		{
			name: "present optional xcdr2",
			doc: `
types:
  - {struct: t, members: [{name: a, type: long}, {name: o, type: long, optional: true}]}`,
			v: layout.XCDR2,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
				o, err := s.m.Alloc(4, 4)
				require.NoError(t, err)
				require.NoError(t, s.m.WriteU32(o, 5))
				require.NoError(t, s.m.WriteU32(s.at(1), o))
			},
			want: []byte{
				0x00, 0x07, 0x00, 0x00,
				1, 0, 0, 0, 1, 0, 0, 0, 5, 0, 0, 0,
			},
		},
		{
			name: "absent optional xcdr2 pads the body",
			doc: `
types:
  - {struct: t, members: [{name: a, type: long}, {name: o, type: long, optional: true}]}`,
			v: layout.XCDR2,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
			},
			want: []byte{
				0x00, 0x07, 0x00, 0x03,
				1, 0, 0, 0, 0, 0, 0, 0,
			},
		},
		{
			name: "absent optional xcdr1 is an empty parameter",
			doc: `
types:
  - {struct: t, members: [{name: a, type: long}, {name: o, type: long, optional: true}]}`,
			v: layout.XCDR1,
			fill: func(t *testing.T, s *sample) {
				require.NoError(t, s.m.WriteU32(s.at(0), 1))
			},
			want: []byte{
				0x00, 0x01, 0x00, 0x00,
				1, 0, 0, 0, 0x01, 0x00, 0, 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := build(t, tt.doc, "t", descriptor.WithEncodingVersion(tt.v))
			c := New(d)
			m := memory.NewLinear(64)
			s := newSample(t, m, d)
			tt.fill(t, s)

			data, err := c.Serialize(m, s.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)

			size, err := c.Size(m, s.addr)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want)-HeaderSize, size)

			body := make([]byte, size)
			n, err := c.SerializeInto(m, s.addr, body)
			require.NoError(t, err)
			assert.Equal(t, size, n)
			assert.Equal(t, tt.want[HeaderSize:], body)

			out := newSample(t, m, d)
			require.NoError(t, c.Deserialize(m, m, out.addr, data))
			again, err := c.Serialize(m, out.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, again)

			s.release(c)
			out.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestSerializeIntoBufferTooSmall(t *testing.T) {
	d := build(t, richDoc("final"), "sample")
	c := New(d)
	m := memory.NewLinear(256)
	s := newSample(t, m, d)
	fillRich(t, s)

	size, err := c.Size(m, s.addr)
	require.NoError(t, err)
	_, err = c.SerializeInto(m, s.addr, make([]byte, size-1))
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindBufferTooSmall))

	s.release(c)
	assert.NoError(t, m.Check())
}

func TestMutableMembers(t *testing.T) {
	d := build(t, `
types:
  - {struct: t, extensibility: mutable, members: [{name: a, type: long}]}`, "t")
	c := New(d)

	tests := []struct {
		name string
		body []byte
		err  bool
	}{
		{"unknown member skipped", []byte{
			16, 0, 0, 0,
			7, 0, 0, 0x20, 9, 0, 0, 0,
			0, 0, 0, 0x20, 1, 0, 0, 0,
		}, false},
		{"unknown must-understand member", []byte{
			16, 0, 0, 0,
			7, 0, 0, 0xA0, 9, 0, 0, 0,
			0, 0, 0, 0x20, 1, 0, 0, 0,
		}, true},
		{"unknown member with length in the value", []byte{
			20, 0, 0, 0,
			7, 0, 0, 0x50, 2, 0, 0, 0, 'x', 'y', 0, 0,
			0, 0, 0, 0x20, 1, 0, 0, 0,
		}, false},
		{"member length beyond the struct", []byte{
			12, 0, 0, 0,
			7, 0, 0, 0x40, 64, 0, 0, 0,
			0, 0, 0, 0,
		}, true},
		{"member repeated", []byte{
			16, 0, 0, 0,
			0, 0, 0, 0x20, 1, 0, 0, 0,
			0, 0, 0, 0x20, 2, 0, 0, 0,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := memory.NewLinear(64)
			s := newSample(t, m, d)
			err := c.ReadBody(m, m, s.addr, tt.body, layout.XCDR2, false)
			if tt.err {
				require.Error(t, err)
				assert.Zero(t, readU32(t, m, s.at(0)))
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint32(1), readU32(t, m, s.at(0)))
			}
			s.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestMutableMemberRepeatedString(t *testing.T) {
	d := build(t, `
types:
  - {struct: t, extensibility: mutable, members: [{name: s, type: string}]}`, "t")
	c := New(d)

	bodies := map[layout.EncodingVersion][]byte{
		layout.XCDR2: {
			22, 0, 0, 0,
			0, 0, 0, 0x50, 2, 0, 0, 0, 'x', 0, 0, 0,
			0, 0, 0, 0x50, 2, 0, 0, 0, 'y', 0,
		},
		layout.XCDR1: {
			0, 0, 8, 0, 2, 0, 0, 0, 'x', 0, 0, 0,
			0, 0, 8, 0, 2, 0, 0, 0, 'y', 0, 0, 0,
			2, 0x3F, 0, 0,
		},
	}
	for v, body := range bodies {
		t.Run(v.String(), func(t *testing.T) {
			m := memory.NewLinear(64)
			s := newSample(t, m, d)
			err := c.ReadBody(m, m, s.addr, body, v, false)
			require.Error(t, err)
			assert.True(t, errors.HasKind(err, errors.KindInvalidData), "got %v", err)
			assert.Zero(t, readU32(t, m, s.at(0)))
			s.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestSequenceLengthBoundedByStream(t *testing.T) {
	d := build(t, `
types:
  - {struct: p, nested: true, members: [{name: x, type: long}]}
  - struct: t
    members:
      - {name: pts, type: "sequence<p>"}
      - {name: tail, type: "sequence<octet>"}`, "t")
	c := New(d)

	tests := []struct {
		name string
		v    layout.EncodingVersion
		body []byte
	}{
		{"huge count", layout.XCDR1, []byte{0, 0, 0, 3, 1, 0, 0, 0, 0, 0, 0, 0}},
		{"huge count in a delimited sequence", layout.XCDR2, []byte{
			8, 0, 0, 0, 0, 0, 0, 3, 1, 0, 0, 0,
			0, 0, 0, 0,
		}},
		{"count beyond the sequence header", layout.XCDR2, []byte{
			8, 0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0,
			8, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := memory.NewLinear(64)
			s := newSample(t, m, d)
			err := c.ReadBody(m, m, s.addr, tt.body, tt.v, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "truncated sequence")
			assert.Less(t, m.Size(), uint32(1<<12))
			s.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestAppendableEvolution(t *testing.T) {
	d := build(t, `
types:
  - {struct: t, extensibility: appendable, members: [{name: a, type: long}, {name: b, type: long}]}`, "t")
	c := New(d)
	m := memory.NewLinear(64)
	s := newSample(t, m, d)

	require.NoError(t, c.ReadBody(m, m, s.addr, []byte{4, 0, 0, 0, 1, 0, 0, 0}, layout.XCDR2, false))
	assert.Equal(t, uint32(1), readU32(t, m, s.at(0)))
	assert.Zero(t, readU32(t, m, s.at(1)))

	longer := []byte{12, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	require.NoError(t, c.ReadBody(m, m, s.addr, longer, layout.XCDR2, false))
	assert.Equal(t, uint32(2), readU32(t, m, s.at(1)))
}

func TestTruncatedSamples(t *testing.T) {
	for _, ext := range []string{"final", "appendable", "mutable"} {
		t.Run(ext, func(t *testing.T) {
			d := build(t, richDoc(ext), "sample")
			c := New(d)
			m := memory.NewLinear(256)
			src := newSample(t, m, d)
			fillRich(t, src)
			data, err := c.Serialize(m, src.addr)
			require.NoError(t, err)

			dst := newSample(t, m, d)
			live := len(m.Live())
			for n := 0; n < len(data); n++ {
				err := c.Deserialize(m, m, dst.addr, data[:n])
				require.Error(t, err, "prefix of %d bytes", n)
				assert.Len(t, m.Live(), live, "prefix of %d bytes leaks", n)
				raw, rerr := m.Read(dst.addr, d.Size)
				require.NoError(t, rerr)
				assert.Equal(t, make([]byte, d.Size), raw)
			}

			src.release(c)
			dst.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestDecodeRejectsInvalidValues(t *testing.T) {
	d := build(t, `
types:
  - {enum: e, enumerators: [a, b]}
  - struct: t
    members:
      - {name: f, type: boolean}
      - {name: e, type: e}
      - {name: s, type: "string<2>"}
      - {name: q, type: "sequence<long, 1>"}`, "t")
	c := New(d)

	tests := []struct {
		name string
		body []byte
		kind errors.Kind
	}{
		{"boolean", []byte{2}, errors.KindInvalidData},
		{"enum", []byte{1, 0, 0, 0, 2, 0, 0, 0}, errors.KindInvalidEnum},
		{"bounded string", []byte{1, 0, 0, 0, 1, 0, 0, 0, 4, 0, 0, 0, 'a', 'b', 'c', 0}, errors.KindOverflow},
		{"unterminated string", []byte{1, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 'a', 'b'}, errors.KindCorrupt},
		{"bounded sequence", []byte{
			1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
			2, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0,
		}, errors.KindOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := memory.NewLinear(64)
			s := newSample(t, m, d)
			err := c.ReadBody(m, m, s.addr, tt.body, layout.XCDR1, false)
			require.Error(t, err)
			assert.True(t, errors.HasKind(err, tt.kind), "got %v", err)
			s.release(c)
			assert.NoError(t, m.Check())
		})
	}
}

func TestEncodeRejectsInvalidSamples(t *testing.T) {
	d := build(t, `
types:
  - {enum: e, enumerators: [a, b]}
  - struct: t
    members:
      - {name: e, type: e}
      - {name: q, type: "sequence<long, 1>"}
      - {name: s, type: string}`, "t")
	c := New(d)
	m := memory.NewLinear(64)
	s := newSample(t, m, d)

	require.NoError(t, m.WriteU32(s.at(0), 5))
	_, err := c.Size(m, s.addr)
	assert.True(t, errors.HasKind(err, errors.KindInvalidEnum))

	require.NoError(t, m.WriteU32(s.at(0), 1))
	require.NoError(t, m.WriteU32(s.at(1)+4, 2))
	_, err = c.Serialize(m, s.addr)
	assert.True(t, errors.HasKind(err, errors.KindOverflow))

	require.NoError(t, m.WriteU32(s.at(1)+4, 0))
	require.NoError(t, m.WriteU32(s.at(2)+4, 3))
	_, err = c.Serialize(m, s.addr)
	assert.True(t, errors.HasKind(err, errors.KindNilPointer))
}

const keyedDoc = `
types:
  - struct: inner
    nested: true
    members:
      - {name: x, type: long, key: true}
      - {name: y, type: short}
  - struct: test
    members:
      - {name: id, type: long, key: true}
      - {name: pos, type: inner, key: true}
      - {name: value, type: double}
`

func TestKeyHash(t *testing.T) {
	t.Run("fixed key is padded", func(t *testing.T) {
		d := build(t, keyedDoc, "test")
		c := New(d)
		m := memory.NewLinear(64)
		s := newSample(t, m, d)
		inner := members(d.Program, s.adrs[1].Jump)
		require.NoError(t, m.WriteU32(s.at(0), 1))
		require.NoError(t, m.WriteU32(s.at(1)+inner[0].Offset, 2))
		require.NoError(t, m.WriteU16(s.at(1)+inner[1].Offset, 3))

		h, err := c.KeyHash(m, s.addr)
		require.NoError(t, err)
		assert.Equal(t, KeyHash{0, 0, 0, 1, 0, 0, 0, 2}, h)
	})

	t.Run("unbounded key is digested", func(t *testing.T) {
		d := build(t, `
types:
  - {struct: t, members: [{name: s, type: string, key: true}, {name: v, type: long}]}`, "t")
		c := New(d)
		m := memory.NewLinear(64)
		s := newSample(t, m, d)
		putString(t, m, s.at(0), "ab")

		h, err := c.KeyHash(m, s.addr)
		require.NoError(t, err)
		assert.Equal(t, KeyHash(md5.Sum([]byte{0, 0, 0, 3, 'a', 'b', 0})), h)

		require.NoError(t, c.FreeContents(m, m, s.addr))
		assert.Zero(t, readU32(t, m, s.at(0)))
		m.Free(s.addr, d.Size, d.Align)
		assert.NoError(t, m.Check())
	})

	t.Run("keyless", func(t *testing.T) {
		d := build(t, `
types:
  - {struct: t, members: [{name: v, type: long}]}`, "t")
		c := New(d)
		m := memory.NewLinear(64)
		s := newSample(t, m, d)
		require.NoError(t, m.WriteU32(s.at(0), 9))

		h, err := c.KeyHash(m, s.addr)
		require.NoError(t, err)
		assert.Equal(t, KeyHash{}, h)
	})
}

func TestSerializeKey(t *testing.T) {
	d := build(t, `
types:
  - struct: t
    extensibility: mutable
    members:
      - {name: v, type: long}
      - {name: name, type: string, key: true}
      - {name: id, type: long, key: true}`, "t")
	c := New(d)
	m := memory.NewLinear(64)
	s := newSample(t, m, d)
	require.NoError(t, m.WriteU32(s.at(0), 9))
	putString(t, m, s.at(1), "k")
	require.NoError(t, m.WriteU32(s.at(2), 4))

	data, err := c.SerializeKey(m, s.addr)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x07, 0x00, 0x00,
		2, 0, 0, 0, 'k', 0, 0, 0, 4, 0, 0, 0,
	}, data)

	out := newSample(t, m, d)
	require.NoError(t, c.DeserializeKey(m, m, out.addr, data))
	assert.Zero(t, readU32(t, m, out.at(0)))
	assert.Equal(t, "k", getString(t, m, out.at(1)))
	assert.Equal(t, uint32(4), readU32(t, m, out.at(2)))

	s.release(c)
	out.release(c)
	assert.NoError(t, m.Check())
}

func TestOptimizedSize(t *testing.T) {
	d := build(t, keyedDoc, "test")
	assert.Equal(t, d.Size, OptimizedSize(d, layout.XCDR1))
	assert.Zero(t, OptimizedSize(d, layout.XCDR2))

	c := New(d)
	require.Equal(t, d.Size, c.OptimizedSize())
	assert.Zero(t, New(d, WithBigEndian()).OptimizedSize())

	m := memory.NewLinear(64)
	s := newSample(t, m, d)
	inner := members(d.Program, s.adrs[1].Jump)
	require.NoError(t, m.WriteU32(s.at(0), 1))
	require.NoError(t, m.WriteU32(s.at(1)+inner[0].Offset, 2))
	require.NoError(t, m.WriteU16(s.at(1)+inner[1].Offset, 3))
	require.NoError(t, m.WriteU64(s.at(2), math.Float64bits(4)))

	data, err := c.Serialize(m, s.addr)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x01, 0x00, 0x00,
		1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0x10, 0x40,
	}, data)

	e := &encoder{p: d.Program, mem: m, w: NewWriter(layout.XCDR1, false), v: layout.XCDR1}
	require.NoError(t, e.structAt(0, s.addr))
	assert.Equal(t, data[HeaderSize:], e.w.Bytes(), "copy path matches the encoder")

	cases := map[string]string{
		"string": `{struct: t, members: [{name: s, type: "string<4>"}]}`,
		"enum":   `{enum: e, enumerators: [a]}
  - {struct: t, members: [{name: e, type: e}]}`,
		"trailing padding": `{struct: t, members: [{name: a, type: double}, {name: b, type: octet}]}`,
		"appendable":       `{struct: t, extensibility: appendable, members: [{name: a, type: long}]}`,
	}
	for name, decl := range cases {
		t.Run(name, func(t *testing.T) {
			d := build(t, "types:\n  - "+decl, "t", descriptor.WithEncodingVersion(layout.XCDR2))
			assert.Zero(t, OptimizedSize(d, layout.XCDR2))
		})
	}
}

func TestHeader(t *testing.T) {
	tests := []struct {
		f   Format
		v   layout.EncodingVersion
		be  bool
		id  uint16
		ver layout.EncodingVersion
	}{
		{FormatPlain, layout.XCDR1, false, EncCDRLE, layout.XCDR1},
		{FormatDelimited, layout.XCDR1, true, EncCDRBE, layout.XCDR1},
		{FormatPL, layout.XCDR1, false, EncPLCDRLE, layout.XCDR1},
		{FormatPlain, layout.XCDR2, true, EncCDR2BE, layout.XCDR2},
		{FormatDelimited, layout.XCDR2, false, EncDCDR2LE, layout.XCDR2},
		{FormatPL, layout.XCDR2, false, EncPLCDR2LE, layout.XCDR2},
	}
	for _, tt := range tests {
		h := NewHeader(tt.f, tt.v, tt.be)
		assert.Equal(t, tt.id, h.ID)
		assert.Equal(t, tt.be, h.BigEndian())
		assert.Equal(t, tt.ver, h.Version())

		parsed, err := ParseHeader(h.Append(nil))
		require.NoError(t, err)
		assert.Equal(t, h, parsed)
	}

	_, err := ParseHeader([]byte{0, 0x20, 0, 0})
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
	_, err = ParseHeader([]byte{0, 1})
	assert.True(t, errors.HasKind(err, errors.KindCorrupt))
}

func TestDeserializeRejectsForeignFormat(t *testing.T) {
	d := build(t, keyedDoc, "test")
	c := New(d)
	m := memory.NewLinear(64)
	s := newSample(t, m, d)

	err := c.Deserialize(m, m, s.addr, []byte{0x00, 0x03, 0, 0, 0x02, 0x3F, 0, 0})
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindInvalidData))
}

func TestStreamCounterMatchesWriter(t *testing.T) {
	for _, v := range []layout.EncodingVersion{layout.XCDR1, layout.XCDR2} {
		w, n := NewWriter(v, false), NewCounter(v)
		for _, s := range []*Writer{w, n} {
			s.U8(1)
			s.U64(2)
			s.U16(3)
			at := s.Reserve32()
			s.Raw([]byte("abc"))
			s.Patch32(at, 3)
			s.Align(8)
		}
		assert.Equal(t, len(w.Bytes()), n.Len())
		assert.Nil(t, n.Bytes())
	}
}
