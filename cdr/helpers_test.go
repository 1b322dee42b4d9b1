package cdr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/layout"
	"github.com/wippyai/dds-core/memory"
)

func build(t *testing.T, doc, name string, opts ...descriptor.Option) *descriptor.Descriptor {
	t.Helper()
	unit, err := idl.Parse([]byte(doc))
	require.NoError(t, err)
	d, err := descriptor.Build(unit, name, opts...)
	require.NoError(t, err)
	return d
}

// members returns the ADRs of the program at start in declaration order.
func members(p *layout.Program, start int) []*layout.ADR {
	var out []*layout.ADR
	for _, pc := range p.Members(start) {
		out = append(out, p.ADR(pc))
	}
	return out
}

// sample is a zeroed native sample in a Linear memory.
type sample struct {
	t    *testing.T
	m    *memory.Linear
	d    *descriptor.Descriptor
	addr uint32
	adrs []*layout.ADR
}

func newSample(t *testing.T, m *memory.Linear, d *descriptor.Descriptor) *sample {
	t.Helper()
	addr, err := m.Alloc(max(d.Size, 1), d.Align)
	require.NoError(t, err)
	require.NoError(t, m.Write(addr, make([]byte, max(d.Size, 1))))
	return &sample{t: t, m: m, d: d, addr: addr, adrs: members(d.Program, 0)}
}

func (s *sample) at(i int) uint32 { return s.addr + s.adrs[i].Offset }

// release frees the sample's contents and its block.
func (s *sample) release(c *Codec) {
	s.t.Helper()
	require.NoError(s.t, c.FreeContents(s.m, s.m, s.addr))
	s.m.Free(s.addr, max(s.d.Size, 1), s.d.Align)
}

func putString(t *testing.T, m *memory.Linear, at uint32, s string) {
	t.Helper()
	var ptr uint32
	if len(s) > 0 {
		var err error
		ptr, err = m.Alloc(uint32(len(s)), 1)
		require.NoError(t, err)
		require.NoError(t, m.Write(ptr, []byte(s)))
	}
	require.NoError(t, m.WriteU32(at, ptr))
	require.NoError(t, m.WriteU32(at+4, uint32(len(s))))
}

func getString(t *testing.T, m *memory.Linear, at uint32) string {
	t.Helper()
	ptr, err := m.ReadU32(at)
	require.NoError(t, err)
	n, err := m.ReadU32(at + 4)
	require.NoError(t, err)
	if n == 0 {
		return ""
	}
	b, err := m.Read(ptr, n)
	require.NoError(t, err)
	return string(b)
}

// putSeq allocates a zeroed buffer of n elements described by adr and
// stores the sequence header at at.
func putSeq(t *testing.T, m *memory.Linear, at uint32, adr *layout.ADR, n uint32) uint32 {
	t.Helper()
	size := max(n*adr.ElemSize, 1)
	ptr, err := m.Alloc(size, adr.ElemAlign)
	require.NoError(t, err)
	require.NoError(t, m.Write(ptr, make([]byte, size)))
	require.NoError(t, m.WriteU32(at, ptr))
	require.NoError(t, m.WriteU32(at+4, n))
	return ptr
}

func readU32(t *testing.T, m *memory.Linear, at uint32) uint32 {
	t.Helper()
	v, err := m.ReadU32(at)
	require.NoError(t, err)
	return v
}
