package cdr

import (
	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/internal/abi"
	"github.com/wippyai/dds-core/layout"
)

// OptimizedSize returns the native size of d when a sample's native bytes
// are its little-endian stream body under version v, or 0 otherwise.
func OptimizedSize(d *descriptor.Descriptor, v layout.EncodingVersion) uint32 {
	if d.Flags.Has(descriptor.FlagNoOptimize) || d.Size == 0 {
		return 0
	}
	o := &optimizer{p: d.Program, v: v}
	if !o.structAt(0, 0) || o.pos != d.Size {
		return 0
	}
	return d.Size
}

// optimizer tracks the stream position while checking that every member
// lands at its native offset.
type optimizer struct {
	p   *layout.Program
	v   layout.EncodingVersion
	pos uint32
}

func (o *optimizer) structAt(start int, addr uint32) bool {
	switch o.p.Header(start).(type) {
	case layout.PLC:
		return false
	case layout.DLC:
		if o.v == layout.XCDR2 {
			return false
		}
	}
	ok := true
	_ = o.p.Walk(start, func(_ int, adr *layout.ADR) error {
		if ok {
			ok = o.member(adr, addr+adr.Offset)
		}
		return nil
	})
	return ok
}

func (o *optimizer) member(adr *layout.ADR, at uint32) bool {
	if adr.Flags.Has(layout.FlagOptional) {
		return false
	}
	switch adr.Type {
	case layout.Type1BY, layout.Type2BY, layout.Type4BY, layout.Type8BY:
		return o.place(at, adr.Type.PrimitiveSize(), 1)
	case layout.TypeARR:
		switch adr.Elem {
		case layout.Type1BY, layout.Type2BY, layout.Type4BY, layout.Type8BY:
			if adr.ElemSize != adr.Elem.PrimitiveSize() {
				return false
			}
			return o.place(at, adr.ElemSize, adr.Bound)
		}
		return false
	case layout.TypeEXT:
		return o.structAt(adr.Jump, at)
	}
	return false
}

// place aligns the stream for count primitives of the given size and
// reports whether they start at native address at.
func (o *optimizer) place(at, size, count uint32) bool {
	o.pos = abi.AlignTo(o.pos, min(size, o.v.MaxAlign()))
	if o.pos != at {
		return false
	}
	n, ok := abi.SafeMulU32(size, count)
	if !ok {
		return false
	}
	o.pos += n
	return true
}
