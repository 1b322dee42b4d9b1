package cdr

import (
	"strconv"

	"github.com/wippyai/dds-core/layout"
)

const (
	pidMustUnderstand = 0x4000
	pidMask           = 0x3FFF
	pidExtended       = 0x3F01
	pidSentinel       = 0x3F02
	pidShortMax       = 0x3EFF

	emMustUnderstand = 1 << 31
	emIDMask         = 0x0FFFFFFF
	lcNextInt        = 4
)

// valueInfo is the native size and alignment of the value an ADR describes,
// ignoring optionality.
func valueInfo(adr *layout.ADR) layout.Info {
	switch adr.Type {
	case layout.TypeSTR, layout.TypeSEQ, layout.TypeBSQ:
		return layout.Info{Size: 8, Align: 4}
	case layout.TypeBST:
		return layout.Info{Size: adr.Bound + 1, Align: 1}
	case layout.TypeARR:
		return layout.Info{Size: adr.ElemSize * adr.Bound, Align: adr.ElemAlign}
	case layout.TypeEXT:
		return layout.Info{Size: adr.Size, Align: adr.Align}
	}
	n := adr.Type.PrimitiveSize()
	return layout.Info{Size: n, Align: n}
}

// elemOf returns an ADR describing one element of a collection member,
// located at offset 0 of the element slot.
func elemOf(p *layout.Program, adr *layout.ADR) *layout.ADR {
	if adr.Elem.Collection() {
		return p.ADR(adr.Jump)
	}
	return &layout.ADR{
		Type:  adr.Elem,
		Flags: adr.Flags & (layout.FlagSigned | layout.FlagFP),
		Bound: adr.ElemBound,
		Max:   adr.Max,
		Jump:  adr.Jump,
		Size:  adr.ElemSize,
		Align: adr.ElemAlign,
	}
}

// delimitedElems reports whether a collection carries a DHEADER.
func delimitedElems(v layout.EncodingVersion, adr *layout.ADR) bool {
	return v == layout.XCDR2 && !adr.Elem.Primitive()
}

// hasHeap reports whether values described by the program starting at start
// own heap blocks.
func hasHeap(p *layout.Program, start int, seen map[int]bool) bool {
	if seen[start] {
		return false
	}
	seen[start] = true
	heap := false
	_ = p.Walk(start, func(_ int, adr *layout.ADR) error {
		if adrHasHeap(p, adr, seen) {
			heap = true
		}
		return nil
	})
	return heap
}

func adrHasHeap(p *layout.Program, adr *layout.ADR, seen map[int]bool) bool {
	if adr.Flags.Has(layout.FlagOptional) {
		return true
	}
	switch adr.Type {
	case layout.TypeSTR, layout.TypeSEQ, layout.TypeBSQ:
		return true
	case layout.TypeEXT:
		return hasHeap(p, adr.Jump, seen)
	case layout.TypeARR:
		switch {
		case adr.Elem == layout.TypeSTR:
			return true
		case adr.Elem == layout.TypeEXT:
			return hasHeap(p, adr.Jump, seen)
		case adr.Elem.Collection():
			return adrHasHeap(p, p.ADR(adr.Jump), seen)
		}
	}
	return false
}

func memberPath(adr *layout.ADR) []string {
	return []string{"id " + strconv.FormatUint(uint64(adr.ID), 10)}
}
