package cdr

import (
	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
)

// Heap blocks are sized exactly: string data is len bytes at alignment 1,
// sequence buffers are len * element size at the element alignment and
// optional blocks hold one native value. Empty blocks still occupy one byte.
type freer struct {
	p     *layout.Program
	mem   ddscore.Memory
	alloc ddscore.Allocator
	heap  map[int]bool
}

func newFreer(p *layout.Program, mem ddscore.Memory, alloc ddscore.Allocator) *freer {
	return &freer{p: p, mem: mem, alloc: alloc, heap: make(map[int]bool)}
}

// structHeap caches whether a struct program owns heap blocks.
func (f *freer) structHeap(start int) bool {
	v, ok := f.heap[start]
	if !ok {
		v = hasHeap(f.p, start, make(map[int]bool))
		f.heap[start] = v
	}
	return v
}

func (f *freer) adrHeap(adr *layout.ADR) bool {
	if adr.Flags.Has(layout.FlagOptional) {
		return true
	}
	switch adr.Type {
	case layout.TypeSTR, layout.TypeSEQ, layout.TypeBSQ:
		return true
	case layout.TypeEXT:
		return f.structHeap(adr.Jump)
	case layout.TypeARR:
		return f.adrHeap(elemOf(f.p, adr))
	}
	return false
}

// structAt releases every heap block owned by the struct at addr and clears
// the pointers that referenced them.
func (f *freer) structAt(start int, addr uint32) error {
	if !f.structHeap(start) {
		return nil
	}
	return f.p.Walk(start, func(_ int, adr *layout.ADR) error {
		if adr.Flags.Has(layout.FlagBase) {
			return f.structAt(adr.Jump, addr+adr.Offset)
		}
		return f.member(adr, addr+adr.Offset)
	})
}

func (f *freer) member(adr *layout.ADR, at uint32) error {
	if !adr.Flags.Has(layout.FlagOptional) {
		return f.value(adr, at)
	}
	ptr, err := f.read(adr, at)
	if err != nil || ptr == 0 {
		return err
	}
	if err := f.value(adr, ptr); err != nil {
		return err
	}
	info := valueInfo(adr)
	f.alloc.Free(ptr, heapSize(info.Size), info.Align)
	return f.write(adr, at, 0)
}

func (f *freer) value(adr *layout.ADR, at uint32) error {
	switch adr.Type {
	case layout.TypeSTR:
		ptr, err := f.read(adr, at)
		if err != nil || ptr == 0 {
			return err
		}
		n, err := f.read(adr, at+4)
		if err != nil {
			return err
		}
		f.alloc.Free(ptr, heapSize(n), 1)
		return f.clearPair(adr, at)
	case layout.TypeSEQ, layout.TypeBSQ:
		ptr, err := f.read(adr, at)
		if err != nil || ptr == 0 {
			return err
		}
		n, err := f.read(adr, at+4)
		if err != nil {
			return err
		}
		if err := f.elements(adr, ptr, n); err != nil {
			return err
		}
		f.alloc.Free(ptr, heapSize(n*adr.ElemSize), adr.ElemAlign)
		return f.clearPair(adr, at)
	case layout.TypeARR:
		return f.elements(adr, at, adr.Bound)
	case layout.TypeEXT:
		return f.structAt(adr.Jump, at)
	}
	return nil
}

func (f *freer) elements(adr *layout.ADR, ptr, n uint32) error {
	elem := elemOf(f.p, adr)
	if !f.adrHeap(elem) {
		return nil
	}
	for i := uint32(0); i < n; i++ {
		if err := f.value(elem, ptr+i*adr.ElemSize); err != nil {
			return err
		}
	}
	return nil
}

func (f *freer) clearPair(adr *layout.ADR, at uint32) error {
	if err := f.write(adr, at, 0); err != nil {
		return err
	}
	return f.write(adr, at+4, 0)
}

func (f *freer) read(adr *layout.ADR, at uint32) (uint32, error) {
	v, err := f.mem.ReadU32(at)
	if err != nil {
		return 0, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Path(memberPath(adr)...).
			Cause(err).
			Detail("read member").
			Build()
	}
	return v, nil
}

func (f *freer) write(adr *layout.ADR, at, v uint32) error {
	if err := f.mem.WriteU32(at, v); err != nil {
		return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Path(memberPath(adr)...).
			Cause(err).
			Detail("clear member").
			Build()
	}
	return nil
}
