package cdr

import (
	"bytes"
	"fmt"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
	"github.com/wippyai/dds-core/layout"
)

type memberMode uint8

const (
	modePlain memberMode = iota
	modePL
	modeEM
)

type encoder struct {
	p   *layout.Program
	mem ddscore.Memory
	w   *Writer
	v   layout.EncodingVersion
}

// structAt writes the struct whose program starts at start and whose native
// value is at addr.
func (e *encoder) structAt(start int, addr uint32) error {
	switch e.p.Header(start).(type) {
	case layout.DLC:
		if e.v == layout.XCDR1 {
			return e.members(start, addr, modePlain)
		}
		return e.delimited(func() error { return e.members(start, addr, modePlain) })
	case layout.PLC:
		if e.v == layout.XCDR2 {
			return e.delimited(func() error { return e.members(start, addr, modeEM) })
		}
		if err := e.members(start, addr, modePL); err != nil {
			return err
		}
		e.w.Align(4)
		e.w.U16(pidSentinel)
		e.w.U16(0)
		return nil
	}
	return e.members(start, addr, modePlain)
}

// delimited writes a DHEADER holding the length of what body writes.
func (e *encoder) delimited(body func() error) error {
	at := e.w.Reserve32()
	begin := e.w.Len()
	if err := body(); err != nil {
		return err
	}
	e.w.Patch32(at, uint32(e.w.Len()-begin))
	return nil
}

func (e *encoder) members(start int, addr uint32, mode memberMode) error {
	return e.p.Walk(start, func(_ int, adr *layout.ADR) error {
		if adr.Flags.Has(layout.FlagBase) {
			return e.members(adr.Jump, addr+adr.Offset, mode)
		}
		return e.member(adr, addr, mode)
	})
}

func (e *encoder) member(adr *layout.ADR, base uint32, mode memberMode) error {
	at := base + adr.Offset
	if adr.Flags.Has(layout.FlagOptional) {
		ptr, err := e.mem.ReadU32(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		switch {
		case mode != modePlain:
			if ptr == 0 {
				return nil
			}
			at = ptr
		case e.v == layout.XCDR2:
			if ptr == 0 {
				e.w.U8(0)
				return nil
			}
			e.w.U8(1)
			return e.value(adr, ptr)
		default:
			if ptr == 0 {
				e.absent(adr)
				return nil
			}
			return e.plMember(adr, ptr)
		}
	}
	switch mode {
	case modePL:
		return e.plMember(adr, at)
	case modeEM:
		return e.emMember(adr, at)
	}
	return e.value(adr, at)
}

func pidFor(adr *layout.ADR) uint16 {
	pid := uint16(adr.ID & pidMask)
	if adr.Flags.Has(layout.FlagMustUnderstand) {
		pid |= pidMustUnderstand
	}
	return pid
}

// absent writes an empty XCDR1 parameter for a missing optional member.
func (e *encoder) absent(adr *layout.ADR) {
	e.w.Align(4)
	if adr.ID > pidShortMax {
		e.w.U16(pidExtended | pidFor(adr)&pidMustUnderstand)
		e.w.U16(8)
		e.w.U32(adr.ID)
		e.w.U32(0)
		return
	}
	e.w.U16(pidFor(adr))
	e.w.U16(0)
}

// plMember writes one XCDR1 parameter. Ids beyond the short range use the
// extended parameter header.
func (e *encoder) plMember(adr *layout.ADR, at uint32) error {
	e.w.Align(4)
	if adr.ID > pidShortMax {
		flags := pidFor(adr) & pidMustUnderstand
		e.w.U16(pidExtended | flags)
		e.w.U16(8)
		e.w.U32(adr.ID)
		lenAt := e.w.Reserve32()
		begin := e.w.Len()
		if err := e.value(adr, at); err != nil {
			return err
		}
		e.w.Align(4)
		e.w.Patch32(lenAt, uint32(e.w.Len()-begin))
		return nil
	}

	e.w.U16(pidFor(adr))
	lenAt := e.w.Len()
	e.w.U16(0)
	begin := e.w.Len()
	if err := e.value(adr, at); err != nil {
		return err
	}
	e.w.Align(4)
	n := e.w.Len() - begin
	if n > 0xFFFF {
		return errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("parameter %d is %d bytes, use an id above %#x for long members", adr.ID, n, pidShortMax).
			Build()
	}
	e.w.Patch16(lenAt, uint16(n))
	return nil
}

// lengthCode returns the EMHEADER length code for members whose size is
// implied by their type, or lcNextInt.
func lengthCode(adr *layout.ADR) uint32 {
	switch adr.Type {
	case layout.Type1BY, layout.TypeBLN:
		return 0
	case layout.Type2BY:
		return 1
	case layout.Type4BY, layout.TypeENU:
		return 2
	case layout.Type8BY:
		return 3
	}
	return lcNextInt
}

func (e *encoder) emMember(adr *layout.ADR, at uint32) error {
	lc := lengthCode(adr)
	hdr := lc<<28 | adr.ID&emIDMask
	if adr.Flags.Has(layout.FlagMustUnderstand) {
		hdr |= emMustUnderstand
	}
	e.w.U32(hdr)
	if lc != lcNextInt {
		return e.value(adr, at)
	}
	lenAt := e.w.Reserve32()
	begin := e.w.Len()
	if err := e.value(adr, at); err != nil {
		return err
	}
	e.w.Patch32(lenAt, uint32(e.w.Len()-begin))
	return nil
}

// value writes the value described by adr at native address at.
func (e *encoder) value(adr *layout.ADR, at uint32) error {
	switch adr.Type {
	case layout.Type1BY:
		v, err := e.mem.ReadU8(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.U8(v)
	case layout.TypeBLN:
		v, err := e.mem.ReadU8(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		if v != 0 {
			v = 1
		}
		e.w.U8(v)
	case layout.Type2BY:
		v, err := e.mem.ReadU16(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.U16(v)
	case layout.Type4BY:
		v, err := e.mem.ReadU32(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.U32(v)
	case layout.Type8BY:
		v, err := e.mem.ReadU64(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.U64(v)
	case layout.TypeENU:
		v, err := e.mem.ReadU32(at)
		if err != nil {
			return e.memErr(err, adr)
		}
		if v > adr.Max {
			return errors.InvalidEnum(errors.PhaseEncode, memberPath(adr), v, adr.Max)
		}
		e.w.U32(v)
	case layout.TypeSTR:
		ptr, n, err := e.pair(adr, at)
		if err != nil {
			return err
		}
		return e.str(adr, ptr, n)
	case layout.TypeBST:
		raw, err := e.mem.Read(at, adr.Bound+1)
		if err != nil {
			return e.memErr(err, adr)
		}
		n := bytes.IndexByte(raw, 0)
		if n < 0 {
			n = int(adr.Bound)
		}
		e.w.U32(uint32(n) + 1)
		e.w.Raw(raw[:n])
		e.w.U8(0)
	case layout.TypeSEQ, layout.TypeBSQ:
		ptr, n, err := e.pair(adr, at)
		if err != nil {
			return err
		}
		if adr.Type == layout.TypeBSQ && n > adr.Bound {
			return errors.Overflow(errors.PhaseEncode, memberPath(adr), n, fmt.Sprintf("bound %d", adr.Bound))
		}
		if n > abi.MaxSeqLength {
			return errors.Overflow(errors.PhaseEncode, memberPath(adr), n, "sequence length limit")
		}
		if n > 0 && ptr == 0 {
			return errors.NilPointer(errors.PhaseEncode, memberPath(adr), "sequence buffer")
		}
		write := func() error {
			e.w.U32(n)
			return e.elements(adr, ptr, n)
		}
		if delimitedElems(e.v, adr) {
			return e.delimited(write)
		}
		return write()
	case layout.TypeARR:
		if delimitedElems(e.v, adr) {
			return e.delimited(func() error { return e.elements(adr, at, adr.Bound) })
		}
		return e.elements(adr, at, adr.Bound)
	case layout.TypeEXT:
		return e.structAt(adr.Jump, at)
	default:
		return errors.Unsupported(errors.PhaseEncode, adr.Type.String())
	}
	return nil
}

// pair reads a {ptr, len} native pair.
func (e *encoder) pair(adr *layout.ADR, at uint32) (uint32, uint32, error) {
	ptr, err := e.mem.ReadU32(at)
	if err != nil {
		return 0, 0, e.memErr(err, adr)
	}
	n, err := e.mem.ReadU32(at + 4)
	if err != nil {
		return 0, 0, e.memErr(err, adr)
	}
	return ptr, n, nil
}

func (e *encoder) str(adr *layout.ADR, ptr, n uint32) error {
	if n > abi.MaxStringSize {
		return errors.Overflow(errors.PhaseEncode, memberPath(adr), n, "string size limit")
	}
	if n > 0 && ptr == 0 {
		return errors.NilPointer(errors.PhaseEncode, memberPath(adr), "string data")
	}
	e.w.U32(n + 1)
	if n > 0 {
		data, err := e.mem.Read(ptr, n)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.Raw(data)
	}
	e.w.U8(0)
	return nil
}

func (e *encoder) elements(adr *layout.ADR, ptr, n uint32) error {
	if n == 0 {
		return nil
	}
	total, ok := abi.SafeMulU32(n, adr.ElemSize)
	if !ok {
		return errors.Overflow(errors.PhaseEncode, memberPath(adr), n, "element count")
	}
	if adr.Elem == layout.Type1BY {
		data, err := e.mem.Read(ptr, total)
		if err != nil {
			return e.memErr(err, adr)
		}
		e.w.Raw(data)
		return nil
	}
	elem := elemOf(e.p, adr)
	for i := uint32(0); i < n; i++ {
		if err := e.value(elem, ptr+i*adr.ElemSize); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) memErr(err error, adr *layout.ADR) error {
	return errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "read member "+fmt.Sprint(adr.ID))
}
