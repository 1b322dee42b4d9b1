package cdr

import (
	"fmt"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
	"github.com/wippyai/dds-core/layout"
)

type decoder struct {
	p     *layout.Program
	mem   ddscore.Memory
	alloc ddscore.Allocator
	r     *Reader
	v     layout.EncodingVersion
	al    *allocations
	mins  map[int]uint64
}

func (d *decoder) structAt(start int, addr uint32) error {
	switch d.p.Header(start).(type) {
	case layout.DLC:
		if d.v == layout.XCDR1 {
			return d.members(start, addr, -1)
		}
		return d.delimited("appendable struct", func(end int) error {
			return d.members(start, addr, end)
		})
	case layout.PLC:
		if d.v == layout.XCDR2 {
			return d.delimited("mutable struct", func(end int) error {
				return d.emMembers(start, addr, end)
			})
		}
		return d.plMembers(start, addr)
	}
	return d.members(start, addr, -1)
}

// delimited reads a DHEADER, runs body with the end position and skips
// whatever body left unread.
func (d *decoder) delimited(what string, body func(end int) error) error {
	n, err := d.r.U32(what + " header")
	if err != nil {
		return err
	}
	if int64(n) > int64(d.r.Remaining()) {
		return errors.Truncated(errors.PhaseDecode, what, d.r.Pos(), int(n), d.r.Remaining())
	}
	end := d.r.Pos() + int(n)
	if err := body(end); err != nil {
		return err
	}
	if d.r.Pos() > end {
		return errors.Corrupt(errors.PhaseDecode, "%s overruns its header by %d bytes", what, d.r.Pos()-end)
	}
	return d.r.Seek(what, end)
}

// members reads members in order. With end >= 0, members past the end of
// the delimited body keep their zero value.
func (d *decoder) members(start int, addr uint32, end int) error {
	return d.p.Walk(start, func(_ int, adr *layout.ADR) error {
		if adr.Flags.Has(layout.FlagBase) {
			return d.members(adr.Jump, addr+adr.Offset, end)
		}
		if end >= 0 && d.r.Pos() >= end {
			return nil
		}
		return d.member(adr, addr+adr.Offset)
	})
}

func (d *decoder) member(adr *layout.ADR, at uint32) error {
	if !adr.Flags.Has(layout.FlagOptional) {
		return d.value(adr, at)
	}
	if d.v == layout.XCDR2 {
		flag, err := d.r.U8("optional flag")
		if err != nil {
			return err
		}
		switch flag {
		case 0:
			return nil
		case 1:
			return d.optional(adr, at, -1)
		}
		return errors.InvalidData(errors.PhaseDecode, memberPath(adr), fmt.Sprintf("optional flag %d", flag))
	}
	_, n, _, err := d.pid()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return d.optional(adr, at, d.r.Pos()+int(n))
}

// pid reads an XCDR1 parameter header, resolving extended ids.
func (d *decoder) pid() (id, length uint32, mustUnderstand bool, err error) {
	if err = d.r.Align(4); err != nil {
		return
	}
	pid, err := d.r.U16("parameter id")
	if err != nil {
		return
	}
	n, err := d.r.U16("parameter length")
	if err != nil {
		return
	}
	id, length = uint32(pid&pidMask), uint32(n)
	mustUnderstand = pid&pidMustUnderstand != 0
	if id == pidExtended {
		if n != 8 {
			return 0, 0, false, errors.Corrupt(errors.PhaseDecode, "extended parameter header length %d", n)
		}
		if id, err = d.r.U32("extended parameter id"); err != nil {
			return
		}
		if length, err = d.r.U32("extended parameter length"); err != nil {
			return
		}
	}
	if int64(length) > int64(d.r.Remaining()) {
		return 0, 0, false, errors.Truncated(errors.PhaseDecode, "parameter", d.r.Pos(), int(length), d.r.Remaining())
	}
	return id, length, mustUnderstand, nil
}

// optional allocates the block of an optional member, stores its pointer
// at at and decodes the value into it. With end >= 0 the reader moves to
// end afterwards.
func (d *decoder) optional(adr *layout.ADR, at uint32, end int) error {
	info := valueInfo(adr)
	ptr, err := d.allocate(adr, heapSize(info.Size), info.Align)
	if err != nil {
		return err
	}
	if err := d.writeU32(adr, at, ptr); err != nil {
		return err
	}
	if err := d.value(adr, ptr); err != nil {
		return err
	}
	if end < 0 {
		return nil
	}
	if d.r.Pos() > end {
		return errors.Corrupt(errors.PhaseDecode, "member %d overruns its parameter", adr.ID)
	}
	return d.r.Seek("parameter", end)
}

// lookup finds the member with the given id, descending into embedded
// bases, and returns it with the native address of its level.
func (d *decoder) lookup(start int, addr, id uint32) (*layout.ADR, uint32) {
	var (
		found *layout.ADR
		base  uint32
	)
	_ = d.p.Walk(start, func(_ int, adr *layout.ADR) error {
		if adr.Flags.Has(layout.FlagBase) {
			if m, b := d.lookup(adr.Jump, addr+adr.Offset, id); m != nil {
				found, base = m, b
				return errStop
			}
			return nil
		}
		if adr.ID == id {
			found, base = adr, addr
			return errStop
		}
		return nil
	})
	return found, base
}

var errStop = errors.New(errors.PhaseDecode, errors.KindNotFound).Build()

func (d *decoder) plMembers(start int, addr uint32) error {
	seen := make(map[*layout.ADR]bool)
	for {
		if err := d.r.Align(4); err != nil {
			return err
		}
		pid, err := d.r.Peek16("parameter header")
		if err != nil {
			return err
		}
		if pid&pidMask == pidSentinel {
			return d.r.Seek("sentinel", d.r.Pos()+4)
		}
		id, n, mu, err := d.pid()
		if err != nil {
			return err
		}
		end := d.r.Pos() + int(n)
		if err := d.known(start, addr, id, mu, end, seen); err != nil {
			return err
		}
	}
}

// known decodes the member with the given id up to end, or skips it when
// the type has no such member. A member already in seen is rejected.
func (d *decoder) known(start int, addr, id uint32, mustUnderstand bool, end int, seen map[*layout.ADR]bool) error {
	adr, base := d.lookup(start, addr, id)
	if adr != nil && seen[adr] {
		return errors.InvalidData(errors.PhaseDecode, memberPath(adr), "member appears twice")
	}
	if adr == nil {
		if mustUnderstand {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Detail("unknown member %d is marked must-understand", id).
				Build()
		}
		return d.r.Seek("unknown member", end)
	}
	seen[adr] = true
	if adr.Flags.Has(layout.FlagOptional) {
		return d.optional(adr, base+adr.Offset, end)
	}
	if err := d.value(adr, base+adr.Offset); err != nil {
		return err
	}
	if d.r.Pos() > end {
		return errors.Corrupt(errors.PhaseDecode, "member %d overruns its length", id)
	}
	return d.r.Seek("member", end)
}

func (d *decoder) emMembers(start int, addr uint32, end int) error {
	seen := make(map[*layout.ADR]bool)
	for d.r.Pos() < end {
		hdr, err := d.r.U32("member header")
		if err != nil {
			return err
		}
		id := hdr & emIDMask
		lc := hdr >> 28 & 7
		var n uint64
		switch lc {
		case 0, 1, 2, 3:
			n = 1 << lc
		case lcNextInt:
			next, err := d.r.U32("member length")
			if err != nil {
				return err
			}
			n = uint64(next)
		default:
			next, err := d.r.Peek32("member length")
			if err != nil {
				return err
			}
			switch lc {
			case 5:
				n = 4 + uint64(next)
			case 6:
				n = 4 + 4*uint64(next)
			case 7:
				n = 4 + 8*uint64(next)
			}
		}
		if n > uint64(end-d.r.Pos()) {
			return errors.Truncated(errors.PhaseDecode, "member", d.r.Pos(), int(min(n, 1<<31)), end-d.r.Pos())
		}
		if err := d.known(start, addr, id, hdr&emMustUnderstand != 0, d.r.Pos()+int(n), seen); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) value(adr *layout.ADR, at uint32) error {
	switch adr.Type {
	case layout.Type1BY, layout.TypeBLN:
		v, err := d.r.U8("octet")
		if err != nil {
			return err
		}
		if adr.Type == layout.TypeBLN && v > 1 {
			return errors.InvalidData(errors.PhaseDecode, memberPath(adr), fmt.Sprintf("boolean value %d", v))
		}
		return d.memErr(d.mem.WriteU8(at, v), adr)
	case layout.Type2BY:
		v, err := d.r.U16("short")
		if err != nil {
			return err
		}
		return d.memErr(d.mem.WriteU16(at, v), adr)
	case layout.Type4BY:
		v, err := d.r.U32("long")
		if err != nil {
			return err
		}
		return d.writeU32(adr, at, v)
	case layout.Type8BY:
		v, err := d.r.U64("long long")
		if err != nil {
			return err
		}
		return d.memErr(d.mem.WriteU64(at, v), adr)
	case layout.TypeENU:
		v, err := d.r.U32("enum")
		if err != nil {
			return err
		}
		if v > adr.Max {
			return errors.InvalidEnum(errors.PhaseDecode, memberPath(adr), v, adr.Max)
		}
		return d.writeU32(adr, at, v)
	case layout.TypeSTR:
		s, err := d.str(adr, 0)
		if err != nil {
			return err
		}
		var ptr uint32
		if len(s) > 0 {
			if ptr, err = d.allocate(adr, uint32(len(s)), 1); err != nil {
				return err
			}
			if err := d.memErr(d.mem.Write(ptr, s), adr); err != nil {
				return err
			}
		}
		return d.pair(adr, at, ptr, uint32(len(s)))
	case layout.TypeBST:
		s, err := d.str(adr, adr.Bound)
		if err != nil {
			return err
		}
		buf := make([]byte, adr.Bound+1)
		copy(buf, s)
		return d.memErr(d.mem.Write(at, buf), adr)
	case layout.TypeSEQ, layout.TypeBSQ:
		if delimitedElems(d.v, adr) {
			return d.delimited("sequence", func(end int) error { return d.sequence(adr, at, end) })
		}
		return d.sequence(adr, at, -1)
	case layout.TypeARR:
		if delimitedElems(d.v, adr) {
			return d.delimited("array", func(int) error { return d.elements(adr, at, adr.Bound) })
		}
		return d.elements(adr, at, adr.Bound)
	case layout.TypeEXT:
		return d.structAt(adr.Jump, at)
	}
	return errors.Unsupported(errors.PhaseDecode, adr.Type.String())
}

// str reads a NUL-terminated string and returns it without the NUL. A
// non-zero bound limits its length.
func (d *decoder) str(adr *layout.ADR, bound uint32) ([]byte, error) {
	n, err := d.r.U32("string length")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Corrupt(errors.PhaseDecode, "string without terminator at %d", d.r.Pos())
	}
	if n-1 > abi.MaxStringSize || (bound > 0 && n-1 > bound) {
		limit := "string size limit"
		if bound > 0 {
			limit = fmt.Sprintf("bound %d", bound)
		}
		return nil, errors.Overflow(errors.PhaseDecode, memberPath(adr), n-1, limit)
	}
	raw, err := d.r.Bytes("string", int(n))
	if err != nil {
		return nil, err
	}
	if raw[n-1] != 0 {
		return nil, errors.Corrupt(errors.PhaseDecode, "string not terminated at %d", d.r.Pos()-1)
	}
	return raw[:n-1], nil
}

// sequence reads a sequence length and its elements. With end >= 0 the
// elements must fit before end.
func (d *decoder) sequence(adr *layout.ADR, at uint32, end int) error {
	n, err := d.r.U32("sequence length")
	if err != nil {
		return err
	}
	if adr.Type == layout.TypeBSQ && n > adr.Bound {
		return errors.Overflow(errors.PhaseDecode, memberPath(adr), n, fmt.Sprintf("bound %d", adr.Bound))
	}
	if n > abi.MaxSeqLength {
		return errors.Overflow(errors.PhaseDecode, memberPath(adr), n, "sequence length limit")
	}
	avail := d.r.Remaining()
	if end >= 0 {
		avail = max(end-d.r.Pos(), 0)
	}
	if need := mulSat(uint64(n), max(d.minSize(elemOf(d.p, adr)), 1)); need > uint64(avail) {
		return errors.Truncated(errors.PhaseDecode, "sequence", d.r.Pos(), int(need), avail)
	}
	if n == 0 {
		return d.pair(adr, at, 0, 0)
	}
	size, ok := abi.SafeMulU32(n, adr.ElemSize)
	if !ok || size > abi.MaxAlloc {
		return errors.Overflow(errors.PhaseDecode, memberPath(adr), n, "allocation limit")
	}
	ptr, err := d.allocate(adr, heapSize(size), adr.ElemAlign)
	if err != nil {
		return err
	}
	if err := d.pair(adr, at, ptr, n); err != nil {
		return err
	}
	return d.elements(adr, ptr, n)
}

// minSizeCap saturates minSize.
const minSizeCap = 1 << 31

// minSize is a lower bound on the stream size of a value described by adr.
func (d *decoder) minSize(adr *layout.ADR) uint64 {
	var n uint64
	switch adr.Type {
	case layout.TypeSTR, layout.TypeBST:
		n = 5
	case layout.TypeSEQ, layout.TypeBSQ:
		n = 4
	case layout.TypeARR:
		n = mulSat(uint64(adr.Bound), d.minSize(elemOf(d.p, adr)))
	case layout.TypeEXT:
		return d.minStruct(adr.Jump)
	default:
		return uint64(adr.Type.PrimitiveSize())
	}
	if adr.Type.Collection() && delimitedElems(d.v, adr) {
		n = min(n+4, minSizeCap)
	}
	return n
}

// minStruct is a lower bound on the stream size of the struct program at
// start. Results are memoized per decode.
func (d *decoder) minStruct(start int) uint64 {
	if n, ok := d.mins[start]; ok {
		return n
	}
	if d.mins == nil {
		d.mins = make(map[int]uint64)
	}
	d.mins[start] = 0
	var n uint64
	switch d.p.Header(start).(type) {
	case layout.PLC:
		n = 4
	case layout.DLC:
		if d.v == layout.XCDR2 {
			n = 4
			break
		}
		n = d.minMembers(start)
	default:
		n = d.minMembers(start)
	}
	d.mins[start] = n
	return n
}

func (d *decoder) minMembers(start int) uint64 {
	var n uint64
	_ = d.p.Walk(start, func(_ int, adr *layout.ADR) error {
		switch {
		case adr.Flags.Has(layout.FlagBase):
			n += d.minMembers(adr.Jump)
		case adr.Flags.Has(layout.FlagOptional) && d.v == layout.XCDR2:
			n++
		case adr.Flags.Has(layout.FlagOptional):
			n += 4
		default:
			n += d.minSize(adr)
		}
		n = min(n, minSizeCap)
		return nil
	})
	return n
}

func mulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > minSizeCap/b {
		return minSizeCap
	}
	return min(a*b, minSizeCap)
}

func (d *decoder) elements(adr *layout.ADR, ptr, n uint32) error {
	if n == 0 {
		return nil
	}
	if adr.Elem == layout.Type1BY {
		raw, err := d.r.Bytes("octets", int(n))
		if err != nil {
			return err
		}
		return d.memErr(d.mem.Write(ptr, raw), adr)
	}
	elem := elemOf(d.p, adr)
	for i := uint32(0); i < n; i++ {
		if err := d.value(elem, ptr+i*adr.ElemSize); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) allocate(adr *layout.ADR, size, align uint32) (uint32, error) {
	ptr, err := d.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseDecode, errors.KindAllocation).
			Path(memberPath(adr)...).
			Cause(err).
			Detail("allocate %d bytes", size).
			Build()
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseDecode, size, align)
	}
	d.al.add(ptr, size, align)
	if size > 0 && adr.Type != layout.TypeSTR {
		if err := d.memErr(d.mem.Write(ptr, make([]byte, size)), adr); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

func (d *decoder) pair(adr *layout.ADR, at, ptr, n uint32) error {
	if err := d.writeU32(adr, at, ptr); err != nil {
		return err
	}
	return d.writeU32(adr, at+4, n)
}

func (d *decoder) writeU32(adr *layout.ADR, at, v uint32) error {
	return d.memErr(d.mem.WriteU32(at, v), adr)
}

func (d *decoder) memErr(err error, adr *layout.ADR) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "write member "+fmt.Sprint(adr.ID))
}

// heapSize is the block size for a heap value of the given native size.
func heapSize(size uint32) uint32 {
	return max(size, 1)
}
