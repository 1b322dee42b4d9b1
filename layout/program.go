package layout

import (
	"github.com/wippyai/dds-core/errors"
)

const (
	headerMagic   = 0x4C420000
	headerVersion = 1
	// HeaderWord opens every encoded program.
	HeaderWord = headerMagic | headerVersion
)

// Program is a decoded instruction stream.
type Program struct {
	Ops []Op
}

// ADR returns the ADR instruction at pc, or nil.
func (p *Program) ADR(pc int) *ADR {
	if pc < 0 || pc >= len(p.Ops) {
		return nil
	}
	adr, _ := p.Ops[pc].(*ADR)
	return adr
}

// KOF returns the KOF instruction at pc, or nil.
func (p *Program) KOF(pc int) *KOF {
	if pc < 0 || pc >= len(p.Ops) {
		return nil
	}
	kof, _ := p.Ops[pc].(*KOF)
	return kof
}

// Header returns the struct header at pc: DLC, PLC or nil for final structs.
func (p *Program) Header(pc int) Op {
	if pc < 0 || pc >= len(p.Ops) {
		return nil
	}
	switch op := p.Ops[pc].(type) {
	case DLC, PLC:
		return op
	}
	return nil
}

// AppendKOF appends a key offset list and returns its index.
func (p *Program) AppendKOF(path []int) int {
	p.Ops = append(p.Ops, &KOF{Path: append([]int(nil), path...)})
	return len(p.Ops) - 1
}

func word0(op Opcode, t, elem TypeCode, flags Flags) uint32 {
	return uint32(op)<<24 | uint32(t)<<16 | uint32(elem)<<8 | uint32(flags)
}

// Encode returns the program as 32-bit words, header first.
func (p *Program) Encode() []uint32 {
	words := make([]uint32, 0, 1+len(p.Ops)*4)
	words = append(words, HeaderWord)
	for _, op := range p.Ops {
		switch o := op.(type) {
		case *ADR:
			words = append(words, word0(OpADR, o.Type, o.Elem, o.Flags), o.ID, o.Offset)
			words = o.appendOperands(words)
		case *KOF:
			words = append(words, word0(OpKOF, 0, 0, 0)|uint32(len(o.Path)))
			for _, pc := range o.Path {
				words = append(words, uint32(pc))
			}
		default:
			words = append(words, word0(op.Opcode(), 0, 0, 0))
		}
	}
	return words
}

func (a *ADR) appendOperands(words []uint32) []uint32 {
	switch a.Type {
	case TypeBST:
		words = append(words, a.Bound)
	case TypeENU:
		words = append(words, a.Max)
	case TypeEXT:
		words = append(words, uint32(a.Jump), a.Size, a.Align)
	case TypeSEQ:
		words = append(words, a.ElemSize, a.ElemAlign)
		words = a.appendElemOperands(words)
	case TypeBSQ, TypeARR:
		words = append(words, a.Bound, a.ElemSize, a.ElemAlign)
		words = a.appendElemOperands(words)
	}
	return words
}

func (a *ADR) appendElemOperands(words []uint32) []uint32 {
	switch {
	case a.Elem == TypeBST:
		return append(words, a.ElemBound)
	case a.Elem == TypeENU:
		return append(words, a.Max)
	case a.HasElemJump():
		return append(words, uint32(a.Jump))
	}
	return words
}

type wordReader struct {
	words []uint32
	pos   int
}

func (r *wordReader) next(what string) (uint32, error) {
	if r.pos >= len(r.words) {
		return 0, errors.Truncated(errors.PhaseDeserialize, what, r.pos*4, 4, 0)
	}
	w := r.words[r.pos]
	r.pos++
	return w, nil
}

// Decode parses an encoded program and validates it.
func Decode(words []uint32) (*Program, error) {
	r := &wordReader{words: words}
	hdr, err := r.next("layout header")
	if err != nil {
		return nil, err
	}
	if hdr != HeaderWord {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "layout header %#08x, want %#08x", hdr, HeaderWord)
	}

	p := &Program{}
	for r.pos < len(r.words) {
		at := r.pos
		w, _ := r.next("instruction")
		op := Opcode(w >> 24)
		switch op {
		case OpRTS, OpDLC, OpPLC:
			if w&0x00FFFFFF != 0 {
				return nil, errors.Corrupt(errors.PhaseDeserialize, "%s at word %d has operands %#x", op, at, w&0x00FFFFFF)
			}
			p.Ops = append(p.Ops, markerFor(op))
		case OpADR:
			adr, err := decodeADR(r, w)
			if err != nil {
				return nil, err
			}
			p.Ops = append(p.Ops, adr)
		case OpKOF:
			n := int(w & 0xFFFF)
			if n == 0 || w&0x00FF0000 != 0 {
				return nil, errors.Corrupt(errors.PhaseDeserialize, "KOF at word %d has invalid length word %#08x", at, w)
			}
			kof := &KOF{Path: make([]int, n)}
			for i := range kof.Path {
				v, err := r.next("KOF operand")
				if err != nil {
					return nil, err
				}
				kof.Path[i] = int(v)
			}
			p.Ops = append(p.Ops, kof)
		default:
			return nil, errors.Corrupt(errors.PhaseDeserialize, "unknown opcode %d at word %d", op, at)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func markerFor(op Opcode) Op {
	switch op {
	case OpDLC:
		return DLC{}
	case OpPLC:
		return PLC{}
	}
	return RTS{}
}

func decodeADR(r *wordReader, w uint32) (*ADR, error) {
	adr := &ADR{
		Type:  TypeCode(w >> 16),
		Elem:  TypeCode(w >> 8),
		Flags: Flags(w),
	}
	if !adr.Type.valid() {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "ADR at word %d has type code %d", r.pos-1, adr.Type)
	}
	if adr.Flags&^flagsMask != 0 {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "ADR at word %d has unknown flags %#x", r.pos-1, adr.Flags)
	}
	if adr.Type.Collection() != adr.Elem.valid() || (adr.Elem != 0 && !adr.Elem.valid()) {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "ADR at word %d has element type %d for %s", r.pos-1, adr.Elem, adr.Type)
	}

	var err error
	fields := []*uint32{&adr.ID, &adr.Offset}
	switch adr.Type {
	case TypeBST:
		fields = append(fields, &adr.Bound)
	case TypeENU:
		fields = append(fields, &adr.Max)
	case TypeSEQ:
		fields = append(fields, &adr.ElemSize, &adr.ElemAlign)
	case TypeBSQ, TypeARR:
		fields = append(fields, &adr.Bound, &adr.ElemSize, &adr.ElemAlign)
	}
	for _, f := range fields {
		if *f, err = r.next("ADR operand"); err != nil {
			return nil, err
		}
	}

	var jump uint32
	switch {
	case adr.Type == TypeEXT:
		if jump, err = r.next("ADR jump"); err != nil {
			return nil, err
		}
		if adr.Size, err = r.next("ADR size"); err != nil {
			return nil, err
		}
		if adr.Align, err = r.next("ADR align"); err != nil {
			return nil, err
		}
		adr.Jump = int(jump)
	case adr.Elem == TypeBST:
		adr.ElemBound, err = r.next("ADR element bound")
	case adr.Elem == TypeENU:
		adr.Max, err = r.next("ADR enum max")
	case adr.HasElemJump():
		jump, err = r.next("ADR element jump")
		adr.Jump = int(jump)
	}
	if err != nil {
		return nil, err
	}
	return adr, nil
}

// Validate checks jump targets, KOF paths and program termination.
func (p *Program) Validate() error {
	if len(p.Ops) == 0 {
		return errors.Corrupt(errors.PhaseDeserialize, "empty layout program")
	}
	if _, ok := p.Ops[0].(*KOF); ok {
		return errors.Corrupt(errors.PhaseDeserialize, "layout program starts with KOF")
	}
	starts := map[int]bool{0: true}
	for _, op := range p.Ops {
		if adr, ok := op.(*ADR); ok && (adr.Type == TypeEXT || adr.HasElemJump()) {
			starts[adr.Jump] = true
		}
	}
	for pc, op := range p.Ops {
		switch o := op.(type) {
		case *ADR:
			if o.Type == TypeEXT || o.HasElemJump() {
				if err := p.checkTarget(pc, o.Jump); err != nil {
					return err
				}
			}
			if o.Elem.Collection() {
				if elem := p.ADR(o.Jump); elem == nil || elem.Type != o.Elem {
					return errors.Corrupt(errors.PhaseDeserialize, "ADR %d element jump %d is not a %s ADR", pc, o.Jump, o.Elem)
				}
			}
			if o.Flags.Has(FlagBase) {
				if err := p.checkBase(pc, o, starts); err != nil {
					return err
				}
			}
			if o.Type == TypeBST && o.Bound == 0 || o.Elem == TypeBST && o.ElemBound == 0 {
				return errors.Corrupt(errors.PhaseDeserialize, "ADR %d has a zero string bound", pc)
			}
			if o.Type.Collection() && (o.ElemAlign == 0 || o.ElemAlign&(o.ElemAlign-1) != 0) {
				return errors.Corrupt(errors.PhaseDeserialize, "ADR %d has element alignment %d", pc, o.ElemAlign)
			}
		case *KOF:
			for _, target := range o.Path {
				if p.ADR(target) == nil {
					return errors.Corrupt(errors.PhaseDeserialize, "KOF %d references %d, not an ADR", pc, target)
				}
			}
		}
	}
	if err := p.checkTermination(); err != nil {
		return err
	}
	state := make(map[int]uint8)
	if err := p.checkInline(0, state); err != nil {
		return err
	}
	for _, op := range p.Ops {
		if adr, ok := op.(*ADR); ok && (adr.Type == TypeEXT || adr.HasElemJump()) {
			if err := p.checkInline(adr.Jump, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkBase accepts an embedded base only as the first member of a struct
// program.
func (p *Program) checkBase(pc int, adr *ADR, starts map[int]bool) error {
	if adr.Type != TypeEXT || adr.Flags.Has(FlagOptional) {
		return errors.Corrupt(errors.PhaseDeserialize, "ADR %d marks a %s member as base", pc, adr.Type)
	}
	start := pc
	if p.Header(pc-1) != nil {
		start = pc - 1
	}
	if !starts[start] {
		return errors.Corrupt(errors.PhaseDeserialize, "base ADR %d is not the first member of its program", pc)
	}
	return nil
}

// checkInline rejects programs that embed themselves through EXT members.
func (p *Program) checkInline(start int, state map[int]uint8) error {
	const visiting, done = 1, 2
	switch state[start] {
	case visiting:
		return errors.Corrupt(errors.PhaseDeserialize, "program at %d embeds itself", start)
	case done:
		return nil
	}
	state[start] = visiting
	for pc := start; pc < len(p.Ops); pc++ {
		op := p.Ops[pc]
		if _, ok := op.(RTS); ok {
			break
		}
		adr, ok := op.(*ADR)
		if !ok {
			continue
		}
		if adr.Type == TypeEXT {
			if err := p.checkInline(adr.Jump, state); err != nil {
				return err
			}
		} else if adr.HasElemJump() {
			// Sequence elements live behind a pointer; array elements are inline.
			if adr.Type == TypeARR {
				if err := p.checkInline(adr.Jump, state); err != nil {
					return err
				}
			}
		}
	}
	state[start] = done
	return nil
}

func (p *Program) checkTarget(pc, target int) error {
	if target < 0 || target >= len(p.Ops) || target == pc {
		return errors.Corrupt(errors.PhaseDeserialize, "ADR %d jumps to %d (program has %d instructions)", pc, target, len(p.Ops))
	}
	if _, ok := p.Ops[target].(*KOF); ok {
		return errors.Corrupt(errors.PhaseDeserialize, "ADR %d jumps into key offsets at %d", pc, target)
	}
	return nil
}

// checkTermination verifies that every program reachable by Walk ends in RTS
// before the KOF section.
func (p *Program) checkTermination() error {
	end := len(p.Ops)
	for end > 0 {
		if _, ok := p.Ops[end-1].(*KOF); !ok {
			break
		}
		end--
	}
	if end == 0 {
		return errors.Corrupt(errors.PhaseDeserialize, "layout program has no instructions")
	}
	if _, ok := p.Ops[end-1].(RTS); !ok {
		return errors.Corrupt(errors.PhaseDeserialize, "layout program does not end with RTS")
	}
	for pc := 0; pc < end; pc++ {
		if _, ok := p.Ops[pc].(*KOF); ok {
			return errors.Corrupt(errors.PhaseDeserialize, "KOF at %d precedes program instructions", pc)
		}
	}
	return nil
}

// KeyOffsets returns the index of the first KOF instruction, or len(Ops).
func (p *Program) KeyOffsets() int {
	for pc, op := range p.Ops {
		if _, ok := op.(*KOF); ok {
			return pc
		}
	}
	return len(p.Ops)
}
