package layout

import (
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
)

type memberKey struct {
	level  *idl.Struct
	member *idl.Member
}

// Compiled is the result of compiling a topic type: the program plus the
// index from type tree nodes to instructions.
type Compiled struct {
	Program *Program
	Info
	structs map[*idl.Struct]int
	members map[memberKey]int
	parents map[*idl.Struct]int
	layouts map[*idl.Struct]*StructLayout
}

// StructPC returns the first instruction of the program for s.
func (c *Compiled) StructPC(s *idl.Struct) (int, bool) {
	pc, ok := c.structs[s]
	return pc, ok
}

// MemberPC returns the ADR of member m within the program of level. For
// mutable structs, base members are addressed through the derived level.
func (c *Compiled) MemberPC(level *idl.Struct, m *idl.Member) (int, bool) {
	pc, ok := c.members[memberKey{level, m}]
	return pc, ok
}

// ParentPC returns the ADR of the embedded base of a final or appendable
// derived struct.
func (c *Compiled) ParentPC(level *idl.Struct) (int, bool) {
	pc, ok := c.parents[level]
	return pc, ok
}

// Layout returns the native layout of a compiled struct level.
func (c *Compiled) Layout(s *idl.Struct) *StructLayout {
	return c.layouts[s]
}

// Compiler turns struct trees into layout programs.
type Compiler struct {
	calc *Calculator
}

func NewCompiler() *Compiler {
	return &Compiler{calc: NewCalculator()}
}

// Compile compiles topic with a fresh compiler.
func Compile(topic *idl.Struct) (*Compiled, error) {
	return NewCompiler().Compile(topic)
}

type compileState struct {
	c       *Compiler
	out     *Compiled
	ops     []Op
	pending []func() error
	fixups  map[*ADR]*idl.Struct
}

func (c *Compiler) Compile(topic *idl.Struct) (*Compiled, error) {
	if topic == nil {
		return nil, errors.NilPointer(errors.PhaseLayout, nil, "topic type")
	}
	st := &compileState{
		c: c,
		out: &Compiled{
			structs: make(map[*idl.Struct]int),
			members: make(map[memberKey]int),
			parents: make(map[*idl.Struct]int),
			layouts: make(map[*idl.Struct]*StructLayout),
		},
		fixups: make(map[*ADR]*idl.Struct),
	}

	if err := st.structProgram(topic); err != nil {
		return nil, err
	}
	for len(st.pending) > 0 {
		next := st.pending[0]
		st.pending = st.pending[1:]
		if err := next(); err != nil {
			return nil, err
		}
	}
	for adr, s := range st.fixups {
		adr.Jump = st.out.structs[s]
	}

	root := st.out.layouts[topic]
	st.out.Program = &Program{Ops: st.ops}
	st.out.Info = root.Info
	return st.out, nil
}

func (st *compileState) emit(op Op) int {
	st.ops = append(st.ops, op)
	return len(st.ops) - 1
}

// refer schedules the program for s and records a jump to patch.
func (st *compileState) refer(adr *ADR, s *idl.Struct) {
	st.fixups[adr] = s
	if _, done := st.out.structs[s]; done {
		return
	}
	st.out.structs[s] = -1
	st.pending = append(st.pending, func() error { return st.structProgram(s) })
}

func (st *compileState) structProgram(s *idl.Struct) error {
	sl, err := st.c.calc.Struct(s)
	if err != nil {
		return err
	}
	st.out.layouts[s] = sl
	st.out.structs[s] = len(st.ops)

	if hdr := headerFor(s.Extensibility); hdr != nil {
		st.emit(hdr)
	}
	if sl.Parent != nil {
		base := st.c.calc.cache[sl.Parent]
		adr := &ADR{
			Type:  TypeEXT,
			Flags: FlagBase,
			Size:  base.Size,
			Align: base.Align,
		}
		st.out.parents[s] = st.emit(adr)
		st.refer(adr, sl.Parent)
	}
	for _, f := range sl.Fields {
		adr := &ADR{ID: f.ID, Offset: f.Offset}
		if f.Member.Key {
			adr.Flags |= FlagKey | FlagMustUnderstand
		}
		if f.Member.Optional {
			adr.Flags |= FlagOptional
		}
		if f.Member.MustUnderstand {
			adr.Flags |= FlagMustUnderstand
		}
		if err := st.describe(adr, f.Member.Type); err != nil {
			return errors.New(errors.PhaseLayout, errors.KindInvalidData).
				Path(s.Name, f.Member.Name).
				Cause(err).
				Detail("member type").
				Build()
		}
		st.out.members[memberKey{s, f.Member}] = st.emit(adr)
	}
	st.emit(RTS{})
	return nil
}

// describe fills the type operands of adr for a member of type t.
func (st *compileState) describe(adr *ADR, t idl.Type) error {
	switch typ := t.(type) {
	case idl.Primitive:
		adr.Type = primitiveCode(typ.Kind)
		adr.Flags |= primitiveFlags(typ.Kind)
	case *idl.Enum:
		adr.Type = TypeENU
		adr.Max = uint32(len(typ.Enumerators) - 1)
	case idl.String:
		if typ.Bound == 0 {
			adr.Type = TypeSTR
		} else {
			adr.Type = TypeBST
			adr.Bound = typ.Bound
		}
	case *idl.Sequence:
		if typ.Bound == 0 {
			adr.Type = TypeSEQ
		} else {
			adr.Type = TypeBSQ
			adr.Bound = typ.Bound
		}
		return st.element(adr, typ.Elem)
	case *idl.Array:
		adr.Type = TypeARR
		adr.Bound = typ.Count()
		return st.element(adr, typ.Elem)
	case *idl.Struct:
		info, err := st.c.calc.Type(typ)
		if err != nil {
			return err
		}
		adr.Type = TypeEXT
		adr.Size, adr.Align = info.Size, info.Align
		st.refer(adr, typ)
	default:
		return errors.Unsupported(errors.PhaseLayout, t.TypeName())
	}
	return nil
}

// element fills the element operands of a collection member.
func (st *compileState) element(adr *ADR, elem idl.Type) error {
	info, err := st.c.calc.Type(elem)
	if err != nil {
		return err
	}
	adr.ElemSize, adr.ElemAlign = info.Size, info.Align

	switch typ := elem.(type) {
	case idl.Primitive:
		adr.Elem = primitiveCode(typ.Kind)
		adr.Flags |= primitiveFlags(typ.Kind)
	case *idl.Enum:
		adr.Elem = TypeENU
		adr.Max = uint32(len(typ.Enumerators) - 1)
	case idl.String:
		if typ.Bound == 0 {
			adr.Elem = TypeSTR
		} else {
			adr.Elem = TypeBST
			adr.ElemBound = typ.Bound
		}
	case *idl.Struct:
		adr.Elem = TypeEXT
		st.refer(adr, typ)
	case *idl.Sequence, *idl.Array:
		// Nested collections get a single-member program at offset 0.
		inner := &ADR{}
		if err := st.describe(inner, typ); err != nil {
			return err
		}
		adr.Elem = inner.Type
		st.pending = append(st.pending, func() error {
			adr.Jump = st.emit(inner)
			st.emit(RTS{})
			return nil
		})
	default:
		return errors.Unsupported(errors.PhaseLayout, elem.TypeName())
	}
	return nil
}

func primitiveCode(k idl.PrimitiveKind) TypeCode {
	switch k {
	case idl.Bool:
		return TypeBLN
	case idl.Char, idl.Octet, idl.Int8, idl.UInt8:
		return Type1BY
	case idl.Int16, idl.UInt16:
		return Type2BY
	case idl.Int32, idl.UInt32, idl.Float32:
		return Type4BY
	default:
		return Type8BY
	}
}

func primitiveFlags(k idl.PrimitiveKind) Flags {
	var f Flags
	if k.Signed() {
		f |= FlagSigned
	}
	if k.Float() {
		f |= FlagFP
	}
	return f
}
