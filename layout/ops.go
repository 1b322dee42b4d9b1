package layout

import "github.com/wippyai/dds-core/idl"

// Opcode identifies an instruction.
type Opcode uint8

const (
	OpRTS Opcode = iota
	OpADR
	OpDLC
	OpPLC
	OpKOF
)

var opcodeNames = [...]string{
	OpRTS: "RTS",
	OpADR: "ADR",
	OpDLC: "DLC",
	OpPLC: "PLC",
	OpKOF: "KOF",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "OP?"
}

// TypeCode is the member (or element) type of an ADR instruction.
type TypeCode uint8

const (
	Type1BY TypeCode = iota + 1
	Type2BY
	Type4BY
	Type8BY
	TypeBLN
	TypeENU
	TypeSTR
	TypeBST
	TypeSEQ
	TypeBSQ
	TypeARR
	TypeEXT
)

var typeNames = [...]string{
	Type1BY: "1BY",
	Type2BY: "2BY",
	Type4BY: "4BY",
	Type8BY: "8BY",
	TypeBLN: "BLN",
	TypeENU: "ENU",
	TypeSTR: "STR",
	TypeBST: "BST",
	TypeSEQ: "SEQ",
	TypeBSQ: "BSQ",
	TypeARR: "ARR",
	TypeEXT: "EXT",
}

func (t TypeCode) String() string {
	if t != 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "---"
}

func (t TypeCode) valid() bool {
	return t >= Type1BY && t <= TypeEXT
}

// Primitive reports whether values of this type have a fixed wire size
// without headers.
func (t TypeCode) Primitive() bool {
	switch t {
	case Type1BY, Type2BY, Type4BY, Type8BY, TypeBLN, TypeENU:
		return true
	}
	return false
}

// Collection reports whether the type carries an element sub-type.
func (t TypeCode) Collection() bool {
	return t == TypeSEQ || t == TypeBSQ || t == TypeARR
}

// PrimitiveSize is the wire and native size of a primitive type code.
func (t TypeCode) PrimitiveSize() uint32 {
	switch t {
	case Type1BY, TypeBLN:
		return 1
	case Type2BY:
		return 2
	case Type4BY, TypeENU:
		return 4
	case Type8BY:
		return 8
	}
	return 0
}

// Flags qualify an ADR instruction.
type Flags uint8

const (
	FlagKey Flags = 1 << iota
	FlagOptional
	FlagSigned
	FlagFP
	FlagBase
	FlagMustUnderstand

	flagsMask = FlagKey | FlagOptional | FlagSigned | FlagFP | FlagBase | FlagMustUnderstand
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Op is one layout instruction.
type Op interface {
	Opcode() Opcode
}

// ADR addresses one member of the current struct.
type ADR struct {
	Type  TypeCode
	Elem  TypeCode // element type of SEQ, BSQ and ARR
	Flags Flags
	// ID is the member id; the embedded base member has id 0.
	ID     uint32
	Offset uint32 // native offset from the start of the struct

	Bound     uint32 // BST and BSQ bound, ARR element count
	ElemSize  uint32
	ElemAlign uint32
	ElemBound uint32 // bound of BST elements
	Max       uint32 // largest enumerator of an ENU member or element

	// Jump is the instruction index of the program for an EXT member, or
	// for a struct or collection element.
	Jump  int
	Size  uint32 // native size of an EXT member
	Align uint32
}

func (*ADR) Opcode() Opcode { return OpADR }

// ElemInfo returns the element size and alignment of a collection member.
func (a *ADR) ElemInfo() Info {
	return Info{Size: a.ElemSize, Align: a.ElemAlign}
}

// HasElemJump reports whether the element is described by a sub-program.
func (a *ADR) HasElemJump() bool {
	return a.Type.Collection() && (a.Elem == TypeEXT || a.Elem.Collection())
}

// DLC marks the start of an appendable struct program.
type DLC struct{}

func (DLC) Opcode() Opcode { return OpDLC }

// PLC marks the start of a mutable struct program.
type PLC struct{}

func (PLC) Opcode() Opcode { return OpPLC }

// RTS ends a program.
type RTS struct{}

func (RTS) Opcode() Opcode { return OpRTS }

// KOF lists the ADR instructions leading from the topic to one key field.
type KOF struct {
	Path []int
}

func (*KOF) Opcode() Opcode { return OpKOF }

// EncodingVersion selects XCDR1 or XCDR2 rules.
type EncodingVersion uint8

const (
	XCDR1 EncodingVersion = 1
	XCDR2 EncodingVersion = 2
)

// MaxAlign is the largest alignment the encoding applies to primitives.
func (v EncodingVersion) MaxAlign() uint32 {
	if v == XCDR2 {
		return 4
	}
	return 8
}

func (v EncodingVersion) String() string {
	switch v {
	case XCDR1:
		return "XCDR1"
	case XCDR2:
		return "XCDR2"
	}
	return "XCDR?"
}

func headerFor(ext idl.Extensibility) Op {
	switch ext {
	case idl.Appendable:
		return DLC{}
	case idl.Mutable:
		return PLC{}
	}
	return nil
}
