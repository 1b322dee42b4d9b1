package idl

import (
	"strconv"
	"strings"
)

// Extensibility is the per-type member evolution policy.
type Extensibility uint8

const (
	Final Extensibility = iota
	Appendable
	Mutable
)

var extensibilityNames = [...]string{
	Final:      "final",
	Appendable: "appendable",
	Mutable:    "mutable",
}

func (e Extensibility) String() string {
	if int(e) < len(extensibilityNames) {
		return extensibilityNames[e]
	}
	return "unknown"
}

// ParseExtensibility accepts the annotation spelling (final, appendable, mutable).
func ParseExtensibility(s string) (Extensibility, bool) {
	for i, name := range extensibilityNames {
		if strings.EqualFold(s, name) {
			return Extensibility(i), true
		}
	}
	return 0, false
}

// AutoID selects how members without an explicit @id get their identifier.
type AutoID uint8

const (
	AutoIDSequential AutoID = iota
	AutoIDHash
)

// Type is implemented by every member type.
type Type interface {
	TypeName() string
	isType()
}

type PrimitiveKind uint8

const (
	Bool PrimitiveKind = iota
	Char
	Octet
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

var primitiveNames = [...]string{
	Bool:    "boolean",
	Char:    "char",
	Octet:   "octet",
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "short",
	UInt16:  "unsigned short",
	Int32:   "long",
	UInt32:  "unsigned long",
	Int64:   "long long",
	UInt64:  "unsigned long long",
	Float32: "float",
	Float64: "double",
}

func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveNames) {
		return primitiveNames[k]
	}
	return "unknown"
}

// Size returns the in-memory and on-wire size in bytes.
func (k PrimitiveKind) Size() uint32 {
	switch k {
	case Bool, Char, Octet, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	default:
		return 8
	}
}

func (k PrimitiveKind) Signed() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

func (k PrimitiveKind) Float() bool {
	return k == Float32 || k == Float64
}

type Primitive struct {
	Kind PrimitiveKind
}

func (p Primitive) TypeName() string { return p.Kind.String() }
func (Primitive) isType()            {}

// String is an IDL string; Bound 0 means unbounded.
type String struct {
	Bound uint32
}

func (s String) TypeName() string {
	if s.Bound == 0 {
		return "string"
	}
	return "string<" + strconv.FormatUint(uint64(s.Bound), 10) + ">"
}
func (String) isType() {}

// Sequence is an IDL sequence; Bound 0 means unbounded.
type Sequence struct {
	Elem  Type
	Bound uint32
}

func (s *Sequence) TypeName() string {
	if s.Bound == 0 {
		return "sequence<" + s.Elem.TypeName() + ">"
	}
	return "sequence<" + s.Elem.TypeName() + ", " + strconv.FormatUint(uint64(s.Bound), 10) + ">"
}
func (*Sequence) isType() {}

// Array is a fixed-size, possibly multi-dimensional array.
type Array struct {
	Elem Type
	Dims []uint32
}

func (a *Array) TypeName() string {
	var b strings.Builder
	b.WriteString(a.Elem.TypeName())
	for _, d := range a.Dims {
		b.WriteByte('[')
		b.WriteString(strconv.FormatUint(uint64(d), 10))
		b.WriteByte(']')
	}
	return b.String()
}
func (*Array) isType() {}

// Count returns the total element count across all dimensions.
func (a *Array) Count() uint32 {
	n := uint32(1)
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

type Enum struct {
	Name        string
	Enumerators []string
}

func (e *Enum) TypeName() string { return e.Name }
func (*Enum) isType()            {}

type Struct struct {
	Name          string
	Base          *Struct
	Members       []*Member
	Extensibility Extensibility
	AutoID        AutoID
	// Nested marks a type that is not a topic on its own (@nested).
	Nested bool
}

func (s *Struct) TypeName() string { return s.Name }
func (*Struct) isType()            {}

// Chain returns the inheritance chain, root base first, s last.
func (s *Struct) Chain() []*Struct {
	var chain []*Struct
	for t := s; t != nil; t = t.Base {
		chain = append(chain, t)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Member finds a member declared directly on s.
func (s *Struct) Member(name string) *Member {
	for _, m := range s.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

type Member struct {
	Type     Type
	Name     string
	ID       uint32
	HasID    bool
	Key      bool
	Optional bool
	// MustUnderstand is set by @must_understand; keys always imply it on the wire.
	MustUnderstand bool
}
