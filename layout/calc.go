package layout

import (
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/internal/abi"
)

// Info is a native size and alignment.
type Info struct {
	Size  uint32
	Align uint32
}

// Field is one member of a struct level with its id and native placement.
type Field struct {
	Member *idl.Member
	Owner  *idl.Struct // struct that declares Member
	ID     uint32
	Offset uint32
	Info   Info
}

// StructLayout is the native layout of one struct level.
type StructLayout struct {
	Info
	// Parent is the embedded base of a final or appendable derived struct.
	Parent *idl.Struct
	Fields []Field
}

// Calculator computes native layouts. Results are cached per struct.
type Calculator struct {
	cache map[*idl.Struct]*StructLayout
	busy  map[*idl.Struct]bool
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*idl.Struct]*StructLayout),
		busy:  make(map[*idl.Struct]bool),
	}
}

// Member returns the native slot of a member: a pointer for optional
// members, the type itself otherwise.
func (c *Calculator) Member(m *idl.Member) (Info, error) {
	if m.Optional {
		return Info{Size: 4, Align: 4}, nil
	}
	return c.Type(m.Type)
}

func (c *Calculator) Type(t idl.Type) (Info, error) {
	switch typ := t.(type) {
	case idl.Primitive:
		n := typ.Kind.Size()
		return Info{Size: n, Align: n}, nil
	case *idl.Enum:
		return Info{Size: 4, Align: 4}, nil
	case idl.String:
		if typ.Bound == 0 {
			return Info{Size: 8, Align: 4}, nil // [ptr: u32, len: u32]
		}
		return Info{Size: typ.Bound + 1, Align: 1}, nil
	case *idl.Sequence:
		return Info{Size: 8, Align: 4}, nil
	case *idl.Array:
		elem, err := c.Type(typ.Elem)
		if err != nil {
			return Info{}, err
		}
		size, ok := abi.SafeMulU32(elem.Size, typ.Count())
		if !ok || size > abi.MaxAlloc {
			return Info{}, errors.Overflow(errors.PhaseLayout, nil, typ.TypeName(), "maximum sample size")
		}
		return Info{Size: size, Align: elem.Align}, nil
	case *idl.Struct:
		sl, err := c.Struct(typ)
		if err != nil {
			return Info{}, err
		}
		return sl.Info, nil
	case nil:
		return Info{}, errors.NilPointer(errors.PhaseLayout, nil, "member type")
	default:
		return Info{}, errors.Unsupported(errors.PhaseLayout, t.TypeName())
	}
}

// Struct lays out one struct level. A struct that contains itself inline is
// rejected; recursion through sequences and optional members is fine.
func (c *Calculator) Struct(s *idl.Struct) (*StructLayout, error) {
	if cached, ok := c.cache[s]; ok {
		return cached, nil
	}
	if c.busy[s] {
		return nil, errors.New(errors.PhaseLayout, errors.KindInvalidData).
			TypeName(s.Name).
			Detail("struct contains itself").
			Build()
	}
	c.busy[s] = true
	defer delete(c.busy, s)

	sl := &StructLayout{}
	maxAlign := uint32(1)
	offset := uint32(0)

	place := func(info Info) uint32 {
		offset = abi.AlignTo(offset, info.Align)
		at := offset
		offset += info.Size
		if info.Align > maxAlign {
			maxAlign = info.Align
		}
		return at
	}

	levels := []*idl.Struct{s}
	if s.Base != nil {
		if s.Extensibility == idl.Mutable {
			levels = s.Chain()
		} else {
			base, err := c.Struct(s.Base)
			if err != nil {
				return nil, err
			}
			sl.Parent = s.Base
			place(base.Info)
		}
	}

	for _, level := range levels {
		ids := idl.MemberIDs(level)
		for i, m := range level.Members {
			info, err := c.Member(m)
			if err != nil {
				return nil, err
			}
			sl.Fields = append(sl.Fields, Field{
				Member: m,
				Owner:  level,
				ID:     ids[i],
				Offset: place(info),
				Info:   info,
			})
		}
	}

	sl.Size = abi.AlignTo(offset, maxAlign)
	sl.Align = maxAlign
	c.cache[s] = sl
	return sl, nil
}
