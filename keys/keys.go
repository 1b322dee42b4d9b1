package keys

import (
	"slices"
	"strings"

	"github.com/wippyai/dds-core/layout"
)

// Mode selects how key fields are declared in a compilation unit.
type Mode uint8

const (
	ModeAnnotations Mode = iota
	ModeKeylist
)

func (m Mode) String() string {
	if m == ModeKeylist {
		return "keylist"
	}
	return "annotations"
}

// Field is one key field.
type Field struct {
	Name   string
	IDPath []uint32
	// Index is the position in key order (the CDR key order).
	Index int
	// SampleIndex is the position in declaration order.
	SampleIndex int
	// OpsOffset is the index of the KOF instruction for this key.
	OpsOffset int
}

// Depth is the nesting depth of the field below the topic.
func (f *Field) Depth() int { return len(f.IDPath) - 1 }

// Segments splits the dotted name.
func (f *Field) Segments() []string { return strings.Split(f.Name, ".") }

// Set holds the key fields in key order.
type Set []Field

// Names returns the dotted names in key order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i := range s {
		names[i] = s[i].Name
	}
	return names
}

// BySample returns the fields in declaration order.
func (s Set) BySample() Set {
	out := slices.Clone(s)
	slices.SortFunc(out, func(a, b Field) int { return a.SampleIndex - b.SampleIndex })
	return out
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := slices.Clone(s)
	for i := range out {
		out[i].IDPath = slices.Clone(out[i].IDPath)
	}
	return out
}

// Equal compares two sets field by field.
func (s Set) Equal(o Set) bool {
	return slices.EqualFunc(s, o, func(a, b Field) bool {
		return a.Name == b.Name &&
			a.Index == b.Index &&
			a.SampleIndex == b.SampleIndex &&
			a.OpsOffset == b.OpsOffset &&
			slices.Equal(a.IDPath, b.IDPath)
	})
}

// Path returns the ADR instruction indices of the field, one per level.
func (f *Field) Path(p *layout.Program) []int {
	if kof := p.KOF(f.OpsOffset); kof != nil {
		return kof.Path
	}
	return nil
}
