package keys

import (
	"github.com/wippyai/dds-core/internal/abi"
	"github.com/wippyai/dds-core/layout"
)

const (
	// FixedKeyMaxSize is the keyhash width: keys up to this size are used
	// as the keyhash directly.
	FixedKeyMaxSize = 16
	// VariableSize is reported for keys that are not fixed.
	VariableSize = FixedKeyMaxSize + 1
)

// SizeInfo is the key size verdict for one encoding version.
type SizeInfo struct {
	Fixed bool
	Size  uint32
}

// Sizes holds the verdicts for both encoding versions.
type Sizes struct {
	XCDR1 SizeInfo
	XCDR2 SizeInfo
}

// For returns the verdict for v.
func (s Sizes) For(v layout.EncodingVersion) SizeInfo {
	if v == layout.XCDR2 {
		return s.XCDR2
	}
	return s.XCDR1
}

var variable = SizeInfo{Size: VariableSize}

// ComputeSizes derives the key size verdicts from the layout program and
// the key set. Fields are laid out in key order.
func ComputeSizes(p *layout.Program, set Set) Sizes {
	return Sizes{
		XCDR1: computeSize(p, set, layout.XCDR1),
		XCDR2: computeSize(p, set, layout.XCDR2),
	}
}

func computeSize(p *layout.Program, set Set, v layout.EncodingVersion) SizeInfo {
	if _, mutable := p.Header(0).(layout.PLC); mutable && len(set) > 0 {
		return variable
	}
	offset := uint32(0)
	for i := range set {
		path := set[i].Path(p)
		if len(path) == 0 {
			return variable
		}
		for _, pc := range path[:len(path)-1] {
			if _, mutable := p.Header(p.ADR(pc).Jump).(layout.PLC); mutable {
				return variable
			}
		}
		size, align, ok := staticSize(p.ADR(path[len(path)-1]), v)
		if !ok {
			return variable
		}
		offset = abi.AlignTo(offset, align) + size
		if offset > FixedKeyMaxSize {
			return variable
		}
	}
	return SizeInfo{Fixed: true, Size: offset}
}

// staticSize returns the serialized size and alignment of a key leaf when
// it does not depend on the sample.
func staticSize(adr *layout.ADR, v layout.EncodingVersion) (size, align uint32, ok bool) {
	switch {
	case adr.Type.Primitive():
		size = adr.Type.PrimitiveSize()
		return size, min(size, v.MaxAlign()), true
	case adr.Type == layout.TypeBST:
		return 4 + adr.Bound + 1, 4, true
	case adr.Type == layout.TypeARR && adr.Elem.Primitive():
		elem := adr.Elem.PrimitiveSize()
		total, fits := abi.SafeMulU32(elem, adr.Bound)
		if !fits {
			return 0, 0, false
		}
		return total, min(elem, v.MaxAlign()), true
	}
	return 0, 0, false
}
