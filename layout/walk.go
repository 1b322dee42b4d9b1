package layout

import (
	"fmt"
	"strings"

	"github.com/wippyai/dds-core/errors"
)

// Walk calls fn for every ADR of the program starting at start, in order,
// stopping at RTS. It does not descend into sub-programs.
func (p *Program) Walk(start int, fn func(pc int, adr *ADR) error) error {
	if start < 0 || start >= len(p.Ops) {
		return errors.OutOfBounds(errors.PhaseLayout, nil, start, len(p.Ops))
	}
	for pc := start; pc < len(p.Ops); pc++ {
		switch op := p.Ops[pc].(type) {
		case RTS:
			return nil
		case DLC, PLC:
			if pc != start {
				return errors.Corrupt(errors.PhaseLayout, "struct header at %d inside program %d", pc, start)
			}
		case *ADR:
			if err := fn(pc, op); err != nil {
				return err
			}
		case *KOF:
			return errors.Corrupt(errors.PhaseLayout, "program %d runs into key offsets at %d", start, pc)
		}
	}
	return errors.Corrupt(errors.PhaseLayout, "program %d has no RTS", start)
}

// Members returns the ADR indices of the program starting at start.
func (p *Program) Members(start int) []int {
	var pcs []int
	_ = p.Walk(start, func(pc int, _ *ADR) error {
		pcs = append(pcs, pc)
		return nil
	})
	return pcs
}

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	names := []struct {
		flag Flags
		name string
	}{
		{FlagKey, "key"},
		{FlagOptional, "opt"},
		{FlagSigned, "sgn"},
		{FlagFP, "fp"},
		{FlagBase, "base"},
		{FlagMustUnderstand, "mu"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

func (a *ADR) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ADR %s", a.Type)
	if a.Type.Collection() {
		fmt.Fprintf(&b, "<%s>", a.Elem)
	}
	fmt.Fprintf(&b, " id=%d off=%d flags=%s", a.ID, a.Offset, a.Flags)
	switch a.Type {
	case TypeBST, TypeBSQ:
		fmt.Fprintf(&b, " bound=%d", a.Bound)
	case TypeARR:
		fmt.Fprintf(&b, " count=%d", a.Bound)
	case TypeEXT:
		fmt.Fprintf(&b, " jump=%d size=%d align=%d", a.Jump, a.Size, a.Align)
	}
	if a.Type.Collection() {
		fmt.Fprintf(&b, " elem=%d/%d", a.ElemSize, a.ElemAlign)
		if a.Elem == TypeBST {
			fmt.Fprintf(&b, " elem-bound=%d", a.ElemBound)
		}
		if a.HasElemJump() {
			fmt.Fprintf(&b, " jump=%d", a.Jump)
		}
	}
	if a.Type == TypeENU || a.Elem == TypeENU {
		fmt.Fprintf(&b, " max=%d", a.Max)
	}
	return b.String()
}

func (k *KOF) String() string {
	parts := make([]string, len(k.Path))
	for i, pc := range k.Path {
		parts[i] = fmt.Sprint(pc)
	}
	return "KOF " + strings.Join(parts, ",")
}

// Dump renders one instruction per line, prefixed with its index.
func (p *Program) Dump() string {
	var b strings.Builder
	for pc, op := range p.Ops {
		fmt.Fprintf(&b, "%04d ", pc)
		if s, ok := op.(fmt.Stringer); ok {
			b.WriteString(s.String())
		} else {
			b.WriteString(op.Opcode().String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
