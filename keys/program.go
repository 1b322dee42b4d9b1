package keys

import (
	"slices"

	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
)

// Recompute restores the derived parts of a key set read back from its
// binary form: the id paths and sample order come from the KOF
// instructions, and key order from the stored indices. Every KOF path must
// lead from the topic program through EXT members to a non-struct leaf.
func Recompute(p *layout.Program, set Set) (Set, error) {
	out := set.Clone()
	for i := range out {
		f := &out[i]
		kof := p.KOF(f.OpsOffset)
		if kof == nil {
			return nil, errors.Corrupt(errors.PhaseDeserialize, "key %q: offset %d is not a KOF", f.Name, f.OpsOffset)
		}
		ids, err := walkPath(p, kof.Path)
		if err != nil {
			return nil, errors.New(errors.PhaseDeserialize, errors.KindCorrupt).
				Path(f.Segments()...).
				Cause(err).
				Detail("key offsets").
				Build()
		}
		if len(ids) != len(f.Segments()) {
			return nil, errors.Corrupt(errors.PhaseDeserialize, "key %q has %d levels, offsets have %d", f.Name, len(f.Segments()), len(ids))
		}
		f.IDPath = ids
	}

	slices.SortStableFunc(out, func(a, b Field) int { return a.Index - b.Index })
	for i := range out {
		if out[i].Index != i {
			return nil, errors.Corrupt(errors.PhaseDeserialize, "key indices are not a permutation of 0..%d", len(out)-1)
		}
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	pathOf := func(i int) []int { return p.KOF(out[i].OpsOffset).Path }
	slices.SortStableFunc(order, func(a, b int) int { return slices.Compare(pathOf(a), pathOf(b)) })
	for rank, i := range order {
		out[i].SampleIndex = rank
	}
	return out, nil
}

func walkPath(p *layout.Program, path []int) ([]uint32, error) {
	ids := make([]uint32, 0, len(path))
	start := 0
	for depth, pc := range path {
		if !slices.Contains(p.Members(start), pc) {
			return nil, errors.Corrupt(errors.PhaseDeserialize, "instruction %d is not a member of program %d", pc, start)
		}
		adr := p.ADR(pc)
		last := depth == len(path)-1
		if last == (adr.Type == layout.TypeEXT) {
			return nil, errors.Corrupt(errors.PhaseDeserialize, "instruction %d (%s) cannot be at key level %d", pc, adr.Type, depth)
		}
		ids = append(ids, adr.ID)
		start = adr.Jump
	}
	return ids, nil
}
