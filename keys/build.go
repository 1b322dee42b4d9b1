package keys

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/layout"
)

// ParentName is the name segment of the embedded base level.
const ParentName = "parent"

// Options controls key discovery.
type Options struct {
	Mode Mode
	// Keylists are the keylists of the compilation unit. Any keylist is an
	// error in annotation mode.
	Keylists []idl.Keylist
}

type levelKey struct {
	member bool // base level sorts before members
	id     uint32
}

func compareLevel(a, b levelKey) int {
	if a.member != b.member {
		if a.member {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.id, b.id)
}

type candidate struct {
	names []string
	ids   []uint32
	path  []int
	order []levelKey
}

func (c candidate) extend(name string, id uint32, pc int, member bool) candidate {
	return candidate{
		names: append(slices.Clip(c.names), name),
		ids:   append(slices.Clip(c.ids), id),
		path:  append(slices.Clip(c.path), pc),
		order: append(slices.Clip(c.order), levelKey{member: member, id: id}),
	}
}

type builder struct {
	c       *layout.Compiled
	topic   *idl.Struct
	found   []candidate
	checked map[*idl.Struct]bool
}

// Build derives the key set of topic from its compiled layout and appends
// one KOF instruction per key to the program. Build either succeeds
// completely or leaves the program untouched.
func Build(topic *idl.Struct, c *layout.Compiled, opts Options) (Set, error) {
	if topic == nil || c == nil {
		return nil, errors.NilPointer(errors.PhaseBuild, nil, "topic layout")
	}
	b := &builder{c: c, topic: topic, checked: make(map[*idl.Struct]bool)}
	if err := b.check(topic); err != nil {
		return nil, err
	}

	switch opts.Mode {
	case ModeAnnotations:
		if len(opts.Keylists) > 0 {
			return nil, errors.MalformedAnnotation([]string{topic.Name}, "keylist %q given while keys come from annotations", opts.Keylists[0].Type)
		}
		if err := b.level(topic, candidate{}, false); err != nil {
			return nil, err
		}
	case ModeKeylist:
		if err := b.rejectAnnotations(); err != nil {
			return nil, err
		}
		kl, ok := lo.Find(opts.Keylists, func(k idl.Keylist) bool { return k.Type == topic.Name })
		if ok {
			if err := b.keylist(kl.Members); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.InvalidInput(errors.PhaseBuild, "unknown key mode")
	}

	return b.finish(), nil
}

// check validates one struct level: the base chain shares its
// extensibility and member ids are unique.
func (b *builder) check(s *idl.Struct) error {
	if b.checked[s] {
		return nil
	}
	b.checked[s] = true
	for t := s; t.Base != nil; t = t.Base {
		if t.Base.Extensibility != t.Extensibility {
			return errors.MalformedAnnotation([]string{t.Name},
				"%s type derives from %s base %s", t.Extensibility, t.Base.Extensibility, t.Base.Name)
		}
	}
	sl := b.c.Layout(s)
	if sl == nil {
		return errors.NotFound(errors.PhaseBuild, "compiled struct", s.Name)
	}
	seen := make(map[uint32]string, len(sl.Fields))
	for _, f := range sl.Fields {
		if prev, dup := seen[f.ID]; dup {
			return errors.MalformedAnnotation([]string{s.Name, f.Member.Name},
				"member id %d already used by %s", f.ID, prev)
		}
		seen[f.ID] = f.Member.Name
	}
	return nil
}

// hasKeys reports whether s or its base chain declares @key members.
func hasKeys(s *idl.Struct) bool {
	for _, t := range s.Chain() {
		if lo.SomeBy(t.Members, func(m *idl.Member) bool { return m.Key }) {
			return true
		}
	}
	return false
}

// level collects the keys of struct s reached through prefix. With all set,
// every non-optional member is a key.
func (b *builder) level(s *idl.Struct, prefix candidate, all bool) error {
	if err := b.check(s); err != nil {
		return err
	}
	sl := b.c.Layout(s)

	if sl.Parent != nil {
		pc, _ := b.c.ParentPC(s)
		if err := b.level(sl.Parent, prefix.extend(ParentName, 0, pc, false), all); err != nil {
			return err
		}
	}

	for _, f := range sl.Fields {
		m := f.Member
		if all {
			if m.Optional {
				continue
			}
		} else if !m.Key {
			continue
		}
		if m.Optional {
			return errors.MalformedAnnotation(append(slices.Clone(prefix.names), m.Name), "optional member cannot be a key")
		}
		if err := b.member(s, f, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) member(s *idl.Struct, f layout.Field, prefix candidate) error {
	pc, ok := b.c.MemberPC(s, f.Member)
	if !ok {
		return errors.NotFound(errors.PhaseBuild, "member instruction", s.Name+"."+f.Member.Name)
	}
	next := prefix.extend(f.Member.Name, f.ID, pc, true)
	if nested, ok := f.Member.Type.(*idl.Struct); ok {
		return b.level(nested, next, !hasKeys(nested))
	}
	b.found = append(b.found, next)
	return nil
}

// rejectAnnotations fails if any struct reachable from the topic carries @key.
func (b *builder) rejectAnnotations() error {
	seen := make(map[*idl.Struct]bool)
	var visitType func(t idl.Type) error
	var visit func(s *idl.Struct) error
	visit = func(s *idl.Struct) error {
		if seen[s] {
			return nil
		}
		seen[s] = true
		if s.Base != nil {
			if err := visit(s.Base); err != nil {
				return err
			}
		}
		for _, m := range s.Members {
			if m.Key {
				return errors.MalformedAnnotation([]string{s.Name, m.Name}, "@key annotation while keys come from keylists")
			}
			if err := visitType(m.Type); err != nil {
				return err
			}
		}
		return nil
	}
	visitType = func(t idl.Type) error {
		switch typ := t.(type) {
		case *idl.Struct:
			return visit(typ)
		case *idl.Sequence:
			return visitType(typ.Elem)
		case *idl.Array:
			return visitType(typ.Elem)
		}
		return nil
	}
	return visit(b.topic)
}

func (b *builder) keylist(paths []string) error {
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if seen[path] {
			return errors.MalformedAnnotation([]string{b.topic.Name, path}, "duplicate key %q in keylist", path)
		}
		seen[path] = true
		segs := strings.Split(path, ".")
		if lo.Contains(segs, "") {
			return errors.UnresolvedKeyPath(b.topic.Name, path, "empty path segment")
		}
		if err := b.resolve(b.topic, segs, path, candidate{}); err != nil {
			return err
		}
	}

	// Distinct paths may still name the same field, e.g. "a" and "parent.a".
	dups := lo.FindDuplicatesBy(b.found, func(c candidate) string { return strings.Join(c.names, ".") })
	if len(dups) > 0 {
		return errors.MalformedAnnotation(dups[0].names, "key listed more than once")
	}
	return nil
}

// resolve follows one keylist path through s. Members of a final or
// appendable base are found through the parent level.
func (b *builder) resolve(s *idl.Struct, segs []string, path string, prefix candidate) error {
	if err := b.check(s); err != nil {
		return err
	}
	sl := b.c.Layout(s)

	f, ok := lo.Find(sl.Fields, func(f layout.Field) bool { return f.Member.Name == segs[0] })
	if !ok {
		if sl.Parent != nil {
			pc, _ := b.c.ParentPC(s)
			next := prefix.extend(ParentName, 0, pc, false)
			if segs[0] == ParentName {
				if len(segs) == 1 {
					return b.level(sl.Parent, next, true)
				}
				return b.resolve(sl.Parent, segs[1:], path, next)
			}
			return b.resolve(sl.Parent, segs, path, next)
		}
		return errors.UnresolvedKeyPath(b.topic.Name, path, "no member "+segs[0]+" in "+s.Name)
	}
	if f.Member.Optional {
		return errors.MalformedAnnotation(append(slices.Clone(prefix.names), f.Member.Name), "optional member cannot be a key")
	}

	nested, isStruct := f.Member.Type.(*idl.Struct)
	if len(segs) == 1 {
		if isStruct {
			pc, _ := b.c.MemberPC(s, f.Member)
			return b.level(nested, prefix.extend(f.Member.Name, f.ID, pc, true), true)
		}
		return b.member(s, f, prefix)
	}
	if !isStruct {
		return errors.UnresolvedKeyPath(b.topic.Name, path, f.Member.Name+" is not a struct")
	}
	pc, _ := b.c.MemberPC(s, f.Member)
	return b.resolve(nested, segs[1:], path, prefix.extend(f.Member.Name, f.ID, pc, true))
}

func (b *builder) finish() Set {
	sample := slices.Clone(b.found)
	slices.SortStableFunc(sample, func(x, y candidate) int { return slices.Compare(x.path, y.path) })
	sampleIndex := make(map[string]int, len(sample))
	for i, c := range sample {
		sampleIndex[pathKey(c.path)] = i
	}

	ordered := slices.Clone(b.found)
	slices.SortStableFunc(ordered, func(x, y candidate) int {
		return slices.CompareFunc(x.order, y.order, compareLevel)
	})

	set := make(Set, len(ordered))
	for i, c := range ordered {
		set[i] = Field{
			Name:        strings.Join(c.names, "."),
			IDPath:      slices.Clone(c.ids),
			Index:       i,
			SampleIndex: sampleIndex[pathKey(c.path)],
			OpsOffset:   b.c.Program.AppendKOF(c.path),
		}
	}
	return set
}

func pathKey(path []int) string {
	return fmt.Sprint(path)
}
