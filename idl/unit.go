package idl

// Keylist declares the key fields of a type by dotted member path.
type Keylist struct {
	Type    string
	Members []string
}

// Unit is a compilation unit: the named types in declaration order plus the
// key discovery mode and keylists that apply to them.
type Unit struct {
	Types    []Type
	Keylists []Keylist
	// KeylistMode selects keylist-based key discovery for the whole unit.
	KeylistMode bool
}

// Lookup returns the named struct or enum.
func (u *Unit) Lookup(name string) Type {
	for _, t := range u.Types {
		if t.TypeName() == name {
			return t
		}
	}
	return nil
}

// Struct returns the named struct, or nil.
func (u *Unit) Struct(name string) *Struct {
	s, _ := u.Lookup(name).(*Struct)
	return s
}

// Keylist returns the keylist declared for typeName, or nil.
func (u *Unit) Keylist(typeName string) *Keylist {
	for i := range u.Keylists {
		if u.Keylists[i].Type == typeName {
			return &u.Keylists[i]
		}
	}
	return nil
}

// Topics returns the structs that are not marked @nested.
func (u *Unit) Topics() []*Struct {
	var out []*Struct
	for _, t := range u.Types {
		if s, ok := t.(*Struct); ok && !s.Nested {
			out = append(out, s)
		}
	}
	return out
}
