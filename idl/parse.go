package idl

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/wippyai/dds-core/errors"
	"gopkg.in/yaml.v3"
)

type document struct {
	Types    []typeDecl    `yaml:"types"`
	Keylist  []keylistDecl `yaml:"keylist"`
	Keylists bool          `yaml:"keylists"`
}

type typeDecl struct {
	Struct        string       `yaml:"struct"`
	Enum          string       `yaml:"enum"`
	Base          string       `yaml:"base"`
	Extensibility string       `yaml:"extensibility"`
	AutoID        string       `yaml:"autoid"`
	Enumerators   []string     `yaml:"enumerators"`
	Members       []memberDecl `yaml:"members"`
	Nested        bool         `yaml:"nested"`
}

type memberDecl struct {
	ID             *uint32 `yaml:"id"`
	Name           string  `yaml:"name"`
	Type           string  `yaml:"type"`
	Key            bool    `yaml:"key"`
	Optional       bool    `yaml:"optional"`
	MustUnderstand bool    `yaml:"must_understand"`
}

type keylistDecl struct {
	Type    string   `yaml:"type"`
	Members []string `yaml:"members"`
}

// Parse reads a compilation unit from a YAML document.
func Parse(data []byte) (*Unit, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a compilation unit from a YAML stream.
func Decode(r io.Reader) (*Unit, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Load("decode type tree", err)
	}
	return doc.unit()
}

func (doc *document) unit() (*Unit, error) {
	unit := &Unit{KeylistMode: doc.Keylists}
	named := make(map[string]Type, len(doc.Types))

	// Declare every name first so members may reference types declared later.
	for i := range doc.Types {
		decl := &doc.Types[i]
		var t Type
		switch {
		case decl.Struct != "" && decl.Enum != "":
			return nil, loadError(decl.Struct, "declaration is both struct and enum")
		case decl.Struct != "":
			t = &Struct{Name: decl.Struct, Nested: decl.Nested}
		case decl.Enum != "":
			if len(decl.Enumerators) == 0 {
				return nil, loadError(decl.Enum, "enum without enumerators")
			}
			t = &Enum{Name: decl.Enum, Enumerators: decl.Enumerators}
		default:
			return nil, errors.InvalidInput(errors.PhaseLoad, "type declaration without struct or enum name")
		}
		if _, dup := named[t.TypeName()]; dup {
			return nil, loadError(t.TypeName(), "duplicate type name")
		}
		named[t.TypeName()] = t
		unit.Types = append(unit.Types, t)
	}

	resolve := func(name string) Type { return named[name] }

	for i := range doc.Types {
		decl := &doc.Types[i]
		if decl.Struct == "" {
			continue
		}
		s := named[decl.Struct].(*Struct)
		if err := decl.fill(s, named, resolve); err != nil {
			return nil, err
		}
	}

	for _, kl := range doc.Keylist {
		if _, ok := named[kl.Type].(*Struct); !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "keylist type", kl.Type)
		}
		if unit.Keylist(kl.Type) != nil {
			return nil, loadError(kl.Type, "duplicate keylist")
		}
		unit.Keylists = append(unit.Keylists, Keylist{Type: kl.Type, Members: kl.Members})
	}
	return unit, nil
}

func (decl *typeDecl) fill(s *Struct, named map[string]Type, resolve func(string) Type) error {
	if decl.Extensibility != "" {
		ext, ok := ParseExtensibility(decl.Extensibility)
		if !ok {
			return loadError(s.Name, "unknown extensibility "+strconv.Quote(decl.Extensibility))
		}
		s.Extensibility = ext
	}
	switch strings.ToLower(decl.AutoID) {
	case "", "sequential":
		s.AutoID = AutoIDSequential
	case "hash":
		s.AutoID = AutoIDHash
	default:
		return loadError(s.Name, "unknown autoid "+strconv.Quote(decl.AutoID))
	}
	if decl.Base != "" {
		base, ok := named[decl.Base].(*Struct)
		if !ok {
			return errors.NotFound(errors.PhaseLoad, "base struct", decl.Base)
		}
		s.Base = base
	}
	for _, md := range decl.Members {
		if md.Name == "" {
			return loadError(s.Name, "member without name")
		}
		t, err := ParseType(md.Type, resolve)
		if err != nil {
			return err
		}
		m := &Member{
			Name:           md.Name,
			Type:           t,
			Key:            md.Key,
			Optional:       md.Optional,
			MustUnderstand: md.MustUnderstand,
		}
		if md.ID != nil {
			m.ID, m.HasID = *md.ID, true
		}
		s.Members = append(s.Members, m)
	}
	return nil
}

var primitiveAliases = map[string]PrimitiveKind{
	"boolean":            Bool,
	"bool":               Bool,
	"char":               Char,
	"octet":              Octet,
	"int8":               Int8,
	"uint8":              UInt8,
	"short":              Int16,
	"int16":              Int16,
	"unsigned short":     UInt16,
	"uint16":             UInt16,
	"long":               Int32,
	"int32":              Int32,
	"unsigned long":      UInt32,
	"uint32":             UInt32,
	"long long":          Int64,
	"int64":              Int64,
	"unsigned long long": UInt64,
	"uint64":             UInt64,
	"float":              Float32,
	"double":             Float64,
}

// ParseType parses an IDL type expression such as "long", "string<8>",
// "sequence<inner, 4>" or "short[2][3]". Named types are looked up through
// resolve.
func ParseType(expr string, resolve func(string) Type) (Type, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty type expression")
	}

	var dims []uint32
	for strings.HasSuffix(expr, "]") {
		open := strings.LastIndexByte(expr, '[')
		if open < 0 {
			return nil, typeExprError(expr, "unbalanced brackets")
		}
		n, err := parseBound(expr[open+1 : len(expr)-1])
		if err != nil {
			return nil, typeExprError(expr, err.Error())
		}
		dims = append([]uint32{n}, dims...)
		expr = strings.TrimSpace(expr[:open])
	}
	if len(dims) > 0 {
		elem, err := ParseType(expr, resolve)
		if err != nil {
			return nil, err
		}
		return &Array{Elem: elem, Dims: dims}, nil
	}

	if inner, ok := angled(expr, "sequence"); ok {
		elemExpr, bound := inner, uint32(0)
		if comma := topLevelComma(inner); comma >= 0 {
			n, err := parseBound(inner[comma+1:])
			if err != nil {
				return nil, typeExprError(expr, err.Error())
			}
			elemExpr, bound = inner[:comma], n
		}
		elem, err := ParseType(elemExpr, resolve)
		if err != nil {
			return nil, err
		}
		return &Sequence{Elem: elem, Bound: bound}, nil
	}

	if inner, ok := angled(expr, "string"); ok {
		n, err := parseBound(inner)
		if err != nil {
			return nil, typeExprError(expr, err.Error())
		}
		return String{Bound: n}, nil
	}
	if expr == "string" {
		return String{}, nil
	}

	if kind, ok := primitiveAliases[expr]; ok {
		return Primitive{Kind: kind}, nil
	}
	if resolve != nil {
		if t := resolve(expr); t != nil {
			return t, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "type", expr)
}

func angled(expr, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(expr, keyword)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

func topLevelComma(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '>':
			depth++
		case '<':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseBound(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, strconv.ErrRange
	}
	return uint32(n), nil
}

func loadError(typeName, detail string) *errors.Error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).TypeName(typeName).Detail(detail).Build()
}

func typeExprError(expr, detail string) *errors.Error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).Value(expr).Detail("type %q: %s", expr, detail).Build()
}
