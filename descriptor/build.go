package descriptor

import (
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/layout"
)

type options struct {
	mode             *keys.Mode
	keylists         []idl.Keylist
	version          layout.EncodingVersion
	disableTypecheck bool
}

// Option configures Build.
type Option func(*options)

// WithKeyMode overrides the key discovery mode of the compilation unit.
func WithKeyMode(m keys.Mode) Option {
	return func(o *options) { o.mode = &m }
}

// WithKeylists supplies keylists for BuildStruct.
func WithKeylists(lists ...idl.Keylist) Option {
	return func(o *options) { o.keylists = append(o.keylists, lists...) }
}

// WithEncodingVersion forces the sample encoding version. By default XCDR2
// is used when the type has appendable, mutable or optional members.
func WithEncodingVersion(v layout.EncodingVersion) Option {
	return func(o *options) { o.version = v }
}

// WithDisableTypecheck marks the type as accepting samples of any writer type.
func WithDisableTypecheck() Option {
	return func(o *options) { o.disableTypecheck = true }
}

// Build describes the named topic type of a compilation unit, taking the
// key mode and keylists from the unit.
func Build(unit *idl.Unit, typeName string, opts ...Option) (*Descriptor, error) {
	if unit == nil {
		return nil, errors.NilPointer(errors.PhaseBuild, nil, "compilation unit")
	}
	topic := unit.Struct(typeName)
	if topic == nil {
		return nil, errors.NotFound(errors.PhaseBuild, "topic type", typeName)
	}
	mode := keys.ModeAnnotations
	if unit.KeylistMode {
		mode = keys.ModeKeylist
	}
	base := []Option{WithKeyMode(mode), WithKeylists(unit.Keylists...)}
	return BuildStruct(topic, append(base, opts...)...)
}

// BuildStruct describes a topic type. Without WithKeyMode keys come from
// annotations.
func BuildStruct(topic *idl.Struct, opts ...Option) (*Descriptor, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	mode := keys.ModeAnnotations
	if o.mode != nil {
		mode = *o.mode
	}

	compiled, err := layout.Compile(topic)
	if err != nil {
		return nil, err
	}
	set, err := keys.Build(topic, compiled, keys.Options{Mode: mode, Keylists: o.keylists})
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		TypeName:      topic.Name,
		Size:          compiled.Size,
		Align:         compiled.Align,
		Extensibility: topic.Extensibility,
		Program:       compiled.Program,
		Keys:          set,
		KeySize:       keys.ComputeSizes(compiled.Program, set),
	}

	features := scan(compiled.Program)
	version := o.version
	switch version {
	case 0:
		version = layout.XCDR1
		if features.extensible || features.optional {
			version = layout.XCDR2
		}
	case layout.XCDR1, layout.XCDR2:
	default:
		return nil, errors.InvalidInput(errors.PhaseBuild, "unknown encoding version")
	}

	d.Flags = d.keyFlags()
	if version == layout.XCDR2 {
		d.Flags |= FlagXCDR2
	}
	if features.heap {
		d.Flags |= FlagNoOptimize
	}
	if features.optional {
		d.Flags |= FlagContainsOptional
	}
	if o.disableTypecheck {
		d.Flags |= FlagDisableTypecheck
	}
	return d, nil
}

func (d *Descriptor) keyFlags() Flags {
	var f Flags
	if d.KeySize.XCDR1.Fixed {
		f |= FlagFixedKey
	}
	if d.KeySize.XCDR2.Fixed {
		f |= FlagFixedKeyXCDR2
	}
	return f
}

type features struct {
	extensible bool // appendable or mutable struct
	optional   bool
	heap       bool // strings, sequences or optional members
}

func scan(p *layout.Program) features {
	var f features
	for _, op := range p.Ops {
		switch o := op.(type) {
		case layout.DLC, layout.PLC:
			f.extensible = true
		case *layout.ADR:
			if o.Flags.Has(layout.FlagOptional) {
				f.optional = true
				f.heap = true
			}
			switch o.Type {
			case layout.TypeSTR, layout.TypeSEQ, layout.TypeBSQ:
				f.heap = true
			}
			if o.Elem == layout.TypeSTR {
				f.heap = true
			}
		}
	}
	return f
}
