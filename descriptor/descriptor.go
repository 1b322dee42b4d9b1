package descriptor

import (
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/layout"
)

// Flags is the descriptor flag set.
type Flags uint32

const (
	FlagFixedKey Flags = 1 << iota
	FlagFixedKeyXCDR2
	FlagNoOptimize
	FlagDisableTypecheck
	FlagXCDR2
	FlagContainsOptional

	flagsMask = FlagFixedKey | FlagFixedKeyXCDR2 | FlagNoOptimize | FlagDisableTypecheck | FlagXCDR2 | FlagContainsOptional
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Descriptor is the immutable description of a topic type.
type Descriptor struct {
	TypeName      string
	Size          uint32
	Align         uint32
	Flags         Flags
	Extensibility idl.Extensibility
	Program       *layout.Program
	Keys          keys.Set
	KeySize       keys.Sizes
}

// EncodingVersion is the version samples of this type are encoded with.
func (d *Descriptor) EncodingVersion() layout.EncodingVersion {
	if d.Flags.Has(FlagXCDR2) {
		return layout.XCDR2
	}
	return layout.XCDR1
}

// FixedKey reports whether the key fits the keyhash under the descriptor's
// encoding version.
func (d *Descriptor) FixedKey() bool {
	if d.EncodingVersion() == layout.XCDR2 {
		return d.Flags.Has(FlagFixedKeyXCDR2)
	}
	return d.Flags.Has(FlagFixedKey)
}

// Keyless reports whether the type has no key fields.
func (d *Descriptor) Keyless() bool {
	return len(d.Keys) == 0
}

// Key returns the key field with the given dotted name.
func (d *Descriptor) Key(name string) (keys.Field, bool) {
	for _, f := range d.Keys {
		if f.Name == name {
			return f, true
		}
	}
	return keys.Field{}, false
}
