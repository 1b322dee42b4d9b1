package descriptor

import (
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/internal/wire"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/layout"
)

// MarshalBinary encodes the descriptor in little-endian byte order.
func (d *Descriptor) MarshalBinary() ([]byte, error) {
	if d.Program == nil {
		return nil, errors.NilPointer(errors.PhaseSerialize, []string{d.TypeName}, "layout program")
	}
	w := wire.NewWriter()
	w.WriteString(d.TypeName)
	w.WriteU32(d.Size)
	w.WriteU32(d.Align)
	w.WriteU32(uint32(d.Flags))
	w.WriteU32(uint32(d.Extensibility))
	d.writeKeys(w)
	w.WriteWords(d.Program.Encode())
	return w.Bytes(), nil
}

func (d *Descriptor) writeKeys(w *wire.Writer) {
	w.WriteU32(uint32(len(d.Keys)))
	for _, k := range d.Keys {
		w.WriteString(k.Name)
		w.WriteU32(uint32(k.OpsOffset))
		w.WriteU32(uint32(k.Index))
	}
}

// KeyBytes encodes only the key part of the binary form.
func (d *Descriptor) KeyBytes() []byte {
	w := wire.NewWriter()
	d.writeKeys(w)
	return w.Bytes()
}

// OpsBytes encodes only the layout program.
func (d *Descriptor) OpsBytes() []byte {
	w := wire.NewWriter()
	w.WriteWords(d.Program.Encode())
	return w.Bytes()
}

// Unmarshal decodes a descriptor produced by MarshalBinary.
func Unmarshal(data []byte) (*Descriptor, error) {
	r := wire.NewReader(data)
	d := &Descriptor{}
	var err error

	if d.TypeName, err = r.ReadString("type name"); err != nil {
		return nil, err
	}
	if d.TypeName == "" {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "empty type name")
	}
	if d.Size, err = r.ReadU32("size"); err != nil {
		return nil, err
	}
	if d.Align, err = r.ReadU32("alignment"); err != nil {
		return nil, err
	}
	if d.Align == 0 || d.Align > 8 || d.Align&(d.Align-1) != 0 {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "alignment %d", d.Align)
	}
	flags, err := r.ReadU32("flags")
	if err != nil {
		return nil, err
	}
	d.Flags = Flags(flags)
	if d.Flags&^flagsMask != 0 {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "unknown flags %#x", uint32(d.Flags&^flagsMask))
	}
	ext, err := r.ReadU32("extensibility")
	if err != nil {
		return nil, err
	}
	if ext > uint32(idl.Mutable) {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "extensibility %d", ext)
	}
	d.Extensibility = idl.Extensibility(ext)

	// A key is at least an empty name plus two words.
	nkeys, err := r.ReadCount("key count", 12)
	if err != nil {
		return nil, err
	}
	d.Keys = make(keys.Set, nkeys)
	for i := range d.Keys {
		k := &d.Keys[i]
		if k.Name, err = r.ReadString("key name"); err != nil {
			return nil, err
		}
		off, err := r.ReadU32("key offset")
		if err != nil {
			return nil, err
		}
		idx, err := r.ReadU32("key index")
		if err != nil {
			return nil, err
		}
		k.OpsOffset, k.Index = int(off), int(idx)
	}

	words, err := r.ReadWords("layout program")
	if err != nil {
		return nil, err
	}
	if err := r.ExpectEOF("descriptor"); err != nil {
		return nil, err
	}
	if d.Program, err = layout.Decode(words); err != nil {
		return nil, err
	}
	if err := d.checkHeader(); err != nil {
		return nil, err
	}
	if d.Keys, err = keys.Recompute(d.Program, d.Keys); err != nil {
		return nil, err
	}
	d.KeySize = keys.ComputeSizes(d.Program, d.Keys)
	if got, want := d.Flags&(FlagFixedKey|FlagFixedKeyXCDR2), d.keyFlags(); got != want {
		return nil, errors.Corrupt(errors.PhaseDeserialize, "fixed key flags %#x do not match key layout %#x", uint32(got), uint32(want))
	}
	return d, nil
}

func (d *Descriptor) checkHeader() error {
	hdr := d.Program.Header(0)
	var want layout.Op
	switch d.Extensibility {
	case idl.Appendable:
		want = layout.DLC{}
	case idl.Mutable:
		want = layout.PLC{}
	}
	if hdr != want {
		return errors.Corrupt(errors.PhaseDeserialize, "%s type with program header %v", d.Extensibility, hdr)
	}
	return nil
}
