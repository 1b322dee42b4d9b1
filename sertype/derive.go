package sertype

import (
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/wippyai/dds-core/cdr"
	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/layout"
)

// DeriveOption adjusts a derived handle.
type DeriveOption func(*descriptor.Descriptor) error

// WithEncodingVersion makes the derived handle encode samples with v.
func WithEncodingVersion(v layout.EncodingVersion) DeriveOption {
	return func(d *descriptor.Descriptor) error {
		switch v {
		case layout.XCDR1:
			d.Flags &^= descriptor.FlagXCDR2
		case layout.XCDR2:
			d.Flags |= descriptor.FlagXCDR2
		default:
			return errors.InvalidInput(errors.PhaseRuntime, "unknown encoding version "+v.String())
		}
		return nil
	}
}

// Derive returns a new handle over a copy of t's descriptor. The new handle
// holds one reference for the caller and one reference on t until it is
// freed.
func (t *Default) Derive(opts ...DeriveOption) (Type, error) {
	var desc *descriptor.Descriptor
	if err := deepcopy.Copy(&desc, &t.desc); err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "copy descriptor")
	}
	for _, opt := range opts {
		if err := opt(desc); err != nil {
			return nil, err
		}
	}
	if !t.tryRef() {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "derive from freed type "+t.Name())
	}
	d := &Default{desc: desc, codec: cdr.New(desc), base: t}
	d.refc.Store(1)
	Logger().Debug("sertype derived",
		zap.String("type", t.Name()),
		zap.Int32("base_refc", t.RefCount()),
		zap.Stringer("version", d.EncodingVersion()))
	return d, nil
}
