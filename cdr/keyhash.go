package cdr

import (
	"crypto/md5"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/layout"
)

// KeyHashSize is the width of an instance key hash.
const KeyHashSize = 16

// KeyHash identifies an instance.
type KeyHash [KeyHashSize]byte

// keyField resolves the leaf ADR of a key field and its native address in
// the sample at addr.
func keyField(p *layout.Program, f keys.Field, addr uint32) (*layout.ADR, uint32, error) {
	kof := p.KOF(f.OpsOffset)
	if kof == nil || len(kof.Path) == 0 {
		return nil, 0, errors.Corrupt(errors.PhaseRuntime, "key %s has no key offsets at %d", f.Name, f.OpsOffset)
	}
	var leaf *layout.ADR
	for _, pc := range kof.Path {
		leaf = p.ADR(pc)
		if leaf == nil {
			return nil, 0, errors.Corrupt(errors.PhaseRuntime, "key %s refers to %d", f.Name, pc)
		}
		addr += leaf.Offset
	}
	return leaf, addr, nil
}

// writeKey writes the values of all key fields in key order.
func writeKey(e *encoder, set keys.Set, addr uint32) error {
	for _, f := range set {
		adr, at, err := keyField(e.p, f, addr)
		if err != nil {
			return err
		}
		if err := e.value(adr, at); err != nil {
			return errors.New(errors.PhaseSerialize, errors.KindInvalidData).
				Path(f.Segments()...).
				Cause(err).
				Detail("key field").
				Build()
		}
	}
	return nil
}

// keyHash computes the key hash of the sample at addr. fixed selects
// zero-padding over the MD5 digest.
func keyHash(p *layout.Program, set keys.Set, fixed bool, mem ddscore.Memory, addr uint32) (KeyHash, error) {
	var h KeyHash
	if len(set) == 0 {
		return h, nil
	}
	e := &encoder{p: p, mem: mem, w: NewWriter(layout.XCDR2, true), v: layout.XCDR2}
	if err := writeKey(e, set, addr); err != nil {
		return h, err
	}
	key := e.w.Bytes()
	if fixed && len(key) <= KeyHashSize {
		copy(h[:], key)
		return h, nil
	}
	return md5.Sum(key), nil
}
