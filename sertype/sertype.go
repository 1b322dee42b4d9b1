package sertype

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/cdr"
	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/layout"
)

// TypeIDSize is the width of a type identifier.
const TypeIDSize = 16

// TypeID identifies a type across processes.
type TypeID [TypeIDSize]byte

func (id TypeID) String() string { return hex.EncodeToString(id[:]) }

// Type is the set of operations the middleware performs on a topic type.
type Type interface {
	Name() string
	Descriptor() *descriptor.Descriptor
	Format() cdr.Format
	EncodingVersion() layout.EncodingVersion
	OptimizedSize() uint32

	Equal(other Type) bool
	TypeID() TypeID
	Hash() uint32
	MarshalDescriptor() ([]byte, error)
	AssignableFrom(producer Type) bool

	Ref() Type
	Unref()
	Derive(opts ...DeriveOption) (Type, error)

	ZeroSamples(mem ddscore.Memory, addr uint32, count int) error
	ReallocSamples(mem ddscore.Memory, alloc ddscore.Allocator, old uint32, oldCount, count int) ([]uint32, error)
	FreeSamples(mem ddscore.Memory, alloc ddscore.Allocator, ptrs []uint32, op FreeOp) error

	GetSerializedSize(mem ddscore.Memory, sample uint32) (int, error)
	SerializeInto(mem ddscore.Memory, sample uint32, dst []byte) (int, error)
	Serialize(mem ddscore.Memory, sample uint32) ([]byte, error)
	Deserialize(mem ddscore.Memory, alloc ddscore.Allocator, sample uint32, data []byte) error
	KeyHash(mem ddscore.Memory, sample uint32) (cdr.KeyHash, error)
}

// Default is the descriptor-driven Type.
type Default struct {
	desc  *descriptor.Descriptor
	codec *cdr.Codec
	base  *Default

	refc  atomic.Int32
	freed atomic.Bool

	idOnce sync.Once
	id     TypeID

	// registry is set while the handle is interned.
	registry atomic.Pointer[Registry]
}

// New wraps a descriptor in a handle holding one reference. The handle
// takes ownership of the descriptor.
func New(d *descriptor.Descriptor) *Default {
	t := &Default{desc: d, codec: cdr.New(d)}
	t.refc.Store(1)
	return t
}

// UnmarshalDescriptor builds a handle from the output of MarshalDescriptor.
func UnmarshalDescriptor(data []byte) (*Default, error) {
	d, err := descriptor.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return New(d), nil
}

func (t *Default) Name() string                            { return t.desc.TypeName }
func (t *Default) Descriptor() *descriptor.Descriptor      { return t.desc }
func (t *Default) Format() cdr.Format                      { return t.codec.Format() }
func (t *Default) EncodingVersion() layout.EncodingVersion { return t.codec.Version() }
func (t *Default) OptimizedSize() uint32                   { return t.codec.OptimizedSize() }

// Base returns the handle t was derived from, or nil.
func (t *Default) Base() *Default { return t.base }

// Equal compares the encoding format, native shape, flags, extensibility,
// keys and layout program. Type names are not compared.
func (t *Default) Equal(other Type) bool {
	o, ok := other.(*Default)
	if !ok {
		return false
	}
	if t == o {
		return true
	}
	a, b := t.desc, o.desc
	return t.Format() == o.Format() &&
		a.Size == b.Size &&
		a.Align == b.Align &&
		a.Flags == b.Flags &&
		a.Extensibility == b.Extensibility &&
		bytes.Equal(a.KeyBytes(), b.KeyBytes()) &&
		bytes.Equal(a.OpsBytes(), b.OpsBytes())
}

// TypeID is a BLAKE2b-128 digest of the type name and everything Equal
// compares.
func (t *Default) TypeID() TypeID {
	t.idOnce.Do(func() {
		h, err := blake2b.New(TypeIDSize, nil)
		if err != nil {
			panic(err)
		}
		d := t.desc
		var word [4]byte
		put := func(v uint32) {
			binary.LittleEndian.PutUint32(word[:], v)
			h.Write(word[:])
		}
		h.Write([]byte(d.TypeName))
		put(uint32(t.Format()))
		put(d.Size)
		put(d.Align)
		put(uint32(d.Flags))
		put(uint32(d.Extensibility))
		h.Write(d.KeyBytes())
		h.Write(d.OpsBytes())
		copy(t.id[:], h.Sum(nil))
	})
	return t.id
}

// Hash is the first word of the TypeID, for bucketing only.
func (t *Default) Hash() uint32 {
	id := t.TypeID()
	return binary.LittleEndian.Uint32(id[:4])
}

func (t *Default) MarshalDescriptor() ([]byte, error) {
	return t.desc.MarshalBinary()
}

// AssignableFrom reports whether samples of producer can be delivered to
// readers of t. Only identical types are assignable unless t disables the
// check.
func (t *Default) AssignableFrom(producer Type) bool {
	if t.desc.Flags.Has(descriptor.FlagDisableTypecheck) {
		return true
	}
	return t.TypeID() == producer.TypeID()
}

// Ref takes another reference.
func (t *Default) Ref() Type {
	t.refc.Add(1)
	return t
}

// tryRef takes a reference unless the handle is already being freed.
func (t *Default) tryRef() bool {
	for {
		n := t.refc.Load()
		if n <= 0 {
			return false
		}
		if t.refc.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// RefCount returns the current number of references.
func (t *Default) RefCount() int32 { return t.refc.Load() }

// Freed reports whether the last reference has been released.
func (t *Default) Freed() bool { return t.freed.Load() }

// Unref releases a reference and frees the handle on the last one.
func (t *Default) Unref() {
	n := t.refc.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 || !t.freed.CompareAndSwap(false, true) {
		Logger().Error("sertype released too often", zap.String("type", t.Name()), zap.Int32("refc", n))
		return
	}
	if r := t.registry.Load(); r != nil {
		r.remove(t)
	}
	Logger().Debug("sertype freed", zap.String("type", t.Name()), zap.Stringer("typeid", t.TypeID()))
	if t.base != nil {
		t.base.Unref()
	}
}

var _ Type = (*Default)(nil)
