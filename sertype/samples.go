package sertype

import (
	"fmt"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/cdr"
	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
)

// FreeOp selects what FreeSamples releases.
type FreeOp uint8

const (
	freeKeyBit FreeOp = 1 << iota
	freeContentsBit
	freeAllBit

	// FreeKey releases the samples' heap blocks, like FreeContents.
	FreeKey = freeKeyBit
	// FreeContents releases every heap block the samples own.
	FreeContents = freeKeyBit | freeContentsBit
	// FreeAll also releases the sample array.
	FreeAll = freeKeyBit | freeContentsBit | freeAllBit
)

func (op FreeOp) String() string {
	switch op {
	case FreeKey:
		return "key"
	case FreeContents:
		return "contents"
	case FreeAll:
		return "all"
	}
	return fmt.Sprintf("FreeOp(%d)", uint8(op))
}

// arraySize is the byte size of count samples.
func (t *Default) arraySize(count int) (uint32, error) {
	if count < 0 || count > abi.MaxSeqLength {
		return 0, errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("sample count %d", count))
	}
	size, ok := abi.SafeMulU32(t.desc.Size, uint32(count))
	if !ok || size > abi.MaxAlloc {
		return 0, errors.Overflow(errors.PhaseRuntime, nil, count, "sample array size")
	}
	return size, nil
}

// ZeroSamples clears count contiguous samples starting at addr.
func (t *Default) ZeroSamples(mem ddscore.Memory, addr uint32, count int) error {
	size, err := t.arraySize(count)
	if err != nil || size == 0 {
		return err
	}
	if err := mem.Write(addr, make([]byte, size)); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "zero samples")
	}
	return nil
}

// ReallocSamples resizes a sample array of oldCount samples at old to count
// samples, zeroing the added samples, and returns the address of each
// sample. An old address of 0 allocates a new array.
func (t *Default) ReallocSamples(mem ddscore.Memory, alloc ddscore.Allocator, old uint32, oldCount, count int) ([]uint32, error) {
	oldSize, err := t.arraySize(oldCount)
	if err != nil {
		return nil, err
	}
	size, err := t.arraySize(count)
	if err != nil {
		return nil, err
	}

	addr := old
	if count != oldCount || old == 0 {
		addr = 0
		if size > 0 {
			if addr, err = alloc.Alloc(size, t.desc.Align); err != nil {
				return nil, errors.New(errors.PhaseRuntime, errors.KindAllocation).
					TypeName(t.Name()).
					Cause(err).
					Detail("allocate %d samples", count).
					Build()
			}
		}
		if keep := min(oldSize, size); keep > 0 && old != 0 {
			raw, err := mem.Read(old, keep)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "copy samples")
			}
			if err := mem.Write(addr, append([]byte(nil), raw...)); err != nil {
				return nil, errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "copy samples")
			}
		}
		if old != 0 && oldSize > 0 {
			alloc.Free(old, oldSize, t.desc.Align)
		}
	}

	start := min(oldCount, count)
	if old == 0 {
		start = 0
	}
	ptrs := make([]uint32, count)
	for i := range ptrs {
		ptrs[i] = addr + uint32(i)*t.desc.Size
	}
	if count > start {
		if err := t.ZeroSamples(mem, ptrs[start], count-start); err != nil {
			return nil, err
		}
	}
	return ptrs, nil
}

// FreeSamples releases the heap contents of the contiguous samples at ptrs
// and, for FreeAll, the array itself. Heap members are only walked for types
// that own heap blocks.
func (t *Default) FreeSamples(mem ddscore.Memory, alloc ddscore.Allocator, ptrs []uint32, op FreeOp) error {
	if len(ptrs) == 0 {
		return nil
	}
	for i, p := range ptrs {
		if p != ptrs[0]+uint32(i)*t.desc.Size {
			return errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("sample %d at %d is not contiguous with %d", i, p, ptrs[0]))
		}
	}
	if t.desc.Flags.Has(descriptor.FlagNoOptimize) {
		for _, p := range ptrs {
			if err := t.codec.FreeContents(mem, alloc, p); err != nil {
				return err
			}
		}
	}
	if op&freeAllBit != 0 {
		size, err := t.arraySize(len(ptrs))
		if err != nil {
			return err
		}
		if size > 0 {
			alloc.Free(ptrs[0], size, t.desc.Align)
		}
	}
	return nil
}

// GetSerializedSize returns the body length of the sample, excluding the
// encapsulation header.
func (t *Default) GetSerializedSize(mem ddscore.Memory, sample uint32) (int, error) {
	return t.codec.Size(mem, sample)
}

// SerializeInto writes the sample body into dst, which must hold at least
// GetSerializedSize bytes.
func (t *Default) SerializeInto(mem ddscore.Memory, sample uint32, dst []byte) (int, error) {
	return t.codec.SerializeInto(mem, sample, dst)
}

func (t *Default) Serialize(mem ddscore.Memory, sample uint32) ([]byte, error) {
	return t.codec.Serialize(mem, sample)
}

func (t *Default) Deserialize(mem ddscore.Memory, alloc ddscore.Allocator, sample uint32, data []byte) error {
	return t.codec.Deserialize(mem, alloc, sample, data)
}

func (t *Default) KeyHash(mem ddscore.Memory, sample uint32) (cdr.KeyHash, error) {
	return t.codec.KeyHash(mem, sample)
}
