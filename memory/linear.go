package memory

import (
	"encoding/binary"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
)

// Linear is an in-process memory that grows on allocation.
type Linear struct {
	*Heap
	data []byte
}

// NewLinear returns a Linear memory of the given initial size.
func NewLinear(size uint32) *Linear {
	m := &Linear{data: make([]byte, size)}
	m.Heap = newHeap(m, 8)
	return m
}

func (m *Linear) Size() uint32 { return uint32(len(m.data)) }

func (m *Linear) grow(end uint32) error {
	if end > abi.MaxAlloc {
		return errors.AllocationFailed(errors.PhaseRuntime, end, 1)
	}
	size := max(end, uint32(len(m.data))*2, 64)
	m.data = append(m.data, make([]byte, int(size)-len(m.data))...)
	return nil
}

func (m *Linear) bounds(offset, length uint32) error {
	end, ok := abi.SafeAddU32(offset, length)
	if !ok || end > uint32(len(m.data)) {
		return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Value(offset).
			Detail("access [%d, +%d) beyond %d bytes", offset, length, len(m.data)).
			Build()
	}
	return nil
}

// Read returns a view of the memory; it stays valid until the next
// allocation.
func (m *Linear) Read(offset, length uint32) ([]byte, error) {
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *Linear) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Linear) ReadU8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Linear) ReadU16(offset uint32) (uint16, error) {
	if err := m.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Linear) ReadU64(offset uint32) (uint64, error) {
	if err := m.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Linear) WriteU8(offset uint32, value uint8) error {
	if err := m.bounds(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Linear) WriteU16(offset uint32, value uint16) error {
	if err := m.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *Linear) WriteU32(offset uint32, value uint32) error {
	if err := m.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Linear) WriteU64(offset uint32, value uint64) error {
	if err := m.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

var (
	_ ddscore.Memory      = (*Linear)(nil)
	_ ddscore.MemorySizer = (*Linear)(nil)
	_ ddscore.Allocator   = (*Linear)(nil)
)
