package memory

import (
	"github.com/tetratelabs/wazero/api"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/errors"
)

const pageSize = 1 << 16

// Wazero adapts a WebAssembly linear memory. Allocation starts at base and
// grows the memory a page at a time; the region below base belongs to the
// guest.
type Wazero struct {
	*Heap
	mem api.Memory
}

func NewWazero(mem api.Memory, base uint32) *Wazero {
	m := &Wazero{mem: mem}
	m.Heap = newHeap(m, base)
	return m
}

func (m *Wazero) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

func (m *Wazero) grow(end uint32) error {
	pages := (uint64(end) - uint64(m.Size()) + pageSize - 1) / pageSize
	if _, ok := m.mem.Grow(uint32(pages)); !ok {
		return errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("grow wasm memory by %d pages", pages).
			Build()
	}
	return nil
}

func outOfBounds(offset, length uint32) error {
	return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
		Value(offset).
		Detail("wasm memory access [%d, +%d)", offset, length).
		Build()
}

func (m *Wazero) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds(offset, length)
	}
	return data, nil
}

func (m *Wazero) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds(offset, uint32(len(data)))
	}
	return nil
}

func (m *Wazero) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds(offset, 1)
	}
	return v, nil
}

func (m *Wazero) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 2)
	}
	return v, nil
}

func (m *Wazero) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 4)
	}
	return v, nil
}

func (m *Wazero) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 8)
	}
	return v, nil
}

func (m *Wazero) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return outOfBounds(offset, 1)
	}
	return nil
}

func (m *Wazero) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return outOfBounds(offset, 2)
	}
	return nil
}

func (m *Wazero) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return outOfBounds(offset, 4)
	}
	return nil
}

func (m *Wazero) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfBounds(offset, 8)
	}
	return nil
}

var (
	_ ddscore.Memory      = (*Wazero)(nil)
	_ ddscore.MemorySizer = (*Wazero)(nil)
	_ ddscore.Allocator   = (*Wazero)(nil)
)
