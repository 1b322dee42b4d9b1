package memory

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
)

// Block is one allocation.
type Block struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Stats counts allocator calls.
type Stats struct {
	Allocs int
	Frees  int
}

// space is the storage a Heap allocates from.
type space interface {
	Size() uint32
	grow(end uint32) error
}

type blockKey struct {
	size, align uint32
}

// Heap is a bump allocator with exact-size reuse that accounts for every
// block. It is safe for concurrent use.
type Heap struct {
	mu     sync.Mutex
	space  space
	next   uint32
	live   map[uint32]Block
	reuse  map[blockKey][]uint32
	stats  Stats
	faults []error
}

func newHeap(s space, base uint32) *Heap {
	return &Heap{
		space: s,
		next:  max(base, 8),
		live:  make(map[uint32]Block),
		reuse: make(map[blockKey][]uint32),
	}
}

func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "zero-size allocation")
	}
	if align == 0 || align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("alignment %d", align))
	}
	if size > abi.MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := blockKey{size, align}
	if free := h.reuse[key]; len(free) > 0 {
		ptr := free[len(free)-1]
		h.reuse[key] = free[:len(free)-1]
		return h.track(Block{ptr, size, align}), nil
	}

	ptr := abi.AlignTo(h.next, align)
	end, ok := abi.SafeAddU32(ptr, size)
	if !ok {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
	}
	if end > h.space.Size() {
		if err := h.space.grow(end); err != nil {
			return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
				Cause(err).
				Detail("grow to %d bytes", end).
				Build()
		}
	}
	h.next = end
	return h.track(Block{ptr, size, align}), nil
}

func (h *Heap) track(b Block) uint32 {
	h.live[b.Ptr] = b
	h.stats.Allocs++
	return b.Ptr
}

// Free releases a block. Freeing an unknown block or passing a size or
// alignment other than the allocation's is recorded as a fault.
func (h *Heap) Free(ptr, size, align uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.Frees++
	b, ok := h.live[ptr]
	if !ok {
		h.faults = append(h.faults, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(ptr).
			Detail("free of unallocated block %d", ptr).
			Build())
		return
	}
	if b.Size != size || b.Align != align {
		h.faults = append(h.faults, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(ptr).
			Detail("free of block %d as %d/%d, allocated as %d/%d", ptr, size, align, b.Size, b.Align).
			Build())
	}
	delete(h.live, ptr)
	key := blockKey{b.Size, b.Align}
	h.reuse[key] = append(h.reuse[key], ptr)
}

// Live returns the outstanding blocks ordered by address.
func (h *Heap) Live() []Block {
	h.mu.Lock()
	defer h.mu.Unlock()
	blocks := lo.Values(h.live)
	slices.SortFunc(blocks, func(a, b Block) int { return cmp.Compare(a.Ptr, b.Ptr) })
	return blocks
}

func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Faults returns the invalid frees seen so far.
func (h *Heap) Faults() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.faults)
}

// Check reports the first fault, or a leak when blocks are still live.
func (h *Heap) Check() error {
	if faults := h.Faults(); len(faults) > 0 {
		return faults[0]
	}
	if live := h.Live(); len(live) > 0 {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Value(live).
			Detail("%d blocks leaked, first at %d (%d bytes)", len(live), live[0].Ptr, live[0].Size).
			Build()
	}
	return nil
}
