package cdr

import (
	"sync"

	ddscore "github.com/wippyai/dds-core"
)

// block is one heap block handed out while decoding a sample.
type block struct {
	ptr, size, align uint32
}

// allocations records the blocks a decode created so a failed decode can
// return them all.
type allocations struct {
	blocks []block
}

var allocationsPool = sync.Pool{
	New: func() any {
		return &allocations{blocks: make([]block, 0, 8)}
	},
}

const maxPooledBlocks = 128

func newAllocations() *allocations {
	return allocationsPool.Get().(*allocations)
}

// release returns the list to the pool; the list is invalid afterwards.
func (al *allocations) release() {
	if cap(al.blocks) > maxPooledBlocks {
		return
	}
	al.blocks = al.blocks[:0]
	allocationsPool.Put(al)
}

func (al *allocations) add(ptr, size, align uint32) {
	al.blocks = append(al.blocks, block{ptr: ptr, size: size, align: align})
}

// free returns every recorded block, newest first.
func (al *allocations) free(a ddscore.Allocator) {
	for i := len(al.blocks) - 1; i >= 0; i-- {
		if b := al.blocks[i]; b.ptr != 0 {
			a.Free(b.ptr, b.size, b.align)
		}
	}
	al.blocks = al.blocks[:0]
}
