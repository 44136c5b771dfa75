package vkmem

import (
	"unsafe"

	"github.com/UditDey/nuke3d/memutils/metadata"
	"github.com/UditDey/nuke3d/vkmem/vulkan"
)

// Block is the handle returned for one successful allocation: a span of a
// backing device memory allocation, plus enough bookkeeping to route a later
// Allocator.Free back to the exact arena it came from.
//
// A Block is created exactly once and must be freed exactly once. Free
// consumes the Block; using it afterward is undefined by contract.
type Block struct {
	memory vulkan.DeviceMemory

	// The full span consumed from the arena, including alignment padding
	region metadata.Region
	// The aligned offset granted to the caller
	offset int
	// The requested size, excluding padding
	size int

	ptr unsafe.Pointer

	kind       MemoryKind
	arenaIndex int
}

// Memory returns the backing device memory handle this block was carved out
// of, for binding buffers and images. The block does not own the handle; it
// stays valid until the Allocator is destroyed.
func (b Block) Memory() vulkan.DeviceMemory {
	return b.memory
}

// Offset returns the byte offset of the block within its backing allocation.
// It satisfies the alignment the block was requested with.
func (b Block) Offset() int {
	return b.offset
}

// Size returns the usable size of the block in bytes, as requested. Alignment
// padding consumed on the block's behalf is not included.
func (b Block) Size() int {
	return b.size
}

// MappedPtr returns a host pointer to the start of the block, or nil for
// blocks in unmapped (device-local) memory.
func (b Block) MappedPtr() unsafe.Pointer {
	return b.ptr
}

// Kind returns the memory kind the block was allocated from.
func (b Block) Kind() MemoryKind {
	return b.kind
}
