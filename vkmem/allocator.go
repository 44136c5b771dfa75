// Package vkmem is the GPU memory sub-allocator used by the nuke3d renderer.
// It sits between Vulkan's coarse-grained device memory allocation and the
// renderer's many small buffer and image backing requests, satisfying each
// request with a correctly aligned span of a larger backing allocation and
// reusing freed spans before ever creating new backing allocations.
//
// The allocator owns two pools, one of device-local memory and one of
// persistently-mapped host-visible memory, each bound at construction to
// exactly one memory type index.
//
// Every method is synchronous and performs no locking: the allocator expects
// exclusive access from the single thread that owns the surrounding Vulkan
// context. Callers needing multi-threaded access must serialize externally.
package vkmem

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"

	"github.com/UditDey/nuke3d/memutils"
	"github.com/UditDey/nuke3d/vkmem/vulkan"
)

// Allocator hands out aligned, non-overlapping spans of large backing device
// allocations. Create one with CreateAllocator and release every backing
// allocation with Destroy after all blocks have been freed.
type Allocator struct {
	logger       *slog.Logger
	deviceMemory *vulkan.DeviceMemoryProperties

	devicePool memoryPool
	hostPool   memoryPool

	destroyed bool
}

func (a *Allocator) pool(kind MemoryKind) *memoryPool {
	switch kind {
	case MemoryKindDevice:
		return &a.devicePool
	case MemoryKindHost:
		return &a.hostPool
	}

	panic(fmt.Sprintf("unknown memory kind: %d", kind))
}

// Alloc satisfies one memory requirement from the pool of the given kind.
//
// It fails with ErrIncompatibleMemoryType, without touching any pool state,
// when the requirement's memory type bits exclude the type index the pool is
// bound to. It fails with ErrAllocationFailed when no existing arena fits the
// request and the device refuses to create a new one.
func (a *Allocator) Alloc(requirements core1_0.MemoryRequirements, kind MemoryKind) (Block, error) {
	if a.destroyed {
		panic("attempting to allocate from a destroyed Allocator")
	}

	if requirements.Size < 1 {
		return Block{}, errors.Newf("requested allocation size %d is invalid", requirements.Size)
	}
	memutils.DebugCheckPow2(uint(requirements.Alignment), "requirements.Alignment")

	pool := a.pool(kind)
	if requirements.MemoryTypeBits&(1<<uint(pool.memoryTypeIndex)) == 0 {
		return Block{}, errors.Wrapf(ErrIncompatibleMemoryType,
			"allocation with memory type bits 0x%x cannot be placed in %s, which is bound to memory type index %d",
			requirements.MemoryTypeBits, kind, pool.memoryTypeIndex)
	}

	return pool.alloc(requirements.Size, uint(requirements.Alignment))
}

// Free returns a block's span to the arena it was allocated from. The block
// is consumed: freeing it twice or using it afterward is a contract
// violation.
func (a *Allocator) Free(block Block) {
	if a.destroyed {
		panic("attempting to free into a destroyed Allocator")
	}

	a.pool(block.kind).free(block)
}

// Destroy releases every backing allocation across both pools. It must be
// called exactly once, after every block allocated from this Allocator has
// been freed. Blocks still live at this point are logged and reported through
// the returned error, but their backing allocations are released regardless.
func (a *Allocator) Destroy() error {
	if a.destroyed {
		panic("Allocator.Destroy called more than once")
	}
	a.destroyed = true

	leakCount := a.devicePool.destroy() + a.hostPool.destroy()
	if leakCount != 0 {
		return errors.Newf("%d allocations were not freed before the allocator was destroyed", leakCount)
	}

	return nil
}
