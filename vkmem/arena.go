package vkmem

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"

	"github.com/UditDey/nuke3d/memutils"
	"github.com/UditDey/nuke3d/memutils/metadata"
	"github.com/UditDey/nuke3d/vkmem/vulkan"
)

type liveAllocation struct {
	// The full consumed span, including alignment padding
	region metadata.Region
	// The size the caller asked for
	size int
}

// memoryArena pairs one real backing allocation with the free-list metadata
// that parcels it out. Arenas are created lazily by their pool and are only
// ever destroyed together, when the allocator is torn down.
type memoryArena struct {
	id     int
	logger *slog.Logger
	memory *vulkan.ArenaMemory

	metadata metadata.RegionList
	// Live allocations keyed by their aligned offset, for double-free
	// detection and leak reporting at teardown
	live *swiss.Map[int, liveAllocation]
}

func (a *memoryArena) Init(logger *slog.Logger, id int, memory *vulkan.ArenaMemory) {
	if a.memory != nil {
		panic("attempting to initialize a memory arena that is already in use")
	}

	a.id = id
	a.logger = logger
	a.memory = memory
	a.metadata.Init(memory.Size())
	a.live = swiss.NewMap[int, liveAllocation](32)
}

// alloc carves a span out of this arena's free space. The returned Block has
// its kind and arena index left for the pool to fill in. ok is false when no
// free region fits the request.
func (a *memoryArena) alloc(size int, alignment uint) (Block, bool) {
	region, alignedOffset, ok := a.metadata.Alloc(size, alignment)
	if !ok {
		return Block{}, false
	}

	var ptr unsafe.Pointer
	if a.memory.IsMapped() {
		var err error
		ptr, err = a.memory.MappedPtr(alignedOffset)
		if err != nil {
			panic(fmt.Sprintf("mapped pointer for offset %d of a %d-byte arena was rejected: %+v", alignedOffset, a.memory.Size(), err))
		}
	}

	a.live.Put(alignedOffset, liveAllocation{region: region, size: size})

	return Block{
		memory: a.memory.VulkanDeviceMemory(),
		region: region,
		offset: alignedOffset,
		size:   size,
		ptr:    ptr,
	}, true
}

// free returns a block's span to this arena's free space. Freeing a block
// that is not live in this arena indicates a double free or a block routed to
// the wrong arena, both of which are contract violations.
func (a *memoryArena) free(block Block) {
	live, ok := a.live.Get(block.offset)
	if !ok || live.region != block.region {
		panic(fmt.Sprintf("freeing a block at offset %d that is not live in arena %d", block.offset, a.id))
	}

	a.live.Delete(block.offset)
	a.metadata.Free(block.region)

	memutils.DebugValidate(a)
}

func (a *memoryArena) isEmpty() bool {
	return a.live.Count() == 0
}

// Validate cross-checks the free list against the live allocation table.
func (a *memoryArena) Validate() error {
	err := a.metadata.Validate()
	if err != nil {
		return err
	}

	var liveBytes int
	a.live.Iter(func(offset int, alloc liveAllocation) bool {
		liveBytes += alloc.region.Size
		return false
	})

	consumed := a.metadata.Size() - a.metadata.SumFreeSize()
	if liveBytes != consumed {
		return errors.Newf("live allocations in arena %d span %d bytes, but the free list accounts for %d consumed bytes", a.id, liveBytes, consumed)
	}

	return nil
}

// destroy logs any allocations that were never freed, releases the backing
// allocation, and reports how many leaks it found.
func (a *memoryArena) destroy(deviceMemory *vulkan.DeviceMemoryProperties, memoryTypeIndex int) int {
	var leakCount int
	a.live.Iter(func(offset int, alloc liveAllocation) bool {
		leakCount++
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Int("arena", a.id),
			slog.Int("offset", offset),
			slog.Int("size", alloc.size),
		)
		return false
	})

	deviceMemory.FreeVulkanMemory(memoryTypeIndex, a.memory)
	a.memory = nil

	return leakCount
}

func (a *memoryArena) addStatistics(stats *memutils.Statistics) {
	a.metadata.AddStatistics(stats)

	a.live.Iter(func(offset int, alloc liveAllocation) bool {
		stats.AllocationCount++
		stats.AllocationBytes += alloc.size
		return false
	})
}

func (a *memoryArena) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.metadata.AddDetailedStatistics(stats)

	a.live.Iter(func(offset int, alloc liveAllocation) bool {
		stats.AddAllocation(alloc.size)
		return false
	})
}

func (a *memoryArena) blockJsonData(json jwriter.ObjectState) {
	a.metadata.BlockJsonData(json)
	json.Name("Allocations").Int(a.live.Count())

	type suballocation struct {
		offset int
		size   int
	}

	suballocations := make([]suballocation, 0, a.live.Count())
	a.live.Iter(func(offset int, alloc liveAllocation) bool {
		suballocations = append(suballocations, suballocation{offset: offset, size: alloc.size})
		return false
	})
	slices.SortFunc(suballocations, func(a, b suballocation) bool {
		return a.offset < b.offset
	})

	arrayState := json.Name("Suballocations").Array()
	defer arrayState.End()

	for _, suballoc := range suballocations {
		obj := arrayState.Object()
		obj.Name("Offset").Int(suballoc.offset)
		obj.Name("Size").Int(suballoc.size)
		obj.End()
	}
}
