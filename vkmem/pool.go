package vkmem

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"golang.org/x/exp/slog"

	"github.com/UditDey/nuke3d/memutils"
	"github.com/UditDey/nuke3d/vkmem/vulkan"
)

// memoryPool owns every arena of one memory kind and mediates allocation
// across them. Requests try existing arenas in creation order; a new arena is
// created only when none of them can fit the request. Arenas are never
// removed from the pool, even when they become entirely free.
type memoryPool struct {
	kind            MemoryKind
	memoryTypeIndex int
	minArenaSize    int
	shouldMap       bool
	logger          *slog.Logger
	deviceMemory    *vulkan.DeviceMemoryProperties

	arenas []*memoryArena
}

func (p *memoryPool) alloc(size int, alignment uint) (Block, error) {
	for arenaIndex, arena := range p.arenas {
		block, ok := arena.alloc(size, alignment)
		if ok {
			block.kind = p.kind
			block.arenaIndex = arenaIndex
			return block, nil
		}
	}

	// No existing arena fits the request- grow the pool
	arena, err := p.createArena(size)
	if err != nil {
		return Block{}, err
	}

	block, ok := arena.alloc(size, alignment)
	if !ok {
		panic(fmt.Sprintf("a freshly created %d-byte arena failed to fit a %d-byte request", arena.memory.Size(), size))
	}

	block.kind = p.kind
	block.arenaIndex = len(p.arenas) - 1
	return block, nil
}

// createArena binds a new backing allocation sized to the larger of the
// request and the pool's minimum arena size. A request at or above the
// minimum gets an arena dedicated entirely to it, with no spare free space.
func (p *memoryPool) createArena(requestedSize int) (*memoryArena, error) {
	arenaSize := requestedSize
	if arenaSize < p.minArenaSize {
		arenaSize = p.minArenaSize
	}

	allocateInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  arenaSize,
		MemoryTypeIndex: p.memoryTypeIndex,
	}

	handleTypes := p.deviceMemory.ExternalMemoryTypes(p.memoryTypeIndex)
	if handleTypes != 0 {
		allocateInfo.NextOptions = common.NextOptions{
			Next: khr_external_memory.ExportMemoryAllocateInfo{
				HandleTypes: handleTypes,
			},
		}
	}

	memory, res, err := p.deviceMemory.AllocateVulkanMemory(allocateInfo, p.shouldMap)
	if err != nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "failed to create a %d-byte %s arena (%s)", arenaSize, p.kind, res),
			ErrAllocationFailed,
		)
	}

	arena := &memoryArena{}
	arena.Init(p.logger, len(p.arenas), memory)
	p.arenas = append(p.arenas, arena)

	return arena, nil
}

// free dispatches to the arena recorded in the block. It never searches other
// arenas.
func (p *memoryPool) free(block Block) {
	if block.arenaIndex < 0 || block.arenaIndex >= len(p.arenas) {
		panic(fmt.Sprintf("freeing a %s block with arena index %d, but the pool only has %d arenas", block.kind, block.arenaIndex, len(p.arenas)))
	}

	p.arenas[block.arenaIndex].free(block)
}

// destroy releases every arena's backing allocation and returns the number of
// unreleased allocations found along the way.
func (p *memoryPool) destroy() int {
	var leakCount int
	for _, arena := range p.arenas {
		leakCount += arena.destroy(p.deviceMemory, p.memoryTypeIndex)
	}

	p.arenas = nil
	return leakCount
}

func (p *memoryPool) addStatistics(stats *memutils.Statistics) {
	for _, arena := range p.arenas {
		arena.addStatistics(stats)
	}
}

func (p *memoryPool) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	for _, arena := range p.arenas {
		arena.addDetailedStatistics(stats)
	}
}

func (p *memoryPool) printDetailedMap(json jwriter.ObjectState) {
	for _, arena := range p.arenas {
		blockObj := json.Name(strconv.Itoa(arena.id)).Object()
		arena.blockJsonData(blockObj)
		blockObj.End()
	}
}
