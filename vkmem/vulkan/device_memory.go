package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
)

// MemoryCallbacks can be provided by consumers who want to be informed when
// real device memory allocations are created or returned to the driver.
type MemoryCallbacks interface {
	Allocate(memoryTypeIndex int, memory DeviceMemory, size int)
	Free(memoryTypeIndex int, memory DeviceMemory, size int)
}

// DeviceMemoryProperties owns the platform's memory type property table and
// performs the real device memory traffic for the allocator: creating backing
// allocations, mapping host-visible ones, and keeping per-type accounting of
// what has been handed out.
//
// The property table is captured once at construction and never re-queried.
type DeviceMemoryProperties struct {
	device              Device
	allocationCallbacks *driver.AllocationCallbacks
	memoryCallbacks     MemoryCallbacks

	memoryTypes              []core1_0.MemoryType
	maxMemoryAllocationCount int

	// Number and size of real device allocations made per memory type
	memoryCount int
	blockCount  []int
	blockBytes  []int

	externalMemoryHandleTypes []khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
}

// NewDeviceMemoryProperties builds a DeviceMemoryProperties around a device
// and its reported memory type table. maxMemoryAllocationCount caps the
// number of simultaneous real allocations, mirroring the device limit of the
// same name.
//
// externalMemoryHandleTypes is optional; when provided its length must equal
// the length of the memory type table, and each entry states the external
// memory handle types that allocations of that memory type should export.
func NewDeviceMemoryProperties(
	device Device,
	memoryTypes []core1_0.MemoryType,
	allocationCallbacks *driver.AllocationCallbacks,
	memoryCallbacks MemoryCallbacks,
	maxMemoryAllocationCount int,
	externalMemoryHandleTypes []khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags,
) (*DeviceMemoryProperties, error) {
	if device == nil {
		return nil, errors.New("a Device must be provided")
	}

	if len(memoryTypes) == 0 {
		return nil, errors.New("the memory type property table must not be empty")
	}

	if maxMemoryAllocationCount < 1 {
		return nil, errors.Newf("maxMemoryAllocationCount is %d, but must be positive", maxMemoryAllocationCount)
	}

	if len(externalMemoryHandleTypes) > 0 && len(externalMemoryHandleTypes) != len(memoryTypes) {
		return nil, errors.Newf("externalMemoryHandleTypes has %d entries, but the memory type table has %d", len(externalMemoryHandleTypes), len(memoryTypes))
	}

	return &DeviceMemoryProperties{
		device:              device,
		allocationCallbacks: allocationCallbacks,
		memoryCallbacks:     memoryCallbacks,

		memoryTypes:              memoryTypes,
		maxMemoryAllocationCount: maxMemoryAllocationCount,

		blockCount: make([]int, len(memoryTypes)),
		blockBytes: make([]int, len(memoryTypes)),

		externalMemoryHandleTypes: externalMemoryHandleTypes,
	}, nil
}

// MemoryTypeCount returns the number of entries in the property table.
func (m *DeviceMemoryProperties) MemoryTypeCount() int {
	return len(m.memoryTypes)
}

// MemoryTypeProperties returns the property table entry at the given index.
func (m *DeviceMemoryProperties) MemoryTypeProperties(memoryTypeIndex int) core1_0.MemoryType {
	return m.memoryTypes[memoryTypeIndex]
}

// FindMemoryTypeIndex locates the first memory type whose property flags
// exactly equal the desired flags. Types whose flags are a strict superset of
// the desired flags do not match.
func (m *DeviceMemoryProperties) FindMemoryTypeIndex(desiredFlags core1_0.MemoryPropertyFlags) (int, bool) {
	for memoryTypeIndex, memoryType := range m.memoryTypes {
		if memoryType.PropertyFlags == desiredFlags {
			return memoryTypeIndex, true
		}
	}

	return 0, false
}

// ExternalMemoryTypes returns the external memory handle types configured for
// the given memory type, or 0 when none were configured.
func (m *DeviceMemoryProperties) ExternalMemoryTypes(memoryTypeIndex int) khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags {
	if len(m.externalMemoryHandleTypes) == 0 {
		return 0
	}

	return m.externalMemoryHandleTypes[memoryTypeIndex]
}

// AllocationCount returns the number of live real device allocations.
func (m *DeviceMemoryProperties) AllocationCount() int {
	return m.memoryCount
}

// BlockStatistics reports the number and total size of live real allocations
// for one memory type.
func (m *DeviceMemoryProperties) BlockStatistics(memoryTypeIndex int) (count int, bytes int) {
	return m.blockCount[memoryTypeIndex], m.blockBytes[memoryTypeIndex]
}

// AllocateVulkanMemory creates one real device memory allocation and, when
// shouldMap is set, maps the whole of it for host access. The allocation
// counts against maxMemoryAllocationCount.
func (m *DeviceMemoryProperties) AllocateVulkanMemory(allocateInfo core1_0.MemoryAllocateInfo, shouldMap bool) (mem *ArenaMemory, res common.VkResult, err error) {
	if allocateInfo.MemoryTypeIndex < 0 || allocateInfo.MemoryTypeIndex >= len(m.memoryTypes) {
		panic(fmt.Sprintf("attempted to allocate from memory type index %d, but the property table has %d entries", allocateInfo.MemoryTypeIndex, len(m.memoryTypes)))
	}

	if m.memoryCount >= m.maxMemoryAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	memory, res, err := m.device.AllocateMemory(m.allocationCallbacks, allocateInfo)
	if err != nil {
		return nil, res, err
	}

	mem = &ArenaMemory{
		memory:              memory,
		size:                allocateInfo.AllocationSize,
		allocationCallbacks: m.allocationCallbacks,
	}

	if shouldMap {
		mapData, res, err := memory.Map(0, allocateInfo.AllocationSize, 0)
		if err != nil {
			memory.Free(m.allocationCallbacks)
			return nil, res, errors.Wrapf(err, "failed to map %d bytes of freshly-allocated memory", allocateInfo.AllocationSize)
		}

		mem.mapData = mapData
	}

	m.memoryCount++
	m.blockCount[allocateInfo.MemoryTypeIndex]++
	m.blockBytes[allocateInfo.MemoryTypeIndex] += allocateInfo.AllocationSize

	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Allocate(allocateInfo.MemoryTypeIndex, memory, allocateInfo.AllocationSize)
	}

	return mem, res, nil
}

// FreeVulkanMemory returns one real device memory allocation to the driver
// and unwinds the accounting performed when it was created.
func (m *DeviceMemoryProperties) FreeVulkanMemory(memoryTypeIndex int, memory *ArenaMemory) {
	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Free(memoryTypeIndex, memory.VulkanDeviceMemory(), memory.Size())
	}

	size := memory.Size()
	memory.FreeMemory()

	m.blockCount[memoryTypeIndex]--
	m.blockBytes[memoryTypeIndex] -= size
	m.memoryCount--

	if m.blockCount[memoryTypeIndex] < 0 || m.blockBytes[memoryTypeIndex] < 0 {
		panic(fmt.Sprintf("block accounting for memory type index %d went negative", memoryTypeIndex))
	}
}
