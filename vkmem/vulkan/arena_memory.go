package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/driver"
)

// ArenaMemory wraps one backing DeviceMemory allocation together with its
// optional persistent mapping. Host-visible arenas are mapped once when the
// memory is allocated and stay mapped for the arena's entire lifetime- there
// is no remapping, unmapping on demand, or growth.
//
// ArenaMemory performs no synchronization of its own.
type ArenaMemory struct {
	memory  DeviceMemory
	size    int
	mapData unsafe.Pointer

	allocationCallbacks *driver.AllocationCallbacks
}

// VulkanDeviceMemory returns the wrapped device memory handle, for binding
// buffers and images against.
func (m *ArenaMemory) VulkanDeviceMemory() DeviceMemory {
	return m.memory
}

// Size returns the size in bytes of the backing allocation.
func (m *ArenaMemory) Size() int {
	return m.size
}

// IsMapped returns true when the memory carries a persistent host mapping.
func (m *ArenaMemory) IsMapped() bool {
	return m.mapData != nil
}

// MappedPtr returns a host pointer to the given byte offset within the
// backing allocation. It returns an error if the memory is not mapped or the
// offset does not lie within the allocation.
func (m *ArenaMemory) MappedPtr(offset int) (unsafe.Pointer, error) {
	if m.mapData == nil {
		return nil, errors.New("this memory is not host-mapped")
	}

	if offset < 0 || offset >= m.size {
		return nil, errors.Newf("offset %d lies outside the %d-byte backing allocation", offset, m.size)
	}

	return unsafe.Add(m.mapData, offset), nil
}

// FreeMemory unmaps the memory if it was mapped and returns the backing
// allocation to the driver. The ArenaMemory must not be used afterward.
func (m *ArenaMemory) FreeMemory() {
	if m.memory == nil {
		panic("attempted to free an ArenaMemory that has no backing device memory")
	}

	if m.mapData != nil {
		m.memory.Unmap()
		m.mapData = nil
	}

	m.memory.Free(m.allocationCallbacks)
	m.memory = nil
}
