package vulkan

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// DeviceMemory is the slice of core1_0.DeviceMemory behavior that the
// allocator consumes. core1_0.DeviceMemory satisfies it directly.
type DeviceMemory interface {
	Map(offset int, size int, flags core1_0.MemoryMapFlags) (unsafe.Pointer, common.VkResult, error)
	Unmap()
	Free(callbacks *driver.AllocationCallbacks)
}

// Device is the slice of core1_0.Device behavior that the allocator consumes.
// Production code should obtain one with WrapDevice; tests may substitute
// their own implementation.
type Device interface {
	AllocateMemory(allocationCallbacks *driver.AllocationCallbacks, o core1_0.MemoryAllocateInfo) (DeviceMemory, common.VkResult, error)
}

// WrapDevice adapts a real core1_0.Device into the narrow Device interface.
func WrapDevice(device core1_0.Device) Device {
	if device == nil {
		panic("attempted to wrap a nil core1_0.Device")
	}

	return &coreDevice{device: device}
}

type coreDevice struct {
	device core1_0.Device
}

func (d *coreDevice) AllocateMemory(allocationCallbacks *driver.AllocationCallbacks, o core1_0.MemoryAllocateInfo) (DeviceMemory, common.VkResult, error) {
	return d.device.AllocateMemory(allocationCallbacks, o)
}
