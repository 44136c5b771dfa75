package vkmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"golang.org/x/exp/slog"

	"github.com/UditDey/nuke3d/vkmem/vulkan"
)

const (
	// DefaultMinDeviceArenaSize is the minimum size of device-local arenas
	// when CreateOptions does not override it.
	DefaultMinDeviceArenaSize = 16 * 1024 * 1024
	// DefaultMinHostArenaSize is the minimum size of host-visible arenas when
	// CreateOptions does not override it.
	DefaultMinHostArenaSize = 4 * 1024 * 1024
	// DefaultMaxMemoryAllocationCount matches the smallest
	// maxMemoryAllocationCount limit a conforming Vulkan implementation may
	// report.
	DefaultMaxMemoryAllocationCount = 4096
)

// CreateOptions contains optional settings for a new Allocator. Device and
// MemoryTypes are required; everything else has a usable default.
type CreateOptions struct {
	// Device performs the real memory allocations. Wrap a core1_0.Device with
	// vulkan.WrapDevice.
	Device vulkan.Device
	// MemoryTypes is the platform's memory type property table, in the order
	// the platform reports it. Type indices in allocation requirements refer
	// to positions in this table.
	MemoryTypes []core1_0.MemoryType

	// Logger receives teardown diagnostics such as unreleased-allocation
	// reports. Defaults to slog.Default().
	Logger *slog.Logger
	// AllocationCallbacks is passed through to every device memory operation.
	AllocationCallbacks *driver.AllocationCallbacks
	// MemoryCallbacks is informed of every real device memory allocation and
	// free.
	MemoryCallbacks vulkan.MemoryCallbacks

	// MinDeviceArenaSize and MinHostArenaSize set the minimum backing
	// allocation size per pool. Requests at or above the minimum receive a
	// dedicated arena.
	MinDeviceArenaSize int
	MinHostArenaSize   int

	// MaxMemoryAllocationCount caps the number of simultaneous real device
	// allocations.
	MaxMemoryAllocationCount int

	// DeviceMemoryFlags and HostMemoryFlags override the property flags each
	// pool's memory type is selected by. Selection always requires an exact
	// flag match, so overriding these is the only way to target platforms
	// that report additional flags on their memory types.
	DeviceMemoryFlags core1_0.MemoryPropertyFlags
	HostMemoryFlags   core1_0.MemoryPropertyFlags

	// ExternalMemoryHandleTypes optionally states, per entry in MemoryTypes,
	// the external memory handle types new arenas of that type should export.
	ExternalMemoryHandleTypes []khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
}

// CreateAllocator selects one concrete memory type for each of the two pools
// by exact property-flag match against the provided table and returns an
// Allocator bound to them. It fails with ErrNoSuitableMemoryType when either
// kind has no exactly-matching type; a type offering a superset of the
// desired flags is not used.
func CreateAllocator(options CreateOptions) (*Allocator, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	minDeviceArenaSize := options.MinDeviceArenaSize
	if minDeviceArenaSize == 0 {
		minDeviceArenaSize = DefaultMinDeviceArenaSize
	}

	minHostArenaSize := options.MinHostArenaSize
	if minHostArenaSize == 0 {
		minHostArenaSize = DefaultMinHostArenaSize
	}

	maxMemoryAllocationCount := options.MaxMemoryAllocationCount
	if maxMemoryAllocationCount == 0 {
		maxMemoryAllocationCount = DefaultMaxMemoryAllocationCount
	}

	deviceMemoryFlags := options.DeviceMemoryFlags
	if deviceMemoryFlags == 0 {
		deviceMemoryFlags = core1_0.MemoryPropertyDeviceLocal
	}

	hostMemoryFlags := options.HostMemoryFlags
	if hostMemoryFlags == 0 {
		hostMemoryFlags = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCached | core1_0.MemoryPropertyHostCoherent
	}

	deviceMemory, err := vulkan.NewDeviceMemoryProperties(
		options.Device,
		options.MemoryTypes,
		options.AllocationCallbacks,
		options.MemoryCallbacks,
		maxMemoryAllocationCount,
		options.ExternalMemoryHandleTypes,
	)
	if err != nil {
		return nil, err
	}

	deviceTypeIndex, ok := deviceMemory.FindMemoryTypeIndex(deviceMemoryFlags)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuitableMemoryType, "no device-local memory type with property flags exactly %s", deviceMemoryFlags)
	}

	hostTypeIndex, ok := deviceMemory.FindMemoryTypeIndex(hostMemoryFlags)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuitableMemoryType, "no host-visible memory type with property flags exactly %s", hostMemoryFlags)
	}

	allocator := &Allocator{
		logger:       logger,
		deviceMemory: deviceMemory,
	}

	allocator.devicePool = memoryPool{
		kind:            MemoryKindDevice,
		memoryTypeIndex: deviceTypeIndex,
		minArenaSize:    minDeviceArenaSize,
		shouldMap:       false,
		logger:          logger,
		deviceMemory:    deviceMemory,
	}

	allocator.hostPool = memoryPool{
		kind:            MemoryKindHost,
		memoryTypeIndex: hostTypeIndex,
		minArenaSize:    minHostArenaSize,
		shouldMap:       true,
		logger:          logger,
		deviceMemory:    deviceMemory,
	}

	return allocator, nil
}
