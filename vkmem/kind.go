package vkmem

// MemoryKind selects which of the allocator's two memory pools a request is
// routed to.
type MemoryKind uint32

const (
	// MemoryKindDevice is fast device-local memory with no host access.
	MemoryKindDevice MemoryKind = iota
	// MemoryKindHost is host-visible memory. Arenas of this kind are
	// persistently mapped, and blocks allocated from them expose a host
	// pointer.
	MemoryKindHost
)

var memoryKindMapping = make(map[MemoryKind]string)

func (k MemoryKind) String() string {
	return memoryKindMapping[k]
}

func init() {
	memoryKindMapping[MemoryKindDevice] = "MemoryKindDevice"
	memoryKindMapping[MemoryKindHost] = "MemoryKindHost"
}
