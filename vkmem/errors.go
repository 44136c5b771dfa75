package vkmem

import "github.com/cockroachdb/errors"

// ErrNoSuitableMemoryType is returned from CreateAllocator when the supplied
// memory type table contains no type whose property flags exactly equal the
// desired flags for one of the two pools. Types offering a superset of the
// desired flags do not qualify.
var ErrNoSuitableMemoryType = errors.New("no memory type with exactly matching property flags")

// ErrIncompatibleMemoryType is returned from Allocator.Alloc when the
// request's memory type bits exclude the type index the requested pool is
// bound to. The allocator's state is untouched when this is returned.
var ErrIncompatibleMemoryType = errors.New("allocation cannot be placed in the requested memory kind")

// ErrAllocationFailed is returned from Allocator.Alloc when the device
// refuses to create a new backing allocation. Errors returned from Alloc can
// be tested against it with errors.Is.
var ErrAllocationFailed = errors.New("failed to allocate device memory")
