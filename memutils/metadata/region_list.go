package metadata

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"

	"github.com/UditDey/nuke3d/memutils"
)

// RegionList tracks the free byte ranges of one backing allocation and hands
// out aligned spans from them. It is the bookkeeping half of an arena: the
// arena owns the real device memory, while the RegionList decides which bytes
// of it each suballocation receives.
//
// The free list is kept sorted by offset and its entries are pairwise
// disjoint. The allocation policy is first-fit: the scan accepts the first
// free region large enough for the request plus any alignment padding,
// preferring low offsets over snug fits. Free coalesces forward only- a freed
// span whose end exactly meets the following free region is merged into it,
// but a free region immediately preceding the freed span is left as a
// separate entry. Both policies are deliberate and match the behavior the
// rest of the allocator is built around.
//
// RegionList performs no synchronization of its own. Callers must not use one
// from multiple goroutines.
type RegionList struct {
	size        int
	freeRegions []Region
}

var _ memutils.Validatable = &RegionList{}

// Init must be called before the RegionList is used. The size parameter is
// the size in bytes of the backing allocation being managed; initially the
// entire span is a single free region.
func (l *RegionList) Init(size int) {
	if size < 1 {
		panic(fmt.Sprintf("attempted to initialize a RegionList with invalid size %d", size))
	}

	l.size = size
	l.freeRegions = []Region{{Offset: 0, Size: size}}
}

// Size returns the size in bytes that the list was initialized with.
func (l *RegionList) Size() int {
	return l.size
}

// SumFreeSize returns the number of free bytes remaining in the backing
// allocation.
func (l *RegionList) SumFreeSize() int {
	var sum int
	for _, region := range l.freeRegions {
		sum += region.Size
	}
	return sum
}

// FreeRegionCount returns the number of distinct free regions in the list.
// Because coalescing is forward-only, two adjacent free regions may both be
// counted even though they form one contiguous span.
func (l *RegionList) FreeRegionCount() int {
	return len(l.freeRegions)
}

// IsEmpty returns true when no suballocations are live, i.e. every byte of
// the backing allocation is free again.
func (l *RegionList) IsEmpty() bool {
	return l.SumFreeSize() == l.size
}

// Alloc carves a span of the requested size out of the first free region that
// can hold it together with any padding the alignment demands.
//
// The returned Region is the full consumed span: it begins at the start of
// the chosen free region and includes the padding bytes, so that passing it
// back to Free returns exactly the bytes taken. alignedOffset is the offset
// the caller may actually use; it is the first properly aligned byte within
// the consumed span. ok is false when no free region fits, in which case the
// caller is expected to grow a new arena rather than retry.
func (l *RegionList) Alloc(size int, alignment uint) (region Region, alignedOffset int, ok bool) {
	if size < 1 {
		panic(fmt.Sprintf("attempted to allocate invalid size %d", size))
	}

	for i := 0; i < len(l.freeRegions); i++ {
		free := &l.freeRegions[i]
		pad := memutils.Padding(free.Offset, alignment)
		consumed := size + pad

		if consumed > free.Size {
			continue
		}

		region = Region{Offset: free.Offset, Size: consumed}
		alignedOffset = free.Offset + pad

		if consumed == free.Size {
			l.freeRegions = slices.Delete(l.freeRegions, i, i+1)
		} else {
			free.Offset += consumed
			free.Size -= consumed
		}

		memutils.DebugValidate(l)
		return region, alignedOffset, true
	}

	return Region{}, 0, false
}

// Free returns a consumed span to the free list. The region must be exactly
// the one handed out by a previous Alloc.
//
// The freed span is merged into the following free region when the two are
// contiguous; it is never merged into a preceding one.
func (l *RegionList) Free(region Region) {
	if region.Offset < 0 || region.Size < 1 || region.End() > l.size {
		panic(fmt.Sprintf("attempted to free invalid region {Offset: %d, Size: %d} in a block of size %d", region.Offset, region.Size, l.size))
	}

	end := region.End()

	for i := 0; i < len(l.freeRegions); i++ {
		following := &l.freeRegions[i]
		if following.Offset < end {
			continue
		}

		if following.Offset == end {
			following.Offset -= region.Size
			following.Size += region.Size
		} else {
			l.freeRegions = slices.Insert(l.freeRegions, i, region)
		}

		memutils.DebugValidate(l)
		return
	}

	// No free region lies after the freed span
	l.freeRegions = append(l.freeRegions, region)
	memutils.DebugValidate(l)
}

// VisitFreeRegions calls the provided callback once per free region, in
// offset order. Returning an error from the callback stops the walk and
// propagates the error.
func (l *RegionList) VisitFreeRegions(visit func(region Region) error) error {
	for _, region := range l.freeRegions {
		err := visit(region)
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate performs internal consistency checks on the free list: entries
// must be sized, ordered by offset, pairwise disjoint, and contained within
// the backing allocation. When the implementation is functioning correctly it
// should not be possible for this method to return an error.
func (l *RegionList) Validate() error {
	var previousEnd int

	for i, region := range l.freeRegions {
		if region.Size < 1 {
			return errors.Newf("free region at index %d has invalid size %d", i, region.Size)
		}

		if region.Offset < previousEnd {
			return errors.Newf("free region at index %d begins at offset %d, before the end of the previous region at %d", i, region.Offset, previousEnd)
		}

		if region.End() > l.size {
			return errors.Newf("free region at index %d ends at %d, past the end of the block at %d", i, region.End(), l.size)
		}

		previousEnd = region.End()
	}

	return nil
}

// AddStatistics sums this block's footprint into the provided statistics
// object. Suballocation counts are tracked by the arena, not here, so only
// block-level fields are touched.
func (l *RegionList) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.BlockBytes += l.size
}

// AddDetailedStatistics sums this block's footprint and free-range details
// into the provided statistics object.
func (l *RegionList) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += l.size

	for _, region := range l.freeRegions {
		stats.AddUnusedRange(region.Size)
	}
}

// BlockJsonData populates a json object with this block's size and free-range
// layout.
func (l *RegionList) BlockJsonData(json jwriter.ObjectState) {
	json.Name("TotalBytes").Int(l.size)
	json.Name("UnusedBytes").Int(l.SumFreeSize())
	json.Name("UnusedRanges").Int(len(l.freeRegions))

	arrayState := json.Name("FreeRegions").Array()
	defer arrayState.End()

	for _, region := range l.freeRegions {
		obj := arrayState.Object()
		obj.Name("Offset").Int(region.Offset)
		obj.Name("Size").Int(region.Size)
		obj.End()
	}
}
