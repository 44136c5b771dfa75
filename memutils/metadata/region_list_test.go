package metadata_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UditDey/nuke3d/memutils"
	"github.com/UditDey/nuke3d/memutils/metadata"
)

func freeRegions(t *testing.T, list *metadata.RegionList) []metadata.Region {
	var regions []metadata.Region
	err := list.VisitFreeRegions(func(region metadata.Region) error {
		regions = append(regions, region)
		return nil
	})
	require.NoError(t, err)
	return regions
}

func TestAllocFirstRegion(t *testing.T) {
	var list metadata.RegionList
	list.Init(1000)

	var stats memutils.DetailedStatistics
	stats.Clear()
	list.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BlockCount: 1,
			BlockBytes: 1000,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 1000,
		UnusedRangeSizeMax: 1000,
	}, stats)

	region, offset, ok := list.Alloc(100, 1)
	require.True(t, ok)
	require.Equal(t, metadata.Region{Offset: 0, Size: 100}, region)
	require.Equal(t, 0, offset)

	require.NoError(t, list.Validate())
	require.Equal(t, []metadata.Region{{Offset: 100, Size: 900}}, freeRegions(t, &list))
	require.Equal(t, 900, list.SumFreeSize())
	require.False(t, list.IsEmpty())
}

func TestAllocAlignmentPadding(t *testing.T) {
	var list metadata.RegionList
	list.Init(1000)

	_, _, ok := list.Alloc(10, 1)
	require.True(t, ok)

	// The next free region begins at 10, so a 64-byte alignment costs 54
	// bytes of padding
	region, offset, ok := list.Alloc(100, 64)
	require.True(t, ok)
	require.Equal(t, 64, offset)
	require.Equal(t, 0, offset%64)
	require.Equal(t, metadata.Region{Offset: 10, Size: 154}, region)

	require.NoError(t, list.Validate())
	require.Equal(t, []metadata.Region{{Offset: 164, Size: 836}}, freeRegions(t, &list))
}

func TestAllocExactFitRemovesRegion(t *testing.T) {
	var list metadata.RegionList
	list.Init(100)

	region, offset, ok := list.Alloc(100, 0)
	require.True(t, ok)
	require.Equal(t, metadata.Region{Offset: 0, Size: 100}, region)
	require.Equal(t, 0, offset)

	require.Equal(t, 0, list.FreeRegionCount())
	require.Equal(t, 0, list.SumFreeSize())
	require.False(t, list.IsEmpty())
	require.NoError(t, list.Validate())
}

func TestAllocNoFit(t *testing.T) {
	var list metadata.RegionList
	list.Init(100)

	_, _, ok := list.Alloc(50, 0)
	require.True(t, ok)

	_, _, ok = list.Alloc(60, 0)
	require.False(t, ok)

	// The remaining 50 bytes begin at offset 50, so padding for a 64-byte
	// alignment makes even a small request unsatisfiable
	_, _, ok = list.Alloc(40, 64)
	require.False(t, ok)

	require.Equal(t, []metadata.Region{{Offset: 50, Size: 50}}, freeRegions(t, &list))
}

func TestAllocFirstFitPrefersEarlierRegion(t *testing.T) {
	var list metadata.RegionList
	list.Init(1000)

	first, _, ok := list.Alloc(100, 0)
	require.True(t, ok)
	_, _, ok = list.Alloc(200, 0)
	require.True(t, ok)
	third, _, ok := list.Alloc(100, 0)
	require.True(t, ok)

	list.Free(first)
	list.Free(third)
	require.Equal(t, []metadata.Region{
		{Offset: 0, Size: 100},
		{Offset: 300, Size: 700},
	}, freeRegions(t, &list))

	// First-fit takes the small hole at offset 0 even though the region at
	// 300 is a looser fit
	region, offset, ok := list.Alloc(50, 0)
	require.True(t, ok)
	require.Equal(t, metadata.Region{Offset: 0, Size: 50}, region)
	require.Equal(t, 0, offset)
}

func TestFreeMergesForward(t *testing.T) {
	var list metadata.RegionList
	list.Init(200)

	region, _, ok := list.Alloc(150, 0)
	require.True(t, ok)
	require.Equal(t, []metadata.Region{{Offset: 150, Size: 50}}, freeRegions(t, &list))

	// Free only the tail of the consumed span: it ends exactly where the
	// free region begins, so the two merge into one entry
	list.Free(metadata.Region{Offset: 100, Size: 50})
	require.Equal(t, []metadata.Region{{Offset: 100, Size: 100}}, freeRegions(t, &list))

	list.Free(metadata.Region{Offset: 0, Size: 100})
	require.Equal(t, []metadata.Region{{Offset: 0, Size: 200}}, freeRegions(t, &list))
	require.True(t, list.IsEmpty())
	require.Equal(t, 150, region.Size)
}

func TestFreeDoesNotMergeBackward(t *testing.T) {
	var list metadata.RegionList
	list.Init(300)

	_, _, ok := list.Alloc(250, 0)
	require.True(t, ok)

	list.Free(metadata.Region{Offset: 0, Size: 50})
	require.Equal(t, []metadata.Region{
		{Offset: 0, Size: 50},
		{Offset: 250, Size: 50},
	}, freeRegions(t, &list))

	// The freed span begins exactly where the first free region ends, but
	// merging only happens forward: the two stay separate entries
	list.Free(metadata.Region{Offset: 50, Size: 100})
	require.Equal(t, []metadata.Region{
		{Offset: 0, Size: 50},
		{Offset: 50, Size: 100},
		{Offset: 250, Size: 50},
	}, freeRegions(t, &list))

	require.NoError(t, list.Validate())
	require.Equal(t, 200, list.SumFreeSize())
}

func TestFreeAppendsWhenNothingFollows(t *testing.T) {
	var list metadata.RegionList
	list.Init(100)

	region, _, ok := list.Alloc(100, 0)
	require.True(t, ok)
	require.Equal(t, 0, list.FreeRegionCount())

	list.Free(region)
	require.Equal(t, []metadata.Region{{Offset: 0, Size: 100}}, freeRegions(t, &list))
	require.True(t, list.IsEmpty())
}

func TestFreeThenReuse(t *testing.T) {
	var list metadata.RegionList
	list.Init(1024)

	region, offset, ok := list.Alloc(300, 16)
	require.True(t, ok)
	require.Equal(t, metadata.Region{Offset: 0, Size: 300}, region)

	list.Free(region)

	reused, reusedOffset, ok := list.Alloc(300, 16)
	require.True(t, ok)
	require.Equal(t, region, reused)
	require.Equal(t, offset, reusedOffset)
}

func TestPaddedSpanFreesCompletely(t *testing.T) {
	var list metadata.RegionList
	list.Init(256)

	small, _, ok := list.Alloc(10, 0)
	require.True(t, ok)

	// The consumed span includes the 54 bytes of alignment padding, so
	// freeing it returns every consumed byte
	padded, offset, ok := list.Alloc(16, 64)
	require.True(t, ok)
	require.Equal(t, 64, offset)
	require.Equal(t, metadata.Region{Offset: 10, Size: 70}, padded)

	list.Free(padded)
	list.Free(small)

	require.True(t, list.IsEmpty())
	require.Equal(t, []metadata.Region{{Offset: 0, Size: 256}}, freeRegions(t, &list))
	require.NoError(t, list.Validate())
}

func TestFreeRegionsStayDisjoint(t *testing.T) {
	var list metadata.RegionList
	list.Init(4096)

	var live []metadata.Region
	for _, size := range []int{100, 37, 256, 12, 500, 64} {
		region, _, ok := list.Alloc(size, 32)
		require.True(t, ok)
		live = append(live, region)
	}

	// Free every other allocation, then check pairwise disjointness of the
	// free list against itself and against the remaining live spans
	for i := 0; i < len(live); i += 2 {
		list.Free(live[i])
	}

	regions := freeRegions(t, &list)
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			require.False(t, regions[i].Overlaps(regions[j]), "free regions %+v and %+v overlap", regions[i], regions[j])
		}

		for j := 1; j < len(live); j += 2 {
			require.False(t, regions[i].Overlaps(live[j]), "free region %+v overlaps live span %+v", regions[i], live[j])
		}
	}

	require.NoError(t, list.Validate())
}
