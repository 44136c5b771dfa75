package metadata

// Region is a contiguous span of bytes within a single backing allocation,
// identified by its offset from the start of the allocation and its size.
// Regions are pure values with no identity of their own.
type Region struct {
	Offset int
	Size   int
}

// End returns the first byte offset past the region.
func (r Region) End() int {
	return r.Offset + r.Size
}

// Overlaps returns true when the two regions share at least one byte.
func (r Region) Overlaps(other Region) bool {
	return r.Offset < other.End() && other.Offset < r.End()
}
