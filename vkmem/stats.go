package vkmem

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/UditDey/nuke3d/memutils"
)

// CalculateStatistics sums the basic footprint of both pools into stats.
func (a *Allocator) CalculateStatistics(stats *memutils.Statistics) {
	a.devicePool.addStatistics(stats)
	a.hostPool.addStatistics(stats)
}

// CalculateDetailedStatistics populates per-pool statistics, including
// free-range counts and allocation size extremes. This walks every arena and
// is more expensive than CalculateStatistics.
func (a *Allocator) CalculateDetailedStatistics(deviceStats, hostStats *memutils.DetailedStatistics) {
	deviceStats.Clear()
	hostStats.Clear()

	a.devicePool.addDetailedStatistics(deviceStats)
	a.hostPool.addDetailedStatistics(hostStats)
}

// BuildStatsString renders a JSON description of every arena in both pools,
// including each arena's free regions and live suballocations. It is intended
// for diagnostics and leak hunting, not hot paths.
func (a *Allocator) BuildStatsString() (string, error) {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	a.poolStatsJson(&obj, "DeviceLocal", &a.devicePool)
	a.poolStatsJson(&obj, "HostVisible", &a.hostPool)

	obj.End()

	if writer.Error() != nil {
		return "", writer.Error()
	}

	return string(writer.Bytes()), nil
}

func (a *Allocator) poolStatsJson(json *jwriter.ObjectState, name string, pool *memoryPool) {
	poolObj := json.Name(name).Object()
	defer poolObj.End()

	poolObj.Name("MemoryTypeIndex").Int(pool.memoryTypeIndex)
	poolObj.Name("MinArenaSize").Int(pool.minArenaSize)

	arenasObj := poolObj.Name("Arenas").Object()
	defer arenasObj.End()

	pool.printDetailedMap(arenasObj)
}
