package voxelis

import "unsafe"

// StoreStats is the diagnostic snapshot returned by NodeStore.MemoryStats:
// used/capacity in bytes, live vs. free slot counts, and cumulative
// allocation/hash-consing counters useful for judging how well a workload
// shares structure.
type StoreStats struct {
	// Used is the number of bytes currently occupied by live branch slots.
	Used uint64
	// Capacity is the total byte budget the store was constructed with,
	// rounded down to a whole number of branch-sized slots, with a minimum
	// of one slot.
	Capacity uint64
	// LiveBranches is the number of branch slots currently allocated.
	LiveBranches int
	// FreeSlots is the number of reclaimed slots awaiting reuse.
	FreeSlots int
	// TotalAllocations counts every slot ever handed out by GetOrIntern,
	// including ones since reclaimed and reused.
	TotalAllocations uint64
	// TotalReclamations counts every slot ever freed by Decref.
	TotalReclamations uint64
	// PatternHits counts GetOrIntern calls that found an existing slot
	// for the requested child tuple.
	PatternHits uint64
	// PatternMisses counts GetOrIntern calls that allocated a new slot.
	PatternMisses uint64
	// MaxBranchRefCount is the highest refcount any branch slot has
	// reached through an incref, a rough signal of how much structural
	// sharing a workload achieves. A slot's initial refcount of 1 on
	// allocation is not recorded, so it stays 0 until some slot is
	// incref'd.
	MaxBranchRefCount uint32
}

// MemoryStats reports the current state of the branch pool.
func (ns *NodeStore[T]) MemoryStats() StoreStats {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	nodeSize := uint64(unsafe.Sizeof(branchNode{}))
	stats := ns.stats
	stats.LiveBranches = ns.pool.Len()
	stats.FreeSlots = ns.pool.Free()
	stats.Used = uint64(ns.pool.Len()) * nodeSize
	return stats
}
