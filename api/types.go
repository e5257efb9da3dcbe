// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

// CacheStats provides a standard layout for buffer-cache statistics
// reporting. Counters are cumulative since initialization.
type CacheStats struct {
	Buffers   int    // pool size, fixed
	Buckets   int    // sharding factor, fixed
	Hits      uint64 // lookups satisfied from a resident buffer
	Misses    uint64 // lookups that had to evict and reload
	Evictions uint64 // descriptors re-keyed to a new block
	Relinks   uint64 // evictions that crossed bucket boundaries
}

// AllocStats aggregates physical page allocator accounting.
type AllocStats struct {
	TotalPages int    // pages in the managed range, fixed
	FreePages  int    // pages currently on the free list
	Allocs     uint64 // successful page allocations
	Frees      uint64 // releases that returned a page to the free list
	RefAdjusts uint64 // explicit reference-count adjustments
}

// VMAInfo is the passive memory-mapped-file descriptor shared with the
// virtual-memory subsystem. The storage core only carries the record;
// mapping, fault handling, and write-back of mapped regions happen
// above it.
type VMAInfo struct {
	Addr   uint64 // start of the mapped region
	Length uint64 // bytes mapped
	Prot   int32  // protection bits
	Flags  int32  // MAP_SHARED / MAP_PRIVATE semantics
	File   any    // open file reference owned by the process layer
	Offset uint64 // file offset of the first mapped byte
	Valid  bool   // slot in use
}
