// File: api/interfaces.go
// Author: momentics <momentics@gmail.com>
//
// Boundary contracts of the kcore storage core: the block-device driver
// interface consumed by the buffer cache and the debug introspection API.

package api

// PageSize is the unit of physical memory managed by the allocator.
// The device block size must be equal to it, so one buffer payload
// shadows exactly one page-sized block.
const PageSize = 4096

// BlockDevice performs synchronous transfers of whole blocks.
//
// RW moves exactly one block between data and the device position
// (dev, blockno): device-to-memory when write is false, memory-to-device
// when write is true. The call blocks until the transfer completes and
// must always terminate; len(data) is always PageSize. The buffer cache
// invokes RW only while holding the exclusive lock of the buffer that
// owns data, so implementations never see concurrent transfers for the
// same block.
type BlockDevice interface {
	RW(dev uint32, blockno uint64, data []byte, write bool)
}

// Debug exposes runtime introspection and health API.
type Debug interface {
	// DumpState emits a snapshot of system state for diagnostics.
	DumpState() map[string]any

	// RegisterProbe dynamically registers new debug probes.
	RegisterProbe(name string, fn func() any)
}
