// File: core/mem/alloc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package mem implements the reference-counted physical page allocator.
//
// Physical memory is a fixed arena of page frames. A per-frame
// reference table tracks live owners under its own lock; a LIFO free
// list, threaded through the first bytes of the free pages themselves,
// holds reclaimable frames under a second lock. The two locks are
// never nested: a reference update and a free-list update are separate
// critical sections, which keeps both short and avoids ordering cycles
// with other subsystems.
package mem

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/kcore/api"
)

// PageID is a page frame number: the frame's index within the arena.
type PageID uint32

// Junk fill patterns. Freshly allocated pages are filled with allocJunk
// to surface use-before-init bugs; reclaimed pages with freeJunk to
// surface dangling references. The patterns differ so a crash dump
// tells the two apart.
const (
	allocJunk = 0x05
	freeJunk  = 0x01
)

// noFrame terminates the free list.
const noFrame = ^uint64(0)

// Allocator manages the physical page arena.
type Allocator struct {
	arena   []byte
	pages   int // total frames, kernel frames included
	start   int // first allocatable frame (end of the kernel image)
	release func() error

	// refMu guards ref. One entry per frame; 0 means free-list
	// eligible.
	refMu sync.Mutex
	ref   []int32

	// freeMu guards the free list. freeHead is the frame number of the
	// most recently freed page; each free page stores its successor's
	// frame number in its first 8 bytes.
	freeMu   sync.Mutex
	freeHead uint64
	freeLen  int

	allocs     atomic.Uint64
	frees      atomic.Uint64
	refAdjusts atomic.Uint64
}

// New builds an allocator over pages frames of which the first
// kernelPages are reserved and never allocatable, then seeds the free
// list with every remaining frame. Seeding sets each frame's reference
// count to 1 and frees it, so the very first release of a frame runs
// the same 1-to-0 path as every later one.
func New(pages, kernelPages int) (*Allocator, error) {
	if pages <= 0 || kernelPages <= 0 || kernelPages >= pages {
		return nil, fmt.Errorf("mem: bad geometry: %d pages, %d reserved", pages, kernelPages)
	}
	arena, release, err := mapArena(pages * api.PageSize)
	if err != nil {
		return nil, fmt.Errorf("mem: arena: %w", err)
	}
	a := &Allocator{
		arena:    arena,
		pages:    pages,
		start:    kernelPages,
		release:  release,
		ref:      make([]int32, pages),
		freeHead: noFrame,
	}
	a.freeRange(uintptr(kernelPages*api.PageSize), uintptr(pages*api.PageSize))
	return a, nil
}

// freeRange seeds every page-aligned frame in [roundUp(start), end).
func (a *Allocator) freeRange(start, end uintptr) {
	for off := pageRoundUp(start); off+api.PageSize <= end; off += api.PageSize {
		id := PageID(off / api.PageSize)
		a.refMu.Lock()
		a.ref[id] = 1
		a.refMu.Unlock()
		a.Free(id)
	}
}

func pageRoundUp(off uintptr) uintptr {
	return (off + api.PageSize - 1) &^ (api.PageSize - 1)
}

// Alloc pops one page from the free list, fills it with junk, and
// returns it with a reference count of exactly 1. The second result is
// false when physical memory is exhausted; that is the caller's
// out-of-memory signal, not a fault.
func (a *Allocator) Alloc() (PageID, bool) {
	a.freeMu.Lock()
	if a.freeHead == noFrame {
		a.freeMu.Unlock()
		return 0, false
	}
	id := PageID(a.freeHead)
	page := a.pageBytes(id)
	a.freeHead = binary.LittleEndian.Uint64(page[:8])
	a.freeLen--
	a.freeMu.Unlock()

	// The frame is now on neither structure and owned by this call.
	a.refMu.Lock()
	if a.ref[id] != 0 {
		a.refMu.Unlock()
		api.RaiseFault("mem", "alloc", "frame %d on free list with refcount %d", id, a.ref[id])
	}
	a.ref[id] = 1
	a.refMu.Unlock()

	fill(page, allocJunk)
	a.allocs.Add(1)
	return id, true
}

// Free drops one reference to id. Faults on frames outside the
// allocatable range and on frames whose count is already zero (a
// double free). Only when the count reaches zero is the page junked
// and pushed back onto the free list.
func (a *Allocator) Free(id PageID) {
	if int(id) < a.start || int(id) >= a.pages {
		api.RaiseFault("mem", "free", "frame %d outside [%d,%d)", id, a.start, a.pages)
	}

	a.refMu.Lock()
	if a.ref[id] <= 0 {
		n := a.ref[id]
		a.refMu.Unlock()
		api.RaiseFault("mem", "free", "frame %d refcount %d", id, n)
	}
	a.ref[id]--
	remaining := a.ref[id]
	a.refMu.Unlock()

	if remaining > 0 {
		return
	}

	page := a.pageBytes(id)
	fill(page, freeJunk)

	a.freeMu.Lock()
	binary.LittleEndian.PutUint64(page[:8], a.freeHead)
	a.freeHead = uint64(id)
	a.freeLen++
	a.freeMu.Unlock()
	a.frees.Add(1)
}

// FreeAddr is Free for callers holding a byte offset into physical
// memory rather than a frame number. Faults on unaligned offsets.
func (a *Allocator) FreeAddr(off uintptr) {
	if off%api.PageSize != 0 {
		api.RaiseFault("mem", "free", "unaligned address %#x", off)
	}
	a.Free(PageID(off / api.PageSize))
}

// AddRef adjusts id's reference count by delta and returns the new
// count. Used when a page gains or loses a logical owner, e.g. a
// copy-on-write mapping; it never frees or allocates by itself.
func (a *Allocator) AddRef(id PageID, delta int) int {
	a.refMu.Lock()
	a.ref[id] += int32(delta)
	n := a.ref[id]
	a.refMu.Unlock()
	a.refAdjusts.Add(1)
	return int(n)
}

// Bytes returns the payload of frame id. Valid only while the caller
// holds a reference.
func (a *Allocator) Bytes(id PageID) []byte {
	return a.pageBytes(id)
}

// Addr returns id's byte offset into physical memory, the form FreeAddr
// accepts back.
func (a *Allocator) Addr(id PageID) uintptr {
	return uintptr(id) * api.PageSize
}

func (a *Allocator) pageBytes(id PageID) []byte {
	off := int(id) * api.PageSize
	return a.arena[off : off+api.PageSize]
}

// Stats returns cumulative allocator counters.
func (a *Allocator) Stats() api.AllocStats {
	a.freeMu.Lock()
	free := a.freeLen
	a.freeMu.Unlock()
	return api.AllocStats{
		TotalPages: a.pages,
		FreePages:  free,
		Allocs:     a.allocs.Load(),
		Frees:      a.frees.Load(),
		RefAdjusts: a.refAdjusts.Load(),
	}
}

// Close returns the arena to the OS. The allocator must not be used
// afterwards.
func (a *Allocator) Close() error {
	if a.release == nil {
		return nil
	}
	return a.release()
}

func fill(p []byte, v byte) {
	for i := range p {
		p[i] = v
	}
}
