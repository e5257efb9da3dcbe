// File: internal/blockdev/ramdisk.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package blockdev provides a memory-backed block device. It stands in
// for the real driver during tests and examples, and records every
// transfer so callers can verify that the cache suppressed redundant
// I/O.
package blockdev

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/kcore/api"
)

// Op is one recorded device transfer.
type Op struct {
	Dev   uint32
	Block uint64
	Write bool
}

// RamDisk implements api.BlockDevice over in-memory images, one per
// device id. Every transfer is synchronous and appended to a FIFO
// trace.
type RamDisk struct {
	mu     sync.Mutex
	devs   map[uint32][]byte
	blocks uint64
	trace  *queue.Queue // of Op; queue is not goroutine-safe, mu covers it
	reads  uint64
	writes uint64
}

// New builds a RamDisk with device ids 0..ndevs-1, each holding blocks
// zero-filled blocks.
func New(ndevs int, blocks uint64) *RamDisk {
	d := &RamDisk{
		devs:   make(map[uint32][]byte, ndevs),
		blocks: blocks,
		trace:  queue.New(),
	}
	for i := 0; i < ndevs; i++ {
		d.devs[uint32(i)] = make([]byte, blocks*api.PageSize)
	}
	return d
}

// RW copies one block between data and the device image. Out-of-range
// positions and short payloads are caller bugs and fault.
func (d *RamDisk) RW(dev uint32, blockno uint64, data []byte, write bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, ok := d.devs[dev]
	if !ok || blockno >= d.blocks {
		api.RaiseFault("blockdev", "rw", "no block (%d,%d)", dev, blockno)
	}
	if len(data) != api.PageSize {
		api.RaiseFault("blockdev", "rw", "payload %d bytes, want %d", len(data), api.PageSize)
	}
	off := blockno * api.PageSize
	if write {
		copy(img[off:off+api.PageSize], data)
		d.writes++
	} else {
		copy(data, img[off:off+api.PageSize])
		d.reads++
	}
	d.trace.Add(Op{Dev: dev, Block: blockno, Write: write})
}

// DrainTrace removes and returns all recorded operations in transfer
// order.
func (d *RamDisk) DrainTrace() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Op, 0, d.trace.Length())
	for d.trace.Length() > 0 {
		out = append(out, d.trace.Remove().(Op))
	}
	return out
}

// Counts reports cumulative reads and writes.
func (d *RamDisk) Counts() (reads, writes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads, d.writes
}

var _ api.BlockDevice = (*RamDisk)(nil)
