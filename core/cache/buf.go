// File: core/cache/buf.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cache

// Buf is one cache slot: the in-memory shadow of a single disk block
// plus the metadata the cache needs to find, share, and evict it.
// Descriptors are allocated once at cache construction and live for
// the cache's lifetime; only their identity and payload change.
//
// Field locking: dev, blockno, refcnt, and stamp are guarded by the
// mutex of the bucket currently holding the descriptor (or by the
// eviction mutex during a re-key). valid and data are owned by
// whichever caller holds the descriptor's sleep lock.
type Buf struct {
	dev     uint32
	blockno uint64
	valid   bool   // payload reflects on-disk contents
	refcnt  int32  // current holders; 0 means eviction-eligible
	stamp   uint64 // recency tick of the last release-to-zero
	idx     int32  // arena index, fixed at construction
	lk      sleepLock
	data    []byte
}

// Dev returns the device id the buffer is keyed to.
func (b *Buf) Dev() uint32 { return b.dev }

// BlockNo returns the block number the buffer is keyed to.
func (b *Buf) BlockNo() uint64 { return b.blockno }

// Data returns the payload. Callers may touch it only between Read
// (or a bare bget via Pin discipline) and the matching Release.
func (b *Buf) Data() []byte { return b.data }
